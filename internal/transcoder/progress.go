package transcoder

import (
	"regexp"
	"strconv"
	"strings"
)

// ffmpeg reports progress inside human-readable stats lines, e.g.
//
//	frame= 1234 fps= 25 q=28.0 size=  2048kB time=00:00:51.40 bitrate= ...
//
// There is no structured progress channel, so the elapsed-time token is
// scraped out of each line; anything that does not match is skipped.
var timeTokenPattern = regexp.MustCompile(`time=(\d+:\d+:\d+\.?\d*|\d+\.?\d*)`)

// ExtractElapsed scans one line of encoder output for an elapsed-time token
// and returns the elapsed seconds. ok is false when the line carries none.
func ExtractElapsed(line string) (elapsed float64, ok bool) {
	m := timeTokenPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	return ParseTimecode(m[1]), true
}

// ParseTimecode converts "HH:MM:SS[.frac]", "MM:SS[.frac]", or a bare seconds
// value to seconds. Anything else parses to 0.
func ParseTimecode(s string) float64 {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}

	parts := strings.Split(s, ":")
	switch len(parts) {
	case 3:
		return parseField(parts[0])*3600 + parseField(parts[1])*60 + parseField(parts[2])
	case 2:
		return parseField(parts[0])*60 + parseField(parts[1])
	default:
		return 0
	}
}

func parseField(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
