// Package probe extracts media metadata via ffprobe.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

// DefaultTimeout bounds a single probe invocation.
const DefaultTimeout = 30 * time.Second

// Prober resolves a file path to its media metadata. A nil error guarantees
// a non-nil MediaInfo; any failure (missing file, unreadable container, tool
// error, timeout) is reported as an error and treated by callers as fatal
// for that file.
type Prober interface {
	Probe(ctx context.Context, path string) (*models.MediaInfo, error)
}

// FFprobe runs the ffprobe binary and parses its JSON output.
type FFprobe struct {
	binPath string
	timeout time.Duration
}

// New returns an FFprobe prober. An empty binPath falls back to "ffprobe" on
// PATH; a nonpositive timeout falls back to DefaultTimeout.
func New(binPath string, timeout time.Duration) *FFprobe {
	if binPath == "" {
		binPath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FFprobe{binPath: binPath, timeout: timeout}
}

// Probe runs ffprobe against path and returns the parsed metadata.
func (f *FFprobe) Probe(ctx context.Context, path string) (*models.MediaInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	out, err := exec.CommandContext(ctx, f.binPath, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	info, err := ParseOutput(out)
	if err != nil {
		return nil, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}
	return info, nil
}

// probeOutput mirrors the subset of ffprobe's JSON document we consume.
// ffprobe reports most numbers as strings, so the wire types keep them as
// strings and parsing stays lenient: an absent or malformed field is zero.
type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	BitRate    string `json:"bit_rate"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// ParseOutput decodes an ffprobe JSON document into MediaInfo. The first
// video stream and the first audio stream win.
func ParseOutput(data []byte) (*models.MediaInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}

	info := &models.MediaInfo{
		SizeBytes:   parseInt(out.Format.Size),
		DurationSec: parseFloat(out.Format.Duration),
		BitRate:     parseInt(out.Format.BitRate),
	}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo() {
				continue
			}
			info.Width = s.Width
			info.Height = s.Height
			info.Codec = s.CodecName
			info.FPS = parseFrameRate(s.RFrameRate)
		case "audio":
			if info.HasAudio() {
				continue
			}
			info.AudioCodec = s.CodecName
			info.AudioBitRate = parseInt(s.BitRate)
			info.SampleRate = int(parseInt(s.SampleRate))
			info.AudioChannels = s.Channels
		}
	}
	return info, nil
}

// parseFrameRate handles ffprobe's rational "num/den" frame rates as well as
// plain decimals.
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return parseFloat(s)
	}
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return parseFloat(num) / d
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
