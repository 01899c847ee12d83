package transcoder

import (
	"fmt"
	"strconv"

	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

// BuildArgs maps encoder parameters to the ffmpeg argument vector, binary
// name excluded. The flag order is part of the contract: input first, then
// video codec, rate control, preset, filters, frame rate, audio, codec tag,
// and the output path last. It never starts a process.
func BuildArgs(p models.EncodeParameters, inputPath, outputPath string) []string {
	args := []string{"-y", "-i", inputPath, "-c:v", p.VideoCodec}

	if p.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(p.CRF))
	}
	if p.BitrateKbps > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", p.BitrateKbps))
	}
	if p.Preset != "" {
		args = append(args, "-preset", p.Preset)
	}
	if p.HasScale() {
		args = append(args, "-vf", fmt.Sprintf("scale=%d:%d", p.ScaleWidth, p.ScaleHeight))
	}
	if p.FPS > 0 {
		args = append(args, "-r", strconv.Itoa(p.FPS))
	}

	if p.Mute {
		args = append(args, "-an")
	} else {
		if p.AudioCodec != "" {
			args = append(args, "-c:a", p.AudioCodec)
		}
		if p.AudioKbps > 0 {
			args = append(args, "-b:a", fmt.Sprintf("%dk", p.AudioKbps))
		}
	}

	if p.Tag != "" {
		args = append(args, "-tag:v", p.Tag)
	}

	return append(args, outputPath)
}
