// Package params derives concrete encoder parameters from compression
// settings and probed media metadata. Everything here is pure computation;
// no I/O and no process handling.
package params

import (
	"math"
	"strconv"

	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

const (
	// defaultBitrateKbps is used when the input duration is unknown.
	defaultBitrateKbps = 2000
	minBitrateKbps     = 100
	maxBitrateKbps     = 50000

	// sizeSafetyMargin absorbs container and encoder overhead so a
	// size-targeted output lands under the requested size.
	sizeSafetyMargin = 0.95
	// videoBudgetShare is the video share of the size budget when the
	// audio footprint alone would exceed the target.
	videoBudgetShare = 0.8
)

var crfTable = map[models.QualityLevel]int{
	models.QualityHigh:   18,
	models.QualityMedium: 23,
	models.QualityLow:    28,
}

var presetTable = map[models.QualityLevel]string{
	models.QualityHigh:   "slow",
	models.QualityMedium: "medium",
	models.QualityLow:    "fast",
}

var presetResolutions = map[models.ResolutionSpec][2]int{
	models.Resolution1080: {1920, 1080},
	models.Resolution720:  {1280, 720},
	models.Resolution480:  {854, 480},
}

// CRF returns the constant-rate-factor for a quality level. HEVC reaches the
// same perceptual quality at a lower factor, so it gets a 4-point discount.
func CRF(quality models.QualityLevel, codec models.VideoCodec) int {
	crf, ok := crfTable[quality]
	if !ok {
		crf = crfTable[models.QualityMedium]
	}
	if codec == models.CodecH265 {
		crf -= 4
	}
	return crf
}

// PresetFor returns the encoder speed preset for a quality level.
func PresetFor(quality models.QualityLevel) string {
	if p, ok := presetTable[quality]; ok {
		return p
	}
	return presetTable[models.QualityMedium]
}

// TargetResolution resolves the output dimensions for a resolution spec
// against the probed original dimensions. Preset specs never upscale, and
// any dimension this function changes comes out even.
func TargetResolution(origW, origH int, spec models.ResolutionSpec, customW, customH int) (int, int) {
	switch spec {
	case models.ResolutionOriginal:
		return origW, origH
	case models.ResolutionCustom:
		if customW <= 0 || customH <= 0 {
			return origW, origH
		}
		return evenClamp(customW), evenClamp(customH)
	}

	target, ok := presetResolutions[spec]
	if !ok {
		return origW, origH
	}
	targetW, targetH := target[0], target[1]
	if origW <= targetW && origH <= targetH {
		return origW, origH
	}
	scale := math.Min(float64(targetW)/float64(origW), float64(targetH)/float64(origH))
	w := int(float64(origW) * scale)
	h := int(float64(origH) * scale)
	return evenClamp(w), evenClamp(h)
}

// TargetBitrateKbps back-solves the video bitrate that fits targetBytes over
// durationSec, after reserving room for the audio track when it is kept. The
// result is clamped to [100, 50000] kbps. An unknown duration yields the
// fixed default of 2000 kbps.
func TargetBitrateKbps(targetBytes int64, durationSec float64, audioKbps int, keepAudio bool) int {
	if durationSec <= 0 {
		return defaultBitrateKbps
	}

	totalBits := float64(targetBytes) * 8 * sizeSafetyMargin
	var audioBits float64
	if keepAudio {
		audioBits = float64(audioKbps) * 1000 * durationSec
	}

	videoBits := totalBits - audioBits
	if videoBits <= 0 {
		videoBits = float64(targetBytes) * 8 * sizeSafetyMargin * videoBudgetShare
	}

	kbps := videoBits / durationSec / 1000
	if kbps < minBitrateKbps {
		kbps = minBitrateKbps
	}
	if kbps > maxBitrateKbps {
		kbps = maxBitrateKbps
	}
	return int(kbps)
}

// Derive maps settings plus probed metadata to encoder parameters, dispatching
// on the compression mode. Size-targeting modes that lack the metadata they
// need fall back to quality-factor rate control and mark QualityFallback.
func Derive(s models.CompressionSettings, info models.MediaInfo) models.EncodeParameters {
	p := models.EncodeParameters{VideoCodec: string(s.Codec)}

	switch s.Mode {
	case models.ModeTargetSize:
		targetBytes := int64(s.TargetSizeMB * 1024 * 1024)
		p.BitrateKbps = TargetBitrateKbps(targetBytes, info.DurationSec, s.AudioKbps, s.KeepAudio)
		p.Preset = "medium"
	case models.ModeRatio:
		if info.SizeBytes > 0 && info.DurationSec > 0 {
			targetBytes := int64(float64(info.SizeBytes) * float64(s.Ratio) / 100)
			p.BitrateKbps = TargetBitrateKbps(targetBytes, info.DurationSec, s.AudioKbps, s.KeepAudio)
		} else {
			p.CRF = CRF(s.Quality, s.Codec)
			p.QualityFallback = true
		}
		p.Preset = "medium"
	default:
		p.CRF = CRF(s.Quality, s.Codec)
		p.Preset = PresetFor(s.Quality)
	}

	if s.Advanced {
		if s.VideoBitrateKbps > 0 {
			// An explicit override replaces whatever rate control the
			// mode computed; CRF and bitrate are mutually exclusive.
			p.BitrateKbps = s.VideoBitrateKbps
			p.CRF = 0
			p.QualityFallback = false
		}
		if s.Resolution != models.ResolutionOriginal {
			w, h := TargetResolution(info.Width, info.Height, s.Resolution, s.CustomWidth, s.CustomHeight)
			if w != info.Width || h != info.Height {
				p.ScaleWidth, p.ScaleHeight = w, h
			}
		}
		if fps := targetFPS(s); fps > 0 {
			p.FPS = fps
		}
	}

	if s.KeepAudio {
		p.AudioCodec = "aac"
		p.AudioKbps = s.AudioKbps
	} else {
		p.Mute = true
	}

	if s.Codec == models.CodecH265 {
		p.Tag = "hvc1"
	}
	return p
}

func targetFPS(s models.CompressionSettings) int {
	switch s.FrameRate {
	case models.FrameRateOriginal:
		return 0
	case models.FrameRateCustom:
		if s.CustomFPS > 0 {
			return s.CustomFPS
		}
		return 0
	default:
		n, err := strconv.Atoi(string(s.FrameRate))
		if err != nil {
			return 0
		}
		return n
	}
}

func evenClamp(v int) int {
	if v%2 != 0 {
		v--
	}
	return v
}
