package models

import "fmt"

// QualityLevel selects the perceptual quality tier for quality-based encodes.
type QualityLevel string

const (
	QualityHigh   QualityLevel = "high"
	QualityMedium QualityLevel = "medium"
	QualityLow    QualityLevel = "low"
)

// VideoCodec is the encoder implementation passed to ffmpeg.
type VideoCodec string

const (
	CodecH264 VideoCodec = "libx264"
	CodecH265 VideoCodec = "libx265"
)

// CompressionMode decides how the rate control for an encode is derived.
type CompressionMode string

const (
	// ModeQuality encodes at a constant quality factor.
	ModeQuality CompressionMode = "quality"
	// ModeRatio targets an output size relative to the input size.
	ModeRatio CompressionMode = "ratio"
	// ModeTargetSize targets an absolute output size in megabytes.
	ModeTargetSize CompressionMode = "target_size"
)

// ResolutionSpec selects the output resolution.
type ResolutionSpec string

const (
	ResolutionOriginal ResolutionSpec = "original"
	Resolution1080     ResolutionSpec = "1080p"
	Resolution720      ResolutionSpec = "720p"
	Resolution480      ResolutionSpec = "480p"
	ResolutionCustom   ResolutionSpec = "custom"
)

// FrameRateSpec selects the output frame rate.
type FrameRateSpec string

const (
	FrameRateOriginal FrameRateSpec = "original"
	FrameRate24       FrameRateSpec = "24"
	FrameRate30       FrameRateSpec = "30"
	FrameRate60       FrameRateSpec = "60"
	FrameRateCustom   FrameRateSpec = "custom"
)

// AudioBitrateOptions are the selectable audio bitrates in kbps.
var AudioBitrateOptions = []int{64, 128, 192, 256, 320}

// CompressionSettings captures the user's intent for a batch. Exactly one
// compression mode is authoritative at derivation time; the advanced flag
// gates whether the resolution, frame-rate, and bitrate overrides apply.
type CompressionSettings struct {
	Quality      QualityLevel    `json:"quality"`
	Codec        VideoCodec      `json:"codec"`
	Mode         CompressionMode `json:"mode"`
	Ratio        int             `json:"ratio"`
	TargetSizeMB float64         `json:"target_size_mb"`

	Resolution   ResolutionSpec `json:"resolution"`
	CustomWidth  int            `json:"custom_width,omitempty"`
	CustomHeight int            `json:"custom_height,omitempty"`

	FrameRate FrameRateSpec `json:"frame_rate"`
	CustomFPS int           `json:"custom_fps,omitempty"`

	AudioKbps int  `json:"audio_bitrate"`
	KeepAudio bool `json:"keep_audio"`

	Advanced         bool `json:"advanced"`
	VideoBitrateKbps int  `json:"video_bitrate,omitempty"`
}

// DefaultSettings returns the settings a fresh batch starts from.
func DefaultSettings() CompressionSettings {
	return CompressionSettings{
		Quality:    QualityMedium,
		Codec:      CodecH264,
		Mode:       ModeQuality,
		Ratio:      50,
		Resolution: ResolutionOriginal,
		FrameRate:  FrameRateOriginal,
		AudioKbps:  192,
		KeepAudio:  true,
	}
}

// Validate reports the first invalid field, or nil when the settings are
// usable for derivation.
func (s CompressionSettings) Validate() error {
	switch s.Quality {
	case QualityHigh, QualityMedium, QualityLow:
	default:
		return fmt.Errorf("invalid quality level %q", s.Quality)
	}
	switch s.Codec {
	case CodecH264, CodecH265:
	default:
		return fmt.Errorf("invalid video codec %q", s.Codec)
	}
	switch s.Mode {
	case ModeQuality:
	case ModeRatio:
		if s.Ratio < 5 || s.Ratio > 95 {
			return fmt.Errorf("compression ratio %d%% outside 5-95", s.Ratio)
		}
	case ModeTargetSize:
		if s.TargetSizeMB <= 0 {
			return fmt.Errorf("target size %.1f MB must be positive", s.TargetSizeMB)
		}
	default:
		return fmt.Errorf("invalid compression mode %q", s.Mode)
	}
	switch s.Resolution {
	case ResolutionOriginal, Resolution1080, Resolution720, Resolution480:
	case ResolutionCustom:
		if s.Advanced && (s.CustomWidth <= 0 || s.CustomHeight <= 0) {
			return fmt.Errorf("custom resolution requires positive dimensions, got %dx%d", s.CustomWidth, s.CustomHeight)
		}
	default:
		return fmt.Errorf("invalid resolution %q", s.Resolution)
	}
	switch s.FrameRate {
	case FrameRateOriginal, FrameRate24, FrameRate30, FrameRate60:
	case FrameRateCustom:
		if s.Advanced && s.CustomFPS <= 0 {
			return fmt.Errorf("custom frame rate requires a positive fps, got %d", s.CustomFPS)
		}
	default:
		return fmt.Errorf("invalid frame rate %q", s.FrameRate)
	}
	if s.KeepAudio && s.AudioKbps <= 0 {
		return fmt.Errorf("audio bitrate %d kbps must be positive when audio is kept", s.AudioKbps)
	}
	if s.Advanced && s.VideoBitrateKbps < 0 {
		return fmt.Errorf("video bitrate override %d kbps must not be negative", s.VideoBitrateKbps)
	}
	return nil
}
