package models

// EncodeParameters is the concrete encoder configuration derived from
// CompressionSettings plus probed MediaInfo. It is immutable once computed.
// Rate control is exclusive: CRF and BitrateKbps are never both set.
type EncodeParameters struct {
	VideoCodec string `json:"video_codec"`

	CRF         int `json:"crf,omitempty"`
	BitrateKbps int `json:"bitrate_kbps,omitempty"`

	Preset string `json:"preset,omitempty"`

	ScaleWidth  int `json:"scale_width,omitempty"`
	ScaleHeight int `json:"scale_height,omitempty"`

	FPS int `json:"fps,omitempty"`

	AudioCodec string `json:"audio_codec,omitempty"`
	AudioKbps  int    `json:"audio_kbps,omitempty"`
	Mute       bool   `json:"mute,omitempty"`

	// Tag is an output-container codec tag for player compatibility,
	// e.g. hvc1 for HEVC in MP4.
	Tag string `json:"tag,omitempty"`

	// QualityFallback marks that a size-targeting mode lacked the metadata
	// it needed and the engine fell back to quality-factor rate control.
	QualityFallback bool `json:"quality_fallback,omitempty"`
}

// HasScale reports whether a scale filter should be applied.
func (p EncodeParameters) HasScale() bool {
	return p.ScaleWidth > 0 && p.ScaleHeight > 0
}
