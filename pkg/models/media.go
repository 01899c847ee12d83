package models

// MediaInfo is the probed description of one input file. Fields the probe
// could not determine are zero; a missing record altogether means the probe
// failed and the file cannot be processed.
type MediaInfo struct {
	SizeBytes   int64   `json:"size"`
	DurationSec float64 `json:"duration"`
	BitRate     int64   `json:"bit_rate"`

	Width  int     `json:"width"`
	Height int     `json:"height"`
	FPS    float64 `json:"fps"`
	Codec  string  `json:"codec,omitempty"`

	AudioCodec    string `json:"audio_codec,omitempty"`
	AudioBitRate  int64  `json:"audio_bit_rate,omitempty"`
	SampleRate    int    `json:"sample_rate,omitempty"`
	AudioChannels int    `json:"audio_channels,omitempty"`
}

// HasVideo reports whether a video stream was found.
func (m MediaInfo) HasVideo() bool {
	return m.Width > 0 && m.Height > 0
}

// HasAudio reports whether an audio stream was found.
func (m MediaInfo) HasAudio() bool {
	return m.AudioCodec != ""
}
