package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())
	assert.Equal(t, QualityMedium, s.Quality)
	assert.Equal(t, CodecH264, s.Codec)
	assert.Equal(t, ModeQuality, s.Mode)
	assert.True(t, s.KeepAudio)
	assert.False(t, s.Advanced)
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CompressionSettings)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(s *CompressionSettings) {},
		},
		{
			name:    "unknown quality",
			mutate:  func(s *CompressionSettings) { s.Quality = "ultra" },
			wantErr: "quality",
		},
		{
			name:    "unknown codec",
			mutate:  func(s *CompressionSettings) { s.Codec = "libvpx" },
			wantErr: "codec",
		},
		{
			name:    "unknown mode",
			mutate:  func(s *CompressionSettings) { s.Mode = "lossless" },
			wantErr: "mode",
		},
		{
			name: "ratio below range",
			mutate: func(s *CompressionSettings) {
				s.Mode = ModeRatio
				s.Ratio = 4
			},
			wantErr: "ratio",
		},
		{
			name: "ratio above range",
			mutate: func(s *CompressionSettings) {
				s.Mode = ModeRatio
				s.Ratio = 96
			},
			wantErr: "ratio",
		},
		{
			name: "ratio bounds inclusive",
			mutate: func(s *CompressionSettings) {
				s.Mode = ModeRatio
				s.Ratio = 5
			},
		},
		{
			name: "target size missing",
			mutate: func(s *CompressionSettings) {
				s.Mode = ModeTargetSize
				s.TargetSizeMB = 0
			},
			wantErr: "target size",
		},
		{
			name: "target size positive",
			mutate: func(s *CompressionSettings) {
				s.Mode = ModeTargetSize
				s.TargetSizeMB = 25
			},
		},
		{
			name: "custom resolution needs dimensions when advanced",
			mutate: func(s *CompressionSettings) {
				s.Advanced = true
				s.Resolution = ResolutionCustom
			},
			wantErr: "custom resolution",
		},
		{
			name: "custom resolution ignored without advanced",
			mutate: func(s *CompressionSettings) {
				s.Resolution = ResolutionCustom
			},
		},
		{
			name: "custom fps needs value when advanced",
			mutate: func(s *CompressionSettings) {
				s.Advanced = true
				s.FrameRate = FrameRateCustom
			},
			wantErr: "frame rate",
		},
		{
			name: "audio bitrate required when keeping audio",
			mutate: func(s *CompressionSettings) {
				s.AudioKbps = 0
			},
			wantErr: "audio bitrate",
		},
		{
			name: "audio bitrate irrelevant when muting",
			mutate: func(s *CompressionSettings) {
				s.KeepAudio = false
				s.AudioKbps = 0
			},
		},
		{
			name: "negative bitrate override",
			mutate: func(s *CompressionSettings) {
				s.Advanced = true
				s.VideoBitrateKbps = -1
			},
			wantErr: "bitrate override",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestMediaInfoTracks(t *testing.T) {
	video := MediaInfo{Width: 1920, Height: 1080}
	assert.True(t, video.HasVideo())
	assert.False(t, video.HasAudio())

	audio := MediaInfo{AudioCodec: "aac"}
	assert.False(t, audio.HasVideo())
	assert.True(t, audio.HasAudio())
}
