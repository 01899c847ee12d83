package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

func runFlags(t *testing.T, flags map[string]string) (models.CompressionSettings, error) {
	t.Helper()
	cmd := newRunCmd()
	for name, value := range flags {
		require.NoError(t, cmd.Flags().Set(name, value))
	}
	return settingsFromFlags(cmd.Flags())
}

func TestSettingsFromFlagsDefaults(t *testing.T) {
	got, err := runFlags(t, nil)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), got)
}

func TestSettingsFromFlagsMapping(t *testing.T) {
	got, err := runFlags(t, map[string]string{
		"quality":       "high",
		"codec":         "h265",
		"mode":          "ratio",
		"ratio":         "70",
		"no-audio":      "true",
		"audio-bitrate": "128",
	})
	require.NoError(t, err)

	assert.Equal(t, models.QualityHigh, got.Quality)
	assert.Equal(t, models.CodecH265, got.Codec)
	assert.Equal(t, models.ModeRatio, got.Mode)
	assert.Equal(t, 70, got.Ratio)
	assert.False(t, got.KeepAudio)
	assert.Equal(t, 128, got.AudioKbps)
	assert.False(t, got.Advanced)
}

func TestSettingsFromFlagsAdvancedGate(t *testing.T) {
	tests := []struct {
		name  string
		flags map[string]string
	}{
		{"resolution preset", map[string]string{"resolution": "720p"}},
		{"frame rate", map[string]string{"fps": "30"}},
		{"bitrate override", map[string]string{"video-bitrate": "2500"}},
		{"custom resolution", map[string]string{"resolution": "custom", "width": "640", "height": "360"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runFlags(t, tt.flags)
			require.NoError(t, err)
			assert.True(t, got.Advanced)
		})
	}
}

func TestSettingsFromFlagsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		flags   map[string]string
		wantErr string
	}{
		{"quality", map[string]string{"quality": "ultra"}, "invalid --quality"},
		{"codec", map[string]string{"codec": "av1"}, "invalid --codec"},
		{"mode", map[string]string{"mode": "best"}, "invalid --mode"},
		{"resolution", map[string]string{"resolution": "4k"}, "invalid --resolution"},
		{"fps", map[string]string{"fps": "120"}, "invalid --fps"},
		{"width without custom", map[string]string{"width": "640"}, "--resolution custom"},
		{"ratio out of range", map[string]string{"mode": "ratio", "ratio": "2"}, "ratio"},
		{"target size missing", map[string]string{"mode": "target_size"}, "target size"},
		{"custom without dims", map[string]string{"resolution": "custom"}, "custom resolution"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runFlags(t, tt.flags)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGatherInputsExpandsDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mp4", "a.mov", "notes.txt", "c.mkv"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	got, err := gatherInputs([]string{dir})
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, "a.mov"),
		filepath.Join(dir, "b.mp4"),
		filepath.Join(dir, "c.mkv"),
	}
	assert.Equal(t, want, got)
}

func TestGatherInputsKeepsArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "z.mp4")
	second := filepath.Join(dir, "a.mp4")
	require.NoError(t, os.WriteFile(first, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("x"), 0o644))

	got, err := gatherInputs([]string{first, second})
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, got)
}

func TestGatherInputsRejectsUnsupportedFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := gatherInputs([]string{file})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestGatherInputsMissingPath(t *testing.T) {
	_, err := gatherInputs([]string{filepath.Join(t.TempDir(), "gone.mp4")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestGatherInputsEmptyDirectory(t *testing.T) {
	_, err := gatherInputs([]string{t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no supported video files")
}
