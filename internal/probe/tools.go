package probe

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// versionTimeout bounds the tool availability check.
const versionTimeout = 5 * time.Second

// CheckTool reports whether the binary at path runs and exits cleanly when
// asked for its version. Works for both ffmpeg and ffprobe.
func CheckTool(ctx context.Context, path string) bool {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	return exec.CommandContext(ctx, path, "-version").Run() == nil
}

// SupportedExtensions lists the container extensions accepted as input,
// lowercase with the leading dot.
var SupportedExtensions = []string{
	".mp4", ".mov", ".avi", ".mkv", ".wmv", ".flv", ".webm", ".m4v",
}

// IsSupported reports whether the file's extension is a supported container.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// FilterSupported returns the paths with supported extensions, order kept.
func FilterSupported(paths []string) []string {
	var out []string
	for _, p := range paths {
		if IsSupported(p) {
			out = append(out, p)
		}
	}
	return out
}
