package transcoder

import (
	"path/filepath"
	"strings"
)

// DefaultSuffix is appended to output file names when the caller does not
// supply one.
const DefaultSuffix = "_compressed"

// OutputPath places the compressed rendition of inputPath inside outputDir,
// inserting suffix between the base name and the original extension:
// /in/movie.mp4 + "_small" -> outputDir/movie_small.mp4. An empty outputDir
// keeps the output next to its input.
func OutputPath(inputPath, outputDir, suffix string) string {
	if outputDir == "" {
		outputDir = filepath.Dir(inputPath)
	}
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(outputDir, name+suffix+ext)
}
