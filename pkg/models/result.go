package models

// JobResult is the immutable terminal record of one encode. Byte sizes are
// only meaningful when Success is true.
type JobResult struct {
	Success         bool   `json:"success"`
	InputPath       string `json:"input_path"`
	OutputPath      string `json:"output_path"`
	OriginalBytes   int64  `json:"original_size"`
	CompressedBytes int64  `json:"compressed_size"`
	Error           string `json:"error,omitempty"`
}

// BatchSummary aggregates a finished batch for display and notification.
// Byte totals cover successful files only.
type BatchSummary struct {
	Succeeded       int     `json:"succeeded"`
	Total           int     `json:"total"`
	OriginalBytes   int64   `json:"original_bytes"`
	CompressedBytes int64   `json:"compressed_bytes"`
	ReductionPct    float64 `json:"reduction_pct"`
}

// CompressionRatio returns the size reduction as a percentage in [0, 100].
// A nonpositive original size yields 0.
func CompressionRatio(originalBytes, compressedBytes int64) float64 {
	if originalBytes <= 0 {
		return 0
	}
	ratio := (1 - float64(compressedBytes)/float64(originalBytes)) * 100
	if ratio < 0 {
		return 0
	}
	if ratio > 100 {
		return 100
	}
	return ratio
}

// Summarize folds per-file results into a batch summary.
func Summarize(results []JobResult) BatchSummary {
	s := BatchSummary{Total: len(results)}
	for _, r := range results {
		if !r.Success {
			continue
		}
		s.Succeeded++
		s.OriginalBytes += r.OriginalBytes
		s.CompressedBytes += r.CompressedBytes
	}
	s.ReductionPct = CompressionRatio(s.OriginalBytes, s.CompressedBytes)
	return s
}
