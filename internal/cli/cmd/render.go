package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/vidsqueeze/vidsqueeze/internal/display"
	"github.com/vidsqueeze/vidsqueeze/internal/transcoder"
	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

// renderer turns the batch event stream into terminal output. Progress
// updates redraw one inline line; everything else appends.
type renderer struct {
	out      io.Writer
	total    int
	progress bool
}

func newRenderer(out io.Writer, total int) *renderer {
	return &renderer{out: out, total: total}
}

func (r *renderer) observe(ev transcoder.Event) {
	switch ev.Type {
	case transcoder.EventFileStarted:
		fmt.Fprintf(r.out, "[%d/%d] %s\n", ev.Index+1, r.total, filepath.Base(ev.File))

	case transcoder.EventFileProgress:
		fmt.Fprintf(r.out, "\r  %5.1f%%", ev.Progress)
		r.progress = true

	case transcoder.EventFileError:
		r.endProgress()
		fmt.Fprintf(r.out, "  failed: %s\n", ev.Error)

	case transcoder.EventFileFinished:
		r.endProgress()
		if ev.Result != nil && ev.Result.Success {
			fmt.Fprintf(r.out, "  %s -> %s (%.1f%% smaller)\n",
				display.FormatBytes(ev.Result.OriginalBytes),
				display.FormatBytes(ev.Result.CompressedBytes),
				models.CompressionRatio(ev.Result.OriginalBytes, ev.Result.CompressedBytes))
		}

	case transcoder.EventBatchFinished:
		if ev.Summary != nil {
			r.printSummary(*ev.Summary)
		}

	case transcoder.EventBatchCancelled:
		r.endProgress()
		fmt.Fprintf(r.out, "cancelled after %d of %d files\n", len(ev.Results), r.total)
	}
}

// endProgress wipes the inline progress line if one is showing.
func (r *renderer) endProgress() {
	if !r.progress {
		return
	}
	fmt.Fprint(r.out, "\r        \r")
	r.progress = false
}

func (r *renderer) printSummary(s models.BatchSummary) {
	fmt.Fprintf(r.out, "\n%d/%d files compressed", s.Succeeded, s.Total)
	if s.Succeeded > 0 {
		fmt.Fprintf(r.out, ", %s -> %s (%.1f%% smaller)",
			display.FormatBytes(s.OriginalBytes),
			display.FormatBytes(s.CompressedBytes),
			s.ReductionPct)
	}
	fmt.Fprintln(r.out)
}
