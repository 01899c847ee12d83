package transcoder

import (
	"time"

	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

// EventType discriminates batch lifecycle events.
type EventType string

const (
	// EventFileStarted fires when the sequencer picks up the next input.
	EventFileStarted EventType = "file_started"
	// EventFileProgress carries encode progress for the active file, 0-100.
	EventFileProgress EventType = "file_progress"
	// EventFileStatus carries a human-readable status line for the active file.
	EventFileStatus EventType = "file_status"
	// EventFileError reports a per-file failure before its terminal result.
	EventFileError EventType = "file_error"
	// EventFileFinished carries the terminal result of one file.
	EventFileFinished EventType = "file_finished"
	// EventBatchFinished carries all results once the last file is done.
	EventBatchFinished EventType = "batch_finished"
	// EventBatchCancelled marks a batch stopped by an explicit cancel. It
	// carries the results accumulated before the cancel.
	EventBatchCancelled EventType = "batch_cancelled"
)

// Event is one entry in the batch event stream. Only the fields relevant to
// the event type are populated.
type Event struct {
	Type    EventType `json:"type"`
	BatchID string    `json:"batch_id"`
	At      time.Time `json:"at"`

	Index    int     `json:"index,omitempty"`
	File     string  `json:"file,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Status   string  `json:"status,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`

	Result  *models.JobResult    `json:"result,omitempty"`
	Results []models.JobResult   `json:"results,omitempty"`
	Summary *models.BatchSummary `json:"summary,omitempty"`
}

// Terminal reports whether this event ends its batch.
func (e Event) Terminal() bool {
	return e.Type == EventBatchFinished || e.Type == EventBatchCancelled
}

// JobHooks receive one job's lifecycle callbacks. All callbacks are invoked
// from the job goroutine, serialized, and never after OnResult. Nil fields
// are skipped.
type JobHooks struct {
	OnProgress func(percent float64)
	OnStatus   func(status string)
	OnError    func(kind FailureKind, msg string)
	OnResult   func(result models.JobResult)
}
