package transcoder

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vidsqueeze/vidsqueeze/internal/probe"
	"github.com/vidsqueeze/vidsqueeze/internal/tracing"
	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

// Sequencer runs encode jobs strictly one at a time over an ordered list of
// inputs. One file failing never stops the rest; only Cancel ends a batch
// early. Lifecycle events stream on Events in emission order.
type Sequencer struct {
	ffmpegPath string
	prober     probe.Prober
	log        zerolog.Logger

	events chan Event

	mu           sync.Mutex
	running      bool
	cancelled    bool
	batchID      string
	files        []string
	index        int
	results      []models.JobResult
	active       *Job
	lastProgress float64
}

// Status is a point-in-time snapshot of the sequencer for control surfaces.
type Status struct {
	BatchID      string             `json:"batch_id,omitempty"`
	Running      bool               `json:"running"`
	Paused       bool               `json:"paused"`
	CurrentIndex int                `json:"current_index"`
	TotalFiles   int                `json:"total_files"`
	CurrentFile  string             `json:"current_file,omitempty"`
	Progress     float64            `json:"progress"`
	Results      []models.JobResult `json:"results"`
}

// NewSequencer builds a sequencer encoding with the ffmpeg binary at
// ffmpegPath (PATH lookup when empty) and probing inputs through prober.
func NewSequencer(ffmpegPath string, prober probe.Prober, log zerolog.Logger) *Sequencer {
	return &Sequencer{
		ffmpegPath: ffmpegPath,
		prober:     prober,
		log:        log,
		events:     make(chan Event, 128),
		index:      -1,
	}
}

// Events returns the batch event stream. The channel is never closed; a
// batch ends with a batch_finished or batch_cancelled event. Lifecycle
// events are always delivered (the consumer must keep draining); progress
// and status events are dropped when the buffer is full rather than stalling
// the encoder.
func (s *Sequencer) Events() <-chan Event { return s.events }

// Start resets state and launches the batch run loop. It returns the batch
// ID immediately; progress is observed through Events. Cancelling ctx kills
// the active encode and ends the batch as cancelled.
func (s *Sequencer) Start(ctx context.Context, files []string, outputDir string, settings models.CompressionSettings, suffix string) (string, error) {
	if len(files) == 0 {
		return "", ErrNoFiles
	}
	if err := settings.Validate(); err != nil {
		return "", err
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return "", ErrBatchRunning
	}
	s.running = true
	s.cancelled = false
	s.batchID = uuid.NewString()
	s.files = append([]string(nil), files...)
	s.index = -1
	s.results = nil
	s.active = nil
	s.lastProgress = 0
	id := s.batchID
	s.mu.Unlock()

	s.log.Info().
		Str("batch_id", id).
		Int("files", len(files)).
		Str("output_dir", outputDir).
		Str("mode", string(settings.Mode)).
		Msg("batch started")

	go s.run(ctx, id, outputDir, settings, suffix)
	return id, nil
}

// Cancel stops the batch: the active job is cancelled and no further files
// start. No-op when nothing is running.
func (s *Sequencer) Cancel() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	active := s.active
	s.mu.Unlock()

	if active != nil {
		active.Cancel()
	}
}

// Pause suspends the active job's progress loop. Delegates to the current
// job only; files not yet started are unaffected.
func (s *Sequencer) Pause() {
	if j := s.activeJob(); j != nil {
		j.Pause()
	}
}

// Resume releases a paused job.
func (s *Sequencer) Resume() {
	if j := s.activeJob(); j != nil {
		j.Resume()
	}
}

// Running reports whether a batch is in flight.
func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// CurrentIndex returns the cursor position, -1 before the first file starts.
func (s *Sequencer) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// TotalFiles returns the batch length.
func (s *Sequencer) TotalFiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Status snapshots the sequencer.
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		BatchID:      s.batchID,
		Running:      s.running,
		CurrentIndex: s.index,
		TotalFiles:   len(s.files),
		Progress:     s.lastProgress,
		Results:      append([]models.JobResult(nil), s.results...),
	}
	if s.active != nil {
		st.Paused = s.active.State() == StatePaused
	}
	if s.index >= 0 && s.index < len(s.files) {
		st.CurrentFile = filepath.Base(s.files[s.index])
	}
	return st
}

func (s *Sequencer) activeJob() *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// run is the batch loop: advance the cursor, run one job to its terminal
// result, repeat. Lifecycle events are emitted here and only here, so event
// order follows execution order.
func (s *Sequencer) run(ctx context.Context, batchID, outputDir string, settings models.CompressionSettings, suffix string) {
	span, ctx := tracing.StartSpan(ctx, "batch.run")
	defer span.Finish()
	span.SetTag("batch_id", batchID)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.cancelled = true
			s.mu.Unlock()
		default:
		}

		s.mu.Lock()
		if s.cancelled {
			s.mu.Unlock()
			s.finishCancelled(batchID, span)
			return
		}
		s.index++
		if s.index >= len(s.files) {
			s.running = false
			results := append([]models.JobResult(nil), s.results...)
			s.mu.Unlock()

			summary := models.Summarize(results)
			s.log.Info().
				Str("batch_id", batchID).
				Int("succeeded", summary.Succeeded).
				Int("total", summary.Total).
				Float64("reduction_pct", summary.ReductionPct).
				Msg("batch finished")
			s.emit(batchID, Event{Type: EventBatchFinished, Results: results, Summary: &summary})
			return
		}
		index := s.index
		input := s.files[index]
		s.lastProgress = 0
		s.mu.Unlock()

		name := filepath.Base(input)
		output := OutputPath(input, outputDir, suffix)

		s.emit(batchID, Event{Type: EventFileStarted, Index: index, File: name})

		result := s.runJob(ctx, batchID, index, name, input, output, settings)

		s.mu.Lock()
		s.results = append(s.results, result)
		s.mu.Unlock()
		s.emit(batchID, Event{Type: EventFileFinished, Index: index, File: name, Result: &result})

		s.mu.Lock()
		cancelled := s.cancelled
		s.mu.Unlock()
		if cancelled {
			s.finishCancelled(batchID, span)
			return
		}
	}
}

// runJob drives a single EncodeJob to its terminal result, forwarding its
// callbacks into the event stream.
func (s *Sequencer) runJob(ctx context.Context, batchID string, index int, name, input, output string, settings models.CompressionSettings) models.JobResult {
	span, ctx := tracing.StartSpan(ctx, "batch.encode_file")
	span.SetTag("input", input)
	defer span.Finish()

	done := make(chan models.JobResult, 1)
	hooks := JobHooks{
		OnProgress: func(percent float64) {
			s.mu.Lock()
			s.lastProgress = percent
			s.mu.Unlock()
			s.emit(batchID, Event{Type: EventFileProgress, Index: index, File: name, Progress: percent})
		},
		OnStatus: func(status string) {
			s.emit(batchID, Event{Type: EventFileStatus, Index: index, File: name, Status: status})
		},
		OnError: func(kind FailureKind, msg string) {
			s.emit(batchID, Event{Type: EventFileError, Index: index, File: name, Error: msg, ErrorKind: string(kind)})
		},
		OnResult: func(result models.JobResult) {
			done <- result
		},
	}

	job := NewJob(s.ffmpegPath, s.prober, input, output, settings, hooks, s.log)

	s.mu.Lock()
	if s.cancelled {
		// Cancel landed after the loop check; never start the next job.
		s.mu.Unlock()
		return models.JobResult{Success: false, InputPath: input, OutputPath: output, Error: cancelledMessage}
	}
	s.active = job
	s.mu.Unlock()

	job.Start(ctx)
	result := <-done

	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()

	span.SetTag("success", result.Success)
	return result
}

func (s *Sequencer) finishCancelled(batchID string, span tracing.Span) {
	s.mu.Lock()
	s.running = false
	results := append([]models.JobResult(nil), s.results...)
	s.mu.Unlock()

	span.SetTag("cancelled", true)
	s.log.Info().Str("batch_id", batchID).Int("completed", len(results)).Msg("batch cancelled")
	s.emit(batchID, Event{Type: EventBatchCancelled, Results: results})
}

// emit stamps and delivers an event. Lifecycle events block until the
// consumer takes them; progress and status updates are lossy.
func (s *Sequencer) emit(batchID string, ev Event) {
	ev.BatchID = batchID
	ev.At = time.Now()

	switch ev.Type {
	case EventFileProgress, EventFileStatus:
		select {
		case s.events <- ev:
		default:
		}
	default:
		s.events <- ev
	}
}
