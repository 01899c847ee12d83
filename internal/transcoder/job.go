package transcoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vidsqueeze/vidsqueeze/internal/params"
	"github.com/vidsqueeze/vidsqueeze/internal/probe"
	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

// State is a job's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateProbing
	StateRunning
	StatePaused
	StateCancelling
	StateCompleted
	StateFailed
	StateCancelled
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProbing:
		return "probing"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCancelling:
		return "cancelling"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// Job encodes one file: probe the input, derive parameters, spawn ffmpeg,
// scrape progress from its combined output, and classify the exit. A Job
// runs exactly once; every outcome, including cancellation, is delivered as
// a single terminal JobResult through the hooks.
//
// The state machine is guarded by one mutex. Pausing parks the read loop on
// a condition variable between output lines; the ffmpeg process itself keeps
// running (it stalls on its own once the output pipe backs up, but no
// OS-level suspension is attempted). Cancel marks the machine, wakes a
// paused reader, and kills the process.
type Job struct {
	ffmpegPath string
	prober     probe.Prober
	hooks      JobHooks
	log        zerolog.Logger

	inputPath  string
	outputPath string
	settings   models.CompressionSettings

	mu        sync.Mutex
	pauseCond *sync.Cond
	state     State
	cancelled bool
	proc      *os.Process

	emitMu   sync.Mutex
	finished bool
}

// NewJob prepares a job; Start launches it.
func NewJob(ffmpegPath string, prober probe.Prober, inputPath, outputPath string, settings models.CompressionSettings, hooks JobHooks, log zerolog.Logger) *Job {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	j := &Job{
		ffmpegPath: ffmpegPath,
		prober:     prober,
		hooks:      hooks,
		log:        log.With().Str("input", inputPath).Logger(),
		inputPath:  inputPath,
		outputPath: outputPath,
		settings:   settings,
		state:      StateIdle,
	}
	j.pauseCond = sync.NewCond(&j.mu)
	return j
}

// Start runs the job on its own goroutine. The context bounds the probe and
// the encoder process; cancelling it kills a running encode.
func (j *Job) Start(ctx context.Context) {
	go j.run(ctx)
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Pause parks the progress loop after the line it is currently handling.
// Only a Running job can pause.
func (j *Job) Pause() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == StateRunning {
		j.state = StatePaused
	}
}

// Resume releases a paused progress loop.
func (j *Job) Resume() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == StatePaused {
		j.state = StateRunning
		j.pauseCond.Broadcast()
	}
}

// Cancel marks the job cancelled, wakes a paused reader, and kills the
// encoder process. Safe to call in any state; a process that already exited
// is tolerated.
func (j *Job) Cancel() {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return
	}
	j.cancelled = true
	j.state = StateCancelling
	proc := j.proc
	j.pauseCond.Broadcast()
	j.mu.Unlock()

	if proc != nil {
		_ = proc.Kill()
	}
}

func (j *Job) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			j.fail(FailureUnexpected, fmt.Sprintf("encode panicked: %v", r))
		}
	}()

	j.setState(StateProbing)
	j.emitStatus("probing input")

	info, err := j.prober.Probe(ctx, j.inputPath)
	if err != nil {
		j.fail(FailureProbe, fmt.Sprintf("probe failed: %v", err))
		return
	}

	p := params.Derive(j.settings, *info)
	if p.QualityFallback {
		j.log.Warn().
			Str("mode", string(j.settings.Mode)).
			Msg("input metadata insufficient for size targeting, using quality mode")
		j.emitStatus("size targeting unavailable, falling back to quality mode")
	}

	args := BuildArgs(p, j.inputPath, j.outputPath)
	j.log.Debug().Strs("args", args).Msg("encoder command built")

	cmd := exec.CommandContext(ctx, j.ffmpegPath, args...)
	pr, pw, err := os.Pipe()
	if err != nil {
		j.fail(FailureSpawn, fmt.Sprintf("open output pipe: %v", err))
		return
	}
	// ffmpeg writes stats to stderr; fold both streams into one pipe so the
	// read loop sees everything the encoder says.
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		j.fail(FailureSpawn, fmt.Sprintf("start encoder: %v", err))
		return
	}
	pw.Close()

	j.mu.Lock()
	j.proc = cmd.Process
	cancelledEarly := j.cancelled
	if !cancelledEarly {
		j.state = StateRunning
	}
	j.mu.Unlock()

	if cancelledEarly {
		_ = cmd.Process.Kill()
	} else {
		j.emitStatus("encoding")
	}

	j.scanProgress(pr, info.DurationSec)
	pr.Close()

	waitErr := cmd.Wait()

	j.mu.Lock()
	cancelled := j.cancelled
	j.proc = nil
	j.mu.Unlock()

	if cancelled {
		j.removeOutput()
		j.setState(StateCancelled)
		j.log.Info().Msg("encode cancelled")
		j.emitResult(models.JobResult{
			Success:    false,
			InputPath:  j.inputPath,
			OutputPath: j.outputPath,
			Error:      cancelledMessage,
		})
		return
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			j.fail(FailureRuntime, fmt.Sprintf("encoder exited with code %d", exitErr.ExitCode()))
		} else {
			j.fail(FailureUnexpected, fmt.Sprintf("wait for encoder: %v", waitErr))
		}
		return
	}

	j.setState(StateCompleted)
	result := models.JobResult{
		Success:         true,
		InputPath:       j.inputPath,
		OutputPath:      j.outputPath,
		OriginalBytes:   fileSize(j.inputPath),
		CompressedBytes: fileSize(j.outputPath),
	}
	j.log.Info().
		Int64("original_bytes", result.OriginalBytes).
		Int64("compressed_bytes", result.CompressedBytes).
		Msg("encode completed")
	j.emitResult(result)
}

// scanProgress consumes the encoder's combined output line by line until EOF
// or cancellation. The pause gate is checked between lines.
func (j *Job) scanProgress(r io.Reader, totalDuration float64) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if j.waitWhilePaused() {
			return
		}

		elapsed, ok := ExtractElapsed(scanner.Text())
		if !ok || totalDuration <= 0 {
			continue
		}
		percent := elapsed / totalDuration * 100
		if percent > 100 {
			percent = 100
		}
		j.emitProgress(percent)
	}
}

// waitWhilePaused blocks while the job is paused and reports whether the job
// has been cancelled.
func (j *Job) waitWhilePaused() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for j.state == StatePaused && !j.cancelled {
		j.pauseCond.Wait()
	}
	return j.cancelled
}

// fail converts any per-job error into a terminal Failed result. Failures
// never propagate as errors so the batch can continue with the next file.
func (j *Job) fail(kind FailureKind, msg string) {
	j.log.Error().Str("kind", string(kind)).Msg(msg)
	j.setState(StateFailed)
	j.emitError(kind, msg)
	j.emitResult(models.JobResult{
		Success:    false,
		InputPath:  j.inputPath,
		OutputPath: j.outputPath,
		Error:      msg,
	})
}

// removeOutput deletes a partial output file, best effort.
func (j *Job) removeOutput() {
	if _, err := os.Stat(j.outputPath); err != nil {
		return
	}
	if err := os.Remove(j.outputPath); err != nil {
		j.log.Debug().Err(err).Str("output", j.outputPath).Msg("could not remove partial output")
	}
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	j.state = s
	j.mu.Unlock()
}

func (j *Job) emitProgress(percent float64) {
	j.emitMu.Lock()
	defer j.emitMu.Unlock()
	if j.finished {
		return
	}
	if j.hooks.OnProgress != nil {
		j.hooks.OnProgress(percent)
	}
}

func (j *Job) emitStatus(status string) {
	j.emitMu.Lock()
	defer j.emitMu.Unlock()
	if j.finished {
		return
	}
	if j.hooks.OnStatus != nil {
		j.hooks.OnStatus(status)
	}
}

func (j *Job) emitError(kind FailureKind, msg string) {
	j.emitMu.Lock()
	defer j.emitMu.Unlock()
	if j.finished {
		return
	}
	if j.hooks.OnError != nil {
		j.hooks.OnError(kind, msg)
	}
}

// emitResult delivers the terminal result exactly once and latches the job
// so no later event can follow it.
func (j *Job) emitResult(result models.JobResult) {
	j.emitMu.Lock()
	defer j.emitMu.Unlock()
	if j.finished {
		return
	}
	j.finished = true
	if j.hooks.OnResult != nil {
		j.hooks.OnResult(result)
	}
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
