package transcoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

// stubProber serves fixed metadata without running ffprobe.
type stubProber struct {
	info models.MediaInfo
	err  error
}

func (p *stubProber) Probe(ctx context.Context, path string) (*models.MediaInfo, error) {
	if p.err != nil {
		return nil, p.err
	}
	info := p.info
	return &info, nil
}

// writeScript drops an executable shell stand-in for ffmpeg. Scripts receive
// the real argument vector, so $3 is the input path and the last argument is
// the output path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// quickEncodeScript emits a short progress ramp and writes the output file.
const quickEncodeScript = `for last; do :; done
printf 'frame= 10 time=00:00:02.00 bitrate=1k\n'
printf 'frame= 20 time=00:00:05.00 bitrate=1k\n'
printf 'frame= 30 time=00:00:10.00 bitrate=1k\n'
printf 'compressed' > "$last"`

// slowEncodeScript writes the output up front, then trickles progress lines
// until killed. Uses bare-seconds time tokens.
const slowEncodeScript = `for last; do :; done
printf 'compressed' > "$last"
i=1
while [ $i -le 200 ]; do
  printf 'time=%d.0 speed=1x\n' $i
  sleep 0.1
  i=$((i+1))
done`

type jobRecorder struct {
	mu       sync.Mutex
	progress []float64
	statuses []string
	errors   []string
	kinds    []FailureKind
	results  chan models.JobResult

	firstProgress chan struct{}
	once          sync.Once
}

func newJobRecorder() *jobRecorder {
	return &jobRecorder{
		results:       make(chan models.JobResult, 1),
		firstProgress: make(chan struct{}),
	}
}

func (r *jobRecorder) hooks() JobHooks {
	return JobHooks{
		OnProgress: func(p float64) {
			r.mu.Lock()
			r.progress = append(r.progress, p)
			r.mu.Unlock()
			r.once.Do(func() { close(r.firstProgress) })
		},
		OnStatus: func(s string) {
			r.mu.Lock()
			r.statuses = append(r.statuses, s)
			r.mu.Unlock()
		},
		OnError: func(kind FailureKind, msg string) {
			r.mu.Lock()
			r.kinds = append(r.kinds, kind)
			r.errors = append(r.errors, msg)
			r.mu.Unlock()
		},
		OnResult: func(res models.JobResult) { r.results <- res },
	}
}

func (r *jobRecorder) waitResult(t *testing.T) models.JobResult {
	t.Helper()
	select {
	case res := <-r.results:
		return res
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for job result")
		return models.JobResult{}
	}
}

func (r *jobRecorder) waitFirstProgress(t *testing.T) {
	t.Helper()
	select {
	case <-r.firstProgress:
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for first progress event")
	}
}

func (r *jobRecorder) progressValues() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.progress...)
}

func (r *jobRecorder) progressCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.progress)
}

func writeInput(t *testing.T, dir string, size int) string {
	t.Helper()
	path := filepath.Join(dir, "in.mp4")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestJobCompletes(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	input := writeInput(t, dir, 1000)
	output := filepath.Join(dir, "out.mp4")
	rec := newJobRecorder()

	prober := &stubProber{info: models.MediaInfo{DurationSec: 10, SizeBytes: 1000, Width: 640, Height: 360}}
	job := NewJob(writeScript(t, quickEncodeScript), prober, input, output, models.DefaultSettings(), rec.hooks(), zerolog.Nop())
	job.Start(context.Background())

	res := rec.waitResult(t)
	assert.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, input, res.InputPath)
	assert.Equal(t, output, res.OutputPath)
	assert.Equal(t, int64(1000), res.OriginalBytes)
	assert.Equal(t, int64(len("compressed")), res.CompressedBytes)
	assert.Equal(t, StateCompleted, job.State())

	values := rec.progressValues()
	require.NotEmpty(t, values)
	assert.InDelta(t, 100, values[len(values)-1], 0.001, "time 10s of 10s is 100%%")
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "progress must not decrease")
	}
}

func TestJobProgressClampedTo100(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, 100)
	output := filepath.Join(dir, "out.mp4")
	rec := newJobRecorder()

	// Reported elapsed time overshoots the probed duration.
	prober := &stubProber{info: models.MediaInfo{DurationSec: 4, SizeBytes: 100}}
	job := NewJob(writeScript(t, quickEncodeScript), prober, input, output, models.DefaultSettings(), rec.hooks(), zerolog.Nop())
	job.Start(context.Background())

	rec.waitResult(t)
	for _, v := range rec.progressValues() {
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestJobNoProgressWithoutDuration(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, 100)
	output := filepath.Join(dir, "out.mp4")
	rec := newJobRecorder()

	prober := &stubProber{info: models.MediaInfo{DurationSec: 0, SizeBytes: 100}}
	job := NewJob(writeScript(t, quickEncodeScript), prober, input, output, models.DefaultSettings(), rec.hooks(), zerolog.Nop())
	job.Start(context.Background())

	res := rec.waitResult(t)
	assert.True(t, res.Success)
	assert.Zero(t, rec.progressCount(), "unknown duration must suppress progress events")
}

func TestJobProbeFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	input := writeInput(t, dir, 100)
	output := filepath.Join(dir, "out.mp4")
	rec := newJobRecorder()

	prober := &stubProber{err: errors.New("moov atom not found")}
	job := NewJob(writeScript(t, quickEncodeScript), prober, input, output, models.DefaultSettings(), rec.hooks(), zerolog.Nop())
	job.Start(context.Background())

	res := rec.waitResult(t)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "probe failed")
	assert.Equal(t, StateFailed, job.State())
	assert.Equal(t, []FailureKind{FailureProbe}, rec.kinds)

	_, err := os.Stat(output)
	assert.True(t, os.IsNotExist(err), "no encoder must run after a probe failure")
}

func TestJobSpawnFailure(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, 100)
	rec := newJobRecorder()

	prober := &stubProber{info: models.MediaInfo{DurationSec: 10, SizeBytes: 100}}
	job := NewJob(filepath.Join(dir, "missing-encoder"), prober, input, filepath.Join(dir, "out.mp4"), models.DefaultSettings(), rec.hooks(), zerolog.Nop())
	job.Start(context.Background())

	res := rec.waitResult(t)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "start encoder")
	assert.Equal(t, StateFailed, job.State())
	assert.Equal(t, []FailureKind{FailureSpawn}, rec.kinds)
}

func TestJobNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, 100)
	rec := newJobRecorder()

	prober := &stubProber{info: models.MediaInfo{DurationSec: 10, SizeBytes: 100}}
	job := NewJob(writeScript(t, "exit 3"), prober, input, filepath.Join(dir, "out.mp4"), models.DefaultSettings(), rec.hooks(), zerolog.Nop())
	job.Start(context.Background())

	res := rec.waitResult(t)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "code 3")
	assert.Equal(t, StateFailed, job.State())
	assert.Equal(t, []FailureKind{FailureRuntime}, rec.kinds)
}

func TestJobCancelRemovesPartialOutput(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	input := writeInput(t, dir, 100)
	output := filepath.Join(dir, "out.mp4")
	rec := newJobRecorder()

	prober := &stubProber{info: models.MediaInfo{DurationSec: 200, SizeBytes: 100}}
	job := NewJob(writeScript(t, slowEncodeScript), prober, input, output, models.DefaultSettings(), rec.hooks(), zerolog.Nop())
	job.Start(context.Background())

	rec.waitFirstProgress(t)
	job.Cancel()

	res := rec.waitResult(t)
	assert.False(t, res.Success)
	assert.Equal(t, "cancelled", res.Error)
	assert.Zero(t, res.OriginalBytes)
	assert.Zero(t, res.CompressedBytes)
	assert.Equal(t, StateCancelled, job.State())

	_, err := os.Stat(output)
	assert.True(t, os.IsNotExist(err), "partial output must be deleted on cancel")
}

func TestJobCancelIdempotent(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, 100)
	rec := newJobRecorder()

	prober := &stubProber{info: models.MediaInfo{DurationSec: 200, SizeBytes: 100}}
	job := NewJob(writeScript(t, slowEncodeScript), prober, input, filepath.Join(dir, "out.mp4"), models.DefaultSettings(), rec.hooks(), zerolog.Nop())
	job.Start(context.Background())

	rec.waitFirstProgress(t)
	job.Cancel()
	job.Cancel()

	res := rec.waitResult(t)
	assert.Equal(t, "cancelled", res.Error)

	// A cancel after the terminal state must not disturb anything.
	job.Cancel()
	assert.Equal(t, StateCancelled, job.State())
	select {
	case extra := <-rec.results:
		t.Fatalf("unexpected second result: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJobPauseAndResume(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	input := writeInput(t, dir, 100)
	rec := newJobRecorder()

	prober := &stubProber{info: models.MediaInfo{DurationSec: 200, SizeBytes: 100}}
	job := NewJob(writeScript(t, slowEncodeScript), prober, input, filepath.Join(dir, "out.mp4"), models.DefaultSettings(), rec.hooks(), zerolog.Nop())
	job.Start(context.Background())

	rec.waitFirstProgress(t)
	job.Pause()
	assert.Equal(t, StatePaused, job.State())

	// One line may already be past the gate; after that the stream freezes.
	time.Sleep(300 * time.Millisecond)
	frozen := rec.progressCount()
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, frozen, rec.progressCount(), "no progress while paused")

	job.Resume()
	assert.Equal(t, StateRunning, job.State())
	require.Eventually(t, func() bool { return rec.progressCount() > frozen }, 10*time.Second, 50*time.Millisecond,
		"progress must continue after resume")

	values := rec.progressValues()
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "progress must never reset")
	}

	job.Cancel()
	rec.waitResult(t)
}

func TestJobPauseOnlyWhenRunning(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, 100)
	rec := newJobRecorder()

	prober := &stubProber{info: models.MediaInfo{DurationSec: 10, SizeBytes: 100}}
	job := NewJob(writeScript(t, quickEncodeScript), prober, input, filepath.Join(dir, "out.mp4"), models.DefaultSettings(), rec.hooks(), zerolog.Nop())

	job.Pause()
	assert.Equal(t, StateIdle, job.State(), "pause before start is a no-op")

	job.Start(context.Background())
	rec.waitResult(t)
	job.Pause()
	assert.Equal(t, StateCompleted, job.State(), "pause after completion is a no-op")
}

func TestJobStatusEvents(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, 100)
	rec := newJobRecorder()

	prober := &stubProber{info: models.MediaInfo{DurationSec: 10, SizeBytes: 100}}
	job := NewJob(writeScript(t, quickEncodeScript), prober, input, filepath.Join(dir, "out.mp4"), models.DefaultSettings(), rec.hooks(), zerolog.Nop())
	job.Start(context.Background())
	rec.waitResult(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.GreaterOrEqual(t, len(rec.statuses), 2)
	assert.Equal(t, "probing input", rec.statuses[0])
	assert.Contains(t, rec.statuses, "encoding")
}
