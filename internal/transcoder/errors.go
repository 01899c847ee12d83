package transcoder

import "errors"

// FailureKind classifies why an encode failed, for logs, events, and metrics.
type FailureKind string

const (
	// FailureProbe means the input could not be probed.
	FailureProbe FailureKind = "probe"
	// FailureSpawn means the encoder process could not be started.
	FailureSpawn FailureKind = "spawn"
	// FailureRuntime means the encoder exited with a non-zero code.
	FailureRuntime FailureKind = "runtime"
	// FailureUnexpected covers any other orchestration error.
	FailureUnexpected FailureKind = "unexpected"
)

var (
	// ErrBatchRunning rejects a start while another batch is active.
	ErrBatchRunning = errors.New("a batch is already running")
	// ErrNoBatch rejects controls when nothing is running.
	ErrNoBatch = errors.New("no batch is running")
	// ErrNoFiles rejects an empty input list.
	ErrNoFiles = errors.New("no input files")
)

// cancelledMessage is the terminal error message of a cancelled job.
const cancelledMessage = "cancelled"
