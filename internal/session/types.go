package session

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/cardkeep/internal/engine"
)

// State identifies where a session is in its lifecycle.
type State string

// Session lifecycle. A session moves from NotStarted through Running to
// exactly one terminal state.
const (
	StateNotStarted State = "not-started"
	StateRunning    State = "running"

	// StateCompleted is the terminal state for a run that processed its
	// whole plan, even when individual files failed or were skipped.
	StateCompleted State = "completed"

	// StateCancelled is the terminal state after a cooperative cancel.
	// It is a normal outcome, not a failure.
	StateCancelled State = "cancelled"

	// StateFailed is reserved for session-level faults: the plan could
	// not be built, or the device vanished mid-run.
	StateFailed State = "failed"
)

// Sentinel errors for session setup and lifecycle.
var (
	// ErrDestinationConflict indicates the backup folder already exists.
	ErrDestinationConflict = errors.New("destination already exists")

	// ErrDestinationUnwritable indicates the backup folder could not be
	// created under the destination parent.
	ErrDestinationUnwritable = errors.New("destination not writable")

	// ErrSessionAlreadyRun indicates Run was called on a session that
	// has already left the NotStarted state.
	ErrSessionAlreadyRun = errors.New("session already run")
)

// Progress is the running-totals snapshot delivered alongside each
// FileResult. BytesDone tracks plan consumption (task sizes), not bytes
// written, so it always converges on BytesTotal.
type Progress struct {
	FilesDone   int
	FilesTotal  int
	BytesDone   int64
	BytesTotal  int64
	CurrentPath string
}

// Observer receives every FileResult as it is produced, in traversal
// order, together with the progress snapshot after that result.
type Observer func(engine.FileResult, Progress)

// Summary aggregates one backup run. It is computed once when the run
// reaches a terminal state and never mutated afterward.
type Summary struct {
	DeviceLabel     string    `json:"device_label"`
	SourcePath      string    `json:"source_path"`
	DestinationDir  string    `json:"destination_dir"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationSeconds float64   `json:"duration_seconds"`

	// FilesPlanned is the number of tasks discovered before the run,
	// and always equals the sum of the five per-status counts.
	FilesPlanned int `json:"files_planned"`

	FilesVerified   int `json:"files_verified"`
	FilesMismatched int `json:"files_mismatched"`
	FilesFailed     int `json:"files_failed"`
	FilesSkipped    int `json:"files_skipped"`
	FilesAborted    int `json:"files_aborted"`

	// BytesCopied counts bytes actually written to the destination,
	// including partial writes from failed copies.
	BytesCopied int64 `json:"bytes_copied"`

	State State `json:"state"`

	// Problems lists every result that needs attention: mismatches,
	// failures and skipped paths, in traversal order.
	Problems []engine.FileResult `json:"problems,omitempty"`
}
