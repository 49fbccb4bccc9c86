package engine

import (
	"github.com/cockroachdb/errors"
)

// Status classifies the outcome of one file task.
type Status string

// Per-file outcomes. Every planned task ends in exactly one of these.
const (
	// StatusCopiedVerified indicates the file was copied and the
	// destination digest matches the source digest.
	StatusCopiedVerified Status = "copied-verified"

	// StatusCopiedMismatch indicates the file was copied but the digests
	// differ. The destination file is kept on disk for inspection.
	StatusCopiedMismatch Status = "copied-mismatch"

	// StatusCopyFailed indicates an I/O error interrupted the copy or the
	// verification read.
	StatusCopyFailed Status = "copy-failed"

	// StatusSkippedUnsafePath indicates the relative path failed
	// sanitization and the file was never opened.
	StatusSkippedUnsafePath Status = "skipped-unsafe-path"

	// StatusAborted indicates the task never ran because the run was
	// cancelled or the device disappeared.
	StatusAborted Status = "aborted"
)

// ErrDeviceUnavailable indicates the source root vanished mid-run,
// typically because the device was unplugged.
var ErrDeviceUnavailable = errors.New("device unavailable")

// FileTask is one unit of copy work produced by [Engine.Plan].
type FileTask struct {
	// RelPath is the file's path relative to the source root.
	RelPath string `json:"rel_path"`

	// Size is the file's size in bytes at plan time.
	Size int64 `json:"size"`
}

// FileResult records the outcome of one FileTask. Results are immutable
// once emitted and arrive in the same order as the tasks that produced
// them.
type FileResult struct {
	// RelPath identifies the task this result belongs to.
	RelPath string `json:"rel_path"`

	// Status is the task's final classification.
	Status Status `json:"status"`

	// Bytes is the number of bytes written to the destination, including
	// partial writes from failed copies.
	Bytes int64 `json:"bytes"`

	// SourceDigest is the hex SHA-256 of the bytes read from the source
	// during the copy. Empty when the copy never started.
	SourceDigest string `json:"source_digest,omitempty"`

	// DestDigest is the hex SHA-256 of the destination file re-read
	// after the copy. Empty when verification never ran.
	DestDigest string `json:"dest_digest,omitempty"`

	// Detail carries the error text for copy-failed and
	// skipped-unsafe-path results.
	Detail string `json:"detail,omitempty"`
}

// Copied reports whether the result left a file in the destination tree.
func (r FileResult) Copied() bool {
	return r.Status == StatusCopiedVerified || r.Status == StatusCopiedMismatch
}

// Problem reports whether the result should be surfaced in a report's
// problem list. Aborted tasks are an expected consequence of
// cancellation, not problems in themselves.
func (r FileResult) Problem() bool {
	switch r.Status {
	case StatusCopiedMismatch, StatusCopyFailed, StatusSkippedUnsafePath:
		return true
	default:
		return false
	}
}
