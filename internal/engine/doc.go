// Package engine implements the copy-and-verify pipeline at the heart
// of cardkeep.
//
// An [Engine] turns a source directory into a plan of [FileTask] values
// (one per regular file, in lexical depth-first order) and then executes
// the plan against a destination root, emitting one [FileResult] per
// task in the same order.
//
// # Per-file pipeline
//
// Each task passes through the same stages:
//
//  1. The relative path is sanitized (pathsafe). Rejected paths yield
//     [StatusSkippedUnsafePath] without touching the source file.
//  2. Destination parent directories are created as needed.
//  3. Bytes are streamed from source to destination while a SHA-256
//     digest of the stream is computed.
//  4. The destination file is re-read and hashed. Matching digests yield
//     [StatusCopiedVerified]; differing digests yield
//     [StatusCopiedMismatch] with the destination kept on disk.
//
// Any I/O fault along the way yields [StatusCopyFailed] with the error
// recorded in the result. Per-file faults never stop the run.
//
// # Stopping early
//
// Two conditions end a run before the plan is exhausted: context
// cancellation, and the source root becoming unreachable (the device
// was unplugged). Both are detected at task boundaries, both emit
// [StatusAborted] results for every remaining task so that accounting
// stays complete, and only the latter is reported via
// [ErrDeviceUnavailable].
//
// The engine never writes under the source root.
package engine
