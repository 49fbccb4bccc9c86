// Package session orchestrates one backup run end to end.
//
// A [Session] binds a discovered device to a timestamped destination
// folder and drives the copy engine over it:
//
//	sess, err := session.Begin(dev, "/home/user/Backups")
//	if err != nil {
//	    // ErrDestinationConflict, ErrDestinationUnwritable
//	}
//	summary, err := sess.Run(ctx, func(r engine.FileResult, p session.Progress) {
//	    // live progress
//	})
//
// The session owns the result list and the aggregate counters; callers
// read them through [Session.Results] and [Session.Summary]. A single
// worker processes files sequentially, so observers are invoked from
// one goroutine in traversal order.
//
// # Lifecycle
//
// NotStarted → Running → Completed | Cancelled | Failed.
//
// Per-file problems (unsafe paths, I/O errors, digest mismatches) never
// fail a session; they are recorded and the run reaches Completed.
// Failed is reserved for faults that stop the run itself. Cancellation
// via [Session.Cancel] is cooperative, takes effect at file boundaries,
// and produces a Cancelled session with a partial summary; a partial
// backup is safe to delete and retry from scratch.
package session
