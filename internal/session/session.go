package session

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/cardkeep/internal/device"
	"github.com/thoreinstein/cardkeep/internal/engine"
	"github.com/thoreinstein/cardkeep/internal/logging"
	"github.com/thoreinstein/cardkeep/internal/paths"
	"github.com/thoreinstein/cardkeep/internal/pathsafe"
)

// Session drives one backup run from a device into a freshly created
// destination folder. Sessions are single-use: Begin creates the
// folder, Run copies, and the session then stays in its terminal state.
type Session struct {
	dev    device.Device
	dir    string
	eng    *engine.Engine
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	state   State
	results []engine.FileResult
	summary *Summary
	cancel  context.CancelFunc
}

// Option configures a Session at Begin time.
type Option func(*Session)

// WithEngine sets the copy engine. The default engine preserves
// timestamps and logs through the session's logger.
func WithEngine(e *engine.Engine) Option {
	return func(s *Session) {
		if e != nil {
			s.eng = e
		}
	}
}

// WithLogger sets the logger for session lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow sets the clock used for the folder timestamp and the summary
// times. Tests use it to pin folder names.
func WithNow(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Begin creates the timestamped backup folder for dev under destParent
// and returns a session ready to run. The folder is named
// <label>_backup_<timestamp> with the device label sanitized for use as
// a directory name. An existing folder of the same name is a
// [ErrDestinationConflict]; any other creation failure is a
// [ErrDestinationUnwritable]. No files are touched on either error.
func Begin(dev device.Device, destParent string, opts ...Option) (*Session, error) {
	s := &Session{
		dev:    dev,
		logger: logging.NewDiscard(),
		now:    time.Now,
		state:  StateNotStarted,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.eng == nil {
		s.eng = engine.New(engine.WithLogger(s.logger))
	}

	folder := pathsafe.CleanLabel(dev.Label) + "_backup_" + s.now().Format("20060102_150405")
	dir := filepath.Join(destParent, folder)

	if _, err := os.Stat(dir); err == nil {
		return nil, errors.Wrapf(ErrDestinationConflict, "%s", dir)
	}
	if err := os.Mkdir(dir, paths.BackupDirPerm); err != nil {
		if os.IsExist(err) {
			return nil, errors.Wrapf(ErrDestinationConflict, "%s", dir)
		}
		return nil, errors.Wrapf(ErrDestinationUnwritable, "%s: %v", dir, err)
	}

	s.dir = dir
	s.logger.Debug("created backup folder", "path", dir)
	return s, nil
}

// Run executes the backup: plan the source tree, then copy and verify
// every planned file, forwarding each result to obs as it lands. obs
// may be nil.
//
// Run returns the summary for Completed and Cancelled outcomes;
// cancellation is a normal shutdown, not an error. Session-level
// faults (plan failure, device unplugged mid-run) return an error and
// leave the session Failed; the partial summary stays available via
// [Session.Summary]. Calling Run more than once returns
// [ErrSessionAlreadyRun].
func (s *Session) Run(ctx context.Context, obs Observer) (*Summary, error) {
	s.mu.Lock()
	if s.state != StateNotStarted {
		state := s.state
		s.mu.Unlock()
		return nil, errors.Wrapf(ErrSessionAlreadyRun, "state %s", state)
	}
	s.state = StateRunning
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	started := s.now()
	s.logger.Info("backup started",
		"device", s.dev.Label,
		"source", s.dev.MountPath,
		"destination", s.dir,
	)

	tasks, err := s.eng.Plan(runCtx, s.dev.MountPath)
	if err != nil {
		if isCancellation(err) {
			return s.finish(started, nil, StateCancelled), nil
		}
		s.finish(started, nil, StateFailed)
		return nil, errors.Wrap(err, "planning backup")
	}

	var bytesTotal int64
	for _, task := range tasks {
		bytesTotal += task.Size
	}
	s.logger.Info("plan ready", "files", len(tasks), "bytes", bytesTotal)

	prog := Progress{FilesTotal: len(tasks), BytesTotal: bytesTotal}
	emit := func(r engine.FileResult) {
		s.mu.Lock()
		s.results = append(s.results, r)
		idx := len(s.results) - 1
		s.mu.Unlock()

		// One result per task, in task order, so the index maps the
		// result back to its planned size.
		prog.FilesDone++
		prog.BytesDone += tasks[idx].Size
		prog.CurrentPath = r.RelPath
		if obs != nil {
			obs(r, prog)
		}
	}

	execErr := s.eng.Execute(runCtx, s.dev.MountPath, s.dir, tasks, emit)
	switch {
	case execErr == nil:
		sum := s.finish(started, tasks, StateCompleted)
		s.logger.Info("backup completed",
			"verified", sum.FilesVerified,
			"problems", len(sum.Problems),
			"bytes", sum.BytesCopied,
		)
		return sum, nil
	case isCancellation(execErr):
		sum := s.finish(started, tasks, StateCancelled)
		s.logger.Info("backup cancelled", "done", sum.FilesVerified, "aborted", sum.FilesAborted)
		return sum, nil
	default:
		s.finish(started, tasks, StateFailed)
		s.logger.Error("backup failed", "error", execErr)
		return nil, execErr
	}
}

// Cancel requests cooperative cancellation. At most one in-flight file
// copy completes after Cancel returns; remaining tasks are recorded as
// aborted. Safe to call from any goroutine, at any time, more than
// once.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dir returns the backup folder created by Begin.
func (s *Session) Dir() string {
	return s.dir
}

// Device returns the device this session backs up.
func (s *Session) Device() device.Device {
	return s.dev
}

// Results returns a copy of the per-file results recorded so far.
func (s *Session) Results() []engine.FileResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]engine.FileResult, len(s.results))
	copy(out, s.results)
	return out
}

// Summary returns the run summary, or nil while the session has not
// reached a terminal state. Available for all terminal states,
// including Failed.
func (s *Session) Summary() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// finish computes the summary, stores it and moves the session to its
// terminal state.
func (s *Session) finish(started time.Time, tasks []engine.FileTask, state State) *Summary {
	finished := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state

	sum := &Summary{
		DeviceLabel:     s.dev.Label,
		SourcePath:      s.dev.MountPath,
		DestinationDir:  s.dir,
		StartedAt:       started,
		FinishedAt:      finished,
		DurationSeconds: finished.Sub(started).Seconds(),
		FilesPlanned:    len(tasks),
		State:           state,
	}
	for _, r := range s.results {
		sum.BytesCopied += r.Bytes
		switch r.Status {
		case engine.StatusCopiedVerified:
			sum.FilesVerified++
		case engine.StatusCopiedMismatch:
			sum.FilesMismatched++
		case engine.StatusCopyFailed:
			sum.FilesFailed++
		case engine.StatusSkippedUnsafePath:
			sum.FilesSkipped++
		case engine.StatusAborted:
			sum.FilesAborted++
		}
		if r.Problem() {
			sum.Problems = append(sum.Problems, r)
		}
	}

	s.summary = sum
	return sum
}

// isCancellation reports whether err came from context cancellation
// rather than a fault.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
