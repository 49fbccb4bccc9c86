package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/cardkeep/internal/digest"
	"github.com/thoreinstein/cardkeep/internal/logging"
	"github.com/thoreinstein/cardkeep/internal/pathsafe"
)

// Engine copies a source tree into a destination root, verifying every
// copied file by digest. An Engine holds no per-run state and is safe
// to reuse across runs.
type Engine struct {
	preserveTimes bool
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPreserveTimes controls whether source modification times are
// applied to copied files. Enabled by default. Timestamp preservation
// is best effort on any setting; failures are logged, never fatal.
func WithPreserveTimes(preserve bool) Option {
	return func(e *Engine) {
		e.preserveTimes = preserve
	}
}

// WithLogger sets the logger for per-file diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine with the given options.
func New(opts ...Option) *Engine {
	e := &Engine{
		preserveTimes: true,
		logger:        logging.NewDiscard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan walks the source root and returns one FileTask per regular file,
// in lexical depth-first order so repeated runs over unchanged input
// produce identical plans. Entries that cannot be read are logged and
// left out of the plan; an unreadable root is an error.
func (e *Engine) Plan(ctx context.Context, srcRoot string) ([]FileTask, error) {
	info, err := os.Stat(srcRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "reading source root %s", srcRoot)
	}
	if !info.IsDir() {
		return nil, errors.Newf("source root %s is not a directory", srcRoot)
	}

	var tasks []FileTask
	err = filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == srcRoot {
				return err
			}
			e.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			// Symlinks, sockets and device nodes are not backup material.
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			e.logger.Warn("skipping unreadable entry", "path", path, "error", err)
			return nil
		}
		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return errors.Wrapf(err, "relativizing %s", path)
		}
		tasks = append(tasks, FileTask{RelPath: rel, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scanning source tree")
	}

	return tasks, nil
}

// Execute processes tasks in order, copying each file from srcRoot into
// dstRoot and emitting exactly one FileResult per task. Per-file faults
// are recorded in their results and never abort the run. Execute stops
// early only when ctx is cancelled or the source root vanishes; in both
// cases every remaining task still emits a result with [StatusAborted],
// and the returned error is ctx.Err() or [ErrDeviceUnavailable]
// respectively.
//
// Cancellation is polled at task boundaries only, so at most one file
// copy is ever in flight when Execute returns.
func (e *Engine) Execute(ctx context.Context, srcRoot, dstRoot string, tasks []FileTask, emit func(FileResult)) error {
	if emit == nil {
		emit = func(FileResult) {}
	}

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			e.abort(tasks[i:], emit)
			return err
		}

		res := e.copyOne(srcRoot, dstRoot, task)
		emit(res)

		if res.Status == StatusCopyFailed {
			// An unplugged device surfaces as per-file open errors; one
			// probe of the source root tells the two cases apart.
			if _, err := os.Stat(srcRoot); err != nil {
				e.logger.Error("source root no longer reachable", "path", srcRoot, "error", err)
				e.abort(tasks[i+1:], emit)
				return errors.Wrapf(ErrDeviceUnavailable, "%s", srcRoot)
			}
		}
	}

	return nil
}

// abort emits an aborted result for every remaining task, keeping the
// one-result-per-task accounting intact.
func (e *Engine) abort(remaining []FileTask, emit func(FileResult)) {
	for _, task := range remaining {
		emit(FileResult{RelPath: task.RelPath, Status: StatusAborted})
	}
}

// testHookAfterCopy, when set, runs between the copy and the
// verification read. Tests use it to alter the destination file.
var testHookAfterCopy func(dst string)

// copyOne performs the full per-file pipeline: sanitize, copy, verify.
// All faults are folded into the returned result.
func (e *Engine) copyOne(srcRoot, dstRoot string, task FileTask) FileResult {
	res := FileResult{RelPath: task.RelPath}

	rel, err := pathsafe.Sanitize(task.RelPath)
	if err != nil {
		e.logger.Warn("skipping unsafe path", "path", task.RelPath, "error", err)
		res.Status = StatusSkippedUnsafePath
		res.Detail = err.Error()
		return res
	}

	src := filepath.Join(srcRoot, task.RelPath)
	dst := filepath.Join(dstRoot, rel)

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		res.Status = StatusCopyFailed
		res.Detail = err.Error()
		return res
	}

	written, srcSum, err := e.copyFile(src, dst)
	res.Bytes = written
	res.SourceDigest = srcSum
	if err != nil {
		e.logger.Warn("copy failed", "path", task.RelPath, "error", err)
		res.Status = StatusCopyFailed
		res.Detail = err.Error()
		return res
	}

	if testHookAfterCopy != nil {
		testHookAfterCopy(dst)
	}

	dstSum, err := digest.File(dst)
	if err != nil {
		e.logger.Warn("verification read failed", "path", task.RelPath, "error", err)
		res.Status = StatusCopyFailed
		res.Detail = err.Error()
		return res
	}
	res.DestDigest = dstSum

	if dstSum != srcSum {
		e.logger.Warn("digest mismatch", "path", task.RelPath, "source", srcSum, "destination", dstSum)
		res.Status = StatusCopiedMismatch
		return res
	}

	res.Status = StatusCopiedVerified
	return res
}

// copyFile copies src to dst, hashing the bytes as they stream through.
// Returns the count of bytes written and the hex digest of what was
// read. Permissions and modification times are carried over best
// effort after a successful copy.
func (e *Engine) copyFile(src, dst string) (int64, string, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, "", errors.Wrap(err, "opening source file")
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, "", errors.Wrap(err, "stat source file")
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, "", errors.Wrap(err, "creating destination file")
	}

	// Hash while copying; the digest covers exactly the bytes written.
	h := sha256.New()
	w := io.MultiWriter(out, h)

	written, err := io.CopyBuffer(w, in, make([]byte, digest.ChunkSize))
	if err != nil {
		out.Close()
		return written, "", errors.Wrap(err, "copying file")
	}
	if err := out.Close(); err != nil {
		return written, "", errors.Wrap(err, "closing destination file")
	}

	if mode := info.Mode().Perm(); mode != 0o644 {
		if err := os.Chmod(dst, mode); err != nil {
			e.logger.Debug("could not preserve permissions", "path", dst, "error", err)
		}
	}
	if e.preserveTimes {
		if err := os.Chtimes(dst, time.Now(), info.ModTime()); err != nil {
			e.logger.Debug("could not preserve modification time", "path", dst, "error", err)
		}
	}

	return written, hex.EncodeToString(h.Sum(nil)), nil
}
