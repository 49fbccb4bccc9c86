package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/thoreinstein/cardkeep/internal/digest"
	"github.com/thoreinstein/cardkeep/internal/logging"
)

// writeTree creates files (with parents) under root from rel → content.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func countByStatus(results []FileResult) map[Status]int {
	counts := make(map[Status]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

func TestPlan(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"b.txt":        "bee",
		"a.txt":        "ay",
		"sub/c.txt":    "",
		"sub/deep/d":   "dddd",
		"another/e.go": "e",
	})

	tasks, err := New().Plan(context.Background(), src)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}

	want := []FileTask{
		{RelPath: "a.txt", Size: 2},
		{RelPath: filepath.Join("another", "e.go"), Size: 1},
		{RelPath: "b.txt", Size: 3},
		{RelPath: filepath.Join("sub", "c.txt"), Size: 0},
		{RelPath: filepath.Join("sub", "deep", "d"), Size: 4},
	}
	if len(tasks) != len(want) {
		t.Fatalf("Plan() returned %d tasks, want %d: %+v", len(tasks), len(want), tasks)
	}
	for i := range want {
		if tasks[i] != want[i] {
			t.Errorf("task %d = %+v, want %+v", i, tasks[i], want[i])
		}
	}
}

func TestPlan_SkipsIrregularFiles(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"real.txt": "data"})

	if err := os.Symlink(filepath.Join(src, "real.txt"), filepath.Join(src, "link.txt")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	tasks, err := New().Plan(context.Background(), src)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].RelPath != "real.txt" {
		t.Errorf("Plan() = %+v, want only real.txt", tasks)
	}
}

func TestPlan_Errors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		_, err := New().Plan(context.Background(), filepath.Join(t.TempDir(), "nope"))
		if err == nil {
			t.Fatal("Plan() on missing root should fail")
		}
	})

	t.Run("root is a file", func(t *testing.T) {
		src := t.TempDir()
		writeTree(t, src, map[string]string{"f": "x"})
		_, err := New().Plan(context.Background(), filepath.Join(src, "f"))
		if err == nil {
			t.Fatal("Plan() on a file should fail")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		src := t.TempDir()
		writeTree(t, src, map[string]string{"f": "x"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New().Plan(ctx, src)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Plan() error = %v, want context.Canceled", err)
		}
	})
}

func TestExecute_CopiesAndVerifies(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.txt":     "hello world",
		"sub/b.txt": "",
		"sub/c.bin": "binary-ish content",
	})

	e := New(WithLogger(logging.ForTest(t)))
	tasks, err := e.Plan(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}

	var results []FileResult
	if err := e.Execute(context.Background(), src, dst, tasks, func(r FileResult) {
		results = append(results, r)
	}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if len(results) != len(tasks) {
		t.Fatalf("got %d results for %d tasks", len(results), len(tasks))
	}
	for i, r := range results {
		if r.Status != StatusCopiedVerified {
			t.Errorf("result %d status = %s, want %s (detail: %s)", i, r.Status, StatusCopiedVerified, r.Detail)
		}
		if r.RelPath != tasks[i].RelPath {
			t.Errorf("result %d path = %q, want %q", i, r.RelPath, tasks[i].RelPath)
		}
		if r.Bytes != tasks[i].Size {
			t.Errorf("result %d bytes = %d, want %d", i, r.Bytes, tasks[i].Size)
		}
		if r.SourceDigest == "" || r.SourceDigest != r.DestDigest {
			t.Errorf("result %d digests = %q / %q, want equal and non-empty", i, r.SourceDigest, r.DestDigest)
		}
	}

	// The destination mirrors the source byte for byte.
	for _, task := range tasks {
		srcSum, err := digest.File(filepath.Join(src, task.RelPath))
		if err != nil {
			t.Fatal(err)
		}
		dstSum, err := digest.File(filepath.Join(dst, task.RelPath))
		if err != nil {
			t.Fatalf("destination file missing for %s: %v", task.RelPath, err)
		}
		if srcSum != dstSum {
			t.Errorf("%s: digest mismatch after copy", task.RelPath)
		}
	}
}

func TestExecute_LargeFile(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	// Spans multiple copy buffers.
	big := make([]byte, digest.ChunkSize+5)
	for i := range big {
		big[i] = byte(i % 251)
	}
	if err := os.WriteFile(filepath.Join(src, "big.dat"), big, 0o644); err != nil {
		t.Fatal(err)
	}

	e := New()
	tasks, err := e.Plan(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}

	var results []FileResult
	if err := e.Execute(context.Background(), src, dst, tasks, func(r FileResult) {
		results = append(results, r)
	}); err != nil {
		t.Fatal(err)
	}

	if len(results) != 1 || results[0].Status != StatusCopiedVerified {
		t.Fatalf("results = %+v, want one verified copy", results)
	}
	if results[0].Bytes != int64(len(big)) {
		t.Errorf("Bytes = %d, want %d", results[0].Bytes, len(big))
	}
}

func TestExecute_UnsafePathSkipped(t *testing.T) {
	src := t.TempDir()
	dstParent := t.TempDir()
	dst := filepath.Join(dstParent, "backup")
	if err := os.Mkdir(dst, 0o755); err != nil {
		t.Fatal(err)
	}
	writeTree(t, src, map[string]string{"ok.txt": "fine"})

	// A traversal entry as a hostile walker would produce it. Plan never
	// generates these, so inject the task directly.
	tasks := []FileTask{
		{RelPath: filepath.Join("a", "..", "..", "evil.txt"), Size: 4},
		{RelPath: "ok.txt", Size: 4},
	}

	e := New(WithLogger(logging.ForTest(t)))
	var results []FileResult
	if err := e.Execute(context.Background(), src, dst, tasks, func(r FileResult) {
		results = append(results, r)
	}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if results[0].Status != StatusSkippedUnsafePath {
		t.Errorf("unsafe task status = %s, want %s", results[0].Status, StatusSkippedUnsafePath)
	}
	if results[0].Detail == "" {
		t.Error("unsafe task should carry a detail message")
	}
	if results[1].Status != StatusCopiedVerified {
		t.Errorf("safe task status = %s, want %s", results[1].Status, StatusCopiedVerified)
	}

	// Nothing may exist outside the destination directory.
	if _, err := os.Stat(filepath.Join(dstParent, "evil.txt")); !os.IsNotExist(err) {
		t.Error("a file escaped the destination root")
	}
	entries, err := os.ReadDir(dstParent)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "backup" {
		t.Errorf("destination parent polluted: %v", entries)
	}
}

func TestExecute_SanitizesIllegalCharacters(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	name := `notes<v2>.txt`
	if err := os.WriteFile(filepath.Join(src, name), []byte("n"), 0o644); err != nil {
		t.Skipf("filesystem rejects test filename: %v", err)
	}

	e := New()
	tasks, err := e.Plan(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}

	var results []FileResult
	if err := e.Execute(context.Background(), src, dst, tasks, func(r FileResult) {
		results = append(results, r)
	}); err != nil {
		t.Fatal(err)
	}

	if len(results) != 1 || results[0].Status != StatusCopiedVerified {
		t.Fatalf("results = %+v, want one verified copy", results)
	}
	if _, err := os.Stat(filepath.Join(dst, "notes_v2_.txt")); err != nil {
		t.Errorf("sanitized destination name missing: %v", err)
	}
}

func TestExecute_Mismatch(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"photo.jpg": "original bytes"})

	testHookAfterCopy = func(path string) {
		if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	defer func() { testHookAfterCopy = nil }()

	e := New(WithLogger(logging.ForTest(t)))
	tasks, err := e.Plan(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}

	var results []FileResult
	if err := e.Execute(context.Background(), src, dst, tasks, func(r FileResult) {
		results = append(results, r)
	}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Status != StatusCopiedMismatch {
		t.Fatalf("status = %s, want %s", r.Status, StatusCopiedMismatch)
	}
	if r.SourceDigest == r.DestDigest {
		t.Error("digests should differ on mismatch")
	}

	// The mismatched file stays on disk for inspection.
	if _, err := os.Stat(filepath.Join(dst, "photo.jpg")); err != nil {
		t.Errorf("mismatched destination file was removed: %v", err)
	}
}

func TestExecute_CopyFailureContinues(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"good.txt": "good"})

	tasks := []FileTask{
		{RelPath: "ghost.txt", Size: 10},
		{RelPath: "good.txt", Size: 4},
	}

	e := New(WithLogger(logging.ForTest(t)))
	var results []FileResult
	if err := e.Execute(context.Background(), src, dst, tasks, func(r FileResult) {
		results = append(results, r)
	}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if results[0].Status != StatusCopyFailed {
		t.Errorf("missing source status = %s, want %s", results[0].Status, StatusCopyFailed)
	}
	if results[0].Detail == "" {
		t.Error("failed result should carry the error text")
	}
	if results[1].Status != StatusCopiedVerified {
		t.Errorf("following task status = %s, want %s", results[1].Status, StatusCopiedVerified)
	}
}

func TestExecute_DeviceGone(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.txt": "a",
		"b.txt": "b",
		"c.txt": "c",
	})

	e := New(WithLogger(logging.ForTest(t)))
	tasks, err := e.Plan(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}

	// The card is yanked between planning and copying.
	if err := os.RemoveAll(src); err != nil {
		t.Fatal(err)
	}

	var results []FileResult
	err = e.Execute(context.Background(), src, dst, tasks, func(r FileResult) {
		results = append(results, r)
	})
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Execute() error = %v, want ErrDeviceUnavailable", err)
	}

	if len(results) != len(tasks) {
		t.Fatalf("got %d results for %d tasks", len(results), len(tasks))
	}
	counts := countByStatus(results)
	if counts[StatusCopyFailed] != 1 {
		t.Errorf("copy-failed count = %d, want 1", counts[StatusCopyFailed])
	}
	if counts[StatusAborted] != len(tasks)-1 {
		t.Errorf("aborted count = %d, want %d", counts[StatusAborted], len(tasks)-1)
	}
}

func TestExecute_Cancellation(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{
		"a.txt": "a",
		"b.txt": "b",
		"c.txt": "c",
		"d.txt": "d",
	})

	e := New()
	tasks, err := e.Plan(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var results []FileResult
	err = e.Execute(ctx, src, dst, tasks, func(r FileResult) {
		results = append(results, r)
		if len(results) == 2 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}

	// Accounting stays complete: one result per planned task.
	if len(results) != len(tasks) {
		t.Fatalf("got %d results for %d tasks", len(results), len(tasks))
	}
	counts := countByStatus(results)
	if counts[StatusCopiedVerified] != 2 {
		t.Errorf("verified count = %d, want 2", counts[StatusCopiedVerified])
	}
	if counts[StatusAborted] != 2 {
		t.Errorf("aborted count = %d, want 2", counts[StatusAborted])
	}
}

func TestExecute_EmptyPlan(t *testing.T) {
	e := New()
	if err := e.Execute(context.Background(), t.TempDir(), t.TempDir(), nil, nil); err != nil {
		t.Fatalf("Execute() on empty plan error: %v", err)
	}
}

func TestCopyFile_PreservesTimes(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeTree(t, src, map[string]string{"old.txt": "old"})

	past := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(filepath.Join(src, "old.txt"), past, past); err != nil {
		t.Fatal(err)
	}

	tasks := []FileTask{{RelPath: "old.txt", Size: 3}}

	t.Run("enabled", func(t *testing.T) {
		e := New(WithPreserveTimes(true))
		if err := e.Execute(context.Background(), src, dst, tasks, nil); err != nil {
			t.Fatal(err)
		}
		info, err := os.Stat(filepath.Join(dst, "old.txt"))
		if err != nil {
			t.Fatal(err)
		}
		if !info.ModTime().Equal(past) {
			t.Errorf("ModTime = %v, want %v", info.ModTime(), past)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		dst2 := t.TempDir()
		e := New(WithPreserveTimes(false))
		if err := e.Execute(context.Background(), src, dst2, tasks, nil); err != nil {
			t.Fatal(err)
		}
		info, err := os.Stat(filepath.Join(dst2, "old.txt"))
		if err != nil {
			t.Fatal(err)
		}
		if !info.ModTime().After(past.Add(time.Hour)) {
			t.Errorf("ModTime = %v, should be recent", info.ModTime())
		}
	})
}

func TestCopyFile_PreservesMode(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	path := filepath.Join(src, "run.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	e := New()
	if err := e.Execute(context.Background(), src, dst, []FileTask{{RelPath: "run.sh", Size: 10}}, nil); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(filepath.Join(dst, "run.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != 0o755 {
		t.Errorf("mode = %o, want 0755", got)
	}
}

func TestFileResult_Problem(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusCopiedVerified, false},
		{StatusCopiedMismatch, true},
		{StatusCopyFailed, true},
		{StatusSkippedUnsafePath, true},
		{StatusAborted, false},
	}
	for _, tt := range tests {
		r := FileResult{Status: tt.status}
		if got := r.Problem(); got != tt.want {
			t.Errorf("Problem() with %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}
