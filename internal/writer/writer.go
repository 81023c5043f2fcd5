// Package writer puts generated files where they belong.
//
// Every writer receives a whole Artifact once per generation pass. FileWriter
// formats and writes atomically, CheckWriter compares against what is on disk
// and MemoryWriter keeps results for tests and dry runs.
package writer

import (
	"context"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
)

// Artifact is one generated file.
type Artifact struct {
	// Path is where the file belongs.
	Path string

	// Source is the Go source, formatted or not.
	Source []byte

	// Type is the generated proxy type, for messages.
	Type string
}

// FormatError is returned when generated source is not valid Go. The raw
// source is still written so it can be inspected.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	return "gofmt " + filepath.ToSlash(e.Path) + ": " + e.Err.Error()
}

func (e *FormatError) Unwrap() error { return e.Err }

// StaleError is returned by CheckWriter when the file on disk differs from the
// generated one.
type StaleError struct {
	Path string
	Diff string
}

func (e *StaleError) Error() string {
	return filepath.ToSlash(e.Path) + " is out of date; regenerate it\n" + e.Diff
}

// tempFile abstracts an os.File for testability.
type tempFile interface {
	Name() string
	Write([]byte) (int, error)
	Close() error
}

// File operation hooks, overridden in tests.
var (
	createTempFile = func(dir, pattern string) (tempFile, error) { return os.CreateTemp(dir, pattern) }
	chmodFile      = os.Chmod
	renameFile     = os.Rename
	removeFile     = os.Remove
)

// FileWriter formats artifacts and writes them to disk.
type FileWriter struct {
	// Perm defaults to 0o644.
	Perm os.FileMode
}

// Write gofmt-s the source and writes it atomically. On a format failure the
// raw source is written and a *FormatError returned.
func (w FileWriter) Write(_ context.Context, a Artifact) error {
	perm := w.Perm
	if perm == 0 {
		perm = 0o644
	}
	src, err := format.Source(a.Source)
	if err != nil {
		if werr := writeFileAtomic(a.Path, a.Source, perm); werr != nil {
			return werr
		}
		return &FormatError{Path: a.Path, Err: err}
	}
	return writeFileAtomic(a.Path, src, perm)
}

// writeFileAtomic writes to a temporary file in the target directory and
// renames it over targetPath, so readers never observe partial writes.
func writeFileAtomic(targetPath string, data []byte, perm os.FileMode) (err error) {
	tmpFile, err := createTempFile(filepath.Dir(targetPath), filepath.Base(targetPath)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if err != nil {
			_ = removeFile(tmpPath)
		}
	}()

	if _, err = tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err = tmpFile.Close(); err != nil {
		return err
	}
	if err = chmodFile(tmpPath, perm); err != nil {
		return err
	}
	return renameFile(tmpPath, targetPath)
}

// CheckWriter never writes. It fails when the file on disk is missing or
// differs from the formatted artifact.
type CheckWriter struct {
	// Context is the number of unchanged lines around each hunk. Defaults to 3.
	Context int
}

func (w CheckWriter) Write(_ context.Context, a Artifact) error {
	want, err := format.Source(a.Source)
	if err != nil {
		return &FormatError{Path: a.Path, Err: err}
	}
	have, err := os.ReadFile(a.Path)
	from := filepath.ToSlash(a.Path)
	switch {
	case os.IsNotExist(err):
		from = "/dev/null"
	case err != nil:
		return err
	}
	if string(have) == string(want) {
		return nil
	}
	return &StaleError{Path: a.Path, Diff: w.diff(from, filepath.ToSlash(a.Path), have, want)}
}

func (w CheckWriter) diff(fromName, toName string, a, b []byte) string {
	ctx := w.Context
	if ctx <= 0 {
		ctx = 3
	}
	s, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: fromName,
		ToFile:   toName,
		Context:  ctx,
	})
	if err != nil {
		return "(diff unavailable: " + err.Error() + ")"
	}
	return s
}

// MemoryWriter keeps artifacts in memory. Safe for concurrent use.
type MemoryWriter struct {
	mu    sync.Mutex
	files map[string]Artifact
	calls int
}

// NewMemoryWriter returns an empty MemoryWriter.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{files: map[string]Artifact{}}
}

func (w *MemoryWriter) Write(_ context.Context, a Artifact) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.files == nil {
		w.files = map[string]Artifact{}
	}
	a.Source = append([]byte(nil), a.Source...)
	w.files[a.Path] = a
	w.calls++
	return nil
}

// Get returns the artifact last written to path.
func (w *MemoryWriter) Get(path string) (Artifact, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.files[path]
	return a, ok
}

// Paths returns the written paths, sorted.
func (w *MemoryWriter) Paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Calls counts Write calls.
func (w *MemoryWriter) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// String lists the written files.
func (w *MemoryWriter) String() string {
	return "memory[" + strings.Join(w.Paths(), ", ") + "]"
}
