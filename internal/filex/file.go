// Package filex contains filesystem helpers for staged, atomic writes.
package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// StagingPrefix marks in-flight files; directory listings skip them.
const StagingPrefix = ".staging-"

// EnsureDir creates dir (and parents) if it does not exist yet.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// IsStaging reports whether name is a staging file created by CreateStaging.
func IsStaging(name string) bool {
	return strings.HasPrefix(name, StagingPrefix)
}

// AtomicFile is written under a staging name and renamed into place on Close.
type AtomicFile struct {
	*os.File
	final  string
	closed bool
}

// CreateAtomic opens a uniquely named staging file next to path. Nothing is
// visible under path until Close succeeds.
func CreateAtomic(path string) (*AtomicFile, error) {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	staging := filepath.Join(dir, StagingPrefix+uuid.NewString())
	f, err := os.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o660)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	return &AtomicFile{File: f, final: path}, nil
}

// Close flushes the staging file and renames it to its final path.
func (a *AtomicFile) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	staging := a.File.Name()
	if err := a.File.Sync(); err != nil {
		_ = a.File.Close()
		_ = os.Remove(staging)
		return fmt.Errorf("sync %s: %w", staging, err)
	}
	if err := a.File.Close(); err != nil {
		_ = os.Remove(staging)
		return fmt.Errorf("close %s: %w", staging, err)
	}
	if err := os.Rename(staging, a.final); err != nil {
		_ = os.Remove(staging)
		return fmt.Errorf("rename %s: %w", a.final, err)
	}
	return nil
}

// Abort discards the staging file without touching the final path.
func (a *AtomicFile) Abort() error {
	if a.closed {
		return nil
	}
	a.closed = true
	_ = a.File.Close()
	return os.Remove(a.File.Name())
}
