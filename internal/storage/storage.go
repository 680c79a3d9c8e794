// Package storage defines the opaque blob contract the index engine reads
// and writes through, and the concrete backends that satisfy it.
//
// Every backend addresses blobs by a flat name. Writes become visible only
// when the writer returned by Put is closed; an aborted writer leaves the
// previous blob in place.
package storage

import (
	"context"
	"fmt"
	"io"
)

// Source is a read-only collection of named blobs.
type Source interface {
	Has(ctx context.Context, name string) (bool, error)
	// Open returns an error wrapping common.ErrNotFound for a missing name.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context) ([]string, error)
}

// Store is a writable Source.
type Store interface {
	Source
	// Put returns a writer whose content is committed under name on Close.
	Put(ctx context.Context, name string) (io.WriteCloser, error)
	// Delete removes name. Deleting an absent name is not an error.
	Delete(ctx context.Context, name string) error
}

// Aborter is implemented by writers that can discard their content instead
// of committing it.
type Aborter interface {
	Abort() error
}

// Abort discards w without committing. Writers that cannot abort are left
// unclosed, so nothing they buffered is committed.
func Abort(w io.WriteCloser) error {
	if a, ok := w.(Aborter); ok {
		return a.Abort()
	}
	return nil
}

// Batcher is implemented by stores able to apply a group of writes
// atomically.
type Batcher interface {
	Batch(ctx context.Context, fn func(Store) error) error
}

// InBatch runs fn inside a batch when st supports one, and against st
// directly otherwise.
func InBatch(ctx context.Context, st Store, fn func(Store) error) error {
	if b, ok := st.(Batcher); ok {
		return b.Batch(ctx, fn)
	}
	return fn(st)
}

// ReadAll reads the whole blob stored under name.
func ReadAll(ctx context.Context, src Source, name string) ([]byte, error) {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

// WriteAll stores data under name, replacing any previous blob.
func WriteAll(ctx context.Context, st Store, name string, data []byte) error {
	w, err := st.Put(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = Abort(w)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("commit %s: %w", name, err)
	}
	return nil
}

// Close releases src if it holds resources (files, connections).
func Close(src Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
