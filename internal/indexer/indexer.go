// Package indexer builds, coalesces and writes encrypted file indexes.
//
// An Indexer owns one in-memory index.Index. Sources are merged into it
// (remote locators, local directories, zip archives, finalized indexes),
// split pieces can be joined back into logical files, and the result is
// written either as one flat manifest or as a sharded search tree.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/dmitrijs2005/cryptindex/internal/common"
	"github.com/dmitrijs2005/cryptindex/internal/cryptox"
	"github.com/dmitrijs2005/cryptindex/internal/index"
	"github.com/dmitrijs2005/cryptindex/internal/logging"
	"github.com/dmitrijs2005/cryptindex/internal/storage"
)

// Opener resolves locators to storage backends.
type Opener interface {
	OpenSource(ctx context.Context, locator string) (storage.Source, error)
	OpenDir(ctx context.Context, dir string) (storage.Store, error)
	OpenArchive(ctx context.Context, path string) (storage.Source, error)
}

// Indexer accumulates entries from many sources into one index.
// It is not safe for concurrent use.
type Indexer struct {
	keys    cryptox.Keys
	dialect index.Dialect
	names   Names
	opener  Opener
	log     logging.Logger
	index   index.Index
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(x *Indexer) { x.log = l }
}

// WithOpener replaces the default storage.Opener.
func WithOpener(o Opener) Option {
	return func(x *Indexer) { x.opener = o }
}

// WithNames replaces the persisted name table.
func WithNames(n Names) Option {
	return func(x *Indexer) { x.names = n }
}

// New returns an empty Indexer that encrypts with keys and encodes entries
// with dialect.
func New(keys cryptox.Keys, dialect index.Dialect, opts ...Option) (*Indexer, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	if dialect == nil {
		return nil, fmt.Errorf("%w: nil dialect", common.ErrUnknownDialect)
	}
	x := &Indexer{
		keys:    keys,
		dialect: dialect,
		names:   DefaultNames(),
		opener:  &storage.Opener{},
		log:     logging.Discard(),
		index:   make(index.Index),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// Dialect returns the entry codec in use.
func (x *Indexer) Dialect() index.Dialect { return x.dialect }

// Names returns the persisted name table in use.
func (x *Indexer) Names() Names { return x.names }

// AddFromRemote merges the raw manifest found at locator. Every chunk is
// rewritten to scheme://host[:port]<path>/<chunk>[?query] of the locator.
func (x *Indexer) AddFromRemote(ctx context.Context, locator string) error {
	base, err := url.Parse(locator)
	if err != nil {
		return fmt.Errorf("parse locator %q: %w", locator, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("locator %q: scheme and host are required", locator)
	}
	src, err := x.opener.OpenSource(ctx, locator)
	if err != nil {
		return err
	}
	defer storage.Close(src)

	return x.addRewritten(ctx, "remote", base.Redacted(), src, func(chunk string) string {
		return storage.JoinURL(base, chunk)
	})
}

// AddFromDirectory merges the raw manifest in dir; chunks resolve to files
// under dir.
func (x *Indexer) AddFromDirectory(ctx context.Context, dir string) error {
	src, err := x.opener.OpenDir(ctx, dir)
	if err != nil {
		return err
	}
	defer storage.Close(src)

	return x.addRewritten(ctx, "directory", dir, src, func(chunk string) string {
		return filepath.Join(dir, chunk)
	})
}

// AddFromArchive merges the raw manifest stored in the zip at path; chunks
// become archive member references.
func (x *Indexer) AddFromArchive(ctx context.Context, path string) error {
	src, err := x.opener.OpenArchive(ctx, path)
	if err != nil {
		return err
	}
	defer storage.Close(src)

	return x.addRewritten(ctx, "archive", path, src, func(chunk string) string {
		return x.names.ArchiveMember(path, chunk)
	})
}

// AddFinalized merges an index previously written by WriteFlat or
// WriteTree without rewriting chunk locations.
func (x *Indexer) AddFinalized(ctx context.Context, locator string) error {
	src, err := x.opener.OpenSource(ctx, locator)
	if err != nil {
		return err
	}
	defer storage.Close(src)

	m, err := x.readManifest(ctx, src, x.names.FinalizedManifest, locator)
	if err != nil {
		return err
	}

	// shards are always encrypted with the base keys; a nonce blob only
	// applies to the manifest itself
	var ix index.Index
	if m.isHierarchical() {
		ix, err = x.TreeReader(src, x.keys).Load(ctx)
		if err != nil {
			return fmt.Errorf("load tree from %s: %w", locator, err)
		}
	} else {
		ix = x.decodeFiles(ctx, m, locator)
	}

	x.index.Merge(ix)
	x.log.Info(ctx, "merged finalized index",
		"source", locator, "entries", len(ix), "hierarchical", m.isHierarchical())
	return nil
}

func (x *Indexer) addRewritten(ctx context.Context, kind, label string, src storage.Source, rewrite func(string) string) error {
	m, err := x.readManifest(ctx, src, x.names.Manifest, label)
	if err != nil {
		return err
	}
	ix := x.decodeFiles(ctx, m, label)
	for name, e := range ix {
		x.index[name] = e.WithChunks(rewrite)
	}
	x.log.Info(ctx, "merged index", "kind", kind, "source", label, "entries", len(ix))
	return nil
}

// manifest is the decrypted top-level document of a flat manifest.
type manifest struct {
	Files        map[string]json.RawMessage `json:"files"`
	Meta         map[string]json.RawMessage `json:"meta,omitempty"`
	Hierarchical string                     `json:"hierarchical,omitempty"`
}

func (m manifest) isHierarchical() bool {
	if m.Hierarchical == "true" {
		return true
	}
	var v string
	if raw, ok := m.Meta["hierarchical"]; ok && json.Unmarshal(raw, &v) == nil {
		return v == "true"
	}
	return false
}

// readManifest loads and decrypts name from src. An absent manifest yields
// an empty one. A manifest that cannot be decrypted or parsed, or whose
// nonce blob is not a valid IV, is logged and also yields an empty one.
// Storage failures are returned.
func (x *Indexer) readManifest(ctx context.Context, src storage.Source, name, label string) (manifest, error) {
	empty := manifest{Files: map[string]json.RawMessage{}}

	ok, err := src.Has(ctx, name)
	if err != nil {
		return empty, fmt.Errorf("probe %s in %s: %w", name, label, err)
	}
	if !ok {
		x.log.Debug(ctx, "no manifest", "source", label, "name", name)
		return empty, nil
	}

	keys, err := x.manifestKeys(ctx, src, label)
	if errors.Is(err, common.ErrInvalidKeys) {
		x.log.Warn(ctx, "ignoring manifest", "source", label, "name", name, "error", err)
		return empty, nil
	}
	if err != nil {
		return empty, err
	}

	ciphertext, err := storage.ReadAll(ctx, src, name)
	if err != nil {
		return empty, err
	}
	plaintext, err := cryptox.Decrypt(keys, ciphertext)
	if err != nil {
		x.log.Warn(ctx, "ignoring manifest", "source", label, "name", name,
			"error", fmt.Errorf("%w: %v", common.ErrMalformedManifest, err))
		return empty, nil
	}

	var m manifest
	if err := json.Unmarshal(plaintext, &m); err != nil {
		x.log.Warn(ctx, "ignoring manifest", "source", label, "name", name,
			"error", fmt.Errorf("%w: %v", common.ErrMalformedManifest, err))
		return empty, nil
	}
	if m.Files == nil {
		m.Files = map[string]json.RawMessage{}
	}
	return m, nil
}

// manifestKeys returns the key material for the manifest in src. Dialects
// that honour the nonce blob swap its bytes in as the IV. A blob of the
// wrong length yields common.ErrInvalidKeys.
func (x *Indexer) manifestKeys(ctx context.Context, src storage.Source, label string) (cryptox.Keys, error) {
	if !x.dialect.OverridesManifestIV() {
		return x.keys, nil
	}
	ok, err := src.Has(ctx, x.names.ManifestNonce)
	if err != nil {
		return x.keys, fmt.Errorf("probe %s in %s: %w", x.names.ManifestNonce, label, err)
	}
	if !ok {
		return x.keys, nil
	}
	iv, err := storage.ReadAll(ctx, src, x.names.ManifestNonce)
	if err != nil {
		return x.keys, err
	}
	return x.keys.WithIV(iv)
}

func (x *Indexer) decodeFiles(ctx context.Context, m manifest, label string) index.Index {
	ix, err := index.DecodeIndex(x.dialect, m.Files)
	if err != nil {
		x.log.Warn(ctx, "ignoring manifest", "source", label, "error", err)
		return index.Index{}
	}
	return ix
}

// List returns every logical name, sorted.
func (x *Indexer) List() []string {
	return x.index.Names()
}

// Len returns the number of logical files.
func (x *Indexer) Len() int { return len(x.index) }

// Has reports whether name is present.
func (x *Indexer) Has(name string) bool {
	_, ok := x.index[name]
	return ok
}

// Get returns a copy of the entry stored under name.
func (x *Indexer) Get(name string) (index.Entry, bool) {
	e, ok := x.index[name]
	if !ok {
		return index.Entry{}, false
	}
	return e.Clone(), true
}

// Put stores e under name, replacing any existing entry.
func (x *Indexer) Put(name string, e index.Entry) {
	x.index[name] = e.Clone()
}

// Size returns the logical size of name, or -1 when absent.
func (x *Indexer) Size(name string) int64 {
	if e, ok := x.index[name]; ok {
		return e.Size
	}
	return -1
}

// LastModified returns the modification time of name in epoch millis, or
// -1 when absent.
func (x *Indexer) LastModified(name string) int64 {
	if e, ok := x.index[name]; ok {
		return e.LastModified
	}
	return -1
}

// Move renames from to to. It fails with common.ErrNotFound when from is
// absent.
func (x *Indexer) Move(from, to string) error {
	e, ok := x.index[from]
	if !ok {
		return fmt.Errorf("move %q: %w", from, common.ErrNotFound)
	}
	delete(x.index, from)
	x.index[to] = e
	return nil
}

// Copy duplicates from under to. It fails with common.ErrNotFound when from
// is absent.
func (x *Indexer) Copy(from, to string) error {
	e, ok := x.index[from]
	if !ok {
		return fmt.Errorf("copy %q: %w", from, common.ErrNotFound)
	}
	x.index[to] = e.Clone()
	return nil
}

// Delete removes name if present.
func (x *Indexer) Delete(name string) {
	delete(x.index, name)
}

// Merge copies every entry of other into x; other wins on name clashes.
func (x *Indexer) Merge(other *Indexer) {
	x.index.Merge(other.index)
}

// Snapshot returns a deep copy of the current index.
func (x *Indexer) Snapshot() index.Index {
	out := make(index.Index, len(x.index))
	out.Merge(x.index)
	return out
}
