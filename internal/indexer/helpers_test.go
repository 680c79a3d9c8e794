package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cryptindex/internal/common"
	"github.com/dmitrijs2005/cryptindex/internal/cryptox"
	"github.com/dmitrijs2005/cryptindex/internal/index"
	"github.com/dmitrijs2005/cryptindex/internal/logging"
	"github.com/dmitrijs2005/cryptindex/internal/storage"
)

var testKeys = cryptox.DeriveKeys("correct horse battery staple")

// fakeOpener serves pre-populated sources by locator.
type fakeOpener struct {
	sources map[string]storage.Source
	opened  []string
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{sources: map[string]storage.Source{}}
}

func (f *fakeOpener) lookup(loc string) (storage.Source, error) {
	f.opened = append(f.opened, loc)
	s, ok := f.sources[loc]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", loc, common.ErrNotFound)
	}
	return s, nil
}

func (f *fakeOpener) OpenSource(_ context.Context, loc string) (storage.Source, error) {
	return f.lookup(loc)
}

func (f *fakeOpener) OpenDir(_ context.Context, dir string) (storage.Store, error) {
	s, err := f.lookup(dir)
	if err != nil {
		return nil, err
	}
	return s.(storage.Store), nil
}

func (f *fakeOpener) OpenArchive(_ context.Context, path string) (storage.Source, error) {
	return f.lookup(path)
}

func newIndexer(t *testing.T, d index.Dialect, opts ...Option) *Indexer {
	t.Helper()
	x, err := New(testKeys, d, opts...)
	require.NoError(t, err)
	return x
}

func newLoggedIndexer(t *testing.T, d index.Dialect, opts ...Option) (*Indexer, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	opts = append(opts, WithLogger(logging.NewJSONLogger(&buf, "debug")))
	return newIndexer(t, d, opts...), &buf
}

func entry(size int64, chunks ...string) index.Entry {
	return index.Entry{Chunks: chunks, Size: size, LastModified: 1_700_000_000_000}
}

// putManifest stores ix as an encrypted raw manifest under name.
func putManifest(t *testing.T, st storage.Store, keys cryptox.Keys, name string, d index.Dialect, ix index.Index) {
	t.Helper()
	plain, err := json.Marshal(map[string]any{"files": index.EncodeIndex(d, ix)})
	require.NoError(t, err)
	enc, err := cryptox.Encrypt(keys, plain)
	require.NoError(t, err)
	require.NoError(t, storage.WriteAll(context.Background(), st, name, enc))
}

// readPlain decrypts name from st with the test keys.
func readPlain(t *testing.T, st storage.Source, name string) []byte {
	t.Helper()
	b, err := storage.ReadAll(context.Background(), st, name)
	require.NoError(t, err)
	plain, err := cryptox.Decrypt(testKeys, b)
	require.NoError(t, err)
	return plain
}

func fileName(i int) string { return fmt.Sprintf("file-%04d", i) }

func populate(x *Indexer, n int) {
	for i := 0; i < n; i++ {
		x.Put(fileName(i), entry(int64(i), fmt.Sprintf("chunk-%04d", i)))
	}
}

func requireEntryEqual(t *testing.T, want, got index.Entry) {
	t.Helper()
	require.Truef(t, want.Equal(got), "entries differ:\nwant %+v\ngot  %+v", want, got)
}

// shortWriteStore accepts at most limit bytes per writer, then fails with
// "disk full".
type shortWriteStore struct {
	*storage.MemStore
	limit int
}

func (s shortWriteStore) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	w, err := s.MemStore.Put(ctx, name)
	if err != nil {
		return nil, err
	}
	return &shortWriter{WriteCloser: w, left: s.limit}, nil
}

type shortWriter struct {
	io.WriteCloser
	left int
}

func (w *shortWriter) Write(p []byte) (int, error) {
	if len(p) > w.left {
		n, _ := w.WriteCloser.Write(p[:w.left])
		w.left = 0
		return n, errors.New("disk full")
	}
	w.left -= len(p)
	return w.WriteCloser.Write(p)
}

func (w *shortWriter) Abort() error { return storage.Abort(w.WriteCloser) }

// blobs returns every blob in st keyed by name.
func blobs(t *testing.T, st storage.Source) map[string]string {
	t.Helper()
	ctx := context.Background()
	names, err := st.List(ctx)
	require.NoError(t, err)
	out := make(map[string]string, len(names))
	for _, n := range names {
		b, err := storage.ReadAll(ctx, st, n)
		require.NoError(t, err)
		out[n] = string(b)
	}
	return out
}
