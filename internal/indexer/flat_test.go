package indexer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"math/rand"
	"testing"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cryptindex/internal/cryptox"
	"github.com/dmitrijs2005/cryptindex/internal/index"
	"github.com/dmitrijs2005/cryptindex/internal/storage"
)

type flatWire struct {
	Files map[string]json.RawMessage `json:"files"`
	Meta  map[string]string          `json:"meta"`
}

func decodeFlat(t *testing.T, d index.Dialect, enc []byte) (index.Index, flatWire) {
	t.Helper()
	plain, err := cryptox.Decrypt(testKeys, enc)
	require.NoError(t, err)
	var w flatWire
	require.NoError(t, json.Unmarshal(plain, &w))
	ix, err := index.DecodeIndex(d, w.Files)
	require.NoError(t, err)
	return ix, w
}

func TestSerialize_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		dialect index.Dialect
		entries index.Index
	}{
		{"empty", index.V1, index.Index{}},
		{"v1", index.V1, index.Index{
			"a":        entry(10, "c1", "c2"),
			"dir/b":    {Chunks: []string{}, SplitSize: 4, LastModified: -5},
			"ünïcødé": entry(1, "zip:/x.zip!m"),
		}},
		{"v3 nonces", index.V3, index.Index{
			"a": {Chunks: []string{"c1", "c2"}, Nonces: []*big.Int{big.NewInt(0), new(big.Int).Lsh(big.NewInt(1), 100)}, Size: 2},
			"b": {Chunks: []string{"c3"}, Nonces: []*big.Int{big.NewInt(99)}, Size: 1, LastModified: 1},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := newIndexer(t, tt.dialect)
			for n, e := range tt.entries {
				x.Put(n, e)
			}
			enc, err := x.Serialize()
			require.NoError(t, err)

			got, _ := decodeFlat(t, tt.dialect, enc)
			require.Len(t, got, len(tt.entries))
			for n, want := range tt.entries {
				requireEntryEqual(t, want, got[n])
			}
		})
	}
}

func TestSerialize_EmbedsBloomFilter(t *testing.T) {
	x := newIndexer(t, index.V1)
	populate(x, 20)

	enc, err := x.Serialize()
	require.NoError(t, err)
	_, w := decodeFlat(t, index.V1, enc)

	raw, err := base64.StdEncoding.DecodeString(w.Meta["bloom_filter"])
	require.NoError(t, err)

	var bf bloom.BloomFilter
	_, err = bf.ReadFrom(bytes.NewReader(raw))
	require.NoError(t, err)
	for _, n := range x.List() {
		assert.True(t, bf.Test([]byte(n)), n)
	}
}

func TestBloomFilter_NoFalseNegatives(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 5; round++ {
		x := newIndexer(t, index.V1)
		n := rng.Intn(2000)
		for i := 0; i < n; i++ {
			x.Put(fmt.Sprintf("r%d/%x", round, rng.Int63()), entry(1, "c"))
		}

		raw, err := x.BloomFilter()
		require.NoError(t, err)
		var bf bloom.BloomFilter
		_, err = bf.ReadFrom(bytes.NewReader(raw))
		require.NoError(t, err)

		for _, name := range x.List() {
			require.True(t, bf.Test([]byte(name)), "false negative for %q", name)
		}
	}
}

func TestBloomFilter_EmptyIndexStillSized(t *testing.T) {
	x := newIndexer(t, index.V1)
	raw, err := x.BloomFilter()
	require.NoError(t, err)

	var bf bloom.BloomFilter
	_, err = bf.ReadFrom(bytes.NewReader(raw))
	require.NoError(t, err)
	want := bloom.NewWithEstimates(3, 0.03)
	assert.Equal(t, want.Cap(), bf.Cap())
	assert.Equal(t, want.K(), bf.K())
}

func TestWriteFlat(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemStore()
	x := newIndexer(t, index.V3)
	populate(x, 5)

	require.NoError(t, x.WriteFlat(ctx, st))

	names, err := st.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"manifest_index"}, names)

	enc, err := storage.ReadAll(ctx, st, "manifest_index")
	require.NoError(t, err)
	got, _ := decodeFlat(t, index.V3, enc)
	assert.Len(t, got, 5)
}

type failingPutStore struct {
	*storage.MemStore
}

type failingCommit struct{ bytes.Buffer }

func (f *failingCommit) Close() error { return errors.New("quota exceeded") }

func (f failingPutStore) Put(context.Context, string) (io.WriteCloser, error) {
	return &failingCommit{}, nil
}

func TestWriteFlat_CommitErrorSurfaces(t *testing.T) {
	x := newIndexer(t, index.V1)
	err := x.WriteFlat(context.Background(), failingPutStore{storage.NewMemStore()})
	require.ErrorContains(t, err, "quota exceeded")
}

func TestWriteFlat_FailedWriteKeepsPreviousManifest(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemStore()
	require.NoError(t, storage.WriteAll(ctx, mem, "manifest_index", []byte("previous good manifest")))

	x := newIndexer(t, index.V3)
	populate(x, 20)

	err := x.WriteFlat(ctx, shortWriteStore{MemStore: mem, limit: 8})
	require.ErrorContains(t, err, "disk full")

	assert.Equal(t, map[string]string{"manifest_index": "previous good manifest"}, blobs(t, mem))
}
