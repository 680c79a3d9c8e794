package storage

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/cryptindex/internal/common"
)

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("dir/")
	require.NoError(t, err)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func TestZipSource(t *testing.T) {
	ctx := context.Background()
	p := writeZip(t, map[string]string{"manifest": "enc", "chunk1": "data"})

	z, err := OpenZip(p)
	require.NoError(t, err)
	defer z.Close()

	ok, err := z.Has(ctx, "manifest")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = z.Has(ctx, "dir/")
	require.NoError(t, err)
	require.False(t, ok, "directories are not blobs")

	b, err := ReadAll(ctx, z, "chunk1")
	require.NoError(t, err)
	require.Equal(t, "data", string(b))

	_, err = z.Open(ctx, "missing")
	require.True(t, errors.Is(err, common.ErrNotFound))

	names, err := z.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"chunk1", "manifest"}, names)
}

func TestOpenZip_NotAnArchive(t *testing.T) {
	p := filepath.Join(t.TempDir(), "junk.zip")
	require.NoError(t, os.WriteFile(p, []byte("not a zip"), 0o600))
	_, err := OpenZip(p)
	require.Error(t, err)
}
