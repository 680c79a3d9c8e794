package storage

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/dmitrijs2005/cryptindex/internal/common"
)

// ZipSource serves the regular files of a zip archive by their entry name.
type ZipSource struct {
	rc    *zip.ReadCloser
	files map[string]*zip.File
}

// OpenZip opens the archive at path.
func OpenZip(path string) (*ZipSource, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	z := &ZipSource{rc: rc, files: make(map[string]*zip.File, len(rc.File))}
	for _, f := range rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		z.files[f.Name] = f
	}
	return z, nil
}

func (z *ZipSource) Has(_ context.Context, name string) (bool, error) {
	_, ok := z.files[name]
	return ok, nil
}

func (z *ZipSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, ok := z.files[name]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", name, common.ErrNotFound)
	}
	return f.Open()
}

func (z *ZipSource) List(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(z.files))
	for n := range z.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Close releases the underlying archive file.
func (z *ZipSource) Close() error {
	return z.rc.Close()
}
