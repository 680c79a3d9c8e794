package storage

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/cryptindex/internal/common"
)

// Opener resolves locators to backends:
//
//	http://, https://          HTTPSource (read only)
//	s3://bucket/prefix         S3Store
//	postgres://, postgresql:// SQLStore over pgx
//	sqlite:<path>              SQLStore over modernc sqlite
//	<path>.zip                 ZipSource (read only)
//	file://<path>, <path>      DirStore
type Opener struct {
	HTTPClient *http.Client
	S3         S3Options
}

// OpenSource opens locator for reading.
func (o *Opener) OpenSource(ctx context.Context, locator string) (Source, error) {
	switch {
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		src, err := NewHTTPSource(locator, o.HTTPClient)
		if err != nil {
			return nil, err
		}
		return src, nil
	case isArchive(locator):
		return o.OpenArchive(ctx, locator)
	}
	return o.OpenStore(ctx, locator)
}

// OpenStore opens locator for reading and writing.
func (o *Opener) OpenStore(ctx context.Context, locator string) (Store, error) {
	switch {
	case strings.HasPrefix(locator, "s3://"):
		st, err := OpenS3Store(ctx, locator, o.S3)
		if err != nil {
			return nil, err
		}
		return st, nil
	case strings.HasPrefix(locator, "postgres://"), strings.HasPrefix(locator, "postgresql://"):
		return openSQL(ctx, FlavorPostgres, locator)
	case strings.HasPrefix(locator, "sqlite:"):
		return openSQL(ctx, FlavorSQLite, sqlitePath(locator))
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"), isArchive(locator):
		return nil, fmt.Errorf("open %s for writing: %w", locator, common.ErrReadOnly)
	case strings.Contains(locator, "://") && !strings.HasPrefix(locator, "file://"):
		return nil, fmt.Errorf("open %s: %w", locator, common.ErrNotSupported)
	}
	return o.OpenDir(ctx, strings.TrimPrefix(locator, "file://"))
}

// OpenDir opens a local directory.
func (o *Opener) OpenDir(_ context.Context, dir string) (Store, error) {
	return NewDirStore(filepath.Clean(dir)), nil
}

// OpenArchive opens a local zip archive.
func (o *Opener) OpenArchive(_ context.Context, path string) (Source, error) {
	z, err := OpenZip(path)
	if err != nil {
		return nil, err
	}
	return z, nil
}

func openSQL(ctx context.Context, flavor, dsn string) (Store, error) {
	st, err := OpenSQLStore(ctx, flavor, dsn)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func isArchive(locator string) bool {
	return !strings.Contains(locator, "://") && strings.EqualFold(filepath.Ext(locator), ".zip")
}

func sqlitePath(locator string) string {
	p := strings.TrimPrefix(locator, "sqlite:")
	return strings.TrimPrefix(p, "//")
}
