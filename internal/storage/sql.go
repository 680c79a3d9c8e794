package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/cryptindex/internal/common"
	"github.com/dmitrijs2005/cryptindex/internal/dbx"
	"github.com/dmitrijs2005/cryptindex/internal/storage/migrations"
)

// SQL flavours understood by SQLStore.
const (
	FlavorPostgres = "postgres"
	FlavorSQLite   = "sqlite"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded blob schema to db.
func RunMigrations(ctx context.Context, db *sql.DB, flavor string) error {
	dialect := "pgx"
	if flavor == FlavorSQLite {
		dialect = "sqlite3"
	}
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SQLStore keeps blobs as rows of the blobs table.
type SQLStore struct {
	db     *sql.DB  // nil for a store bound to a transaction
	q      dbx.DBTX // db or the active transaction
	flavor string
}

// NewSQLStore wraps an already migrated database.
func NewSQLStore(db *sql.DB, flavor string) *SQLStore {
	return &SQLStore{db: db, q: db, flavor: flavor}
}

// OpenSQLStore connects with the driver matching flavor ("pgx" for
// PostgreSQL, "sqlite" for SQLite) and migrates the schema.
func OpenSQLStore(ctx context.Context, flavor, dsn string) (*SQLStore, error) {
	driver := "pgx"
	if flavor == FlavorSQLite {
		driver = "sqlite"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", flavor, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", flavor, err)
	}
	if err := RunMigrations(ctx, db, flavor); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLStore(db, flavor), nil
}

// rebind adapts ? placeholders to the flavor.
func (s *SQLStore) rebind(q string) string {
	if s.flavor == FlavorPostgres {
		return dbx.Dollar(q)
	}
	return q
}

func (s *SQLStore) Has(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM blobs WHERE name = ?`), name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has %s: %w", name, err)
	}
	return true, nil
}

func (s *SQLStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	var data []byte
	err := s.q.QueryRowContext(ctx, s.rebind(`SELECT data FROM blobs WHERE name = ?`), name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("open %s: %w", name, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT name FROM blobs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLStore) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	return &sqlWriter{ctx: ctx, store: s, name: name}, nil
}

func (s *SQLStore) Delete(ctx context.Context, name string) error {
	if _, err := s.q.ExecContext(ctx, s.rebind(`DELETE FROM blobs WHERE name = ?`), name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Batch runs fn against a store bound to a single transaction. Every Put and
// Delete made through it commits together, or not at all.
func (s *SQLStore) Batch(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(&SQLStore{q: tx, flavor: s.flavor})
	})
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) upsert(ctx context.Context, name string, data []byte) error {
	q := s.rebind(`INSERT INTO blobs (name, data) VALUES (?, ?)
ON CONFLICT (name) DO UPDATE SET data = excluded.data`)
	if _, err := s.q.ExecContext(ctx, q, name, data); err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

type sqlWriter struct {
	ctx    context.Context
	store  *SQLStore
	name   string
	buf    bytes.Buffer
	closed bool
}

func (w *sqlWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, fmt.Errorf("write %s: writer closed", w.name)
	}
	return w.buf.Write(p)
}

func (w *sqlWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	data := w.buf.Bytes()
	if data == nil {
		data = []byte{}
	}
	return w.store.upsert(w.ctx, w.name, data)
}

// Abort drops the buffered content; the stored blob is left untouched.
func (w *sqlWriter) Abort() error {
	w.closed = true
	w.buf.Reset()
	return nil
}
