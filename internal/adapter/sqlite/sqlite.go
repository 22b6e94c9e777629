// Package sqlite provides the embedded SQLite store used for single-node
// deployments and tests. A lock file next to the database guarantees a
// single writing process.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/gofrs/flock"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrLocked is returned by Open when another process holds the database.
var ErrLocked = errors.New("sqlite database is locked by another process")

const dsnParams = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"

// handle is an open database together with its process lock.
type handle struct {
	db   *sql.DB
	lock *flock.Flock
}

func openHandle(path string) (*handle, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}

	db, err := sql.Open("sqlite", "file:"+path+dsnParams)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	return &handle{db: db, lock: lock}, nil
}

func (h *handle) close() error {
	err := h.db.Close()
	if uerr := h.lock.Unlock(); uerr != nil && err == nil {
		err = uerr
	}
	return err
}

func newProvider(db *sql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations fs: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("migration provider: %w", err)
	}
	return p, nil
}

func migrateUp(ctx context.Context, db *sql.DB) error {
	p, err := newProvider(db)
	if err != nil {
		return err
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Open opens (creating if needed) the database at path, takes the process
// lock and applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	h, err := openHandle(path)
	if err != nil {
		return nil, err
	}
	if err := migrateUp(ctx, h.db); err != nil {
		_ = h.close()
		return nil, err
	}
	return &Store{h: h, db: h.db, q: h.db}, nil
}

// Close releases the database and its lock.
func (s *Store) Close() error {
	if s == nil || s.h == nil {
		return nil
	}
	return s.h.close()
}

func withHandle(path string, fn func(db *sql.DB) error) error {
	h, err := openHandle(path)
	if err != nil {
		return err
	}
	defer func() { _ = h.close() }()
	return fn(h.db)
}

// RunMigrations applies all pending migrations to the database at path.
func RunMigrations(ctx context.Context, path string) error {
	return withHandle(path, func(db *sql.DB) error {
		return migrateUp(ctx, db)
	})
}

// RollbackMigrations rolls back the last steps migrations. It stops early
// once no applied migration is left.
func RollbackMigrations(ctx context.Context, path string, steps int) error {
	return withHandle(path, func(db *sql.DB) error {
		p, err := newProvider(db)
		if err != nil {
			return err
		}
		for range steps {
			if _, err := p.Down(ctx); err != nil {
				if errors.Is(err, goose.ErrNoNextVersion) {
					return nil
				}
				return fmt.Errorf("rollback: %w", err)
			}
		}
		return nil
	})
}

// MigrationVersion returns the current migration version.
func MigrationVersion(ctx context.Context, path string) (int64, error) {
	var version int64
	err := withHandle(path, func(db *sql.DB) error {
		p, err := newProvider(db)
		if err != nil {
			return err
		}
		v, err := p.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("get version: %w", err)
		}
		version = v
		return nil
	})
	return version, err
}
