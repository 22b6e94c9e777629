package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Strob0t/TaskForge/internal/port/database"
)

// Store implements database.Store on SQLite. A Store bound to a transaction
// shares the transaction with every nested WithTx through savepoints.
type Store struct {
	h     *handle
	db    *sql.DB
	q     querier
	tx    *sql.Tx
	depth int
}

var _ database.Store = (*Store)(nil)

func (s *Store) bind(tx *sql.Tx, depth int) *Store {
	return &Store{h: s.h, db: s.db, q: tx, tx: tx, depth: depth}
}

// exec runs a write, retrying on SQLITE_BUSY when not inside a transaction.
func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.tx != nil {
		return s.q.ExecContext(ctx, query, args...)
	}
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.q.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

// WithTx runs fn inside a transaction, or inside a savepoint when s is
// already bound to one.
func (s *Store) WithTx(ctx context.Context, fn database.TxFunc) error {
	if s.tx != nil {
		return s.savepoint(ctx, fn)
	}

	var tx *sql.Tx
	err := retryOnBusy(ctx, func() error {
		var beginErr error
		tx, beginErr = s.db.BeginTx(ctx, nil)
		return beginErr
	})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(ctx, s.bind(tx, 0)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) savepoint(ctx context.Context, fn database.TxFunc) error {
	name := fmt.Sprintf("sp_%d", s.depth+1)
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(ctx, s.bind(s.tx, s.depth+1)); err != nil {
		if _, rbErr := s.tx.ExecContext(ctx, "ROLLBACK TO "+name); rbErr != nil {
			return fmt.Errorf("rollback to savepoint: %w (after %w)", rbErr, err)
		}
		_, _ = s.tx.ExecContext(ctx, "RELEASE "+name)
		return err
	}
	if _, err := s.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
