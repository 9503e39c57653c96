// Package pgxutil runs native pgx work on connections borrowed from a database/sql pool.
package pgxutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// Common transaction modes.
var (
	// ReadWrite uses the server's default isolation.
	ReadWrite = pgx.TxOptions{AccessMode: pgx.ReadWrite}
	// Snapshot gives a read-only transaction a single consistent view across statements.
	Snapshot = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
)

// WithConn borrows one connection from db and runs fn on the pgx connection behind it.
// db must be opened with the pgx stdlib driver.
func WithConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) (err error) {
	if db == nil {
		return errors.New("pgxutil: nil database handle")
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, sql.ErrConnDone) {
			err = errors.Join(err, fmt.Errorf("release conn: %w", cerr))
		}
	}()

	return conn.Raw(func(dc any) error {
		std, ok := dc.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("pgxutil: driver connection is %T, not *stdlib.Conn", dc)
		}
		return fn(std.Conn())
	})
}

// WithTx runs fn inside a transaction opened with opts. The transaction commits
// when fn returns nil and rolls back otherwise.
func WithTx(ctx context.Context, db *sql.DB, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	return WithConn(ctx, db, func(conn *pgx.Conn) (err error) {
		tx, err := conn.BeginTx(ctx, opts)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			if rerr := tx.Rollback(ctx); rerr != nil && !errors.Is(rerr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rerr))
			}
		}()
		if err = fn(tx); err != nil {
			return err
		}
		if err = tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}
