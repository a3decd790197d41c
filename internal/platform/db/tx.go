package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const TxKey contextKey = "db_tx"

// TxFromContext retrieves the active transaction from context, if any.
// Repositories check this before falling back to the tenant connection
// so that writes issued inside WithTx share one transaction.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(TxKey).(pgx.Tx)
	return tx
}

// WithTx runs fn inside a transaction. The transaction begins on the
// tenant-scoped connection when one is present (preserving search_path),
// otherwise directly on the pool. fn receives a context carrying the
// transaction; any error rolls back, nil commits.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	var (
		tx  pgx.Tx
		err error
	)
	if conn := ConnFromContext(ctx); conn != nil {
		tx, err = conn.Begin(ctx)
	} else {
		tx, err = pool.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, TxKey, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// TxRunner adapts WithTx for services that only need a "run this
// atomically" dependency.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, r.pool, fn)
}
