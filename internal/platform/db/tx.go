package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const (
	// DBTxKey is the context key under which an open transaction is stored.
	DBTxKey contextKey = "db_tx"
)

// TxFromContext retrieves the active transaction from context, or nil when
// the context carries none.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the pool and returns a derived context that
// carries it. Repositories pick the transaction up through TxFromContext so
// that multiple repository calls share the same transaction.
func WithTx(ctx context.Context, pool *pgxpool.Pool) (context.Context, pgx.Tx, error) {
	if pool == nil {
		return ctx, nil, fmt.Errorf("no database connection in context")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}

	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// TxRunner runs a function inside a database transaction. Services depend on
// this interface rather than on the pool so tests can substitute a pass-through
// implementation.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PoolTxRunner is the production TxRunner backed by a pgx connection pool.
type PoolTxRunner struct {
	pool *pgxpool.Pool
}

// NewPoolTxRunner creates a TxRunner backed by the given pool.
func NewPoolTxRunner(pool *pgxpool.Pool) *PoolTxRunner {
	return &PoolTxRunner{pool: pool}
}

// RunInTx begins a transaction, stores it in the context passed to fn, and
// commits if fn returns nil. Any error from fn rolls the transaction back and
// is returned unchanged so callers can match on sentinel errors.
func (r *PoolTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, tx, err := WithTx(ctx, r.pool)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
