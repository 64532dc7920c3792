// Package persistence carries transactions through context so that
// repositories join an ambient unit of work without changing their
// signatures.
package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var errNoTransaction = errors.New("no transaction in context")

type txKey struct{}

// TxInfo is the pgx transaction carried in context. Owned marks the
// scope that opened it; nested scopes see Owned=false and must not
// commit or roll back.
type TxInfo struct {
	Tx    pgx.Tx
	Owned bool
}

// WithTx returns a context carrying the given pgx transaction.
func WithTx(ctx context.Context, tx pgx.Tx, owned bool) context.Context {
	return context.WithValue(ctx, txKey{}, TxInfo{Tx: tx, Owned: owned})
}

// TxInfoFromContext reports the pgx transaction in ctx, if any.
func TxInfoFromContext(ctx context.Context) (TxInfo, bool) {
	info, ok := ctx.Value(txKey{}).(TxInfo)
	if !ok || info.Tx == nil {
		return TxInfo{}, false
	}
	return info, true
}

// DBExecutor is the subset of pgxpool.Pool and pgx.Tx that repository
// queries need.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Executor picks the ambient transaction when one is in ctx, otherwise
// the pool. Repositories call this at the top of every method.
func Executor(ctx context.Context, pool *pgxpool.Pool) DBExecutor {
	if info, ok := TxInfoFromContext(ctx); ok {
		return info.Tx
	}
	return pool
}
