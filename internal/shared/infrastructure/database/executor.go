package database

import (
	"context"
	"database/sql"
)

// Executor runs SQL against either driver. Repositories depend on this
// interface so the same query code serves a pgx pool, a database/sql
// handle, or an open transaction.
type Executor interface {
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) (Result, error)

	// QueryRow runs a query expected to return at most one row.
	QueryRow(ctx context.Context, query string, args ...any) Row

	// Query runs a query returning any number of rows.
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Transaction is an Executor bounded by Commit/Rollback.
type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is a live database handle that can open transactions.
type Connection interface {
	Executor
	// BeginTx opens a new transaction.
	BeginTx(ctx context.Context) (Transaction, error)
	// Close releases the connection or pool.
	Close() error
	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error
	// Driver identifies the backing driver.
	Driver() Driver
}

// Row abstracts pgx.Row and *sql.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows abstracts pgx.Rows and *sql.Rows.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result abstracts the outcome of an Exec call.
type Result interface {
	RowsAffected() (int64, error)
	LastInsertId() (int64, error)
}

type resultAdapter struct{ inner sql.Result }

func (a *resultAdapter) RowsAffected() (int64, error) { return a.inner.RowsAffected() }
func (a *resultAdapter) LastInsertId() (int64, error) { return a.inner.LastInsertId() }

// WrapSQLResult adapts a database/sql result to the Result interface.
func WrapSQLResult(r sql.Result) Result {
	return &resultAdapter{inner: r}
}

type rowsAdapter struct{ inner *sql.Rows }

func (a *rowsAdapter) Next() bool             { return a.inner.Next() }
func (a *rowsAdapter) Scan(dest ...any) error { return a.inner.Scan(dest...) }
func (a *rowsAdapter) Close() error           { return a.inner.Close() }
func (a *rowsAdapter) Err() error             { return a.inner.Err() }

// WrapSQLRows adapts database/sql rows to the Rows interface.
func WrapSQLRows(r *sql.Rows) Rows {
	return &rowsAdapter{inner: r}
}
