// Package application holds the cross-context application kernel:
// CQRS contracts, the unit-of-work helper, and event metadata plumbing.
package application

import (
	"context"
	"errors"
)

// UnitOfWork scopes a set of repository calls to one transaction. Begin
// returns a context the repositories recognise; Commit and Rollback act
// on the transaction that context carries.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFunc is the body executed inside the transaction.
type UnitOfWorkFunc func(ctx context.Context) error

// WithUnitOfWork runs fn inside a transaction, committing on success
// and rolling back on error. The fn error takes precedence; a rollback
// failure is joined to it.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn UnitOfWorkFunc) error {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(txCtx); err != nil {
		if rbErr := uow.Rollback(txCtx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return uow.Commit(txCtx)
}
