// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

/*
Package storage binds the domain repositories to PostgreSQL transactions.

It implements the unit-of-work contracts of both the auth and users domains
over a single [pgx.Tx]: repositories are lazily constructed against the open
transaction, the scope commits on success and rolls back on failure, and a
nested savepoint scope is available for locally-atomic sub-operations.
*/
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mkovardin/authgate/internal/auth"
	"github.com/mkovardin/authgate/internal/users"
)

// Factory opens units of work over a shared connection pool.
type Factory struct {
	pool *pgxpool.Pool
}

// NewFactory constructs a [Factory] over the given pool.
func NewFactory(pool *pgxpool.Pool) *Factory {
	return &Factory{pool: pool}
}

// Begin opens a transaction and wraps it in a [UnitOfWork].
func (factory *Factory) Begin(context context.Context) (*UnitOfWork, error) {
	tx, err := factory.pool.Begin(context)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to begin transaction: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

// AuthBegin adapts the factory to the auth domain's transaction contract.
func (factory *Factory) AuthBegin() auth.BeginFunc {
	return func(ctx context.Context) (auth.UnitOfWork, error) {
		return factory.Begin(ctx)
	}
}

// UsersBegin adapts the factory to the users domain's transaction contract.
func (factory *Factory) UsersBegin() users.BeginFunc {
	return func(ctx context.Context) (users.UnitOfWork, error) {
		return factory.Begin(ctx)
	}
}

// UnitOfWork scopes one PostgreSQL transaction. It satisfies both
// [auth.UnitOfWork] and [users.UnitOfWork]; repositories are lazily bound to
// the open transaction and cached for the scope's lifetime.
type UnitOfWork struct {
	tx pgx.Tx

	accounts *auth.PostgresAccountRepository
	sessions *auth.PostgresSessionRepository
	refresh  *auth.PostgresRefreshRepository
	userRepo *users.PostgresUserRepository
}

// Accounts returns the narrow account lookup bound to this transaction.
func (uow *UnitOfWork) Accounts() auth.UserLookup {
	if uow.accounts == nil {
		uow.accounts = auth.NewPostgresAccountRepository(uow.tx)
	}
	return uow.accounts
}

// Sessions returns the session repository bound to this transaction.
func (uow *UnitOfWork) Sessions() auth.SessionRepository {
	if uow.sessions == nil {
		uow.sessions = auth.NewPostgresSessionRepository(uow.tx)
	}
	return uow.sessions
}

// Refresh returns the refresh-credential repository bound to this transaction.
func (uow *UnitOfWork) Refresh() auth.RefreshRepository {
	if uow.refresh == nil {
		uow.refresh = auth.NewPostgresRefreshRepository(uow.tx)
	}
	return uow.refresh
}

// Users returns the full account repository bound to this transaction.
func (uow *UnitOfWork) Users() users.UserRepository {
	if uow.userRepo == nil {
		uow.userRepo = users.NewPostgresUserRepository(uow.tx)
	}
	return uow.userRepo
}

// Commit makes the transaction's effects durable.
func (uow *UnitOfWork) Commit(context context.Context) error {
	if err := uow.tx.Commit(context); err != nil {
		return fmt.Errorf("storage: commit failed: %w", err)
	}
	return nil
}

// Rollback discards the transaction. Calling it after Commit (the usual
// deferred-cleanup pattern) is a no-op.
func (uow *UnitOfWork) Rollback(context context.Context) error {
	if err := uow.tx.Rollback(context); err != nil {
		if errors.Is(err, pgx.ErrTxClosed) {
			return nil
		}
		return fmt.Errorf("storage: rollback failed: %w", err)
	}
	return nil
}

// Savepoint runs fn inside a nested savepoint scope.
//
// A failure inside fn rolls back to the savepoint and re-raises the error
// without aborting the enclosing transaction, so the caller can still write
// and commit (the reuse-detection revocation path depends on this).
func (uow *UnitOfWork) Savepoint(context context.Context, fn func(context.Context) error) error {
	if _, err := uow.tx.Exec(context, "SAVEPOINT uow_scope"); err != nil {
		return fmt.Errorf("storage: savepoint failed: %w", err)
	}

	if err := fn(context); err != nil {
		if _, rollbackErr := uow.tx.Exec(context, "ROLLBACK TO SAVEPOINT uow_scope"); rollbackErr != nil {
			return fmt.Errorf("storage: savepoint rollback failed: %w", rollbackErr)
		}
		return err
	}

	if _, err := uow.tx.Exec(context, "RELEASE SAVEPOINT uow_scope"); err != nil {
		return fmt.Errorf("storage: savepoint release failed: %w", err)
	}
	return nil
}
