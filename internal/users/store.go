// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package users

import "context"

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		Create persists a brand-new user account to the storage.

		Parameters:
		  - context: context.Context
		  - user: *User (ID and timestamps are filled in on success)

		Returns:
		  - error: ErrEmailTaken on unique violation, other persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		FindByEmail returns the account with the given lowercased email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: ErrUserNotFound or database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - *User: Hydrated entity
		  - error: ErrUserNotFound or database retrieval failures
	*/
	FindByID(context context.Context, id int64) (*User, error)

	/*
		SetActive flips the account's active flag.

		Parameters:
		  - context: context.Context
		  - id: int64
		  - active: bool

		Returns:
		  - error: ErrUserNotFound or persistence failures
	*/
	SetActive(context context.Context, id int64, active bool) error

	/*
		SetSuperuser flips the account's superuser flag.

		Parameters:
		  - context: context.Context
		  - id: int64
		  - superuser: bool

		Returns:
		  - error: ErrUserNotFound or persistence failures
	*/
	SetSuperuser(context context.Context, id int64, superuser bool) error
}

// # Transaction Boundary

// UnitOfWork scopes one logical transaction over the users domain.
//
// The repository is lazily bound to the open transaction. Commit on success,
// Rollback on any failure; Rollback after Commit is a no-op.
type UnitOfWork interface {
	Users() UserRepository
	Commit(context context.Context) error
	Rollback(context context.Context) error
}

// BeginFunc opens a new [UnitOfWork]. Injected into the service so tests can
// substitute an in-memory implementation.
type BeginFunc func(context context.Context) (UnitOfWork, error)
