// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mkovardin/authgate/internal/platform/dberr"
)

// DBTX is the subset of pgx operations the repository needs. It is satisfied
// by both [pgxpool.Pool] and [pgx.Tx], so the same repository code runs inside
// and outside a unit of work.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// # User Repository

// PostgresUserRepository implements the [UserRepository] interface using pgx.
type PostgresUserRepository struct {
	db DBTX
}

// NewPostgresUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewPostgresUserRepository(db DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = "id, email, hashed_password, full_name, is_active, is_superuser, created_at, updated_at"

/*
Create persists a new user record into the users table.

Description: Inserts the account and hydrates the generated ID and timestamps
back into the entity. A unique violation on the email index surfaces as
[ErrEmailTaken].

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: ErrEmailTaken, constraint violations, or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users (email, hashed_password, full_name, is_active, is_superuser)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := repository.db.QueryRow(context, query,
		user.Email,
		user.HashedPassword,
		user.FullName,
		user.IsActive,
		user.IsSuperuser,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if dberr.IsUniqueViolation(err, "users_email_key") {
			return ErrEmailTaken
		}
		return dberr.Wrap(err, "create_user")
	}

	return nil
}

/*
FindByEmail retrieves a user record by their unique lowercased email.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated account entity
  - error: ErrUserNotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user := &User{}
	err := repository.db.QueryRow(context, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.HashedPassword,
		&user.FullName,
		&user.IsActive,
		&user.IsSuperuser,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, dberr.Wrap(err, "find_user_by_email")
	}

	return user, nil
}

/*
FindByID retrieves a user record by their primary key.

Parameters:
  - context: context.Context
  - id: int64

Returns:
  - *User: Hydrated account entity
  - error: ErrUserNotFound or database errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id int64) (*User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user := &User{}
	err := repository.db.QueryRow(context, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.HashedPassword,
		&user.FullName,
		&user.IsActive,
		&user.IsSuperuser,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, dberr.Wrap(err, "find_user_by_id")
	}

	return user, nil
}

/*
SetActive flips the account's active flag.

Parameters:
  - context: context.Context
  - id: int64
  - active: bool

Returns:
  - error: ErrUserNotFound or execution errors
*/
func (repository *PostgresUserRepository) SetActive(context context.Context, id int64, active bool) error {
	const query = `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`

	tag, err := repository.db.Exec(context, query, id, active)
	if err != nil {
		return dberr.Wrap(err, "set_active")
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

/*
SetSuperuser flips the account's superuser flag.

Parameters:
  - context: context.Context
  - id: int64
  - superuser: bool

Returns:
  - error: ErrUserNotFound or execution errors
*/
func (repository *PostgresUserRepository) SetSuperuser(context context.Context, id int64, superuser bool) error {
	const query = `UPDATE users SET is_superuser = $2, updated_at = NOW() WHERE id = $1`

	tag, err := repository.db.Exec(context, query, id, superuser)
	if err != nil {
		return dberr.Wrap(err, "set_superuser")
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}
