// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

// PostgreSQL implementations of the auth repositories.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mkovardin/authgate/internal/platform/apperr"
)

// DBTX is the subset of pgx operations the repositories need. It is satisfied
// by both [pgxpool.Pool] and [pgx.Tx], so the same repository code runs inside
// and outside a unit of work.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// # Account Lookup

// PostgresAccountRepository implements the [UserLookup] capability over the
// users table. It reads only the narrow projection the auth core consumes.
type PostgresAccountRepository struct {
	db DBTX
}

// NewPostgresAccountRepository creates a new PostgreSQL implementation of UserLookup.
func NewPostgresAccountRepository(db DBTX) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

/*
FindByEmail retrieves the account projection by lowercased email.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *Account: Narrow projection
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresAccountRepository) FindByEmail(context context.Context, email string) (*Account, error) {
	const query = `SELECT id, email, hashed_password, is_active FROM users WHERE email = $1`

	account := &Account{}
	err := repository.db.QueryRow(context, query, email).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.IsActive,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_email_failed: %w", err)
	}

	return account, nil
}

/*
FindByID retrieves the account projection by primary key.

Parameters:
  - context: context.Context
  - id: int64

Returns:
  - *Account: Narrow projection
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresAccountRepository) FindByID(context context.Context, id int64) (*Account, error) {
	const query = `SELECT id, email, hashed_password, is_active FROM users WHERE id = $1`

	account := &Account{}
	err := repository.db.QueryRow(context, query, id).Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.IsActive,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("postgres_account_repo_find_by_id_failed: %w", err)
	}

	return account, nil
}

/*
UpdatePassword replaces only the account's password verifier.

Parameters:
  - context: context.Context
  - userID: int64
  - newHash: string

Returns:
  - error: Execution errors
*/
func (repository *PostgresAccountRepository) UpdatePassword(context context.Context, userID int64, newHash string) error {
	const query = `UPDATE users SET hashed_password = $2, updated_at = NOW() WHERE id = $1`

	_, err := repository.db.Exec(context, query, userID, newHash)
	if err != nil {
		return fmt.Errorf("postgres_account_repo_update_password_failed: %w", err)
	}

	return nil
}

// # Session Repository

// PostgresSessionRepository implements the [SessionRepository] interface.
type PostgresSessionRepository struct {
	db DBTX
}

// NewPostgresSessionRepository creates a new PostgreSQL implementation of SessionRepository.
func NewPostgresSessionRepository(db DBTX) *PostgresSessionRepository {
	return &PostgresSessionRepository{db: db}
}

const sessionColumns = "id, session_id, user_id, user_agent, ip_address, created_at, last_seen_at, revoked_at, revoked_reason"

/*
Create persists a new session record into the authsessions table.

Parameters:
  - context: context.Context
  - session: *Session

Returns:
  - error: Storage failures
*/
func (repository *PostgresSessionRepository) Create(context context.Context, session *Session) error {
	const query = `
		INSERT INTO authsessions (session_id, user_id, user_agent, ip_address, last_seen_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := repository.db.QueryRow(context, query,
		session.SessionID,
		session.UserID,
		session.UserAgent,
		session.IPAddress,
		session.LastSeenAt,
	).Scan(&session.ID, &session.CreatedAt)

	if err != nil {
		return fmt.Errorf("postgres_session_repo_create_failed: %w", err)
	}

	return nil
}

/*
GetBySessionID retrieves a session by its public identifier.

Parameters:
  - context: context.Context
  - sessionID: uuid.UUID

Returns:
  - *Session: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresSessionRepository) GetBySessionID(context context.Context, sessionID uuid.UUID) (*Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM authsessions WHERE session_id = $1`

	session := &Session{}
	err := repository.db.QueryRow(context, query, sessionID).Scan(
		&session.ID,
		&session.SessionID,
		&session.UserID,
		&session.UserAgent,
		&session.IPAddress,
		&session.CreatedAt,
		&session.LastSeenAt,
		&session.RevokedAt,
		&session.RevokedReason,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Session")
		}
		return nil, fmt.Errorf("postgres_session_repo_get_failed: %w", err)
	}

	return session, nil
}

/*
ListActiveByUser returns all non-revoked sessions for the user, most recently
seen first.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - []*Session: Possibly empty slice
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) ListActiveByUser(context context.Context, userID int64) ([]*Session, error) {
	const query = `
		SELECT ` + sessionColumns + `
		FROM authsessions
		WHERE user_id = $1 AND revoked_at IS NULL
		ORDER BY last_seen_at DESC`

	rows, err := repository.db.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_session_repo_list_failed: %w", err)
	}
	defer rows.Close()

	sessions := make([]*Session, 0)
	for rows.Next() {
		session := &Session{}
		err := rows.Scan(
			&session.ID,
			&session.SessionID,
			&session.UserID,
			&session.UserAgent,
			&session.IPAddress,
			&session.CreatedAt,
			&session.LastSeenAt,
			&session.RevokedAt,
			&session.RevokedReason,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres_session_repo_scan_failed: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_session_repo_rows_failed: %w", err)
	}

	return sessions, nil
}

/*
Touch advances last_seen_at on a non-revoked session.

Description: GREATEST keeps last_seen_at monotonic even if clocks or
concurrent rotations deliver timestamps out of order.

Parameters:
  - context: context.Context
  - sessionID: uuid.UUID
  - when: time.Time

Returns:
  - int64: Affected row count (0 or 1)
  - error: Execution errors
*/
func (repository *PostgresSessionRepository) Touch(context context.Context, sessionID uuid.UUID, when time.Time) (int64, error) {
	const query = `
		UPDATE authsessions
		SET last_seen_at = GREATEST(last_seen_at, $2)
		WHERE session_id = $1 AND revoked_at IS NULL`

	tag, err := repository.db.Exec(context, query, sessionID, when)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_touch_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

/*
RevokeSession marks a specific session as revoked. Idempotent: the WHERE
predicate leaves an already-revoked row (and its original reason) untouched.

Parameters:
  - context: context.Context
  - sessionID: uuid.UUID
  - reason: RevokeReason
  - when: time.Time

Returns:
  - error: Revocation failures
*/
func (repository *PostgresSessionRepository) RevokeSession(context context.Context, sessionID uuid.UUID, reason RevokeReason, when time.Time) error {
	const query = `
		UPDATE authsessions
		SET revoked_at = $2, revoked_reason = $3
		WHERE session_id = $1 AND revoked_at IS NULL`

	_, err := repository.db.Exec(context, query, sessionID, when, reason)
	if err != nil {
		return fmt.Errorf("postgres_session_repo_revoke_failed: %w", err)
	}

	return nil
}

/*
RevokeAllForUser marks all active sessions for a user as revoked.

Parameters:
  - context: context.Context
  - userID: int64
  - reason: RevokeReason
  - when: time.Time

Returns:
  - int64: Affected row count
  - error: Batch revocation failures
*/
func (repository *PostgresSessionRepository) RevokeAllForUser(context context.Context, userID int64, reason RevokeReason, when time.Time) (int64, error) {
	const query = `
		UPDATE authsessions
		SET revoked_at = $2, revoked_reason = $3
		WHERE user_id = $1 AND revoked_at IS NULL`

	tag, err := repository.db.Exec(context, query, userID, when, reason)
	if err != nil {
		return 0, fmt.Errorf("postgres_session_repo_revoke_all_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

// # Refresh Repository

// PostgresRefreshRepository implements the [RefreshRepository] interface.
type PostgresRefreshRepository struct {
	db DBTX
}

// NewPostgresRefreshRepository creates a new PostgreSQL implementation of RefreshRepository.
func NewPostgresRefreshRepository(db DBTX) *PostgresRefreshRepository {
	return &PostgresRefreshRepository{db: db}
}

const refreshColumns = "id, jti, user_id, family_id, session_id, token_hash, issued_at, expires_at, used_at, revoked_at, revoked_reason, replaced_by_jti"

func scanRefresh(row pgx.Row) (*RefreshToken, error) {
	token := &RefreshToken{}
	err := row.Scan(
		&token.ID,
		&token.JTI,
		&token.UserID,
		&token.FamilyID,
		&token.SessionID,
		&token.TokenHash,
		&token.IssuedAt,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.RevokedAt,
		&token.RevokedReason,
		&token.ReplacedByJTI,
	)
	if err != nil {
		return nil, err
	}
	return token, nil
}

/*
Create persists a new refresh credential row.

Parameters:
  - context: context.Context
  - token: *RefreshToken

Returns:
  - error: Storage failures (including token_hash unique violations)
*/
func (repository *PostgresRefreshRepository) Create(context context.Context, token *RefreshToken) error {
	const query = `
		INSERT INTO refreshtokens (jti, user_id, family_id, session_id, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := repository.db.QueryRow(context, query,
		token.JTI,
		token.UserID,
		token.FamilyID,
		token.SessionID,
		token.TokenHash,
		token.IssuedAt,
		token.ExpiresAt,
	).Scan(&token.ID)

	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_create_failed: %w", err)
	}

	return nil
}

/*
GetByJTI retrieves a refresh credential by its unique identifier.

Parameters:
  - context: context.Context
  - jti: uuid.UUID

Returns:
  - *RefreshToken: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresRefreshRepository) GetByJTI(context context.Context, jti uuid.UUID) (*RefreshToken, error) {
	const query = `SELECT ` + refreshColumns + ` FROM refreshtokens WHERE jti = $1`

	token, err := scanRefresh(repository.db.QueryRow(context, query, jti))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Refresh token")
		}
		return nil, fmt.Errorf("postgres_refresh_repo_get_by_jti_failed: %w", err)
	}

	return token, nil
}

/*
GetActiveByHash retrieves the active credential matching the token hash.

Description: Applies the active predicate (unused, unrevoked, unexpired)
directly in the WHERE clause.

Parameters:
  - context: context.Context
  - tokenHash: string
  - now: time.Time

Returns:
  - *RefreshToken: Hydrated entity
  - error: apperr.NotFound or execution errors
*/
func (repository *PostgresRefreshRepository) GetActiveByHash(context context.Context, tokenHash string, now time.Time) (*RefreshToken, error) {
	const query = `
		SELECT ` + refreshColumns + `
		FROM refreshtokens
		WHERE token_hash = $1 AND used_at IS NULL AND revoked_at IS NULL AND expires_at > $2`

	token, err := scanRefresh(repository.db.QueryRow(context, query, tokenHash, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Refresh token")
		}
		return nil, fmt.Errorf("postgres_refresh_repo_get_active_failed: %w", err)
	}

	return token, nil
}

/*
RotateActive performs the atomic rotation in one statement.

Description: The UPDATE's predicate (hash match, unused, unrevoked, unexpired)
plus the row-level write lock linearize concurrent redemption attempts: only
one observer sees a non-empty RETURNING, and the loser's INSERT never runs
because the CTE produced no row. The token_hash unique index additionally
guarantees no double-insert.

Parameters:
  - context: context.Context
  - oldHash: string
  - newJTI: uuid.UUID
  - newHash: string
  - issuedAt: time.Time
  - expiresAt: time.Time
  - now: time.Time

Returns:
  - *RefreshToken: The inserted successor
  - error: ErrRefreshNotActive when no active row matched, else failures
*/
func (repository *PostgresRefreshRepository) RotateActive(context context.Context, oldHash string, newJTI uuid.UUID, newHash string, issuedAt, expiresAt, now time.Time) (*RefreshToken, error) {
	const query = `
		WITH prior AS (
			UPDATE refreshtokens
			SET used_at = $6, replaced_by_jti = $2, revoked_reason = 'rotated'
			WHERE token_hash = $1 AND used_at IS NULL AND revoked_at IS NULL AND expires_at > $6
			RETURNING user_id, family_id, session_id
		)
		INSERT INTO refreshtokens (jti, user_id, family_id, session_id, token_hash, issued_at, expires_at)
		SELECT $2, prior.user_id, prior.family_id, prior.session_id, $3, $4, $5
		FROM prior
		RETURNING ` + refreshColumns

	token, err := scanRefresh(repository.db.QueryRow(context, query,
		oldHash, newJTI, newHash, issuedAt, expiresAt, now,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefreshNotActive
		}
		return nil, fmt.Errorf("postgres_refresh_repo_rotate_failed: %w", err)
	}

	return token, nil
}

/*
RevokeByJTI revokes a single credential. Idempotent.

Parameters:
  - context: context.Context
  - jti: uuid.UUID
  - reason: RevokeReason
  - when: time.Time

Returns:
  - error: Revocation failures
*/
func (repository *PostgresRefreshRepository) RevokeByJTI(context context.Context, jti uuid.UUID, reason RevokeReason, when time.Time) error {
	const query = `
		UPDATE refreshtokens
		SET revoked_at = $2, revoked_reason = $3
		WHERE jti = $1 AND revoked_at IS NULL`

	_, err := repository.db.Exec(context, query, jti, when, reason)
	if err != nil {
		return fmt.Errorf("postgres_refresh_repo_revoke_by_jti_failed: %w", err)
	}

	return nil
}

/*
RevokeFamily revokes every non-revoked credential in the family.

Parameters:
  - context: context.Context
  - familyID: uuid.UUID
  - reason: RevokeReason
  - when: time.Time

Returns:
  - int64: Affected row count
  - error: Batch revocation failures
*/
func (repository *PostgresRefreshRepository) RevokeFamily(context context.Context, familyID uuid.UUID, reason RevokeReason, when time.Time) (int64, error) {
	const query = `
		UPDATE refreshtokens
		SET revoked_at = $2, revoked_reason = $3
		WHERE family_id = $1 AND revoked_at IS NULL`

	tag, err := repository.db.Exec(context, query, familyID, when, reason)
	if err != nil {
		return 0, fmt.Errorf("postgres_refresh_repo_revoke_family_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

/*
RevokeBySession revokes every non-revoked credential bound to the session.

Parameters:
  - context: context.Context
  - sessionID: uuid.UUID
  - reason: RevokeReason
  - when: time.Time

Returns:
  - int64: Affected row count
  - error: Batch revocation failures
*/
func (repository *PostgresRefreshRepository) RevokeBySession(context context.Context, sessionID uuid.UUID, reason RevokeReason, when time.Time) (int64, error) {
	const query = `
		UPDATE refreshtokens
		SET revoked_at = $2, revoked_reason = $3
		WHERE session_id = $1 AND revoked_at IS NULL`

	tag, err := repository.db.Exec(context, query, sessionID, when, reason)
	if err != nil {
		return 0, fmt.Errorf("postgres_refresh_repo_revoke_by_session_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}

/*
RevokeAllForUser revokes every non-revoked credential owned by the user.

Parameters:
  - context: context.Context
  - userID: int64
  - reason: RevokeReason
  - when: time.Time

Returns:
  - int64: Affected row count
  - error: Batch revocation failures
*/
func (repository *PostgresRefreshRepository) RevokeAllForUser(context context.Context, userID int64, reason RevokeReason, when time.Time) (int64, error) {
	const query = `
		UPDATE refreshtokens
		SET revoked_at = $2, revoked_reason = $3
		WHERE user_id = $1 AND revoked_at IS NULL`

	tag, err := repository.db.Exec(context, query, userID, when, reason)
	if err != nil {
		return 0, fmt.Errorf("postgres_refresh_repo_revoke_all_failed: %w", err)
	}

	return tag.RowsAffected(), nil
}
