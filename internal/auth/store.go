// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// # Account Lookup

// UserLookup is the narrow capability through which the auth core reads and
// mutates user credentials. The users package owns the full record.
type UserLookup interface {

	/*
		FindByEmail returns the account projection for the given lowercased email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *Account: Narrow projection
		  - error: Not-found or database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*Account, error)

	/*
		FindByID returns the account projection for the given ID.

		Parameters:
		  - context: context.Context
		  - id: int64

		Returns:
		  - *Account: Narrow projection
		  - error: Not-found or database retrieval failures
	*/
	FindByID(context context.Context, id int64) (*Account, error)

	/*
		UpdatePassword replaces only the account's password verifier.

		Parameters:
		  - context: context.Context
		  - userID: int64
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, userID int64, newHash string) error
}

// # Session Data Access

// SessionRepository defines the data access contract for device sessions.
// All operations run against the current transaction.
type SessionRepository interface {

	/*
		Create persists a new session row for an authenticated login.

		Parameters:
		  - context: context.Context
		  - session: *Session (ID and CreatedAt are filled in on success)

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, session *Session) error

	/*
		GetBySessionID returns the session with the given public identifier.

		Parameters:
		  - context: context.Context
		  - sessionID: uuid.UUID

		Returns:
		  - *Session: Hydrated entity
		  - error: Not-found or database retrieval failures
	*/
	GetBySessionID(context context.Context, sessionID uuid.UUID) (*Session, error)

	/*
		ListActiveByUser returns all non-revoked sessions for the user,
		ordered by last_seen_at descending.

		Parameters:
		  - context: context.Context
		  - userID: int64

		Returns:
		  - []*Session: Possibly empty slice
		  - error: Database retrieval failures
	*/
	ListActiveByUser(context context.Context, userID int64) ([]*Session, error)

	/*
		Touch advances last_seen_at on a non-revoked session. last_seen_at is
		monotonic: an earlier timestamp never overwrites a later one.

		Parameters:
		  - context: context.Context
		  - sessionID: uuid.UUID
		  - when: time.Time

		Returns:
		  - int64: Affected row count (0 or 1)
		  - error: Persistence failures
	*/
	Touch(context context.Context, sessionID uuid.UUID, when time.Time) (int64, error)

	/*
		RevokeSession marks a session as permanently invalidated. Idempotent:
		an already-revoked session is left untouched.

		Parameters:
		  - context: context.Context
		  - sessionID: uuid.UUID
		  - reason: RevokeReason
		  - when: time.Time

		Returns:
		  - error: Persistence failures
	*/
	RevokeSession(context context.Context, sessionID uuid.UUID, reason RevokeReason, when time.Time) error

	/*
		RevokeAllForUser revokes every non-revoked session belonging to the user.

		Parameters:
		  - context: context.Context
		  - userID: int64
		  - reason: RevokeReason
		  - when: time.Time

		Returns:
		  - int64: Affected row count
		  - error: Persistence failures
	*/
	RevokeAllForUser(context context.Context, userID int64, reason RevokeReason, when time.Time) (int64, error)
}

// # Refresh Credential Data Access

// RefreshRepository defines the data access contract for refresh credentials,
// including the atomic rotation procedure.
type RefreshRepository interface {

	/*
		Create persists a new refresh credential row.

		Parameters:
		  - context: context.Context
		  - token: *RefreshToken (ID is filled in on success)

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, token *RefreshToken) error

	/*
		GetByJTI returns the credential with the given unique identifier.

		Parameters:
		  - context: context.Context
		  - jti: uuid.UUID

		Returns:
		  - *RefreshToken: Hydrated entity
		  - error: Not-found or database retrieval failures
	*/
	GetByJTI(context context.Context, jti uuid.UUID) (*RefreshToken, error)

	/*
		GetActiveByHash returns the credential matching the token hash, applying
		the active predicate (unused, unrevoked, unexpired) at the given instant.

		Parameters:
		  - context: context.Context
		  - tokenHash: string
		  - now: time.Time

		Returns:
		  - *RefreshToken: Hydrated entity
		  - error: Not-found or database retrieval failures
	*/
	GetActiveByHash(context context.Context, tokenHash string, now time.Time) (*RefreshToken, error)

	/*
		RotateActive performs the atomic rotation: it transitions the active row
		matching oldHash to used (reason "rotated", successor recorded) and
		inserts the successor row inheriting user, family, and session.

		Two concurrent rotations of the same credential result in exactly one
		success; the loser fails with ErrRefreshNotActive and never inserts.

		Parameters:
		  - context: context.Context
		  - oldHash: string (hash of the presented credential)
		  - newJTI: uuid.UUID
		  - newHash: string
		  - issuedAt: time.Time
		  - expiresAt: time.Time
		  - now: time.Time

		Returns:
		  - *RefreshToken: The inserted successor
		  - error: ErrRefreshNotActive when no active row matched, else failures
	*/
	RotateActive(context context.Context, oldHash string, newJTI uuid.UUID, newHash string, issuedAt, expiresAt, now time.Time) (*RefreshToken, error)

	/*
		RevokeByJTI revokes a single credential. Idempotent.

		Parameters:
		  - context: context.Context
		  - jti: uuid.UUID
		  - reason: RevokeReason
		  - when: time.Time

		Returns:
		  - error: Persistence failures
	*/
	RevokeByJTI(context context.Context, jti uuid.UUID, reason RevokeReason, when time.Time) error

	/*
		RevokeFamily revokes every non-revoked credential in the family.

		Parameters:
		  - context: context.Context
		  - familyID: uuid.UUID
		  - reason: RevokeReason
		  - when: time.Time

		Returns:
		  - int64: Affected row count
		  - error: Persistence failures
	*/
	RevokeFamily(context context.Context, familyID uuid.UUID, reason RevokeReason, when time.Time) (int64, error)

	/*
		RevokeBySession revokes every non-revoked credential bound to the session.

		Parameters:
		  - context: context.Context
		  - sessionID: uuid.UUID
		  - reason: RevokeReason
		  - when: time.Time

		Returns:
		  - int64: Affected row count
		  - error: Persistence failures
	*/
	RevokeBySession(context context.Context, sessionID uuid.UUID, reason RevokeReason, when time.Time) (int64, error)

	/*
		RevokeAllForUser revokes every non-revoked credential owned by the user.

		Parameters:
		  - context: context.Context
		  - userID: int64
		  - reason: RevokeReason
		  - when: time.Time

		Returns:
		  - int64: Affected row count
		  - error: Persistence failures
	*/
	RevokeAllForUser(context context.Context, userID int64, reason RevokeReason, when time.Time) (int64, error)
}

// # Volatile Data Access

// ResetTokenRepository defines the contract for storing volatile password
// reset tokens. Backed by Redis; never used for revocation state.
type ResetTokenRepository interface {

	/*
		Set stores a reset token associated with a userID for a limited duration.

		Parameters:
		  - context: context.Context
		  - token: string
		  - userID: int64
		  - ttl: time.Duration

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, token string, userID int64, ttl time.Duration) error

	/*
		Get retrieves the userID associated with a given reset token.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - int64: UserID
		  - error: Not-found or retrieval failures
	*/
	Get(context context.Context, token string) (int64, error)

	/*
		Delete removes a reset token after successful use.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - error: Persistence failures
	*/
	Delete(context context.Context, token string) error
}

// # Transaction Boundary

// UnitOfWork scopes one logical transaction over the auth domain.
//
// Repositories are lazily bound to the open transaction. Commit on success,
// Rollback on any failure; Rollback after Commit is a no-op, which lets the
// service commit early (reuse-detection revocations) under a deferred Rollback.
type UnitOfWork interface {
	Accounts() UserLookup
	Sessions() SessionRepository
	Refresh() RefreshRepository
	Commit(context context.Context) error
	Rollback(context context.Context) error

	/*
		Savepoint runs fn inside a nested savepoint scope: released on success,
		rolled back (and the error re-raised) on failure, without poisoning the
		enclosing transaction.

		Parameters:
		  - context: context.Context
		  - fn: func(context.Context) error

		Returns:
		  - error: fn's error after savepoint rollback, or savepoint failures
	*/
	Savepoint(context context.Context, fn func(context.Context) error) error
}

// BeginFunc opens a new [UnitOfWork]. Injected into the service so tests can
// substitute an in-memory implementation.
type BeginFunc func(context context.Context) (UnitOfWork, error)
