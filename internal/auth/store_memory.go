// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkovardin/authgate/internal/platform/apperr"
)

// MemoryStore is an in-memory implementation of the auth storage contracts.
//
// It honours the same invariants as the PostgreSQL implementation: the active
// predicate is evaluated from local columns, at most one credential per family
// is active, and rotation is linearized under the store mutex so concurrent
// redemptions of one credential produce exactly one success.
//
// Intended for tests and local development; state is lost on process exit.
type MemoryStore struct {
	mu sync.Mutex

	accounts map[int64]*Account
	sessions []*Session
	refresh  []*RefreshToken

	nextSessionID int64
	nextRefreshID int64
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[int64]*Account),
	}
}

// AddAccount seeds an account. Used by tests and local fixtures.
func (store *MemoryStore) AddAccount(account *Account) {
	store.mu.Lock()
	defer store.mu.Unlock()
	clone := *account
	store.accounts[account.ID] = &clone
}

// Begin opens a unit of work over the store.
//
// Mutations apply immediately under the store mutex; Commit and Rollback are
// both no-ops, which satisfies the contract that Rollback after Commit does
// nothing. Rotation atomicity is provided by the mutex, not by undo logs.
func (store *MemoryStore) Begin(context context.Context) (UnitOfWork, error) {
	return &memoryUnitOfWork{store: store}, nil
}

// memoryUnitOfWork binds the repositories to the shared store.
type memoryUnitOfWork struct {
	store *MemoryStore
}

func (uow *memoryUnitOfWork) Accounts() UserLookup { return &memoryAccountRepo{store: uow.store} }

func (uow *memoryUnitOfWork) Sessions() SessionRepository { return &memorySessionRepo{store: uow.store} }

func (uow *memoryUnitOfWork) Refresh() RefreshRepository { return &memoryRefreshRepo{store: uow.store} }

func (uow *memoryUnitOfWork) Commit(context.Context) error { return nil }

func (uow *memoryUnitOfWork) Rollback(context.Context) error { return nil }

func (uow *memoryUnitOfWork) Savepoint(context context.Context, fn func(context.Context) error) error {
	return fn(context)
}

// # Account Lookup

type memoryAccountRepo struct {
	store *MemoryStore
}

func (repository *memoryAccountRepo) FindByEmail(_ context.Context, email string) (*Account, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	for _, account := range repository.store.accounts {
		if account.Email == email {
			clone := *account
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repository *memoryAccountRepo) FindByID(_ context.Context, id int64) (*Account, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	account, found := repository.store.accounts[id]
	if !found {
		return nil, apperr.NotFound("User")
	}
	clone := *account
	return &clone, nil
}

func (repository *memoryAccountRepo) UpdatePassword(_ context.Context, userID int64, newHash string) error {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	if account, found := repository.store.accounts[userID]; found {
		account.PasswordHash = newHash
	}
	return nil
}

// # Session Repository

type memorySessionRepo struct {
	store *MemoryStore
}

func (repository *memorySessionRepo) Create(_ context.Context, session *Session) error {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	repository.store.nextSessionID++
	session.ID = repository.store.nextSessionID
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	clone := *session
	repository.store.sessions = append(repository.store.sessions, &clone)
	return nil
}

func (repository *memorySessionRepo) GetBySessionID(_ context.Context, sessionID uuid.UUID) (*Session, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	for _, session := range repository.store.sessions {
		if session.SessionID == sessionID {
			clone := *session
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Session")
}

func (repository *memorySessionRepo) ListActiveByUser(_ context.Context, userID int64) ([]*Session, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	active := make([]*Session, 0)
	for _, session := range repository.store.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			clone := *session
			active = append(active, &clone)
		}
	}

	// Most recently seen first.
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			if active[j].LastSeenAt.After(active[i].LastSeenAt) {
				active[i], active[j] = active[j], active[i]
			}
		}
	}

	return active, nil
}

func (repository *memorySessionRepo) Touch(_ context.Context, sessionID uuid.UUID, when time.Time) (int64, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	for _, session := range repository.store.sessions {
		if session.SessionID == sessionID && session.RevokedAt == nil {
			// last_seen_at stays monotonic.
			if when.After(session.LastSeenAt) {
				session.LastSeenAt = when
			}
			return 1, nil
		}
	}
	return 0, nil
}

func (repository *memorySessionRepo) RevokeSession(_ context.Context, sessionID uuid.UUID, reason RevokeReason, when time.Time) error {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	for _, session := range repository.store.sessions {
		if session.SessionID == sessionID && session.RevokedAt == nil {
			revokedAt := when
			revokedReason := reason
			session.RevokedAt = &revokedAt
			session.RevokedReason = &revokedReason
		}
	}
	return nil
}

func (repository *memorySessionRepo) RevokeAllForUser(_ context.Context, userID int64, reason RevokeReason, when time.Time) (int64, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	var affected int64
	for _, session := range repository.store.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			revokedAt := when
			revokedReason := reason
			session.RevokedAt = &revokedAt
			session.RevokedReason = &revokedReason
			affected++
		}
	}
	return affected, nil
}

// # Refresh Repository

type memoryRefreshRepo struct {
	store *MemoryStore
}

func (repository *memoryRefreshRepo) Create(_ context.Context, token *RefreshToken) error {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	repository.store.nextRefreshID++
	token.ID = repository.store.nextRefreshID

	clone := *token
	repository.store.refresh = append(repository.store.refresh, &clone)
	return nil
}

func (repository *memoryRefreshRepo) GetByJTI(_ context.Context, jti uuid.UUID) (*RefreshToken, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	for _, token := range repository.store.refresh {
		if token.JTI == jti {
			clone := *token
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Refresh token")
}

func (repository *memoryRefreshRepo) GetActiveByHash(_ context.Context, tokenHash string, now time.Time) (*RefreshToken, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	for _, token := range repository.store.refresh {
		if token.TokenHash == tokenHash && token.Active(now) {
			clone := *token
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Refresh token")
}

func (repository *memoryRefreshRepo) RotateActive(_ context.Context, oldHash string, newJTI uuid.UUID, newHash string, issuedAt, expiresAt, now time.Time) (*RefreshToken, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	// Find the single active predecessor; the whole transition happens under
	// the mutex, so a concurrent attempt observes either the unused row or the
	// used one, never an intermediate state.
	var prior *RefreshToken
	for _, token := range repository.store.refresh {
		if token.TokenHash == oldHash && token.Active(now) {
			prior = token
			break
		}
	}
	if prior == nil {
		return nil, ErrRefreshNotActive
	}

	usedAt := now
	rotated := RevokeRotated
	replacedBy := newJTI
	prior.UsedAt = &usedAt
	prior.RevokedReason = &rotated
	prior.ReplacedByJTI = &replacedBy

	repository.store.nextRefreshID++
	successor := &RefreshToken{
		ID:        repository.store.nextRefreshID,
		JTI:       newJTI,
		UserID:    prior.UserID,
		FamilyID:  prior.FamilyID,
		SessionID: prior.SessionID,
		TokenHash: newHash,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	repository.store.refresh = append(repository.store.refresh, successor)

	clone := *successor
	return &clone, nil
}

func (repository *memoryRefreshRepo) RevokeByJTI(_ context.Context, jti uuid.UUID, reason RevokeReason, when time.Time) error {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	for _, token := range repository.store.refresh {
		if token.JTI == jti && token.RevokedAt == nil {
			revokedAt := when
			revokedReason := reason
			token.RevokedAt = &revokedAt
			token.RevokedReason = &revokedReason
		}
	}
	return nil
}

func (repository *memoryRefreshRepo) RevokeFamily(_ context.Context, familyID uuid.UUID, reason RevokeReason, when time.Time) (int64, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	var affected int64
	for _, token := range repository.store.refresh {
		if token.FamilyID == familyID && token.RevokedAt == nil {
			revokedAt := when
			revokedReason := reason
			token.RevokedAt = &revokedAt
			token.RevokedReason = &revokedReason
			affected++
		}
	}
	return affected, nil
}

func (repository *memoryRefreshRepo) RevokeBySession(_ context.Context, sessionID uuid.UUID, reason RevokeReason, when time.Time) (int64, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	var affected int64
	for _, token := range repository.store.refresh {
		if token.SessionID == sessionID && token.RevokedAt == nil {
			revokedAt := when
			revokedReason := reason
			token.RevokedAt = &revokedAt
			token.RevokedReason = &revokedReason
			affected++
		}
	}
	return affected, nil
}

func (repository *memoryRefreshRepo) RevokeAllForUser(_ context.Context, userID int64, reason RevokeReason, when time.Time) (int64, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	var affected int64
	for _, token := range repository.store.refresh {
		if token.UserID == userID && token.RevokedAt == nil {
			revokedAt := when
			revokedReason := reason
			token.RevokedAt = &revokedAt
			token.RevokedReason = &revokedReason
			affected++
		}
	}
	return affected, nil
}

// # Volatile Store

// MemoryResetTokenRepository is an in-memory [ResetTokenRepository].
type MemoryResetTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]memoryResetEntry
}

type memoryResetEntry struct {
	userID    int64
	expiresAt time.Time
}

// NewMemoryResetTokenRepository constructs an empty in-memory token store.
func NewMemoryResetTokenRepository() *MemoryResetTokenRepository {
	return &MemoryResetTokenRepository{tokens: make(map[string]memoryResetEntry)}
}

func (repository *MemoryResetTokenRepository) Set(_ context.Context, token string, userID int64, ttl time.Duration) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	repository.tokens[token] = memoryResetEntry{userID: userID, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (repository *MemoryResetTokenRepository) Get(_ context.Context, token string) (int64, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	entry, found := repository.tokens[token]
	if !found || time.Now().After(entry.expiresAt) {
		return 0, apperr.NotFound("Reset token")
	}
	return entry.userID, nil
}

func (repository *MemoryResetTokenRepository) Delete(_ context.Context, token string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	delete(repository.tokens, token)
	return nil
}
