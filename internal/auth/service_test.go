// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkovardin/authgate/internal/auth"
	"github.com/mkovardin/authgate/internal/platform/sec"
	"github.com/mkovardin/authgate/internal/users"
)

// fixture bundles the service with the stores and codec backing it, so tests
// can both drive the use cases and inspect the resulting state.
type fixture struct {
	service     *auth.Service
	store       *auth.MemoryStore
	resetTokens *auth.MemoryResetTokenRepository
	codec       *sec.TokenCodec
	extractor   *sec.BearerExtractor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	codec, err := sec.NewTokenCodec(sec.CodecConfig{
		Algorithm:   "RS256",
		TypeField:   "type",
		AccessType:  "access",
		RefreshType: "refresh",
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  14 * 24 * time.Hour,
	}, key, &key.PublicKey)
	require.NoError(t, err)

	store := auth.NewMemoryStore()
	resetTokens := auth.NewMemoryResetTokenRepository()

	return &fixture{
		service:     auth.NewService(store.Begin, codec, resetTokens),
		store:       store,
		resetTokens: resetTokens,
		codec:       codec,
		extractor:   sec.NewBearerExtractor(codec),
	}
}

// seedAccount registers an account with a real bcrypt verifier.
func (f *fixture) seedAccount(t *testing.T, id int64, email, password string, active bool) {
	t.Helper()

	hash, err := sec.HashPassword(password)
	require.NoError(t, err)

	f.store.AddAccount(&auth.Account{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		IsActive:     active,
	})
}

// verifiedRefresh runs a serialized refresh credential through the same
// extraction pipeline the HTTP guard uses.
func (f *fixture) verifiedRefresh(t *testing.T, raw string) *sec.VerifiedToken {
	t.Helper()

	token, err := f.extractor.Extract("Bearer "+raw, f.codec.RefreshType())
	require.NoError(t, err)
	return token
}

// sessionByID reads a session row back for state assertions.
func (f *fixture) sessionByID(t *testing.T, sid uuid.UUID) *auth.Session {
	t.Helper()

	uow, err := f.store.Begin(context.Background())
	require.NoError(t, err)
	session, err := uow.Sessions().GetBySessionID(context.Background(), sid)
	require.NoError(t, err)
	return session
}

// refreshByJTI reads a refresh credential row back for state assertions.
func (f *fixture) refreshByJTI(t *testing.T, jti uuid.UUID) *auth.RefreshToken {
	t.Helper()

	uow, err := f.store.Begin(context.Background())
	require.NoError(t, err)
	token, err := uow.Refresh().GetByJTI(context.Background(), jti)
	require.NoError(t, err)
	return token
}

// refreshJTI extracts the jti claim of a verified refresh credential.
func refreshJTI(t *testing.T, token *sec.VerifiedToken) uuid.UUID {
	t.Helper()

	jti, err := token.Claims.UUIDClaim(auth.ClaimJTI)
	require.NoError(t, err)
	return jti
}

// refreshSID extracts the sid claim of a verified refresh credential.
func refreshSID(t *testing.T, token *sec.VerifiedToken) uuid.UUID {
	t.Helper()

	sid, err := token.Claims.UUIDClaim(auth.ClaimSessionID)
	require.NoError(t, err)
	return sid
}

/*
TestService_Authenticate covers credential verification and its failure modes.
*/
func TestService_Authenticate(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "mark@authgate.dev", "hunter22", true)
	f.seedAccount(t, 2, "frozen@authgate.dev", "hunter22", false)

	t.Run("success", func(t *testing.T) {
		account, err := f.service.Authenticate(context.Background(), "mark@authgate.dev", "hunter22")
		require.NoError(t, err)
		assert.Equal(t, int64(1), account.ID)
	})

	t.Run("email_normalized", func(t *testing.T) {
		account, err := f.service.Authenticate(context.Background(), "  MARK@Authgate.DEV ", "hunter22")
		require.NoError(t, err)
		assert.Equal(t, int64(1), account.ID)
	})

	t.Run("wrong_password", func(t *testing.T) {
		_, err := f.service.Authenticate(context.Background(), "mark@authgate.dev", "wrong")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown_email", func(t *testing.T) {
		// Indistinguishable from a wrong password
		_, err := f.service.Authenticate(context.Background(), "ghost@authgate.dev", "hunter22")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("inactive_account", func(t *testing.T) {
		_, err := f.service.Authenticate(context.Background(), "frozen@authgate.dev", "hunter22")
		assert.ErrorIs(t, err, users.ErrUserInactive)
	})
}

/*
TestService_Login verifies the issued pair and the persisted session binding.
*/
func TestService_Login(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "mark@authgate.dev", "hunter22", true)

	agent := "integration-test/1.0"
	pair, err := f.service.Login(context.Background(), 1, &agent, nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, int64(900), pair.ExpiresIn)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	// The refresh credential carries the session binding claims
	refresh := f.verifiedRefresh(t, pair.RefreshToken)
	sid := refreshSID(t, refresh)
	jti := refreshJTI(t, refresh)
	_, err = refresh.Claims.UUIDClaim(auth.ClaimFamilyID)
	require.NoError(t, err)

	// The access credential carries sid but no rotation claims
	access, err := f.extractor.Extract("Bearer "+pair.AccessToken, f.codec.AccessType())
	require.NoError(t, err)
	_, err = access.Claims.UUIDClaim(auth.ClaimSessionID)
	require.NoError(t, err)
	_, err = access.Claims.UUIDClaim(auth.ClaimJTI)
	require.Error(t, err)

	// Session row exists and is active
	session := f.sessionByID(t, sid)
	assert.Equal(t, int64(1), session.UserID)
	assert.Equal(t, &agent, session.UserAgent)
	assert.False(t, session.Revoked())

	// Every session is born with a last-seen timestamp
	assert.False(t, session.LastSeenAt.IsZero())

	// Refresh row stores the digest of the serialized token, never the token
	stored := f.refreshByJTI(t, jti)
	assert.Equal(t, sec.HashToken(pair.RefreshToken), stored.TokenHash)
	assert.True(t, stored.Active(time.Now().UTC()))
}

/*
TestService_Rotate verifies the single-use rotation chain.
*/
func TestService_Rotate(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "mark@authgate.dev", "hunter22", true)

	pair, err := f.service.Login(context.Background(), 1, nil, nil)
	require.NoError(t, err)

	oldRefresh := f.verifiedRefresh(t, pair.RefreshToken)
	oldJTI := refreshJTI(t, oldRefresh)

	newPair, err := f.service.Rotate(context.Background(), oldRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

	newRefresh := f.verifiedRefresh(t, newPair.RefreshToken)
	newJTI := refreshJTI(t, newRefresh)

	// Same session and family, fresh jti
	assert.Equal(t, refreshSID(t, oldRefresh), refreshSID(t, newRefresh))
	oldFam, _ := oldRefresh.Claims.UUIDClaim(auth.ClaimFamilyID)
	newFam, _ := newRefresh.Claims.UUIDClaim(auth.ClaimFamilyID)
	assert.Equal(t, oldFam, newFam)
	assert.NotEqual(t, oldJTI, newJTI)

	// Predecessor is spent and linked to its successor
	prior := f.refreshByJTI(t, oldJTI)
	require.NotNil(t, prior.UsedAt)
	require.NotNil(t, prior.ReplacedByJTI)
	assert.Equal(t, newJTI, *prior.ReplacedByJTI)
	require.NotNil(t, prior.RevokedReason)
	assert.Equal(t, auth.RevokeRotated, *prior.RevokedReason)
	assert.False(t, prior.Active(time.Now().UTC()))

	// Successor is the single active credential in the family
	successor := f.refreshByJTI(t, newJTI)
	assert.True(t, successor.Active(time.Now().UTC()))
}

/*
TestService_Rotate_ReuseDetected verifies that redeeming a spent credential
revokes the whole family and its session.
*/
func TestService_Rotate_ReuseDetected(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "mark@authgate.dev", "hunter22", true)

	pair, err := f.service.Login(context.Background(), 1, nil, nil)
	require.NoError(t, err)

	oldRefresh := f.verifiedRefresh(t, pair.RefreshToken)
	sid := refreshSID(t, oldRefresh)

	newPair, err := f.service.Rotate(context.Background(), oldRefresh)
	require.NoError(t, err)
	newJTI := refreshJTI(t, f.verifiedRefresh(t, newPair.RefreshToken))

	// Replay of the spent credential
	_, err = f.service.Rotate(context.Background(), oldRefresh)
	assert.ErrorIs(t, err, auth.ErrRefreshReuseDetected)

	// The successor (the attacker's or victim's live credential) is dead too
	successor := f.refreshByJTI(t, newJTI)
	require.NotNil(t, successor.RevokedAt)
	require.NotNil(t, successor.RevokedReason)
	assert.Equal(t, auth.RevokeReuseDetected, *successor.RevokedReason)

	// And so is the session
	session := f.sessionByID(t, sid)
	require.True(t, session.Revoked())
	assert.Equal(t, auth.RevokeReuseDetected, *session.RevokedReason)

	// The now-revoked successor cannot be redeemed either
	_, err = f.service.Rotate(context.Background(), f.verifiedRefresh(t, newPair.RefreshToken))
	assert.ErrorIs(t, err, auth.ErrRefreshReuseDetected)
}

/*
TestService_Rotate_Concurrent races two redemptions of one credential:
exactly one wins, the other trips reuse detection.
*/
func TestService_Rotate_Concurrent(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "mark@authgate.dev", "hunter22", true)

	pair, err := f.service.Login(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	refresh := f.verifiedRefresh(t, pair.RefreshToken)

	var wg sync.WaitGroup
	results := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, results[slot] = f.service.Rotate(context.Background(), refresh)
		}(i)
	}
	wg.Wait()

	var successes, reuses int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		default:
			assert.ErrorIs(t, err, auth.ErrRefreshReuseDetected)
			reuses++
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, reuses)
}

/*
TestService_Rotate_MalformedClaims rejects a verified token that lacks the
rotation identity claims.
*/
func TestService_Rotate_MalformedClaims(t *testing.T) {
	f := newFixture(t)

	// A refresh-typed credential missing fam/jti
	encoded, err := f.codec.Encode(1, f.codec.RefreshType(), map[string]any{
		auth.ClaimSessionID: uuid.New().String(),
	})
	require.NoError(t, err)

	token, err := f.extractor.Extract("Bearer "+encoded.Token, f.codec.RefreshType())
	require.NoError(t, err)

	_, err = f.service.Rotate(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrMalformedRefreshToken)
}

/*
TestService_LogoutByRefresh verifies targeted revocation and idempotence.
*/
func TestService_LogoutByRefresh(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "mark@authgate.dev", "hunter22", true)

	pair, err := f.service.Login(context.Background(), 1, nil, nil)
	require.NoError(t, err)

	refresh := f.verifiedRefresh(t, pair.RefreshToken)
	sid := refreshSID(t, refresh)
	jti := refreshJTI(t, refresh)

	require.NoError(t, f.service.LogoutByRefresh(context.Background(), refresh))

	session := f.sessionByID(t, sid)
	require.True(t, session.Revoked())
	assert.Equal(t, auth.RevokeUserLogout, *session.RevokedReason)

	credential := f.refreshByJTI(t, jti)
	require.NotNil(t, credential.RevokedAt)
	assert.Equal(t, auth.RevokeUserLogout, *credential.RevokedReason)

	// Second logout with the same credential is a quiet no-op
	require.NoError(t, f.service.LogoutByRefresh(context.Background(), refresh))

	// The original reason survives the repeat
	assert.Equal(t, auth.RevokeUserLogout, *f.sessionByID(t, sid).RevokedReason)
}

/*
TestService_LogoutAll verifies the bulk revocation sweep.
*/
func TestService_LogoutAll(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "mark@authgate.dev", "hunter22", true)

	// Three devices
	for i := 0; i < 3; i++ {
		_, err := f.service.Login(context.Background(), 1, nil, nil)
		require.NoError(t, err)
	}

	sessions, err := f.service.ListSessions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	require.NoError(t, f.service.LogoutAll(context.Background(), 1))

	sessions, err = f.service.ListSessions(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// Idempotent on repeat
	require.NoError(t, f.service.LogoutAll(context.Background(), 1))
}

/*
TestService_ListSessions verifies ordering and projection of active sessions.
*/
func TestService_ListSessions(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "mark@authgate.dev", "hunter22", true)

	first, err := f.service.Login(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	second, err := f.service.Login(context.Background(), 1, nil, nil)
	require.NoError(t, err)

	firstSID := refreshSID(t, f.verifiedRefresh(t, first.RefreshToken))
	secondSID := refreshSID(t, f.verifiedRefresh(t, second.RefreshToken))

	// Make the first session the most recently seen
	uow, err := f.store.Begin(context.Background())
	require.NoError(t, err)
	_, err = uow.Sessions().Touch(context.Background(), firstSID, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)

	sessions, err := f.service.ListSessions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, firstSID, sessions[0].SessionID)
	assert.Equal(t, secondSID, sessions[1].SessionID)

	// Projection never exposes revocation columns; only the read shape
	require.NotNil(t, sessions[0].LastSeenAt)
}

/*
TestService_ChangePassword covers verifier rotation and the forced re-login.
*/
func TestService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "mark@authgate.dev", "hunter22", true)

	pair, err := f.service.Login(context.Background(), 1, nil, nil)
	require.NoError(t, err)

	t.Run("wrong_current_password", func(t *testing.T) {
		err := f.service.ChangePassword(context.Background(), 1, "wrong", "new-password-1")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown_user", func(t *testing.T) {
		err := f.service.ChangePassword(context.Background(), 999, "hunter22", "new-password-1")
		assert.ErrorIs(t, err, users.ErrUserNotFound)
	})

	t.Run("success_revokes_everything", func(t *testing.T) {
		require.NoError(t, f.service.ChangePassword(context.Background(), 1, "hunter22", "new-password-1"))

		// Old password no longer authenticates, new one does
		_, err := f.service.Authenticate(context.Background(), "mark@authgate.dev", "hunter22")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		_, err = f.service.Authenticate(context.Background(), "mark@authgate.dev", "new-password-1")
		require.NoError(t, err)

		// All sessions retired
		sessions, err := f.service.ListSessions(context.Background(), 1)
		require.NoError(t, err)
		assert.Empty(t, sessions)

		// The outstanding refresh credential is dead
		_, err = f.service.Rotate(context.Background(), f.verifiedRefresh(t, pair.RefreshToken))
		assert.ErrorIs(t, err, auth.ErrRefreshReuseDetected)
	})
}

/*
TestService_PasswordReset covers the forgot/reset flow end to end.
*/
func TestService_PasswordReset(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "mark@authgate.dev", "hunter22", true)

	t.Run("unknown_email_is_silent", func(t *testing.T) {
		token, err := f.service.RequestPasswordReset(context.Background(), "ghost@authgate.dev")
		require.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("full_flow", func(t *testing.T) {
		_, err := f.service.Login(context.Background(), 1, nil, nil)
		require.NoError(t, err)

		token, err := f.service.RequestPasswordReset(context.Background(), "mark@authgate.dev")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		require.NoError(t, f.service.ResetPassword(context.Background(), token, "brand-new-pass"))

		_, err = f.service.Authenticate(context.Background(), "mark@authgate.dev", "brand-new-pass")
		require.NoError(t, err)

		// Sessions are swept as part of the reset
		sessions, err := f.service.ListSessions(context.Background(), 1)
		require.NoError(t, err)
		assert.Empty(t, sessions)

		// The token is single-use
		err = f.service.ResetPassword(context.Background(), token, "another-pass")
		assert.Error(t, err)
	})

	t.Run("bogus_token", func(t *testing.T) {
		err := f.service.ResetPassword(context.Background(), "no-such-token", "whatever-pass")
		assert.Error(t, err)
	})
}
