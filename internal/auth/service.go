// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mkovardin/authgate/internal/platform/sec"
	"github.com/mkovardin/authgate/internal/users"
)

// Service implements the session and refresh-credential use cases.
//
// # Review Process
//
// This service owns the reuse-detection policy. Any changes to rotation,
// revocation, or credential issuance must be reviewed by the security team.
type Service struct {
	begin       BeginFunc
	codec       *sec.TokenCodec
	resetTokens ResetTokenRepository
}

// NewService constructs a new [Service] with its dependencies.
func NewService(begin BeginFunc, codec *sec.TokenCodec, resetTokens ResetTokenRepository) *Service {
	return &Service{
		begin:       begin,
		codec:       codec,
		resetTokens: resetTokens,
	}
}

// # Authentication Flow

/*
Authenticate verifies an email/password pair against the stored verifier.

Description: Unknown email and wrong password are deliberately
indistinguishable to callers. A deactivated account is reported separately
after the password check, so the inactive signal never leaks whether the
password was right for an unknown email.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *Account: The verified account
  - error: ErrInvalidCredentials, users.ErrUserInactive, or storage failures
*/
func (service *Service) Authenticate(context context.Context, email, password string) (*Account, error) {
	uow, err := service.begin(context)
	if err != nil {
		return nil, fmt.Errorf("auth_service_begin_failed: %w", err)
	}
	defer func() { _ = uow.Rollback(context) }()

	account, err := uow.Accounts().FindByEmail(context, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		// Generic message to prevent enumeration.
		return nil, ErrInvalidCredentials
	}

	// Constant-time comparison in bcrypt prevents timing attacks.
	if !sec.CheckPasswordHash(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !account.IsActive {
		return nil, users.ErrUserInactive
	}

	return account, nil
}

/*
Login establishes a new device session for an already-authenticated user.

Description: Creates a session row, issues an access credential carrying sid
and a refresh credential carrying sid/fam/jti, and persists the refresh row
keyed by the SHA-256 hash of the serialized token. One unit of work.

Parameters:
  - context: context.Context
  - userID: int64 (caller has verified credentials and the active flag)
  - userAgent: *string (already truncated by the transport layer)
  - ipAddress: *netip.Addr

Returns:
  - *TokenPair: Transport-ready credential pair
  - error: Issuance or storage failures
*/
func (service *Service) Login(context context.Context, userID int64, userAgent *string, ipAddress *netip.Addr) (*TokenPair, error) {
	sid := uuid.New()
	fam := uuid.New()
	jti := uuid.New()

	pair, refresh, err := service.issueTokens(userID, sid, fam, jti)
	if err != nil {
		return nil, err
	}

	uow, err := service.begin(context)
	if err != nil {
		return nil, fmt.Errorf("auth_service_begin_failed: %w", err)
	}
	defer func() { _ = uow.Rollback(context) }()

	session := &Session{
		SessionID:  sid,
		UserID:     userID,
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
		LastSeenAt: time.Now().UTC(),
	}
	if err := uow.Sessions().Create(context, session); err != nil {
		return nil, fmt.Errorf("auth_service_session_creation_failed: %w", err)
	}

	credential := &RefreshToken{
		JTI:       jti,
		UserID:    userID,
		FamilyID:  fam,
		SessionID: sid,
		TokenHash: sec.HashToken(refresh.Token),
		IssuedAt:  refresh.IssuedAt,
		ExpiresAt: refresh.ExpiresAt,
	}
	if err := uow.Refresh().Create(context, credential); err != nil {
		return nil, fmt.Errorf("auth_service_refresh_creation_failed: %w", err)
	}

	if err := uow.Commit(context); err != nil {
		return nil, fmt.Errorf("auth_service_login_commit_failed: %w", err)
	}

	return pair, nil
}

// # Rotation Flow

/*
Rotate redeems a verified refresh credential for a fresh token pair.

Description: The reuse-detecting state transition. The atomic rotation marks
the presented credential as used and inserts its successor in one unit; if no
active row matched, the presented credential was already spent or revoked,
which is treated as a compromise indicator: the whole family and its session
are revoked with reason "reuse_detected", that revocation is committed in its
own right, and the caller receives ErrRefreshReuseDetected.

Parameters:
  - context: context.Context
  - token: *sec.VerifiedToken (signature and type already verified)

Returns:
  - *TokenPair: New credential pair
  - error: ErrMalformedRefreshToken, ErrRefreshReuseDetected, ErrRefreshRotate
*/
func (service *Service) Rotate(ctx context.Context, token *sec.VerifiedToken) (*TokenPair, error) {
	userID, sid, fam, err := refreshIdentity(token.Claims)
	if err != nil {
		return nil, err
	}

	newJTI := uuid.New()
	pair, refresh, err := service.issueTokens(userID, sid, fam, newJTI)
	if err != nil {
		return nil, err
	}

	uow, err := service.begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth_service_begin_failed: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	now := time.Now().UTC()
	oldHash := sec.HashToken(token.Raw)
	newHash := sec.HashToken(refresh.Token)

	// The savepoint keeps an unexpected constraint failure inside the rotation
	// from poisoning the enclosing transaction, so the reuse-detection path
	// below can still write and commit its revocations.
	rotateErr := uow.Savepoint(ctx, func(ctx context.Context) error {
		_, err := uow.Refresh().RotateActive(ctx, oldHash, newJTI, newHash, refresh.IssuedAt, refresh.ExpiresAt, now)
		return err
	})

	if rotateErr != nil {
		if !errors.Is(rotateErr, ErrRefreshNotActive) {
			return nil, ErrRefreshRotate.WithCause(rotateErr)
		}

		// Reuse detected: revoke the entire family and its session, and make
		// that revocation durable before surfacing the failure.
		if _, err := uow.Refresh().RevokeFamily(ctx, fam, RevokeReuseDetected, now); err != nil {
			return nil, ErrRefreshRotate.WithCause(err)
		}
		if err := uow.Sessions().RevokeSession(ctx, sid, RevokeReuseDetected, now); err != nil {
			return nil, ErrRefreshRotate.WithCause(err)
		}
		if err := uow.Commit(ctx); err != nil {
			return nil, ErrRefreshRotate.WithCause(err)
		}

		return nil, ErrRefreshReuseDetected
	}

	if _, err := uow.Sessions().Touch(ctx, sid, now); err != nil {
		return nil, ErrRefreshRotate.WithCause(err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, ErrRefreshRotate.WithCause(err)
	}

	return pair, nil
}

// # Logout Flow

/*
LogoutByRefresh revokes the presented refresh credential and its session.

Description: Idempotent; a credential or session that is already revoked (or
never existed) still yields success, so repeated logouts are harmless.

Parameters:
  - context: context.Context
  - token: *sec.VerifiedToken (signature and type already verified)

Returns:
  - error: ErrMalformedRefreshToken or storage failures
*/
func (service *Service) LogoutByRefresh(context context.Context, token *sec.VerifiedToken) error {
	jti, err := token.Claims.UUIDClaim(ClaimJTI)
	if err != nil {
		return ErrMalformedRefreshToken
	}
	sid, err := token.Claims.UUIDClaim(ClaimSessionID)
	if err != nil {
		return ErrMalformedRefreshToken
	}

	uow, err := service.begin(context)
	if err != nil {
		return fmt.Errorf("auth_service_begin_failed: %w", err)
	}
	defer func() { _ = uow.Rollback(context) }()

	now := time.Now().UTC()
	if err := uow.Refresh().RevokeByJTI(context, jti, RevokeUserLogout, now); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}
	if err := uow.Sessions().RevokeSession(context, sid, RevokeUserLogout, now); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	if err := uow.Commit(context); err != nil {
		return fmt.Errorf("auth_service_logout_commit_failed: %w", err)
	}

	return nil
}

/*
LogoutAll revokes every session and refresh credential the user owns.

Description: Idempotent bulk revocation. Outstanding access credentials remain
valid until their exp; the short access TTL is the mitigation.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - error: Storage failures
*/
func (service *Service) LogoutAll(context context.Context, userID int64) error {
	return service.revokeEverything(context, userID, RevokeAdminForce)
}

// # Session Listing

/*
ListSessions returns the user's non-revoked sessions, most recently seen first.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - []SessionRead: Possibly empty slice of transport projections
  - error: Storage failures
*/
func (service *Service) ListSessions(context context.Context, userID int64) ([]SessionRead, error) {
	uow, err := service.begin(context)
	if err != nil {
		return nil, fmt.Errorf("auth_service_begin_failed: %w", err)
	}
	defer func() { _ = uow.Rollback(context) }()

	sessions, err := uow.Sessions().ListActiveByUser(context, userID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_list_sessions_failed: %w", err)
	}

	reads := make([]SessionRead, 0, len(sessions))
	for _, session := range sessions {
		reads = append(reads, NewSessionRead(session))
	}

	return reads, nil
}

// # Password Lifecycle

/*
ChangePassword rotates the password verifier of an authenticated user.

Description: Verifies the current password, stores the new bcrypt hash, and
retires every outstanding session and refresh credential with reason
"password_change". The user must log in again on all devices.

Parameters:
  - context: context.Context
  - userID: int64
  - currentPassword: string
  - newPassword: string

Returns:
  - error: ErrInvalidCredentials, users.ErrUserNotFound, or storage failures
*/
func (service *Service) ChangePassword(context context.Context, userID int64, currentPassword, newPassword string) error {
	uow, err := service.begin(context)
	if err != nil {
		return fmt.Errorf("auth_service_begin_failed: %w", err)
	}
	defer func() { _ = uow.Rollback(context) }()

	account, err := uow.Accounts().FindByID(context, userID)
	if err != nil {
		return users.ErrUserNotFound
	}

	if !sec.CheckPasswordHash(currentPassword, account.PasswordHash) {
		return ErrInvalidCredentials.WithMessage("Current password is incorrect")
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_hash_failed: %w", err)
	}

	if err := uow.Accounts().UpdatePassword(context, userID, hashedPassword); err != nil {
		return fmt.Errorf("auth_service_change_password_update_failed: %w", err)
	}

	now := time.Now().UTC()
	if _, err := uow.Refresh().RevokeAllForUser(context, userID, RevokePasswordChange, now); err != nil {
		return fmt.Errorf("auth_service_change_password_revoke_failed: %w", err)
	}
	if _, err := uow.Sessions().RevokeAllForUser(context, userID, RevokePasswordChange, now); err != nil {
		return fmt.Errorf("auth_service_change_password_revoke_failed: %w", err)
	}

	if err := uow.Commit(context); err != nil {
		return fmt.Errorf("auth_service_change_password_commit_failed: %w", err)
	}

	return nil
}

/*
RequestPasswordReset initiates the forgot-password flow.

Description: Generates a secure token and saves it to Redis.
NOTE: An unknown email yields an empty token and no error, so callers cannot
enumerate accounts.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - string: Reset token (empty when the email is unknown)
  - error: Generation or storage errors
*/
func (service *Service) RequestPasswordReset(context context.Context, email string) (string, error) {
	uow, err := service.begin(context)
	if err != nil {
		return "", fmt.Errorf("auth_service_begin_failed: %w", err)
	}
	defer func() { _ = uow.Rollback(context) }()

	account, err := uow.Accounts().FindByEmail(context, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", nil
	}

	token, err := sec.GenerateSecureToken(ResetTokenLength)
	if err != nil {
		return "", fmt.Errorf("auth_service_generate_reset_token_failed: %w", err)
	}

	if err := service.resetTokens.Set(context, token, account.ID, ResetTokenTTL); err != nil {
		return "", fmt.Errorf("auth_service_save_reset_token_failed: %w", err)
	}

	return token, nil
}

/*
ResetPassword completes the forgot-password flow.

Description: Resolves the token, stores the new bcrypt hash, and retires every
outstanding session and refresh credential with reason "password_change".

Parameters:
  - context: context.Context
  - token: string
  - newPassword: string

Returns:
  - error: Token resolution, hashing, or storage failures
*/
func (service *Service) ResetPassword(context context.Context, token, newPassword string) error {
	userID, err := service.resetTokens.Get(context, token)
	if err != nil {
		return err
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_reset_password_hash_failed: %w", err)
	}

	uow, err := service.begin(context)
	if err != nil {
		return fmt.Errorf("auth_service_begin_failed: %w", err)
	}
	defer func() { _ = uow.Rollback(context) }()

	if err := uow.Accounts().UpdatePassword(context, userID, hashedPassword); err != nil {
		return fmt.Errorf("auth_service_reset_password_update_failed: %w", err)
	}

	now := time.Now().UTC()
	if _, err := uow.Refresh().RevokeAllForUser(context, userID, RevokePasswordChange, now); err != nil {
		return fmt.Errorf("auth_service_reset_password_revoke_failed: %w", err)
	}
	if _, err := uow.Sessions().RevokeAllForUser(context, userID, RevokePasswordChange, now); err != nil {
		return fmt.Errorf("auth_service_reset_password_revoke_failed: %w", err)
	}

	if err := uow.Commit(context); err != nil {
		return fmt.Errorf("auth_service_reset_password_commit_failed: %w", err)
	}

	// Delete the used token from Redis
	_ = service.resetTokens.Delete(context, token)

	return nil
}

// # Helpers

// issueTokens encodes the access/refresh pair for one session binding and
// builds the transport shape. ExpiresIn reports the access credential's
// lifetime in seconds.
func (service *Service) issueTokens(userID int64, sid, fam, jti uuid.UUID) (*TokenPair, *sec.EncodedToken, error) {
	access, err := service.codec.Encode(userID, service.codec.AccessType(), map[string]any{
		ClaimSessionID: sid.String(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("auth_service_access_encode_failed: %w", err)
	}

	refresh, err := service.codec.Encode(userID, service.codec.RefreshType(), map[string]any{
		ClaimSessionID: sid.String(),
		ClaimFamilyID:  fam.String(),
		ClaimJTI:       jti.String(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("auth_service_refresh_encode_failed: %w", err)
	}

	pair := &TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh.Token,
		TokenType:    BearerTokenType,
		ExpiresIn:    int64(access.ExpiresAt.Sub(access.IssuedAt).Seconds()),
	}

	return pair, refresh, nil
}

// refreshIdentity extracts and validates the identity claims of a verified
// refresh credential.
func refreshIdentity(claims sec.TokenClaims) (userID int64, sid, fam uuid.UUID, err error) {
	userID, ok := claims.UserID()
	if !ok {
		return 0, uuid.Nil, uuid.Nil, ErrMalformedRefreshToken
	}
	sid, err = claims.UUIDClaim(ClaimSessionID)
	if err != nil {
		return 0, uuid.Nil, uuid.Nil, ErrMalformedRefreshToken
	}
	fam, err = claims.UUIDClaim(ClaimFamilyID)
	if err != nil {
		return 0, uuid.Nil, uuid.Nil, ErrMalformedRefreshToken
	}
	return userID, sid, fam, nil
}

// revokeEverything retires all sessions and refresh credentials for a user
// with the given reason inside one unit of work.
func (service *Service) revokeEverything(context context.Context, userID int64, reason RevokeReason) error {
	uow, err := service.begin(context)
	if err != nil {
		return fmt.Errorf("auth_service_begin_failed: %w", err)
	}
	defer func() { _ = uow.Rollback(context) }()

	now := time.Now().UTC()
	if _, err := uow.Refresh().RevokeAllForUser(context, userID, reason, now); err != nil {
		return fmt.Errorf("auth_service_revoke_all_failed: %w", err)
	}
	if _, err := uow.Sessions().RevokeAllForUser(context, userID, reason, now); err != nil {
		return fmt.Errorf("auth_service_revoke_all_failed: %w", err)
	}

	if err := uow.Commit(context); err != nil {
		return fmt.Errorf("auth_service_revoke_all_commit_failed: %w", err)
	}

	return nil
}
