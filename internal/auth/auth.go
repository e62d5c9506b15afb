// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

/*
Package auth implements the session and refresh-credential core.

It owns credential-based login, per-device session lifecycle, refresh-token
rotation with automatic reuse detection, and the revocation policy. A single
refresh credential may be redeemed at most once; any attempted second
redemption revokes the entire credential family and its session.

# Architecture

This layer is the "Truth" of the session state machine. Entities defined here
have no external dependencies and encapsulate every rule about when a refresh
credential is active and how it may transition.
*/
package auth

import (
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/mkovardin/authgate/pkg/pointer"
)

// # Revocation Reasons

// RevokeReason records why a session or refresh credential was invalidated.
type RevokeReason string

const (
	// RevokeUserLogout: the owner presented the refresh token to log out.
	RevokeUserLogout RevokeReason = "user_logout"

	// RevokeReuseDetected: a non-active refresh credential was redeemed,
	// treated as a compromise indicator for the whole family.
	RevokeReuseDetected RevokeReason = "reuse_detected"

	// RevokeAdminForce: bulk revocation of everything a user owns.
	RevokeAdminForce RevokeReason = "admin_force"

	// RevokePasswordChange: the password verifier changed; all outstanding
	// credentials are retired.
	RevokePasswordChange RevokeReason = "password_change"

	// RevokeRotated: marks the predecessor in a rotation chain. Distinct from
	// active revocation; a rotated row is spent, not compromised.
	RevokeRotated RevokeReason = "rotated"
)

// # Domain Entities

// Session represents one device/browser binding created at login.
//
// Invariants: RevokedAt != nil implies RevokedReason != nil, and once set both
// are immutable. LastSeenAt is monotonically non-decreasing while the session
// is not revoked.
type Session struct {
	ID            int64
	SessionID     uuid.UUID
	UserID        int64
	UserAgent     *string
	IPAddress     *netip.Addr
	CreatedAt     time.Time
	LastSeenAt    time.Time
	RevokedAt     *time.Time
	RevokedReason *RevokeReason
}

// Revoked reports whether the session has reached its terminal state.
func (session *Session) Revoked() bool {
	return session.RevokedAt != nil
}

// RefreshToken represents one issued refresh credential row.
//
// A row is active iff UsedAt is nil, RevokedAt is nil, and ExpiresAt is in the
// future. Within any FamilyID at most one row is active at any instant; a used
// row's ReplacedByJTI points at its successor in the same family and session.
type RefreshToken struct {
	ID            int64
	JTI           uuid.UUID
	UserID        int64
	FamilyID      uuid.UUID
	SessionID     uuid.UUID
	TokenHash     string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	UsedAt        *time.Time
	RevokedAt     *time.Time
	RevokedReason *RevokeReason
	ReplacedByJTI *uuid.UUID
}

// Active evaluates the refresh credential's active predicate at the given instant.
func (token *RefreshToken) Active(now time.Time) bool {
	return token.UsedAt == nil && token.RevokedAt == nil && token.ExpiresAt.After(now)
}

// # Transport Shapes

// TokenPair is the result of a successful login or rotation.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// SessionRead is the client-facing projection of an active session.
type SessionRead struct {
	SessionID  uuid.UUID  `json:"session_id"`
	UserAgent  *string    `json:"user_agent,omitempty"`
	IPAddress  *string    `json:"ip_address,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// NewSessionRead projects a session entity into its transport shape.
func NewSessionRead(session *Session) SessionRead {
	read := SessionRead{
		SessionID: session.SessionID,
		UserAgent: session.UserAgent,
		CreatedAt: session.CreatedAt,
	}
	if session.IPAddress != nil {
		read.IPAddress = pointer.To(session.IPAddress.String())
	}
	if !session.LastSeenAt.IsZero() {
		read.LastSeenAt = pointer.To(session.LastSeenAt)
	}
	return read
}

// Account is the narrow user projection the auth core consumes. The users
// package owns the full record; this capability exposes only what credential
// verification needs.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
}

// # Claim Names

// Claim names carried by issued credentials beyond the codec's required set.
const (
	ClaimSessionID = "sid"
	ClaimFamilyID  = "fam"
	ClaimJTI       = "jti"
)

// # Field Identifiers

// Global field names for validation in the authentication domain.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldToken           = "token"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
)
