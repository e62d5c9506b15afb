// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package auth

import (
	"errors"
	"net/http"

	"github.com/mkovardin/authgate/internal/platform/apperr"
)

// # Session Error Taxonomy
//
// Declared as package-level values so services and tests can match them with
// [errors.Is]. The respond package adds "WWW-Authenticate: Bearer" to every 401.
var (
	// ErrInvalidCredentials: unknown email or wrong password. The two cases are
	// deliberately indistinguishable to callers to prevent account enumeration.
	ErrInvalidCredentials = apperr.New(http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")

	// ErrMalformedRefreshToken: the credential verified as a refresh token but
	// its sid/fam/jti claims are absent or not UUIDs.
	ErrMalformedRefreshToken = apperr.New(http.StatusBadRequest, "malformed_refresh_token", "Malformed refresh token")

	// ErrRefreshReuseDetected: a non-active refresh credential was redeemed.
	// Accompanied by irreversible revocation of its family and session.
	ErrRefreshReuseDetected = apperr.New(http.StatusUnauthorized, "refresh_reuse_detected", "Refresh token reuse detected")

	// ErrRefreshRotate: unexpected storage failure mid-rotation.
	ErrRefreshRotate = apperr.New(http.StatusInternalServerError, "cannot_refresh", "Cannot refresh session")

	// ErrRefreshNotActive is the internal sentinel for a rotation attempt that
	// matched zero active rows. The service escalates it to family revocation
	// and [ErrRefreshReuseDetected]; it never crosses the HTTP boundary.
	ErrRefreshNotActive = errors.New("auth: refresh credential is not active")
)
