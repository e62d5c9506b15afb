// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package sec

import (
	"net/http"

	"github.com/mkovardin/authgate/internal/platform/apperr"
)

// # Token Failure Taxonomy
//
// Declared as package-level values so services and tests can match them with
// [errors.Is]. Every 401 response additionally carries "WWW-Authenticate: Bearer",
// added centrally by the respond package.
var (
	// ErrAuthHeaderMissing: the Authorization header is absent or empty.
	ErrAuthHeaderMissing = apperr.New(http.StatusUnauthorized, "not_authenticated", "Not authenticated")

	// ErrAuthSchemeInvalid: the Authorization scheme is not (case-insensitive) "Bearer".
	ErrAuthSchemeInvalid = apperr.New(http.StatusUnauthorized, "invalid_auth_scheme", "Invalid authentication scheme")

	// ErrTokenExpired: the signature is valid but exp is in the past.
	ErrTokenExpired = apperr.New(http.StatusUnauthorized, "token_expired", "Token expired")

	// ErrTokenInvalid: bad signature, malformed structure, or missing required claims.
	ErrTokenInvalid = apperr.New(http.StatusUnauthorized, "invalid_token", "Invalid token")

	// ErrTokenWrongType: the token verified but its type claim does not match
	// what the endpoint expects (e.g. an access token presented to /auth/refresh).
	ErrTokenWrongType = apperr.New(http.StatusBadRequest, "invalid_token_type", "Invalid token type")
)

// TokenInvalid wraps a low-level verification failure into [ErrTokenInvalid],
// surfacing the underlying reason in the client message. [errors.Is] against
// ErrTokenInvalid still matches.
func TokenInvalid(cause error) *apperr.AppError {
	return ErrTokenInvalid.WithMessage("Invalid token: " + cause.Error()).WithCause(cause)
}
