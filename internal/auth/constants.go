// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package auth

import "time"

// # Authentication Constraints

const (
	// BearerTokenType is the token_type value in every issued [TokenPair].
	BearerTokenType = "Bearer"

	// ResetTokenTTL is the duration a password reset token remains valid.
	// Short-lived (1 hour) for security.
	ResetTokenTTL = 1 * time.Hour

	// ResetTokenLength is the byte length of the random password reset token.
	ResetTokenLength = 32
)
