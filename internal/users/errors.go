// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package users

import (
	"net/http"

	"github.com/mkovardin/authgate/internal/platform/apperr"
)

// # Account Error Taxonomy
//
// Declared as package-level values so services and tests can match them with
// [errors.Is]. The respond package maps them onto the HTTP surface.
var (
	// ErrEmailTaken: registration hit an existing lowercased email.
	ErrEmailTaken = apperr.New(http.StatusConflict, "email_taken", "Email already registered")

	// ErrUserNotFound: the authenticated subject no longer has an account row.
	ErrUserNotFound = apperr.New(http.StatusNotFound, "user_not_found", "User not found")

	// ErrUserInactive: the account exists but has been deactivated.
	ErrUserInactive = apperr.New(http.StatusForbidden, "user_inactive", "Inactive user")
)
