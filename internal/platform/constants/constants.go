// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

// Package constants centralizes application-wide constant values.
//
// # Scope
//
// Only truly global values live here (header names, server timeouts, API
// prefixes). Domain-specific constants stay in their domain packages.
package constants

import "time"

// # HTTP Headers

const (
	HeaderAuthorization   = "Authorization"
	HeaderXRequestID      = "X-Request-ID"
	HeaderXForwardedFor   = "X-Forwarded-For"
	HeaderOrigin          = "Origin"
	HeaderWWWAuthenticate = "WWW-Authenticate"
)

// # Routing

// APIPrefix is the versioned base path of the public HTTP surface.
const APIPrefix = "/auth_api/v1"

// # Server Timeouts

const (
	// GlobalRequestTimeout bounds the total processing time of one request.
	// Database statements inherit it via the per-connection statement_timeout.
	GlobalRequestTimeout = 30 * time.Second

	DefaultReadTimeout       = 10 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second

	// ShutdownTimeout is how long in-flight requests get to finish on SIGTERM.
	ShutdownTimeout = 15 * time.Second
)

// # Request Limits

const (
	// UserAgentMaxLen is the stored length cap for the User-Agent header.
	UserAgentMaxLen = 255
)
