// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

// Package middleware provides the HTTP middleware chain for the Authgate API server.
//
// # Architecture
//
// Middleware intercepts incoming HTTP requests to apply global policies
// before they reach the domain handlers. This includes cross-cutting concerns
// like Logging, AuthN, and CORS.
package middleware

import (
	"net/http"

	"github.com/mkovardin/authgate/internal/platform/ctxutil"
	"github.com/mkovardin/authgate/internal/platform/respond"
	"github.com/mkovardin/authgate/internal/platform/sec"
)

// TokenExtractor defines the interface needed to verify bearer credentials
// in middleware.
//
// # Why an interface?
//
// Defining TokenExtractor here decouples the middleware from the concrete
// [sec.BearerExtractor], allowing us to easily inject mocks during unit testing.
type TokenExtractor interface {
	Extract(authorization, expectedType string) (*sec.VerifiedToken, error)
}

// RequireToken enforces a verified bearer credential of the given type.
//
// # Flow
//  1. Read the raw Authorization header.
//  2. Run the verification pipeline (presence, scheme, signature, expiry, type).
//  3. On any failure, abort with the pipeline's taxonomy error.
//  4. Inject [*sec.VerifiedToken] into the request context for downstream use.
//
// Routes that accept anonymous requests simply do not mount this middleware.
// There is no anonymous pass-through: a request on a guarded route either
// carries a valid credential of the expected type or is rejected.
func RequireToken(extractor TokenExtractor, expectedType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Verification Pipeline ──────────────────────────────────────
			token, err := extractor.Extract(request.Header.Get("Authorization"), expectedType)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			// ── 2. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithToken(request.Context(), token)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}
