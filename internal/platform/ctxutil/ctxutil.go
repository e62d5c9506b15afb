// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

// Package ctxutil provides helpers for interacting with values stored in [context.Context].
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/mkovardin/authgate/internal/platform/ctxkey"
	"github.com/mkovardin/authgate/internal/platform/sec"
)

// # Request Tracing

// WithRequestID returns a new context with the provided request ID attached.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID retrieves the request ID from the context.
// Returns an empty string if not found.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyRequestID).(string)
	return id
}

// # Structured Logging

// WithLogger returns a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger retrieves the logger from the context.
// If no logger is found, it returns the global default logger.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return logger
}

// # Identity & Access

// WithToken returns a new context with the verified bearer token attached.
func WithToken(ctx context.Context, token *sec.VerifiedToken) context.Context {
	return context.WithValue(ctx, ctxkey.KeyToken, token)
}

// GetToken retrieves the [*sec.VerifiedToken] from the [context.Context].
// Returns nil if the request did not pass bearer verification.
func GetToken(ctx context.Context) *sec.VerifiedToken {
	token, ok := ctx.Value(ctxkey.KeyToken).(*sec.VerifiedToken)
	if !ok {
		return nil
	}
	return token
}
