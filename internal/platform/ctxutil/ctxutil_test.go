// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package ctxutil_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkovardin/authgate/internal/platform/ctxutil"
	"github.com/mkovardin/authgate/internal/platform/sec"
)

/*
TestContext_RequestID verifies that Request IDs can be injected and retrieved.
*/
func TestContext_RequestID(t *testing.T) {
	ctx := context.Background()
	requestID := "test-request-id"

	// 1. Initially should be empty
	assert.Empty(t, ctxutil.GetRequestID(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithRequestID(ctx, requestID)
	assert.Equal(t, requestID, ctxutil.GetRequestID(ctx))
}

/*
TestContext_Logger verifies that a custom logger can be stored in context.
*/
func TestContext_Logger(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// 1. Initially should return the default logger
	assert.Equal(t, slog.Default(), ctxutil.GetLogger(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithLogger(ctx, logger)
	assert.Equal(t, logger, ctxutil.GetLogger(ctx))
}

/*
TestContext_Token verifies that a verified bearer token can be stored in context.
*/
func TestContext_Token(t *testing.T) {
	ctx := context.Background()
	token := &sec.VerifiedToken{
		Raw:    "raw-token",
		Claims: sec.TokenClaims{"user_id": float64(42)},
	}

	// 1. Initially should be nil
	assert.Nil(t, ctxutil.GetToken(ctx))

	// 2. Inject and retrieve
	ctx = ctxutil.WithToken(ctx, token)
	retrieved := ctxutil.GetToken(ctx)

	assert.NotNil(t, retrieved)
	assert.Equal(t, "raw-token", retrieved.Raw)

	userID, ok := retrieved.Claims.UserID()
	assert.True(t, ok)
	assert.Equal(t, int64(42), userID)
}
