// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkovardin/authgate/internal/platform/ctxutil"
	"github.com/mkovardin/authgate/internal/platform/middleware"
	"github.com/mkovardin/authgate/internal/platform/sec"
)

// stubExtractor returns a canned result and records what it was asked for.
type stubExtractor struct {
	token        *sec.VerifiedToken
	err          error
	gotHeader    string
	gotTokenType string
}

func (stub *stubExtractor) Extract(authorization, expectedType string) (*sec.VerifiedToken, error) {
	stub.gotHeader = authorization
	stub.gotTokenType = expectedType
	if stub.err != nil {
		return nil, stub.err
	}
	return stub.token, nil
}

/*
TestRequireToken_Success verifies context injection on a valid credential.
*/
func TestRequireToken_Success(t *testing.T) {
	verified := &sec.VerifiedToken{Raw: "raw", Claims: sec.TokenClaims{"user_id": float64(1)}}
	extractor := &stubExtractor{token: verified}

	var seen *sec.VerifiedToken
	next := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seen = ctxutil.GetToken(request.Context())
		writer.WriteHeader(http.StatusOK)
	})

	handler := middleware.RequireToken(extractor, "access")(next)

	request := httptest.NewRequest("GET", "/", nil)
	request.Header.Set("Authorization", "Bearer raw")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "Bearer raw", extractor.gotHeader)
	assert.Equal(t, "access", extractor.gotTokenType)
	require.NotNil(t, seen)
	assert.Equal(t, "raw", seen.Raw)
}

/*
TestRequireToken_Failure verifies the rejection path never reaches the handler.
*/
func TestRequireToken_Failure(t *testing.T) {
	extractor := &stubExtractor{err: sec.ErrTokenExpired}

	reached := false
	next := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		reached = true
	})

	handler := middleware.RequireToken(extractor, "refresh")(next)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest("POST", "/", nil))

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "Bearer", recorder.Header().Get("WWW-Authenticate"))
	assert.Contains(t, recorder.Body.String(), "token_expired")
}
