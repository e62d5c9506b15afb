// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package api_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkovardin/authgate/internal/api"
	"github.com/mkovardin/authgate/internal/auth"
	"github.com/mkovardin/authgate/internal/platform/config"
	"github.com/mkovardin/authgate/internal/platform/sec"
	"github.com/mkovardin/authgate/internal/users"
)

// testServer composes the real router over in-memory stores.
type testServer struct {
	router     http.Handler
	codec      *sec.TokenCodec
	authStore  *auth.MemoryStore
	usersStore *users.MemoryStore
}

// errorEnvelope mirrors the wire shape of failure responses.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	codec, err := sec.NewTokenCodec(sec.CodecConfig{
		Algorithm:   "RS256",
		TypeField:   "type",
		AccessType:  "access",
		RefreshType: "refresh",
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  14 * 24 * time.Hour,
	}, key, &key.PublicKey)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	usersStore := users.NewMemoryStore()
	authStore := auth.NewMemoryStore()

	usersHandler := users.NewHandler(users.NewService(usersStore.Begin))
	authHandler := auth.NewHandler(auth.NewService(authStore.Begin, codec, auth.NewMemoryResetTokenRepository()))

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{}, logger)

	cfg := &config.Config{
		ServiceHost:   "127.0.0.1",
		ServicePort:   "0",
		ServiceReload: true,
	}

	server := api.NewServer(cfg, logger, codec, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Users:     usersHandler,
		Auth:      authHandler,
	})

	return &testServer{
		router:     server.Router(),
		codec:      codec,
		authStore:  authStore,
		usersStore: usersStore,
	}
}

// seedAccount makes the account visible to the login flow.
func (ts *testServer) seedAccount(t *testing.T, id int64, email, password string) {
	t.Helper()

	hash, err := sec.HashPassword(password)
	require.NoError(t, err)

	ts.authStore.AddAccount(&auth.Account{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	})
}

// do executes one request against the composed router.
func (ts *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}

	recorder := httptest.NewRecorder()
	ts.router.ServeHTTP(recorder, request)
	return recorder
}

// login runs the credential flow and returns the issued pair.
func (ts *testServer) login(t *testing.T, email, password string) auth.TokenPair {
	t.Helper()

	response := ts.do(t, http.MethodPost, "/auth_api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, response.Code, response.Body.String())

	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &pair))
	return pair
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()

	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &envelope))
	return envelope
}

/*
TestHTTP_Health verifies the orchestration probes.
*/
func TestHTTP_Health(t *testing.T) {
	ts := newTestServer(t)

	response := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, response.Code)

	response = ts.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, response.Code)
}

/*
TestHTTP_Register covers creation, conflict, and the validation envelope.
*/
func TestHTTP_Register(t *testing.T) {
	ts := newTestServer(t)

	t.Run("created", func(t *testing.T) {
		response := ts.do(t, http.MethodPost, "/auth_api/v1/users/register", "", map[string]string{
			"email":    "mark@authgate.dev",
			"password": "hunter22",
		})
		require.Equal(t, http.StatusCreated, response.Code, response.Body.String())

		var user struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		}
		require.NoError(t, json.Unmarshal(response.Body.Bytes(), &user))
		assert.Equal(t, "mark@authgate.dev", user.Email)
		assert.NotZero(t, user.ID)

		// The password verifier never appears on the wire
		assert.NotContains(t, response.Body.String(), "hashed_password")
	})

	t.Run("duplicate_email", func(t *testing.T) {
		response := ts.do(t, http.MethodPost, "/auth_api/v1/users/register", "", map[string]string{
			"email":    "mark@authgate.dev",
			"password": "hunter22",
		})
		require.Equal(t, http.StatusConflict, response.Code)
		assert.Equal(t, "email_taken", decodeError(t, response).Error.Code)
	})

	t.Run("validation_failure", func(t *testing.T) {
		response := ts.do(t, http.MethodPost, "/auth_api/v1/users/register", "", map[string]string{
			"email":    "not-an-email",
			"password": "short",
		})
		require.Equal(t, http.StatusUnprocessableEntity, response.Code)
		assert.Equal(t, "validation_error", decodeError(t, response).Error.Code)
	})

	t.Run("broken_json", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/auth_api/v1/users/register", bytes.NewReader([]byte("{")))
		recorder := httptest.NewRecorder()
		ts.router.ServeHTTP(recorder, request)
		assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	})
}

/*
TestHTTP_Login covers the credential endpoint and its failure envelope.
*/
func TestHTTP_Login(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, 1, "mark@authgate.dev", "hunter22")

	t.Run("success", func(t *testing.T) {
		pair := ts.login(t, "mark@authgate.dev", "hunter22")
		assert.Equal(t, "Bearer", pair.TokenType)
		assert.Equal(t, int64(900), pair.ExpiresIn)
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
	})

	t.Run("wrong_password", func(t *testing.T) {
		response := ts.do(t, http.MethodPost, "/auth_api/v1/auth/login", "", map[string]string{
			"email":    "mark@authgate.dev",
			"password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, response.Code)
		assert.Equal(t, "invalid_credentials", decodeError(t, response).Error.Code)
		assert.Equal(t, "Bearer", response.Header().Get("WWW-Authenticate"))
	})

	t.Run("missing_fields", func(t *testing.T) {
		response := ts.do(t, http.MethodPost, "/auth_api/v1/auth/login", "", map[string]string{})
		assert.Equal(t, http.StatusUnprocessableEntity, response.Code)
	})
}

/*
TestHTTP_Me covers the access guard on the profile endpoint.
*/
func TestHTTP_Me(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, 1, "mark@authgate.dev", "hunter22")

	// The profile read goes through the users store
	registered := ts.do(t, http.MethodPost, "/auth_api/v1/users/register", "", map[string]string{
		"email":    "mark@authgate.dev",
		"password": "hunter22",
	})
	require.Equal(t, http.StatusCreated, registered.Code)

	pair := ts.login(t, "mark@authgate.dev", "hunter22")

	t.Run("no_token", func(t *testing.T) {
		response := ts.do(t, http.MethodGet, "/auth_api/v1/users/me", "", nil)
		require.Equal(t, http.StatusUnauthorized, response.Code)
		assert.Equal(t, "not_authenticated", decodeError(t, response).Error.Code)
		assert.Equal(t, "Bearer", response.Header().Get("WWW-Authenticate"))
	})

	t.Run("with_access_token", func(t *testing.T) {
		response := ts.do(t, http.MethodGet, "/auth_api/v1/users/me", pair.AccessToken, nil)
		require.Equal(t, http.StatusOK, response.Code, response.Body.String())
		assert.Contains(t, response.Body.String(), "mark@authgate.dev")
	})

	t.Run("refresh_token_rejected", func(t *testing.T) {
		// A refresh credential never satisfies an access-guarded endpoint
		response := ts.do(t, http.MethodGet, "/auth_api/v1/users/me", pair.RefreshToken, nil)
		require.Equal(t, http.StatusBadRequest, response.Code)
		assert.Equal(t, "invalid_token_type", decodeError(t, response).Error.Code)
	})

	t.Run("garbage_token", func(t *testing.T) {
		response := ts.do(t, http.MethodGet, "/auth_api/v1/users/me", "not-a-jwt", nil)
		require.Equal(t, http.StatusUnauthorized, response.Code)
		assert.Equal(t, "invalid_token", decodeError(t, response).Error.Code)
	})
}

/*
TestHTTP_Refresh covers rotation, the type guard, and reuse detection on the wire.
*/
func TestHTTP_Refresh(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, 1, "mark@authgate.dev", "hunter22")

	pair := ts.login(t, "mark@authgate.dev", "hunter22")

	t.Run("access_token_rejected", func(t *testing.T) {
		response := ts.do(t, http.MethodPost, "/auth_api/v1/auth/refresh", pair.AccessToken, nil)
		require.Equal(t, http.StatusBadRequest, response.Code)
		assert.Equal(t, "invalid_token_type", decodeError(t, response).Error.Code)
	})

	var rotated auth.TokenPair

	t.Run("rotation_succeeds", func(t *testing.T) {
		response := ts.do(t, http.MethodPost, "/auth_api/v1/auth/refresh", pair.RefreshToken, nil)
		require.Equal(t, http.StatusOK, response.Code, response.Body.String())

		require.NoError(t, json.Unmarshal(response.Body.Bytes(), &rotated))
		assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	})

	t.Run("replay_trips_reuse_detection", func(t *testing.T) {
		response := ts.do(t, http.MethodPost, "/auth_api/v1/auth/refresh", pair.RefreshToken, nil)
		require.Equal(t, http.StatusUnauthorized, response.Code)
		assert.Equal(t, "refresh_reuse_detected", decodeError(t, response).Error.Code)
		assert.Equal(t, "Bearer", response.Header().Get("WWW-Authenticate"))
	})

	t.Run("family_is_dead_after_reuse", func(t *testing.T) {
		response := ts.do(t, http.MethodPost, "/auth_api/v1/auth/refresh", rotated.RefreshToken, nil)
		require.Equal(t, http.StatusUnauthorized, response.Code)
		assert.Equal(t, "refresh_reuse_detected", decodeError(t, response).Error.Code)
	})
}

/*
TestHTTP_Logout covers targeted logout and its idempotence.
*/
func TestHTTP_Logout(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, 1, "mark@authgate.dev", "hunter22")

	pair := ts.login(t, "mark@authgate.dev", "hunter22")

	response := ts.do(t, http.MethodPost, "/auth_api/v1/auth/logout", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusNoContent, response.Code)

	// Repeat yields the same outcome
	response = ts.do(t, http.MethodPost, "/auth_api/v1/auth/logout", pair.RefreshToken, nil)
	assert.Equal(t, http.StatusNoContent, response.Code)

	// Access tokens do not satisfy the refresh guard
	response = ts.do(t, http.MethodPost, "/auth_api/v1/auth/logout", pair.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, response.Code)
}

/*
TestHTTP_Sessions covers session listing and the logout-all sweep.
*/
func TestHTTP_Sessions(t *testing.T) {
	ts := newTestServer(t)
	ts.seedAccount(t, 1, "mark@authgate.dev", "hunter22")

	first := ts.login(t, "mark@authgate.dev", "hunter22")
	ts.login(t, "mark@authgate.dev", "hunter22")

	response := ts.do(t, http.MethodGet, "/auth_api/v1/auth/sessions", first.AccessToken, nil)
	require.Equal(t, http.StatusOK, response.Code)

	var sessions []auth.SessionRead
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 2)

	// Sweep everything
	response = ts.do(t, http.MethodPost, "/auth_api/v1/auth/logout-all", first.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, response.Code)

	response = ts.do(t, http.MethodGet, "/auth_api/v1/auth/sessions", first.AccessToken, nil)
	require.Equal(t, http.StatusOK, response.Code)

	sessions = nil
	require.NoError(t, json.Unmarshal(response.Body.Bytes(), &sessions))
	assert.Empty(t, sessions)
}
