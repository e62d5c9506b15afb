// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package sec_test

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkovardin/authgate/internal/platform/sec"
)

// newTestCodec builds a codec over a freshly generated RSA key pair.
func newTestCodec(t *testing.T, accessTTL, refreshTTL time.Duration) *sec.TokenCodec {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	codec, err := sec.NewTokenCodec(sec.CodecConfig{
		Algorithm:   "RS256",
		TypeField:   "type",
		AccessType:  "access",
		RefreshType: "refresh",
		AccessTTL:   accessTTL,
		RefreshTTL:  refreshTTL,
	}, key, &key.PublicKey)
	require.NoError(t, err)

	return codec
}

/*
TestCodec_RoundTrip verifies encode/decode of both credential types.
*/
func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec(t, 15*time.Minute, 14*24*time.Hour)

	encoded, err := codec.Encode(42, codec.AccessType(), map[string]any{"sid": "abc"})
	require.NoError(t, err)
	assert.NotEmpty(t, encoded.Token)
	assert.True(t, encoded.ExpiresAt.After(encoded.IssuedAt))

	claims, err := codec.Decode(encoded.Token)
	require.NoError(t, err)

	userID, ok := claims.UserID()
	assert.True(t, ok)
	assert.Equal(t, int64(42), userID)
	assert.Equal(t, codec.AccessType(), codec.TypeOf(claims))
	assert.Equal(t, "abc", claims.StringClaim("sid"))
}

/*
TestCodec_Expired verifies that a structurally valid but stale credential
fails with the expiry error, not the generic invalid error.
*/
func TestCodec_Expired(t *testing.T) {
	codec := newTestCodec(t, -1*time.Minute, -1*time.Minute)

	encoded, err := codec.Encode(1, codec.AccessType(), nil)
	require.NoError(t, err)

	_, err = codec.Decode(encoded.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, sec.ErrTokenExpired)
	assert.NotErrorIs(t, err, sec.ErrTokenInvalid)
}

/*
TestCodec_WrongKey verifies that a credential signed by a different key pair
is rejected as invalid.
*/
func TestCodec_WrongKey(t *testing.T) {
	signer := newTestCodec(t, 15*time.Minute, time.Hour)
	verifier := newTestCodec(t, 15*time.Minute, time.Hour)

	encoded, err := signer.Encode(1, signer.AccessType(), nil)
	require.NoError(t, err)

	_, err = verifier.Decode(encoded.Token)
	require.Error(t, err)
	assert.ErrorIs(t, err, sec.ErrTokenInvalid)
}

/*
TestCodec_Garbage verifies that structurally broken input is rejected.
*/
func TestCodec_Garbage(t *testing.T) {
	codec := newTestCodec(t, 15*time.Minute, time.Hour)

	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := codec.Decode(raw)
		assert.ErrorIs(t, err, sec.ErrTokenInvalid)
	}
}

/*
TestCodec_RejectsNonRSA verifies the constructor refuses symmetric algorithms.
*/
func TestCodec_RejectsNonRSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	_, err = sec.NewTokenCodec(sec.CodecConfig{Algorithm: "HS256"}, key, &key.PublicKey)
	require.Error(t, err)
}

/*
TestClaims_UUIDClaim covers UUID claim extraction failures.
*/
func TestClaims_UUIDClaim(t *testing.T) {
	claims := sec.TokenClaims{
		"sid": "7f9c24e8-3b12-4fef-91f0-5b1a8f67d3aa",
		"bad": "not-a-uuid",
		"num": float64(7),
	}

	id, err := claims.UUIDClaim("sid")
	require.NoError(t, err)
	assert.Equal(t, "7f9c24e8-3b12-4fef-91f0-5b1a8f67d3aa", id.String())

	_, err = claims.UUIDClaim("bad")
	assert.Error(t, err)

	_, err = claims.UUIDClaim("num")
	assert.Error(t, err)

	_, err = claims.UUIDClaim("absent")
	assert.Error(t, err)
}

/*
TestBearerExtractor_FailureOrder locks the pipeline's first-match failure
order: missing header, bad scheme, decode failure, wrong type.
*/
func TestBearerExtractor_FailureOrder(t *testing.T) {
	codec := newTestCodec(t, 15*time.Minute, time.Hour)
	extractor := sec.NewBearerExtractor(codec)

	access, err := codec.Encode(1, codec.AccessType(), nil)
	require.NoError(t, err)

	tests := []struct {
		name          string
		authorization string
		expectedType  string
		wantErr       error
	}{
		{"missing_header", "", "access", sec.ErrAuthHeaderMissing},
		{"scheme_only", "Bearer", "access", sec.ErrAuthHeaderMissing},
		{"empty_param", "Bearer   ", "access", sec.ErrAuthHeaderMissing},
		{"wrong_scheme", "Basic dXNlcjpwYXNz", "access", sec.ErrAuthSchemeInvalid},
		{"garbage_token", "Bearer not-a-jwt", "access", sec.ErrTokenInvalid},
		{"wrong_type", "Bearer " + access.Token, "refresh", sec.ErrTokenWrongType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractor.Extract(tt.authorization, tt.expectedType)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

/*
TestBearerExtractor_Success verifies happy-path extraction, including a
lowercase scheme.
*/
func TestBearerExtractor_Success(t *testing.T) {
	codec := newTestCodec(t, 15*time.Minute, time.Hour)
	extractor := sec.NewBearerExtractor(codec)

	access, err := codec.Encode(7, codec.AccessType(), nil)
	require.NoError(t, err)

	for _, scheme := range []string{"Bearer", "bearer", "BEARER"} {
		token, err := extractor.Extract(scheme+" "+access.Token, codec.AccessType())
		require.NoError(t, err)
		assert.Equal(t, access.Token, token.Raw)

		userID, ok := token.Claims.UserID()
		assert.True(t, ok)
		assert.Equal(t, int64(7), userID)
	}
}
