// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer. The [TokenCodec] is process-wide and immutable after
// construction; key material is read exactly once.
package sec

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// # Claims

// TokenClaims is the decoded payload of a verified credential.
//
// It stays a map rather than a typed struct because the type-discriminator
// field name is configurable (JWT_TYPE_FIELD) and refresh tokens carry extra
// claims (sid/fam/jti) that access tokens do not.
type TokenClaims map[string]any

// UserID extracts the "user_id" claim.
//
// JSON numbers decode as float64; the codec always issues integral user IDs,
// so the conversion is lossless for any realistic ID range.
func (c TokenClaims) UserID() (int64, bool) {
	switch v := c["user_id"].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// StringClaim returns the named claim as a string, or "" if absent.
func (c TokenClaims) StringClaim(name string) string {
	s, _ := c[name].(string)
	return s
}

// UUIDClaim parses the named claim as a UUID.
func (c TokenClaims) UUIDClaim(name string) (uuid.UUID, error) {
	raw, ok := c[name].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("sec: claim %q is missing or not a string", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("sec: claim %q is not a UUID: %w", name, err)
	}
	return id, nil
}

// # Codec

// CodecConfig selects the signing algorithm, the type-discriminator field,
// the per-type names, and the per-type lifetimes of issued credentials.
type CodecConfig struct {
	// Algorithm is the JWS algorithm name. Only the RSA family is accepted
	// so the public key can be handed to verifying collaborators without
	// exposing signing material.
	Algorithm string

	// TypeField is the payload field carrying the token type (default "type").
	TypeField string

	// AccessType / RefreshType are the values of the type field.
	AccessType  string
	RefreshType string

	// AccessTTL / RefreshTTL are the credential lifetimes per type.
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenCodec produces and verifies signed bearer credentials.
//
// Required claims on every credential: user_id, the type field, iat, exp.
// Audience verification is disabled (single-audience deployment).
type TokenCodec struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	method     jwt.SigningMethod
	config     CodecConfig
}

// NewTokenCodec constructs a codec from already-parsed RSA key material.
// Used directly by tests; production wiring goes through [LoadTokenCodec].
func NewTokenCodec(config CodecConfig, privateKey *rsa.PrivateKey, publicKey *rsa.PublicKey) (*TokenCodec, error) {
	method := jwt.GetSigningMethod(config.Algorithm)
	if _, ok := method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("sec: unsupported signing algorithm %q (RSA family required)", config.Algorithm)
	}

	return &TokenCodec{
		privateKey: privateKey,
		publicKey:  publicKey,
		method:     method,
		config:     config,
	}, nil
}

// LoadTokenCodec reads PEM-encoded RSA keys from the filesystem and builds a codec.
func LoadTokenCodec(config CodecConfig, privateKeyPath, publicKeyPath string) (*TokenCodec, error) {
	privateKeyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read private key from %s: %w", privateKeyPath, err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse private key: %w", err)
	}

	publicKeyData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read public key from %s: %w", publicKeyPath, err)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse public key: %w", err)
	}

	return NewTokenCodec(config, privateKey, publicKey)
}

// EncodedToken is the result of one encode operation: the serialized
// credential plus its validity window.
type EncodedToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

/*
Encode produces a signed credential for the given user and token type.

Description: The payload contains user_id, the type-discriminator field,
iat, exp, merged with the extra claims (sid, fam, jti, or nothing). The TTL
is selected by token type from the codec configuration.

Parameters:
  - userID: int64
  - tokenType: string (access or refresh type name)
  - extra: map[string]any (merged into the payload, may be nil)

Returns:
  - *EncodedToken: Serialized token with issued/expiry metadata
  - error: Signing failures
*/
func (codec *TokenCodec) Encode(userID int64, tokenType string, extra map[string]any) (*EncodedToken, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(codec.ttlForType(tokenType))

	claims := jwt.MapClaims{
		"user_id":              userID,
		codec.config.TypeField: tokenType,
		"iat":                  jwt.NewNumericDate(now),
		"exp":                  jwt.NewNumericDate(expiresAt),
	}
	for name, value := range extra {
		claims[name] = value
	}

	token, err := jwt.NewWithClaims(codec.method, claims).SignedString(codec.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return &EncodedToken{
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

/*
Decode verifies the signature and the required claims of a serialized credential.

Description: Fails with [ErrTokenExpired] when the signature is valid but exp
is in the past, and with [ErrTokenInvalid] for any structural or signature
problem (including a missing iat or exp). Audience is not verified.

Parameters:
  - raw: string (the serialized token)

Returns:
  - TokenClaims: Decoded payload
  - error: ErrTokenExpired or ErrTokenInvalid
*/
func (codec *TokenCodec) Decode(raw string) (TokenClaims, error) {
	parsed, err := jwt.Parse(raw,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return codec.publicKey, nil
		},
		jwt.WithValidMethods([]string{codec.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, TokenInvalid(err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, TokenInvalid(errors.New("unexpected claims type"))
	}

	// WithExpirationRequired enforces exp; iat presence is checked here.
	if _, found := claims["iat"]; !found {
		return nil, TokenInvalid(errors.New("iat claim is required"))
	}

	return TokenClaims(claims), nil
}

// TypeOf returns the type-discriminator claim, or "" when absent.
func (codec *TokenCodec) TypeOf(claims TokenClaims) string {
	return claims.StringClaim(codec.config.TypeField)
}

// AccessType returns the configured access token type name.
func (codec *TokenCodec) AccessType() string { return codec.config.AccessType }

// RefreshType returns the configured refresh token type name.
func (codec *TokenCodec) RefreshType() string { return codec.config.RefreshType }

// ttlForType maps a token type to its configured lifetime.
func (codec *TokenCodec) ttlForType(tokenType string) time.Duration {
	if tokenType == codec.config.RefreshType {
		return codec.config.RefreshTTL
	}
	return codec.config.AccessTTL
}
