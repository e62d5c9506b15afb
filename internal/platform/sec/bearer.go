// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package sec

import "strings"

// VerifiedToken is the output of a successful bearer extraction: the raw
// serialized credential plus its decoded claims. The raw string is kept
// because refresh-token operations need to hash the exact presented bytes.
type VerifiedToken struct {
	Raw    string
	Claims TokenClaims
}

// BearerExtractor parses Authorization headers and enforces the expected
// token type. It never logs or mutates the credential.
type BearerExtractor struct {
	codec *TokenCodec
}

// NewBearerExtractor constructs an extractor over the process-wide codec.
func NewBearerExtractor(codec *TokenCodec) *BearerExtractor {
	return &BearerExtractor{codec: codec}
}

/*
Extract parses a raw Authorization header value and verifies the credential.

Description: Applies the failure order of the verification pipeline, stopping
at the first match:

 1. missing or empty header            → ErrAuthHeaderMissing
 2. scheme not case-insensitive bearer → ErrAuthSchemeInvalid
 3. decode failure                     → ErrTokenExpired / ErrTokenInvalid
 4. type claim != expectedType         → ErrTokenWrongType

Parameters:
  - authorization: string (raw header value)
  - expectedType: string (access or refresh type name)

Returns:
  - *VerifiedToken: Raw token plus decoded claims
  - error: The first matching taxonomy error
*/
func (extractor *BearerExtractor) Extract(authorization, expectedType string) (*VerifiedToken, error) {
	if authorization == "" {
		return nil, ErrAuthHeaderMissing
	}

	scheme, param, found := strings.Cut(authorization, " ")
	param = strings.TrimSpace(param)
	if !found || param == "" {
		return nil, ErrAuthHeaderMissing
	}
	if !strings.EqualFold(scheme, "bearer") {
		return nil, ErrAuthSchemeInvalid
	}

	claims, err := extractor.codec.Decode(param)
	if err != nil {
		return nil, err
	}

	if extractor.codec.TypeOf(claims) != expectedType {
		return nil, ErrTokenWrongType
	}

	return &VerifiedToken{Raw: param, Claims: claims}, nil
}
