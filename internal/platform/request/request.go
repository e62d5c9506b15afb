// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away the underlying router's parameter extraction and common
body decoding patterns, ensuring consistent error handling and type safety.
*/
package requestutil

import (
	"encoding/json"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/mkovardin/authgate/internal/platform/constants"
	"github.com/mkovardin/authgate/internal/platform/ctxutil"
	"github.com/mkovardin/authgate/internal/platform/sec"
	"github.com/mkovardin/authgate/internal/platform/validate"
)

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - request: *http.Request
  - target: interface{} (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(request *http.Request, target interface{}) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Param retrieves a named URL parameter from the request.
*/
func Param(request *http.Request, name string) string {
	return chi.URLParam(request, name)
}

/*
Token extracts the verified bearer token from the request context.

Returns nil if the request did not pass bearer verification.
*/
func Token(request *http.Request) *sec.VerifiedToken {
	return ctxutil.GetToken(request.Context())
}

/*
RequiredToken ensures the request carries a verified bearer token.

Returns:
  - *sec.VerifiedToken: The verified credential
  - error: sec.ErrAuthHeaderMissing if verification middleware did not run
*/
func RequiredToken(request *http.Request) (*sec.VerifiedToken, error) {

	// Get the verified token
	token := ctxutil.GetToken(request.Context())

	// If the middleware never stored one, the route is misconfigured or unauthenticated
	if token == nil {
		return nil, sec.ErrAuthHeaderMissing
	}

	return token, nil
}

/*
RequiredUserID returns the user ID of the currently authenticated subject.

Returns:
  - int64: User ID from the verified token claims
  - error: sec.ErrAuthHeaderMissing or sec.ErrTokenInvalid
*/
func RequiredUserID(request *http.Request) (int64, error) {

	// Get the verified token
	token, err := RequiredToken(request)
	if err != nil {
		return 0, err
	}

	userID, ok := token.Claims.UserID()
	if !ok {
		return 0, sec.ErrTokenInvalid
	}

	return userID, nil
}

// # Client Metadata

/*
ClientIP resolves the originating client address of a request.

The first entry of X-Forwarded-For wins when present (trimmed of whitespace);
otherwise the peer address of the TCP connection is used. Returns nil when
neither parses as an IP address.
*/
func ClientIP(request *http.Request) *netip.Addr {
	if forwarded := request.Header.Get(constants.HeaderXForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return &addr
		}
	}

	host, _, err := net.SplitHostPort(request.RemoteAddr)
	if err != nil {
		host = request.RemoteAddr
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return &addr
	}
	return nil
}

/*
UserAgent returns the request's User-Agent header, truncated to the column
limit of the sessions table. Truncation never splits a rune, so the stored
value stays valid UTF-8. Returns nil when the header is absent.
*/
func UserAgent(request *http.Request) *string {
	agent := request.UserAgent()
	if agent == "" {
		return nil
	}
	if len(agent) > constants.UserAgentMaxLen {
		cut := constants.UserAgentMaxLen
		for cut > 0 && !utf8.RuneStart(agent[cut]) {
			cut--
		}
		agent = agent[:cut]
	}
	return &agent
}
