// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

/*
HTTP delivery layer for the session core.

The handler acts as a thin mediation layer between the web and domain services:
  - Protocol: Standard RESTful JSON interface.
  - Security: Bearer credentials arrive via the Authorization header only;
    the verification middleware runs before every guarded handler.

This layer is strictly responsible for transport concerns (status codes, headers, JSON).
*/
package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/mkovardin/authgate/internal/platform/request"
	"github.com/mkovardin/authgate/internal/platform/respond"
	"github.com/mkovardin/authgate/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements session-related HTTP endpoints.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with session-specific routes.
//
// # Endpoints
//   - POST /login           : Authenticates and issues a token pair.
//   - POST /refresh         : Rotates a refresh credential (Bearer refresh).
//   - POST /logout          : Revokes one credential + session (Bearer refresh).
//   - POST /logout-all      : Revokes everything the user owns (Bearer access).
//   - GET  /sessions        : Lists active sessions (Bearer access).
//   - POST /change-password : Rotates the password verifier (Bearer access).
//   - POST /forgot-password : Starts the reset flow.
//   - POST /reset-password  : Completes the reset flow.
//
// The two guard middlewares are injected so this package stays independent of
// the token verification wiring; each enforces its expected token type.
func (handler *Handler) Routes(requireAccess, requireRefresh func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/login", handler.login)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)

	// Refresh-credential endpoints
	router.Group(func(r chi.Router) {
		r.Use(requireRefresh)
		r.Post("/refresh", handler.refresh)
		r.Post("/logout", handler.logout)
	})

	// Access-credential endpoints
	router.Group(func(r chi.Router) {
		r.Use(requireAccess)
		r.Post("/logout-all", handler.logoutAll)
		r.Get("/sessions", handler.sessions)
		r.Post("/change-password", handler.changePassword)
	})

	return router
}

// # Request Payloads

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

/*
Login authenticates a user and establishes a device session.

POST /auth_api/v1/auth/login

Description: Verifies credentials against the stored bcrypt verifier, creates
a session bound to the caller's user agent and IP, and issues the token pair.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: TokenPair
  - 401: invalid_credentials: Unknown email or wrong password
  - 403: user_inactive: Account deactivated
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.authService.Authenticate(request.Context(), input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	pair, err := handler.authService.Login(
		request.Context(),
		account.ID,
		requestutil.UserAgent(request),
		requestutil.ClientIP(request),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, pair)
}

/*
Refresh rotates a refresh credential into a fresh token pair.

POST /auth_api/v1/auth/refresh

Description: The presented credential is spent exactly once; presenting an
already-spent credential revokes its whole family and session.

Response:
  - 200: TokenPair
  - 400: invalid_token_type / malformed_refresh_token
  - 401: refresh_reuse_detected / token_expired / invalid_token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	token, err := requestutil.RequiredToken(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	pair, err := handler.authService.Rotate(request.Context(), token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, pair)
}

/*
Logout revokes the presented refresh credential and its session.

POST /auth_api/v1/auth/logout

Description: Idempotent; repeating the call yields the same 204.

Response:
  - 204: No Content
  - 400: invalid_token_type / malformed_refresh_token
  - 401: token_expired / invalid_token
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	token, err := requestutil.RequiredToken(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.LogoutByRefresh(request.Context(), token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
LogoutAll revokes every session and refresh credential the user owns.

POST /auth_api/v1/auth/logout-all

Response:
  - 204: No Content
  - 401: not_authenticated / token_expired / invalid_token
*/
func (handler *Handler) logoutAll(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.LogoutAll(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
Sessions lists the caller's active sessions.

GET /auth_api/v1/auth/sessions

Response:
  - 200: [SessionRead] ordered by last_seen_at descending
  - 401: not_authenticated / token_expired / invalid_token
*/
func (handler *Handler) sessions(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	sessions, err := handler.authService.ListSessions(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, sessions)
}

/*
ChangePassword updates the authenticated user's password.

POST /auth_api/v1/auth/change-password

Description: Verifies the current password before applying the new one; all
sessions and refresh credentials are retired, forcing re-login everywhere.

Request:
  - Body: changePasswordRequest (CurrentPassword, NewPassword)

Response:
  - 200: Success message
  - 401: invalid_credentials: Current password is incorrect
  - 422: validation_error: Weak password or validation failure
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword).
		MinLen(FieldNewPassword, input.NewPassword, 8)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	err = handler.authService.ChangePassword(request.Context(), userID, input.CurrentPassword, input.NewPassword)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		"message": "Password changed successfully",
	})
}

/*
ForgotPassword initiates the password recovery flow.

POST /auth_api/v1/auth/forgot-password

Description: Always answers 200 with a generic message so callers cannot
enumerate registered emails.

Request:
  - Body: forgotPasswordRequest (Email)

Response:
  - 200: Generic security message
  - 422: validation_error: Invalid email format
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	_, err := handler.authService.RequestPasswordReset(request.Context(), input.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		"message": "If this email is registered, a reset link has been sent.",
	})
}

/*
ResetPassword completes the password recovery flow.

POST /auth_api/v1/auth/reset-password

Request:
  - Body: resetPasswordRequest (Token, Password)

Response:
  - 200: Success message
  - 404: not_found: Reset token invalid or expired
  - 422: validation_error: Weak password or validation failure
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.ResetPassword(request.Context(), input.Token, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		"message": "Password updated successfully",
	})
}
