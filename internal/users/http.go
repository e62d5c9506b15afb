// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

/*
Package users provides the HTTP delivery layer for account management.

# Architecture

The handler acts as a thin mediation layer between the web and domain services:
  - Protocol: Standard RESTful JSON interface.
  - Verification: Enforces strict input validation before passing to [Service].

This layer is strictly responsible for transport concerns (status codes, headers, JSON).
*/
package users

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/mkovardin/authgate/internal/platform/request"
	"github.com/mkovardin/authgate/internal/platform/respond"
	"github.com/mkovardin/authgate/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements account-related HTTP endpoints.
type Handler struct {
	usersService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{usersService: service}
}

// Routes returns a [chi.Router] configured with account-specific routes.
//
// # Endpoints
//   - POST /register : Creates a new account.
//   - GET  /me       : Returns the authenticated account.
//
// The requireAccess middleware guards the authenticated group; it is injected
// so this package stays independent of the token verification wiring.
func (handler *Handler) Routes(requireAccess func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(requireAccess)
		r.Get("/me", handler.me)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name"`
}

/*
Register handles the creation of a new user account.

POST /auth_api/v1/users/register

Description: Validates input, checks for identity conflicts, and persists
a new account to the database.

Request:
  - Body: registerRequest (Email, Password, FullName)

Response:
  - 201: User: Created account profile
  - 409: email_taken: Email already registered
  - 422: validation_error: Bad input or validation failure
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	user, err := handler.usersService.Register(request.Context(), RegisterInput{
		Email:    input.Email,
		Password: input.Password,
		FullName: input.FullName,
	})

	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

/*
Me returns the profile of the authenticated account.

GET /auth_api/v1/users/me

Description: Resolves the subject of the verified access credential into a
full account record.

Response:
  - 200: User: Account profile
  - 401: not_authenticated / token_expired / invalid_token
  - 403: user_inactive: Account deactivated
  - 404: user_not_found: Account row no longer exists
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.usersService.CurrentUser(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}
