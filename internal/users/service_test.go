// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package users_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkovardin/authgate/internal/platform/apperr"
	"github.com/mkovardin/authgate/internal/platform/sec"
	"github.com/mkovardin/authgate/internal/users"
	"github.com/mkovardin/authgate/pkg/pointer"
)

func newUsersService() *users.Service {
	store := users.NewMemoryStore()
	return users.NewService(store.Begin)
}

/*
TestService_Register covers account creation, normalization, and hashing.
*/
func TestService_Register(t *testing.T) {
	service := newUsersService()

	user, err := service.Register(context.Background(), users.RegisterInput{
		Email:    "  Mark@Authgate.DEV ",
		Password: "hunter22",
		FullName: pointer.To("Mark Kovardin"),
	})
	require.NoError(t, err)

	// Email is lowercased and trimmed before persistence
	assert.Equal(t, "mark@authgate.dev", user.Email)
	assert.NotZero(t, user.ID)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsSuperuser)

	// The stored verifier is a bcrypt hash, never the plain password
	assert.NotEqual(t, "hunter22", user.HashedPassword)
	assert.True(t, sec.CheckPasswordHash("hunter22", user.HashedPassword))
}

/*
TestService_Register_DuplicateEmail verifies the identity-conflict path.
*/
func TestService_Register_DuplicateEmail(t *testing.T) {
	service := newUsersService()

	_, err := service.Register(context.Background(), users.RegisterInput{
		Email:    "mark@authgate.dev",
		Password: "hunter22",
	})
	require.NoError(t, err)

	// Same email with different casing still collides
	_, err = service.Register(context.Background(), users.RegisterInput{
		Email:    "MARK@authgate.dev",
		Password: "different-pass",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, users.ErrEmailTaken)
}

/*
TestService_Register_Validation covers the input constraint matrix.
*/
func TestService_Register_Validation(t *testing.T) {
	service := newUsersService()

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"missing_email", "", "hunter22"},
		{"bad_email", "not-an-email", "hunter22"},
		{"missing_password", "mark@authgate.dev", ""},
		{"short_password", "mark@authgate.dev", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Register(context.Background(), users.RegisterInput{
				Email:    tt.email,
				Password: tt.password,
			})
			require.Error(t, err)

			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, "validation_error", ae.Code)
			assert.Equal(t, 422, ae.HTTPStatus)
		})
	}
}

/*
TestService_CurrentUser resolves an authenticated subject to its account.
*/
func TestService_CurrentUser(t *testing.T) {
	service := newUsersService()

	created, err := service.Register(context.Background(), users.RegisterInput{
		Email:    "mark@authgate.dev",
		Password: "hunter22",
	})
	require.NoError(t, err)

	user, err := service.CurrentUser(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, user.Email)

	_, err = service.CurrentUser(context.Background(), 99999)
	assert.ErrorIs(t, err, users.ErrUserNotFound)
}

/*
TestService_CurrentUser_Inactive verifies that a deactivated account is
reported distinctly from a missing one.
*/
func TestService_CurrentUser_Inactive(t *testing.T) {
	service := newUsersService()

	created, err := service.Register(context.Background(), users.RegisterInput{
		Email:    "mark@authgate.dev",
		Password: "hunter22",
	})
	require.NoError(t, err)

	require.NoError(t, service.SetActive(context.Background(), created.ID, false))

	_, err = service.CurrentUser(context.Background(), created.ID)
	assert.ErrorIs(t, err, users.ErrUserInactive)
}

/*
TestService_SetSuperuser flips the privilege flag and surfaces missing rows.
*/
func TestService_SetSuperuser(t *testing.T) {
	service := newUsersService()

	created, err := service.Register(context.Background(), users.RegisterInput{
		Email:    "mark@authgate.dev",
		Password: "hunter22",
	})
	require.NoError(t, err)

	require.NoError(t, service.SetSuperuser(context.Background(), created.ID, true))

	user, err := service.CurrentUser(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, user.IsSuperuser)

	err = service.SetSuperuser(context.Background(), 99999, true)
	assert.ErrorIs(t, err, users.ErrUserNotFound)
}
