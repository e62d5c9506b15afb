// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkovardin/authgate/internal/platform/sec"
	"github.com/mkovardin/authgate/internal/platform/validate"
)

// Service implements user-account use cases.
//
// # Review Process
//
// This service stores password verifiers. Any changes to hashing or
// registration logic must be reviewed by the security team.
type Service struct {
	begin BeginFunc
}

// NewService constructs a new [Service] over the given transaction factory.
func NewService(begin BeginFunc) *Service {
	return &Service{begin: begin}
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Email    string
	Password string
	FullName *string
}

/*
Register validates, hashes, and persists a brand new user account.

Description: Lowercases the email, enforces input constraints, hashes the
password with bcrypt, and persists the account. Accounts start active and
non-superuser.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - error: ErrEmailTaken, validation failures, or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	validator := &validate.Validator{}
	validator.Required(FieldEmail, email).
		Email(FieldEmail, email).
		MaxLen(FieldEmail, email, 255).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8)
	if input.FullName != nil {
		validator.MaxLen(FieldFullName, *input.FullName, 255)
	}
	if err := validator.Err(); err != nil {
		return nil, err
	}

	// Prevent storing plain-text passwords. Default cost is used for balance
	// between security and CPU utilization during registration spikes.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("users_service_hash_failed: %w", err)
	}

	uow, err := service.begin(context)
	if err != nil {
		return nil, fmt.Errorf("users_service_begin_failed: %w", err)
	}
	defer func() { _ = uow.Rollback(context) }()

	user := &User{
		Email:          email,
		HashedPassword: hashedPassword,
		FullName:       input.FullName,
		IsActive:       true,
		IsSuperuser:    false,
	}

	// The unique index on email is the authority; a racing duplicate insert
	// still surfaces as ErrEmailTaken from the repository.
	if err := uow.Users().Create(context, user); err != nil {
		return nil, err
	}

	if err := uow.Commit(context); err != nil {
		return nil, fmt.Errorf("users_service_register_commit_failed: %w", err)
	}

	return user, nil
}

// # Account Resolution

/*
CurrentUser resolves the account behind an authenticated subject.

Description: Looks up the account by the ID carried in a verified access
credential. A missing row and a deactivated account are distinct failures.

Parameters:
  - context: context.Context
  - userID: int64

Returns:
  - *User: Hydrated entity
  - error: ErrUserNotFound, ErrUserInactive, or storage errors
*/
func (service *Service) CurrentUser(context context.Context, userID int64) (*User, error) {
	uow, err := service.begin(context)
	if err != nil {
		return nil, fmt.Errorf("users_service_begin_failed: %w", err)
	}
	defer func() { _ = uow.Rollback(context) }()

	user, err := uow.Users().FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return user, nil
}

// # Administrative Flags

/*
SetActive flips an account's active flag.

Parameters:
  - context: context.Context
  - userID: int64
  - active: bool

Returns:
  - error: ErrUserNotFound or storage errors
*/
func (service *Service) SetActive(context context.Context, userID int64, active bool) error {
	uow, err := service.begin(context)
	if err != nil {
		return fmt.Errorf("users_service_begin_failed: %w", err)
	}
	defer func() { _ = uow.Rollback(context) }()

	if err := uow.Users().SetActive(context, userID, active); err != nil {
		return err
	}

	if err := uow.Commit(context); err != nil {
		return fmt.Errorf("users_service_flag_commit_failed: %w", err)
	}

	return nil
}

/*
SetSuperuser flips an account's superuser flag.

Parameters:
  - context: context.Context
  - userID: int64
  - superuser: bool

Returns:
  - error: ErrUserNotFound or storage errors
*/
func (service *Service) SetSuperuser(context context.Context, userID int64, superuser bool) error {
	uow, err := service.begin(context)
	if err != nil {
		return fmt.Errorf("users_service_begin_failed: %w", err)
	}
	defer func() { _ = uow.Rollback(context) }()

	if err := uow.Users().SetSuperuser(context, userID, superuser); err != nil {
		return err
	}

	if err := uow.Commit(context); err != nil {
		return fmt.Errorf("users_service_flag_commit_failed: %w", err)
	}

	return nil
}
