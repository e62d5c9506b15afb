// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

/*
Package users implements the durable user-account layer.

It owns the user record (email, password verifier, activity flags) and the
registration flow. The auth package consumes accounts only through its narrow
lookup capability; this package is the writer of the record.

# Architecture

This layer is the "Truth" of user identity. Entities defined here have no
external dependencies and encapsulate all business rules related to accounts.
*/
package users

import "time"

// # Domain Entities

// User represents a registered account.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Explicitly omitted from JSON for security.
	FullName       *string   `json:"full_name,omitempty"`
	IsActive       bool      `json:"is_active"`
	IsSuperuser    bool      `json:"is_superuser"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// # Field Identifiers

// Global field names for validation and identity mapping in the users domain.
const (
	FieldEmail    = "email"
	FieldPassword = "password"
	FieldFullName = "full_name"
)
