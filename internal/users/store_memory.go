// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

package users

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of the users storage contracts.
// Intended for tests and local development; state is lost on process exit.
type MemoryStore struct {
	mu     sync.Mutex
	users  map[int64]*User
	nextID int64
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]*User)}
}

// Begin opens a unit of work over the store. Mutations apply immediately
// under the store mutex; Commit and Rollback are no-ops.
func (store *MemoryStore) Begin(context context.Context) (UnitOfWork, error) {
	return &memoryUnitOfWork{store: store}, nil
}

type memoryUnitOfWork struct {
	store *MemoryStore
}

func (uow *memoryUnitOfWork) Users() UserRepository { return &memoryUserRepo{store: uow.store} }

func (uow *memoryUnitOfWork) Commit(context.Context) error { return nil }

func (uow *memoryUnitOfWork) Rollback(context.Context) error { return nil }

type memoryUserRepo struct {
	store *MemoryStore
}

func (repository *memoryUserRepo) Create(_ context.Context, user *User) error {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	for _, existing := range repository.store.users {
		if existing.Email == user.Email {
			return ErrEmailTaken
		}
	}

	repository.store.nextID++
	user.ID = repository.store.nextID
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	clone := *user
	repository.store.users[user.ID] = &clone
	return nil
}

func (repository *memoryUserRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	for _, user := range repository.store.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, ErrUserNotFound
}

func (repository *memoryUserRepo) FindByID(_ context.Context, id int64) (*User, error) {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	user, found := repository.store.users[id]
	if !found {
		return nil, ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (repository *memoryUserRepo) SetActive(_ context.Context, id int64, active bool) error {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	user, found := repository.store.users[id]
	if !found {
		return ErrUserNotFound
	}
	user.IsActive = active
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (repository *memoryUserRepo) SetSuperuser(_ context.Context, id int64, superuser bool) error {
	repository.store.mu.Lock()
	defer repository.store.mu.Unlock()

	user, found := repository.store.users[id]
	if !found {
		return ErrUserNotFound
	}
	user.IsSuperuser = superuser
	user.UpdatedAt = time.Now().UTC()
	return nil
}
