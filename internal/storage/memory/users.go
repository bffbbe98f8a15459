package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"recaudo/internal/domain"
	"recaudo/pkg/platform/sentinel"
)

type UserDirectory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{users: make(map[uuid.UUID]*domain.User)}
}

// Seed registers a user; tests and local development populate the directory
// this way since user CRUD is out of scope.
func (s *UserDirectory) Seed(user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *user
	s.users[user.ID] = &cp
}

func (s *UserDirectory) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *u
	return &cp, nil
}
