// Package memory provides in-memory store implementations for tests and
// local development. They mirror the Postgres stores' semantics, including
// the conditional-update contracts.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"recaudo/internal/domain"
	"recaudo/pkg/platform/sentinel"
)

type ActaStore struct {
	mu    sync.RWMutex
	actas map[uuid.UUID]*domain.Acta
}

func NewActaStore() *ActaStore {
	return &ActaStore{actas: make(map[uuid.UUID]*domain.Acta)}
}

func copyActa(a *domain.Acta) *domain.Acta {
	cp := *a
	cp.ClientIDs = append([]uuid.UUID(nil), a.ClientIDs...)
	cp.ActivityIDs = append([]uuid.UUID(nil), a.ActivityIDs...)
	if a.ApprovedBy != nil {
		v := *a.ApprovedBy
		cp.ApprovedBy = &v
	}
	return &cp
}

func (s *ActaStore) Create(_ context.Context, acta *domain.Acta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actas[acta.ID]; ok {
		return sentinel.ErrConflict
	}
	s.actas[acta.ID] = copyActa(acta)
	return nil
}

func (s *ActaStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Acta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actas[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyActa(a), nil
}

func (s *ActaStore) Update(_ context.Context, acta *domain.Acta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.actas[acta.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	cp := copyActa(acta)
	// State and round are owned by the conditional methods.
	cp.State = cur.State
	cp.ApprovalRound = cur.ApprovalRound
	s.actas[acta.ID] = cp
	return nil
}

func (s *ActaStore) TransitionState(_ context.Context, id uuid.UUID, from, to domain.ActaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actas[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if a.State != from {
		return sentinel.ErrInvalidState
	}
	a.State = to
	return nil
}

func (s *ActaStore) BeginApprovalRound(_ context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actas[id]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if a.State != domain.StateDraft {
		return 0, sentinel.ErrInvalidState
	}
	a.State = domain.StatePendingApproval
	a.ApprovalRound++
	return a.ApprovalRound, nil
}

func (s *ActaStore) SetApprover(_ context.Context, id uuid.UUID, userID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actas[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if userID != nil {
		v := *userID
		a.ApprovedBy = &v
	} else {
		a.ApprovedBy = nil
	}
	return nil
}
