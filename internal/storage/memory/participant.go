package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"recaudo/internal/domain"
	"recaudo/pkg/platform/sentinel"
)

type ParticipantStore struct {
	mu           sync.RWMutex
	participants map[uuid.UUID]*domain.Participant
}

func NewParticipantStore() *ParticipantStore {
	return &ParticipantStore{participants: make(map[uuid.UUID]*domain.Participant)}
}

func copyParticipant(p *domain.Participant) *domain.Participant {
	cp := *p
	if p.UserID != nil {
		v := *p.UserID
		cp.UserID = &v
	}
	return &cp
}

func (s *ParticipantStore) ReplaceForActa(_ context.Context, actaID uuid.UUID, participants []*domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.participants {
		if p.ActaID == actaID {
			delete(s.participants, id)
		}
	}
	for _, p := range participants {
		s.participants[p.ID] = copyParticipant(p)
	}
	return nil
}

func (s *ParticipantStore) ListByActa(_ context.Context, actaID uuid.UUID) ([]*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Participant
	for _, p := range s.participants {
		if p.ActaID == actaID {
			out = append(out, copyParticipant(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *ParticipantStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyParticipant(p), nil
}
