package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"recaudo/internal/domain"
)

type AuditStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID][]*domain.AuditEntry
}

func NewAuditStore() *AuditStore {
	return &AuditStore{entries: make(map[uuid.UUID][]*domain.AuditEntry)}
}

func (s *AuditStore) Append(_ context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	cp.Metadata = append([]byte(nil), entry.Metadata...)
	s.entries[entry.ActaID] = append(s.entries[entry.ActaID], &cp)
	return nil
}

func (s *AuditStore) ListByActa(_ context.Context, actaID uuid.UUID) ([]*domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.entries[actaID]
	out := make([]*domain.AuditEntry, 0, len(entries))
	for _, e := range entries {
		cp := *e
		cp.Metadata = append([]byte(nil), e.Metadata...)
		out = append(out, &cp)
	}
	return out, nil
}
