// Package audit writes and reads the append-only acta lifecycle trail.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"recaudo/internal/domain"
	"recaudo/internal/storage"
)

type Service struct {
	store storage.AuditStore
}

func NewService(store storage.AuditStore) *Service {
	return &Service{store: store}
}

// Record appends one entry. metadata may be nil; anything else is marshalled
// to JSON and stored opaquely.
func (s *Service) Record(ctx context.Context, actaID uuid.UUID, kind domain.AuditKind, actorID *uuid.UUID, metadata any) error {
	entry := &domain.AuditEntry{
		ID:        uuid.New(),
		ActaID:    actaID,
		Kind:      kind,
		ActorID:   actorID,
		CreatedAt: time.Now().UTC(),
	}
	if metadata != nil {
		raw, err := domain.MarshalMetadata(metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		entry.Metadata = raw
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByActa returns the trail ascending by time.
func (s *Service) ListByActa(ctx context.Context, actaID uuid.UUID) ([]*domain.AuditEntry, error) {
	return s.store.ListByActa(ctx, actaID)
}
