package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"recaudo/internal/domain"
	"recaudo/pkg/platform/sentinel"
)

type AttachmentStore struct {
	mu          sync.RWMutex
	attachments map[uuid.UUID]*domain.Attachment
}

func NewAttachmentStore() *AttachmentStore {
	return &AttachmentStore{attachments: make(map[uuid.UUID]*domain.Attachment)}
}

func (s *AttachmentStore) Create(_ context.Context, attachment *domain.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attachments[attachment.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *attachment
	s.attachments[attachment.ID] = &cp
	return nil
}

func (s *AttachmentStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attachments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *AttachmentStore) ListByActa(_ context.Context, actaID uuid.UUID) ([]*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Attachment
	for _, a := range s.attachments {
		if a.ActaID == actaID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortAttachments(out)
	return out, nil
}

func (s *AttachmentStore) ListByOwner(_ context.Context, kind domain.AttachmentOwnerKind, ownerID uuid.UUID) ([]*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Attachment
	for _, a := range s.attachments {
		if a.OwnerKind == kind && a.OwnerID == ownerID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortAttachments(out)
	return out, nil
}

func (s *AttachmentStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attachments[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.attachments, id)
	return nil
}

func sortAttachments(list []*domain.Attachment) {
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
}
