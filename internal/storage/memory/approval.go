package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"recaudo/internal/domain"
	"recaudo/pkg/platform/sentinel"
)

type ApprovalStore struct {
	mu        sync.Mutex
	approvals map[uuid.UUID]*domain.ParticipantApproval
}

func NewApprovalStore() *ApprovalStore {
	return &ApprovalStore{approvals: make(map[uuid.UUID]*domain.ParticipantApproval)}
}

func copyApproval(a *domain.ParticipantApproval) *domain.ParticipantApproval {
	cp := *a
	if a.ApprovedAt != nil {
		v := *a.ApprovedAt
		cp.ApprovedAt = &v
	}
	return &cp
}

func (s *ApprovalStore) CreateBatch(_ context.Context, approvals []*domain.ParticipantApproval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range approvals {
		if _, ok := s.approvals[a.ID]; ok {
			return sentinel.ErrConflict
		}
	}
	for _, a := range approvals {
		s.approvals[a.ID] = copyApproval(a)
	}
	return nil
}

func (s *ApprovalStore) FindCurrent(_ context.Context, actaID, participantID uuid.UUID, round int) (*domain.ParticipantApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.approvals {
		if a.ActaID == actaID && a.ParticipantID == participantID && a.Round == round {
			return copyApproval(a), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *ApprovalStore) Approve(_ context.Context, id uuid.UUID, approvedAt time.Time, photoPath string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.approvals[id]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if !a.Pending() {
		return false, nil
	}
	t := approvedAt
	a.ApprovedAt = &t
	a.PhotoPath = photoPath
	return true, nil
}

func (s *ApprovalStore) Reject(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.approvals[id]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if !a.Pending() {
		return false, nil
	}
	a.Rejected = true
	a.RejectionReason = reason
	return true, nil
}

func (s *ApprovalStore) ListByRound(_ context.Context, actaID uuid.UUID, round int) ([]*domain.ParticipantApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ParticipantApproval
	for _, a := range s.approvals {
		if a.ActaID == actaID && a.Round == round {
			out = append(out, copyApproval(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
