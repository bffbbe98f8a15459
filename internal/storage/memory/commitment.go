package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"recaudo/internal/domain"
	"recaudo/pkg/platform/sentinel"
)

type CommitmentStore struct {
	mu          sync.RWMutex
	commitments map[uuid.UUID]*domain.Commitment
	history     map[uuid.UUID][]*domain.CommitmentHistoryEntry
}

func NewCommitmentStore() *CommitmentStore {
	return &CommitmentStore{
		commitments: make(map[uuid.UUID]*domain.Commitment),
		history:     make(map[uuid.UUID][]*domain.CommitmentHistoryEntry),
	}
}

func copyCommitment(c *domain.Commitment) *domain.Commitment {
	cp := *c
	if c.DueDate != nil {
		v := *c.DueDate
		cp.DueDate = &v
	}
	if c.AssigneeParticipantPos != nil {
		v := *c.AssigneeParticipantPos
		cp.AssigneeParticipantPos = &v
	}
	if c.AssigneeClientMemberID != nil {
		v := *c.AssigneeClientMemberID
		cp.AssigneeClientMemberID = &v
	}
	if c.UpdatedBy != nil {
		v := *c.UpdatedBy
		cp.UpdatedBy = &v
	}
	return &cp
}

func (s *CommitmentStore) ReplaceForActa(_ context.Context, actaID uuid.UUID, commitments []*domain.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.commitments {
		if c.ActaID == actaID {
			delete(s.commitments, id)
		}
	}
	for _, c := range commitments {
		s.commitments[c.ID] = copyCommitment(c)
	}
	return nil
}

func (s *CommitmentStore) ListByActa(_ context.Context, actaID uuid.UUID) ([]*domain.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Commitment
	for _, c := range s.commitments {
		if c.ActaID == actaID {
			out = append(out, copyCommitment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *CommitmentStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commitments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyCommitment(c), nil
}

func (s *CommitmentStore) UpdateStatus(_ context.Context, commitment *domain.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.commitments[commitment.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	cur.State = commitment.State
	cur.StatusDetail = commitment.StatusDetail
	cur.UpdatedAt = commitment.UpdatedAt
	if commitment.UpdatedBy != nil {
		v := *commitment.UpdatedBy
		cur.UpdatedBy = &v
	}
	return nil
}

func (s *CommitmentStore) AppendHistory(_ context.Context, entry *domain.CommitmentHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.history[entry.CommitmentID] = append(s.history[entry.CommitmentID], &cp)
	return nil
}

func (s *CommitmentStore) ListHistory(_ context.Context, commitmentID uuid.UUID) ([]*domain.CommitmentHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[commitmentID]
	out := make([]*domain.CommitmentHistoryEntry, 0, len(entries))
	for _, e := range entries {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}
