package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CommitmentState is the lifecycle state of one action item.
type CommitmentState string

const (
	CommitmentPending     CommitmentState = "pending"
	CommitmentFulfilled   CommitmentState = "fulfilled"
	CommitmentUnfulfilled CommitmentState = "unfulfilled"
)

var ErrAmbiguousAssignee = errors.New("commitment assignee must be a participant position or a client member, not both")

// Commitment is an action item tied to an acta. The assignee is either a
// participant (by position on the acta) or an external client member (by id),
// never both.
type Commitment struct {
	ID                     uuid.UUID       `json:"id"`
	ActaID                 uuid.UUID       `json:"acta_id"`
	Description            string          `json:"description"`
	DueDate                *time.Time      `json:"due_date,omitempty"`
	AssigneeParticipantPos *int            `json:"assignee_participant_pos,omitempty"`
	AssigneeClientMemberID *uuid.UUID      `json:"assignee_client_member_id,omitempty"`
	State                  CommitmentState `json:"state"`
	StatusDetail           string          `json:"status_detail"`
	UpdatedBy              *uuid.UUID      `json:"updated_by,omitempty"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// ValidateAssignee enforces the exclusive-assignee invariant.
func (c *Commitment) ValidateAssignee() error {
	if c.AssigneeParticipantPos != nil && c.AssigneeClientMemberID != nil {
		return ErrAmbiguousAssignee
	}
	return nil
}

// CommitmentHistoryEntry is one append-only status change. Evidence files are
// attachments owned by the entry.
type CommitmentHistoryEntry struct {
	ID            uuid.UUID       `json:"id"`
	CommitmentID  uuid.UUID       `json:"commitment_id"`
	PreviousState CommitmentState `json:"previous_state"`
	NewState      CommitmentState `json:"new_state"`
	Detail        string          `json:"detail"`
	AuthorID      uuid.UUID       `json:"author_id"`
	CreatedAt     time.Time       `json:"created_at"`
}
