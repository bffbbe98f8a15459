package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActaState is the lifecycle state of a meeting record.
type ActaState string

const (
	StateDraft           ActaState = "draft"
	StatePendingApproval ActaState = "pending_approval"
	StateApproved        ActaState = "approved"
	StateSent            ActaState = "sent"
)

// transitions lists the only legal state changes. pending_approval -> draft is
// the regression edge taken when any participant rejects.
var transitions = map[ActaState][]ActaState{
	StateDraft:           {StatePendingApproval},
	StatePendingApproval: {StateApproved, StateDraft},
	StateApproved:        {StateSent},
}

// CanTransitionTo reports whether the state machine allows moving to next.
func (s ActaState) CanTransitionTo(next ActaState) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Acta is the meeting record aggregate under approval.
type Acta struct {
	ID                 uuid.UUID   `json:"id"`
	Date               time.Time   `json:"date"`
	Objective          string      `json:"objective"`
	Body               string      `json:"body"` // rich text, untrusted when rendered publicly
	CommitmentsSummary string      `json:"commitments_summary"`
	State              ActaState   `json:"state"`
	CreatedBy          uuid.UUID   `json:"created_by"`
	ApprovedBy         *uuid.UUID  `json:"approved_by,omitempty"`
	ClientIDs          []uuid.UUID `json:"client_ids"`
	ActivityIDs        []uuid.UUID `json:"activity_ids"`

	// ApprovalRound counts submissions. Approval rows carry the round they
	// were minted in; only current-round rows gate completion, so a rejected
	// cycle's rows stay behind as history without blocking resubmission.
	ApprovalRound int `json:"approval_round"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Editable reports whether the acta accepts content changes. Only drafts do.
func (a *Acta) Editable() bool { return a.State == StateDraft }

// OwnedBy reports whether userID is the creator.
func (a *Acta) OwnedBy(userID uuid.UUID) bool { return a.CreatedBy == userID }

// ParticipantKind distinguishes internal users from external contacts.
type ParticipantKind string

const (
	ParticipantInternal ParticipantKind = "internal"
	ParticipantExternal ParticipantKind = "external"
)

// Participant is a person whose sign-off may be required on an acta. Name and
// email are snapshotted at write time even for internal participants so
// historical actas stay stable if the user record later changes.
type Participant struct {
	ID               uuid.UUID       `json:"id"`
	ActaID           uuid.UUID       `json:"acta_id"`
	UserID           *uuid.UUID      `json:"user_id,omitempty"` // set for internal participants only
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	Kind             ParticipantKind `json:"kind"`
	Title            string          `json:"title"`
	RequiresApproval bool            `json:"requires_approval"`
	Position         int             `json:"position"` // stable ordering; commitments reference assignees by position
}

// ParticipantApproval is one participant's pending/approved/rejected record
// for one approval round. A row is terminal in at most one way: approved with
// photo evidence, or rejected with a reason.
type ParticipantApproval struct {
	ID              uuid.UUID  `json:"id"`
	ActaID          uuid.UUID  `json:"acta_id"`
	ParticipantID   uuid.UUID  `json:"participant_id"`
	Round           int        `json:"round"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	PhotoPath       string     `json:"-"` // required once approved
	Rejected        bool       `json:"rejected"`
	RejectionReason string     `json:"rejection_reason"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Pending reports whether the row has reached no terminal state yet.
func (p *ParticipantApproval) Pending() bool {
	return p.ApprovedAt == nil && !p.Rejected
}

// User is the internal user directory row this system consumes. The directory
// itself (login, CRUD) is an external collaborator.
type User struct {
	ID    uuid.UUID
	Name  string
	Email string
	Role  string
}
