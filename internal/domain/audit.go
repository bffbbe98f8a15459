package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditKind classifies one lifecycle event in the append-only trail.
type AuditKind string

const (
	AuditCreation             AuditKind = "creation"
	AuditEdit                 AuditKind = "edit"
	AuditSubmitForApproval    AuditKind = "submit_for_approval"
	AuditApproval             AuditKind = "approval"
	AuditParticipantRejection AuditKind = "participant_rejection"
	AuditEmailSent            AuditKind = "email_sent"
)

// AuditEntry is an immutable record of one acta lifecycle event. Actor is nil
// for events driven by unauthenticated external participants.
type AuditEntry struct {
	ID        uuid.UUID       `json:"id"`
	ActaID    uuid.UUID       `json:"acta_id"`
	Kind      AuditKind       `json:"kind"`
	ActorID   *uuid.UUID      `json:"actor_id,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Snapshot is the structural state of an acta captured around edits. Edit
// entries carry both sides verbatim (not a computed delta) so the history
// view can diff client-side.
type Snapshot struct {
	Date               time.Time             `json:"date"`
	Objective          string                `json:"objective"`
	Body               string                `json:"body"`
	CommitmentsSummary string                `json:"commitments_summary"`
	ClientIDs          []uuid.UUID           `json:"client_ids"`
	ActivityIDs        []uuid.UUID           `json:"activity_ids"`
	Participants       []ParticipantSnapshot `json:"participants"`
	Commitments        []CommitmentSnapshot  `json:"commitments"`
}

type ParticipantSnapshot struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Kind             string `json:"kind"`
	Title            string `json:"title"`
	RequiresApproval bool   `json:"requires_approval"`
}

type CommitmentSnapshot struct {
	Description            string     `json:"description"`
	DueDate                *time.Time `json:"due_date,omitempty"`
	AssigneeParticipantPos *int       `json:"assignee_participant_pos,omitempty"`
	AssigneeClientMemberID *uuid.UUID `json:"assignee_client_member_id,omitempty"`
	State                  string     `json:"state"`
}

// EditMetadata is the payload of an edit audit entry.
type EditMetadata struct {
	Before Snapshot `json:"before"`
	After  Snapshot `json:"after"`
}

// CreationMetadata carries only the after side: there is no before.
type CreationMetadata struct {
	After Snapshot `json:"after"`
}

// SubmitMetadata records which round began and who was asked to approve.
type SubmitMetadata struct {
	Round          int         `json:"round"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

// RejectionMetadata carries the participant's reason and the synthetic
// returned-to-draft marker that distinguishes the forced regression from a
// normal edit.
type RejectionMetadata struct {
	ParticipantID   uuid.UUID `json:"participant_id"`
	Reason          string    `json:"reason"`
	ReturnedToDraft bool      `json:"returned_to_draft"`
}

// ApprovalMetadata records which participant approved and the evidence path.
type ApprovalMetadata struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	PhotoPath     string    `json:"photo_path"`
}

// MarshalMetadata is a small helper so services never hand-build JSON.
func MarshalMetadata(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
