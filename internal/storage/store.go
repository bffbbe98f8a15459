// Package storage defines the persistence interfaces. Stores are pure I/O;
// domain rules live in services. Interface-driven so the in-memory and
// Postgres implementations swap without rewiring business code.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"recaudo/internal/domain"
)

type ActaStore interface {
	Create(ctx context.Context, acta *domain.Acta) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Acta, error)

	// Update persists header fields of a draft. State changes go through the
	// conditional methods below, never through Update.
	Update(ctx context.Context, acta *domain.Acta) error

	// TransitionState applies from->to atomically, keyed on the current
	// state. Returns sentinel.ErrInvalidState when the acta is not in from.
	TransitionState(ctx context.Context, id uuid.UUID, from, to domain.ActaState) error

	// BeginApprovalRound moves draft->pending_approval and bumps the round
	// counter in one conditional update, returning the new round.
	BeginApprovalRound(ctx context.Context, id uuid.UUID) (int, error)

	// SetApprover records the approver of record.
	SetApprover(ctx context.Context, id uuid.UUID, userID *uuid.UUID) error
}

type ParticipantStore interface {
	ReplaceForActa(ctx context.Context, actaID uuid.UUID, participants []*domain.Participant) error
	ListByActa(ctx context.Context, actaID uuid.UUID) ([]*domain.Participant, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Participant, error)
}

type ApprovalStore interface {
	CreateBatch(ctx context.Context, approvals []*domain.ParticipantApproval) error

	// FindCurrent returns the participant's approval row for the given round.
	FindCurrent(ctx context.Context, actaID, participantID uuid.UUID, round int) (*domain.ParticipantApproval, error)

	// Approve conditionally marks the row approved. It applies only when the
	// row is still pending; applied=false means the row already reached a
	// terminal state (the idempotency signal, not an error).
	Approve(ctx context.Context, id uuid.UUID, approvedAt time.Time, photoPath string) (applied bool, err error)

	// Reject conditionally marks the row rejected with a reason. Same
	// applied semantics as Approve.
	Reject(ctx context.Context, id uuid.UUID, reason string) (applied bool, err error)

	// ListByRound returns all rows of one approval cycle, freshly read.
	ListByRound(ctx context.Context, actaID uuid.UUID, round int) ([]*domain.ParticipantApproval, error)
}

type CommitmentStore interface {
	ReplaceForActa(ctx context.Context, actaID uuid.UUID, commitments []*domain.Commitment) error
	ListByActa(ctx context.Context, actaID uuid.UUID) ([]*domain.Commitment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Commitment, error)
	UpdateStatus(ctx context.Context, commitment *domain.Commitment) error
	AppendHistory(ctx context.Context, entry *domain.CommitmentHistoryEntry) error
	ListHistory(ctx context.Context, commitmentID uuid.UUID) ([]*domain.CommitmentHistoryEntry, error)
}

type AttachmentStore interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error)
	ListByActa(ctx context.Context, actaID uuid.UUID) ([]*domain.Attachment, error)
	ListByOwner(ctx context.Context, kind domain.AttachmentOwnerKind, ownerID uuid.UUID) ([]*domain.Attachment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AuditStore interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ListByActa(ctx context.Context, actaID uuid.UUID) ([]*domain.AuditEntry, error)
}

// UserDirectory is the read-only view of the internal user catalog this
// system consumes. User CRUD is an external collaborator.
type UserDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}
