// Package acta implements the meeting-record aggregate: creation, draft
// editing with audit snapshots, and commitment follow-up.
package acta

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"recaudo/internal/audit"
	"recaudo/internal/domain"
	"recaudo/internal/platform/metrics"
	"recaudo/internal/storage"
	domainerrors "recaudo/pkg/domain-errors"
	"recaudo/pkg/platform/sentinel"
)

// ParticipantInput is one participant as submitted by the caller. A set
// UserID marks an internal participant whose name and email are snapshotted
// from the user directory; external participants carry their own.
type ParticipantInput struct {
	UserID           *uuid.UUID `json:"user_id,omitempty"`
	Name             string     `json:"name"`
	Email            string     `json:"email"`
	Title            string     `json:"title"`
	RequiresApproval bool       `json:"requires_approval"`
}

type CommitmentInput struct {
	Description            string     `json:"description"`
	DueDate                *time.Time `json:"due_date,omitempty"`
	AssigneeParticipantPos *int       `json:"assignee_participant_pos,omitempty"`
	AssigneeClientMemberID *uuid.UUID `json:"assignee_client_member_id,omitempty"`
}

// Draft is the full editable content of an acta. Create and Edit both take
// the whole thing; partial updates do not exist.
type Draft struct {
	Date               time.Time          `json:"date"`
	Objective          string             `json:"objective"`
	Body               string             `json:"body"`
	CommitmentsSummary string             `json:"commitments_summary"`
	ClientIDs          []uuid.UUID        `json:"client_ids"`
	ActivityIDs        []uuid.UUID        `json:"activity_ids"`
	Participants       []ParticipantInput `json:"participants"`
	Commitments        []CommitmentInput  `json:"commitments"`
}

// View is the acta aggregate with its children, as served to internal users.
type View struct {
	Acta         *domain.Acta         `json:"acta"`
	Participants []*domain.Participant `json:"participants"`
	Commitments  []*domain.Commitment  `json:"commitments"`
	Attachments  []*domain.Attachment  `json:"attachments"`
}

type Service struct {
	actas        storage.ActaStore
	participants storage.ParticipantStore
	commitments  storage.CommitmentStore
	attachments  storage.AttachmentStore
	users        storage.UserDirectory
	audit        *audit.Service
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func NewService(
	actas storage.ActaStore,
	participants storage.ParticipantStore,
	commitments storage.CommitmentStore,
	attachments storage.AttachmentStore,
	users storage.UserDirectory,
	auditSvc *audit.Service,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		actas:        actas,
		participants: participants,
		commitments:  commitments,
		attachments:  attachments,
		users:        users,
		audit:        auditSvc,
		metrics:      m,
		logger:       logger,
	}
}

// Create persists a new draft and writes the creation audit entry carrying
// the initial snapshot.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, draft Draft) (*View, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	acta := &domain.Acta{
		ID:                 uuid.New(),
		Date:               draft.Date,
		Objective:          draft.Objective,
		Body:               draft.Body,
		CommitmentsSummary: draft.CommitmentsSummary,
		State:              domain.StateDraft,
		CreatedBy:          actorID,
		ClientIDs:          draft.ClientIDs,
		ActivityIDs:        draft.ActivityIDs,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	participants, err := s.buildParticipants(ctx, acta.ID, draft.Participants)
	if err != nil {
		return nil, err
	}
	commitments, err := buildCommitments(acta.ID, draft.Commitments, len(participants), now)
	if err != nil {
		return nil, err
	}

	if err := s.actas.Create(ctx, acta); err != nil {
		return nil, fmt.Errorf("create acta: %w", err)
	}
	if err := s.participants.ReplaceForActa(ctx, acta.ID, participants); err != nil {
		return nil, fmt.Errorf("store participants: %w", err)
	}
	if err := s.commitments.ReplaceForActa(ctx, acta.ID, commitments); err != nil {
		return nil, fmt.Errorf("store commitments: %w", err)
	}

	after := snapshotOf(acta, participants, commitments)
	if err := s.audit.Record(ctx, acta.ID, domain.AuditCreation, &actorID, domain.CreationMetadata{After: after}); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ActasCreated.Inc()
	}
	s.logger.InfoContext(ctx, "acta created", "acta_id", acta.ID, "created_by", actorID)

	return &View{Acta: acta, Participants: participants, Commitments: commitments}, nil
}

// Get loads the aggregate with all children.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	acta, err := s.findActa(ctx, id)
	if err != nil {
		return nil, err
	}
	participants, err := s.participants.ListByActa(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	commitments, err := s.commitments.ListByActa(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	attachments, err := s.attachments.ListByActa(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return &View{Acta: acta, Participants: participants, Commitments: commitments, Attachments: attachments}, nil
}

// Edit replaces the draft's content. Only drafts are editable, and only by
// their creator or an admin. The audit entry carries both sides verbatim.
func (s *Service) Edit(ctx context.Context, actorID uuid.UUID, admin bool, id uuid.UUID, draft Draft) (*View, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	acta, err := s.findActa(ctx, id)
	if err != nil {
		return nil, err
	}
	if !acta.Editable() {
		return nil, domainerrors.New(domainerrors.CodeInvalidState, "only draft actas can be edited")
	}
	if !acta.OwnedBy(actorID) && !admin {
		return nil, domainerrors.New(domainerrors.CodeForbidden, "only the creator or an admin can edit this acta")
	}

	beforeParticipants, err := s.participants.ListByActa(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	beforeCommitments, err := s.commitments.ListByActa(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	before := snapshotOf(acta, beforeParticipants, beforeCommitments)

	now := time.Now().UTC()
	acta.Date = draft.Date
	acta.Objective = draft.Objective
	acta.Body = draft.Body
	acta.CommitmentsSummary = draft.CommitmentsSummary
	acta.ClientIDs = draft.ClientIDs
	acta.ActivityIDs = draft.ActivityIDs
	acta.UpdatedAt = now

	participants, err := s.buildParticipants(ctx, id, draft.Participants)
	if err != nil {
		return nil, err
	}
	commitments, err := buildCommitments(id, draft.Commitments, len(participants), now)
	if err != nil {
		return nil, err
	}

	if err := s.actas.Update(ctx, acta); err != nil {
		return nil, fmt.Errorf("update acta: %w", err)
	}
	if err := s.participants.ReplaceForActa(ctx, id, participants); err != nil {
		return nil, fmt.Errorf("store participants: %w", err)
	}
	if err := s.commitments.ReplaceForActa(ctx, id, commitments); err != nil {
		return nil, fmt.Errorf("store commitments: %w", err)
	}

	after := snapshotOf(acta, participants, commitments)
	if err := s.audit.Record(ctx, id, domain.AuditEdit, &actorID, domain.EditMetadata{Before: before, After: after}); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "acta edited", "acta_id", id, "actor_id", actorID)

	return &View{Acta: acta, Participants: participants, Commitments: commitments}, nil
}

// History serves the audit trail for the history view.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*domain.AuditEntry, error) {
	if _, err := s.findActa(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.ListByActa(ctx, id)
}

// UpdateCommitmentStatus moves one commitment to a new state and appends the
// history entry. Evidence files attach to the returned entry afterwards.
func (s *Service) UpdateCommitmentStatus(ctx context.Context, actorID, actaID, commitmentID uuid.UUID, newState domain.CommitmentState, detail string) (*domain.CommitmentHistoryEntry, error) {
	switch newState {
	case domain.CommitmentPending, domain.CommitmentFulfilled, domain.CommitmentUnfulfilled:
	default:
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "unknown commitment state "+string(newState))
	}

	commitment, err := s.commitments.FindByID(ctx, commitmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "commitment not found")
		}
		return nil, err
	}
	if commitment.ActaID != actaID {
		return nil, domainerrors.New(domainerrors.CodeNotFound, "commitment not found")
	}

	now := time.Now().UTC()
	entry := &domain.CommitmentHistoryEntry{
		ID:            uuid.New(),
		CommitmentID:  commitmentID,
		PreviousState: commitment.State,
		NewState:      newState,
		Detail:        detail,
		AuthorID:      actorID,
		CreatedAt:     now,
	}

	commitment.State = newState
	commitment.StatusDetail = detail
	commitment.UpdatedBy = &actorID
	commitment.UpdatedAt = now
	if err := s.commitments.UpdateStatus(ctx, commitment); err != nil {
		return nil, fmt.Errorf("update commitment: %w", err)
	}
	if err := s.commitments.AppendHistory(ctx, entry); err != nil {
		return nil, fmt.Errorf("append commitment history: %w", err)
	}
	return entry, nil
}

// CommitmentHistory lists the append-only status changes of one commitment.
func (s *Service) CommitmentHistory(ctx context.Context, actaID, commitmentID uuid.UUID) ([]*domain.CommitmentHistoryEntry, error) {
	commitment, err := s.commitments.FindByID(ctx, commitmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "commitment not found")
		}
		return nil, err
	}
	if commitment.ActaID != actaID {
		return nil, domainerrors.New(domainerrors.CodeNotFound, "commitment not found")
	}
	return s.commitments.ListHistory(ctx, commitmentID)
}

func (s *Service) findActa(ctx context.Context, id uuid.UUID) (*domain.Acta, error) {
	acta, err := s.actas.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "acta not found")
		}
		return nil, err
	}
	return acta, nil
}

// buildParticipants turns inputs into rows, snapshotting internal users from
// the directory and enforcing email uniqueness within the acta.
func (s *Service) buildParticipants(ctx context.Context, actaID uuid.UUID, inputs []ParticipantInput) ([]*domain.Participant, error) {
	seen := make(map[string]bool, len(inputs))
	out := make([]*domain.Participant, 0, len(inputs))
	for i, in := range inputs {
		p := &domain.Participant{
			ID:               uuid.New(),
			ActaID:           actaID,
			Title:            in.Title,
			RequiresApproval: in.RequiresApproval,
			Position:         i,
		}
		if in.UserID != nil {
			user, err := s.users.FindByID(ctx, *in.UserID)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return nil, domainerrors.New(domainerrors.CodeBadRequest,
						fmt.Sprintf("participant %d references an unknown user", i))
				}
				return nil, err
			}
			p.UserID = in.UserID
			p.Kind = domain.ParticipantInternal
			p.Name = user.Name
			p.Email = user.Email
		} else {
			if in.Name == "" || in.Email == "" {
				return nil, domainerrors.New(domainerrors.CodeBadRequest,
					fmt.Sprintf("participant %d needs a name and email", i))
			}
			p.Kind = domain.ParticipantExternal
			p.Name = in.Name
			p.Email = in.Email
		}
		key := strings.ToLower(p.Email)
		if seen[key] {
			return nil, domainerrors.New(domainerrors.CodeBadRequest, "duplicate participant email "+p.Email)
		}
		seen[key] = true
		out = append(out, p)
	}
	return out, nil
}

func buildCommitments(actaID uuid.UUID, inputs []CommitmentInput, participantCount int, now time.Time) ([]*domain.Commitment, error) {
	out := make([]*domain.Commitment, 0, len(inputs))
	for i, in := range inputs {
		if in.Description == "" {
			return nil, domainerrors.New(domainerrors.CodeBadRequest,
				fmt.Sprintf("commitment %d needs a description", i))
		}
		c := &domain.Commitment{
			ID:                     uuid.New(),
			ActaID:                 actaID,
			Description:            in.Description,
			DueDate:                in.DueDate,
			AssigneeParticipantPos: in.AssigneeParticipantPos,
			AssigneeClientMemberID: in.AssigneeClientMemberID,
			State:                  domain.CommitmentPending,
			UpdatedAt:              now,
		}
		if err := c.ValidateAssignee(); err != nil {
			return nil, domainerrors.New(domainerrors.CodeBadRequest, err.Error())
		}
		if c.AssigneeParticipantPos != nil {
			if pos := *c.AssigneeParticipantPos; pos < 0 || pos >= participantCount {
				return nil, domainerrors.New(domainerrors.CodeBadRequest,
					fmt.Sprintf("commitment %d assignee position %d is out of range", i, pos))
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func validateDraft(draft Draft) error {
	if draft.Objective == "" {
		return domainerrors.New(domainerrors.CodeBadRequest, "objective is required")
	}
	if draft.Date.IsZero() {
		return domainerrors.New(domainerrors.CodeBadRequest, "date is required")
	}
	return nil
}

func snapshotOf(acta *domain.Acta, participants []*domain.Participant, commitments []*domain.Commitment) domain.Snapshot {
	snap := domain.Snapshot{
		Date:               acta.Date,
		Objective:          acta.Objective,
		Body:               acta.Body,
		CommitmentsSummary: acta.CommitmentsSummary,
		ClientIDs:          acta.ClientIDs,
		ActivityIDs:        acta.ActivityIDs,
	}
	for _, p := range participants {
		snap.Participants = append(snap.Participants, domain.ParticipantSnapshot{
			Name:             p.Name,
			Email:            p.Email,
			Kind:             string(p.Kind),
			Title:            p.Title,
			RequiresApproval: p.RequiresApproval,
		})
	}
	for _, c := range commitments {
		snap.Commitments = append(snap.Commitments, domain.CommitmentSnapshot{
			Description:            c.Description,
			DueDate:                c.DueDate,
			AssigneeParticipantPos: c.AssigneeParticipantPos,
			AssigneeClientMemberID: c.AssigneeClientMemberID,
			State:                  string(c.State),
		})
	}
	return snap
}
