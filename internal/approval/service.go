// Package approval drives the sign-off workflow: submission, the external
// approve/reject decisions, completion, and the final sent transition.
package approval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"recaudo/internal/attachment"
	"recaudo/internal/audit"
	"recaudo/internal/domain"
	"recaudo/internal/notify"
	"recaudo/internal/platform/metrics"
	"recaudo/internal/sanitize"
	"recaudo/internal/signer"
	"recaudo/internal/storage"
	domainerrors "recaudo/pkg/domain-errors"
	"recaudo/pkg/platform/sentinel"
)

type Service struct {
	actas         storage.ActaStore
	participants  storage.ParticipantStore
	approvals     storage.ApprovalStore
	commitments   storage.CommitmentStore
	attachments   *attachment.Service
	audit         *audit.Service
	signer        *signer.Signer
	notifier      notify.Notifier
	publicBaseURL string
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func NewService(
	actas storage.ActaStore,
	participants storage.ParticipantStore,
	approvals storage.ApprovalStore,
	commitments storage.CommitmentStore,
	attachments *attachment.Service,
	auditSvc *audit.Service,
	sgn *signer.Signer,
	notifier notify.Notifier,
	publicBaseURL string,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		actas:         actas,
		participants:  participants,
		approvals:     approvals,
		commitments:   commitments,
		attachments:   attachments,
		audit:         auditSvc,
		signer:        sgn,
		notifier:      notifier,
		publicBaseURL: publicBaseURL,
		metrics:       m,
		logger:        logger,
	}
}

// Submit moves a draft into its next approval round: the state flips to
// pending_approval, a fresh approval row is minted per flagged participant,
// and each one is notified with their signed link.
func (s *Service) Submit(ctx context.Context, actorID uuid.UUID, admin bool, actaID uuid.UUID) error {
	acta, err := s.findActa(ctx, actaID)
	if err != nil {
		return err
	}
	if !acta.OwnedBy(actorID) && !admin {
		return domainerrors.New(domainerrors.CodeForbidden, "only the creator or an admin can submit this acta")
	}

	participants, err := s.participants.ListByActa(ctx, actaID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	flagged := make([]*domain.Participant, 0, len(participants))
	for _, p := range participants {
		if p.RequiresApproval {
			flagged = append(flagged, p)
		}
	}
	if len(flagged) == 0 {
		return domainerrors.New(domainerrors.CodeBadRequest, "at least one participant must require approval")
	}

	round, err := s.actas.BeginApprovalRound(ctx, actaID)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return domainerrors.New(domainerrors.CodeInvalidState, "only draft actas can be submitted")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "acta not found")
		}
		return fmt.Errorf("begin approval round: %w", err)
	}

	now := time.Now().UTC()
	rows := make([]*domain.ParticipantApproval, 0, len(flagged))
	participantIDs := make([]uuid.UUID, 0, len(flagged))
	for _, p := range flagged {
		rows = append(rows, &domain.ParticipantApproval{
			ID:            uuid.New(),
			ActaID:        actaID,
			ParticipantID: p.ID,
			Round:         round,
			CreatedAt:     now,
		})
		participantIDs = append(participantIDs, p.ID)
	}
	if err := s.approvals.CreateBatch(ctx, rows); err != nil {
		return fmt.Errorf("create approval rows: %w", err)
	}

	if err := s.audit.Record(ctx, actaID, domain.AuditSubmitForApproval, &actorID,
		domain.SubmitMetadata{Round: round, ParticipantIDs: participantIDs}); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ActasSubmitted.Inc()
	}
	s.logger.InfoContext(ctx, "acta submitted for approval",
		"acta_id", actaID, "round", round, "participants", len(flagged))

	docs, err := s.actaDocuments(ctx, actaID)
	if err != nil {
		return fmt.Errorf("list acta documents: %w", err)
	}
	for _, p := range flagged {
		s.notifyParticipant(actaID, acta.Objective, p, docs)
	}
	return nil
}

// notifyParticipant delivers one approval request without blocking the
// request. Failures are logged and counted, never surfaced to the submitter.
func (s *Service) notifyParticipant(actaID uuid.UUID, objective string, p *domain.Participant, docs []*domain.Attachment) {
	req := notify.ApprovalRequest{
		ActaID:           actaID,
		ParticipantName:  p.Name,
		ParticipantEmail: p.Email,
		Objective:        objective,
		ApprovalLink:     s.signer.ApprovalLink(s.publicBaseURL, actaID.String(), p.ID.String()),
	}
	for _, doc := range docs {
		req.DocumentLinks = append(req.DocumentLinks,
			s.signer.DocumentLink(s.publicBaseURL, actaID.String(), p.ID.String(), doc.ID.String()))
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.SendApprovalRequest(ctx, req); err != nil {
			s.logger.Error("approval notification failed",
				"acta_id", actaID,
				"participant_id", p.ID,
				"error", err,
			)
			if s.metrics != nil {
				s.metrics.NotificationFailures.Inc()
			}
		}
	}()
}

// Preview is the public read model a link holder sees. The body is sanitized
// before it leaves the server.
type Preview struct {
	ActaID             uuid.UUID            `json:"acta_id"`
	Date               time.Time            `json:"date"`
	Objective          string               `json:"objective"`
	Body               string               `json:"body"`
	CommitmentsSummary string               `json:"commitments_summary"`
	State              string               `json:"state"`
	Participants       []PreviewParticipant `json:"participants"`
	Commitments        []PreviewCommitment  `json:"commitments"`
	Documents          []PreviewDocument    `json:"documents"`
	Status             string               `json:"status"`
	ApprovedAt         *time.Time           `json:"approved_at,omitempty"`
}

type PreviewParticipant struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Kind  string `json:"kind"`
}

type PreviewCommitment struct {
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	State       string     `json:"state"`
}

type PreviewDocument struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Participant approval status values as shown on the public preview.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Preview authorizes by signature and returns the read model. Links minted
// for a previous round still verify; the status shown is the current round's.
func (s *Service) Preview(ctx context.Context, actaID, participantID uuid.UUID, signature string) (*Preview, error) {
	acta, participant, err := s.authorize(ctx, actaID, participantID, signature, signer.PurposeParticipantApproval)
	if err != nil {
		return nil, err
	}
	if acta.State == domain.StateDraft {
		return nil, domainerrors.New(domainerrors.CodeNotFound, "acta is not awaiting approval")
	}

	participants, err := s.participants.ListByActa(ctx, actaID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	commitments, err := s.commitments.ListByActa(ctx, actaID)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	docs, err := s.actaDocuments(ctx, actaID)
	if err != nil {
		return nil, fmt.Errorf("list acta documents: %w", err)
	}

	preview := &Preview{
		ActaID:             acta.ID,
		Date:               acta.Date,
		Objective:          acta.Objective,
		Body:               sanitize.Body(acta.Body),
		CommitmentsSummary: acta.CommitmentsSummary,
		State:              string(acta.State),
		Status:             StatusPending,
	}
	for _, p := range participants {
		preview.Participants = append(preview.Participants, PreviewParticipant{
			Name: p.Name, Title: p.Title, Kind: string(p.Kind),
		})
	}
	for _, c := range commitments {
		preview.Commitments = append(preview.Commitments, PreviewCommitment{
			Description: c.Description, DueDate: c.DueDate, State: string(c.State),
		})
	}
	for _, doc := range docs {
		preview.Documents = append(preview.Documents, PreviewDocument{
			Name: doc.FileName,
			Size: doc.Size,
			URL:  s.signer.DocumentLink(s.publicBaseURL, actaID.String(), participantID.String(), doc.ID.String()),
		})
	}

	row, err := s.approvals.FindCurrent(ctx, actaID, participant.ID, acta.ApprovalRound)
	if err == nil {
		switch {
		case row.ApprovedAt != nil:
			preview.Status = StatusApproved
			preview.ApprovedAt = row.ApprovedAt
		case row.Rejected:
			preview.Status = StatusRejected
		}
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}
	return preview, nil
}

// Decision is the outcome of one approve call.
type Decision struct {
	AlreadyApproved bool `json:"already_approved"`
	ActaApproved    bool `json:"acta_approved"`
}

// Approve records one participant's sign-off with photo evidence. A repeated
// approval is acknowledged, not an error. When the last pending participant
// approves, the acta itself transitions to approved.
func (s *Service) Approve(ctx context.Context, actaID, participantID uuid.UUID, signature, photoName, photoType string, photoSize int64, photo io.Reader) (*Decision, error) {
	acta, participant, err := s.authorize(ctx, actaID, participantID, signature, signer.PurposeParticipantApproval)
	if err != nil {
		return nil, err
	}
	// Row first, state second: a link re-used after its approval completed
	// the acta must still get the already-approved acknowledgment.
	row, err := s.approvals.FindCurrent(ctx, actaID, participant.ID, acta.ApprovalRound)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "no pending approval for this participant")
		}
		return nil, err
	}
	if row.ApprovedAt != nil {
		return &Decision{AlreadyApproved: true}, nil
	}
	if row.Rejected {
		return nil, domainerrors.New(domainerrors.CodeInvalidState, "this approval round was already rejected")
	}
	if acta.State != domain.StatePendingApproval {
		return nil, domainerrors.New(domainerrors.CodeInvalidState, "acta is not awaiting approval")
	}
	if photo == nil || photoSize <= 0 {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "a photo is required to approve")
	}

	evidence, err := s.attachments.SavePhoto(ctx, row.ID, actaID, photoName, photoType, photoSize, photo)
	if err != nil {
		return nil, err
	}

	applied, err := s.approvals.Approve(ctx, row.ID, time.Now().UTC(), evidence.StoragePath)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race to a concurrent decision; the just-stored evidence is
		// unused, remove it.
		if delErr := s.attachments.Delete(ctx, evidence.ID); delErr != nil {
			s.logger.WarnContext(ctx, "orphaned photo after lost approval race",
				"attachment_id", evidence.ID, "error", delErr)
		}
		current, err := s.approvals.FindCurrent(ctx, actaID, participant.ID, acta.ApprovalRound)
		if err != nil {
			return nil, err
		}
		if current.ApprovedAt != nil {
			return &Decision{AlreadyApproved: true}, nil
		}
		return nil, domainerrors.New(domainerrors.CodeInvalidState, "this approval round was already rejected")
	}

	if err := s.audit.Record(ctx, actaID, domain.AuditApproval, nil,
		domain.ApprovalMetadata{ParticipantID: participant.ID, PhotoPath: evidence.StoragePath}); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ParticipantApprovals.Inc()
	}
	s.logger.InfoContext(ctx, "participant approved",
		"acta_id", actaID, "participant_id", participant.ID, "round", acta.ApprovalRound)

	completed, err := s.completeIfAllApproved(ctx, acta, participant)
	if err != nil {
		return nil, err
	}
	return &Decision{ActaApproved: completed}, nil
}

// completeIfAllApproved re-reads the current round and, when every row is
// approved, transitions the acta. The fresh read (not the in-flight row)
// is what makes concurrent final approvals converge.
func (s *Service) completeIfAllApproved(ctx context.Context, acta *domain.Acta, lastApprover *domain.Participant) (bool, error) {
	rows, err := s.approvals.ListByRound(ctx, acta.ID, acta.ApprovalRound)
	if err != nil {
		return false, fmt.Errorf("list approval round: %w", err)
	}
	for _, r := range rows {
		if r.ApprovedAt == nil {
			return false, nil
		}
	}

	err = s.actas.TransitionState(ctx, acta.ID, domain.StatePendingApproval, domain.StateApproved)
	if err != nil {
		// A concurrent approval already completed the round.
		if errors.Is(err, sentinel.ErrInvalidState) {
			return false, nil
		}
		return false, fmt.Errorf("transition to approved: %w", err)
	}

	if lastApprover.UserID != nil {
		if err := s.actas.SetApprover(ctx, acta.ID, lastApprover.UserID); err != nil {
			return false, fmt.Errorf("set approver: %w", err)
		}
	}
	if s.metrics != nil {
		s.metrics.ActasApproved.Inc()
	}
	s.logger.InfoContext(ctx, "acta fully approved", "acta_id", acta.ID, "round", acta.ApprovalRound)
	return true, nil
}

// Reject records one participant's rejection and forces the acta back to
// draft regardless of how many others already approved.
func (s *Service) Reject(ctx context.Context, actaID, participantID uuid.UUID, signature, reason string) error {
	if reason == "" {
		return domainerrors.New(domainerrors.CodeBadRequest, "a rejection reason is required")
	}
	acta, participant, err := s.authorize(ctx, actaID, participantID, signature, signer.PurposeParticipantApproval)
	if err != nil {
		return err
	}
	if acta.State != domain.StatePendingApproval {
		return domainerrors.New(domainerrors.CodeInvalidState, "acta is not awaiting approval")
	}

	row, err := s.approvals.FindCurrent(ctx, actaID, participant.ID, acta.ApprovalRound)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "no pending approval for this participant")
		}
		return err
	}
	applied, err := s.approvals.Reject(ctx, row.ID, reason)
	if err != nil {
		return err
	}
	if !applied {
		return domainerrors.New(domainerrors.CodeInvalidState, "this approval was already decided")
	}

	returned := true
	err = s.actas.TransitionState(ctx, actaID, domain.StatePendingApproval, domain.StateDraft)
	if err != nil {
		// Another rejection in the same round already pulled it back.
		if !errors.Is(err, sentinel.ErrInvalidState) {
			return fmt.Errorf("return to draft: %w", err)
		}
		returned = false
	}

	if err := s.audit.Record(ctx, actaID, domain.AuditParticipantRejection, nil,
		domain.RejectionMetadata{ParticipantID: participant.ID, Reason: reason, ReturnedToDraft: returned}); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ParticipantRejections.Inc()
	}
	s.logger.InfoContext(ctx, "participant rejected",
		"acta_id", actaID, "participant_id", participant.ID, "round", acta.ApprovalRound)
	return nil
}

// MarkSent finalizes an approved acta after the record has been delivered.
// Document links only start working from here on.
func (s *Service) MarkSent(ctx context.Context, actorID uuid.UUID, admin bool, actaID uuid.UUID) error {
	acta, err := s.findActa(ctx, actaID)
	if err != nil {
		return err
	}
	if !acta.OwnedBy(actorID) && !admin {
		return domainerrors.New(domainerrors.CodeForbidden, "only the creator or an admin can mark this acta sent")
	}

	err = s.actas.TransitionState(ctx, actaID, domain.StateApproved, domain.StateSent)
	if err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return domainerrors.New(domainerrors.CodeInvalidState, "only approved actas can be marked sent")
		}
		return fmt.Errorf("transition to sent: %w", err)
	}
	// External participants leave no internal approver; the sender becomes
	// the approver of record.
	if acta.ApprovedBy == nil {
		if err := s.actas.SetApprover(ctx, actaID, &actorID); err != nil {
			return fmt.Errorf("set approver: %w", err)
		}
	}

	if err := s.audit.Record(ctx, actaID, domain.AuditEmailSent, &actorID, nil); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ActasSent.Inc()
	}
	s.logger.InfoContext(ctx, "acta marked sent", "acta_id", actaID, "actor_id", actorID)
	return nil
}

// Document authorizes a public download. The file streams only once the acta
// is sent, and only for documents that belong to it.
func (s *Service) Document(ctx context.Context, actaID, participantID, docID uuid.UUID, signature string) (*domain.Attachment, io.ReadCloser, error) {
	acta, _, err := s.authorize3(ctx, actaID, participantID, docID, signature)
	if err != nil {
		return nil, nil, err
	}
	if acta.State != domain.StateSent {
		return nil, nil, domainerrors.New(domainerrors.CodeNotFound, "document not available")
	}
	att, rc, err := s.attachments.Read(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	if att.ActaID != actaID || att.OwnerKind != domain.OwnerActa {
		_ = rc.Close()
		return nil, nil, domainerrors.New(domainerrors.CodeNotFound, "document not available")
	}
	return att, rc, nil
}

// authorize verifies the signature and resolves acta + participant, checking
// the participant actually belongs to the acta.
func (s *Service) authorize(ctx context.Context, actaID, participantID uuid.UUID, signature, purpose string) (*domain.Acta, *domain.Participant, error) {
	if !s.signer.Verify(signature, purpose, actaID.String(), participantID.String()) {
		return nil, nil, domainerrors.New(domainerrors.CodeForbidden, "invalid signature")
	}
	return s.resolve(ctx, actaID, participantID)
}

func (s *Service) authorize3(ctx context.Context, actaID, participantID, docID uuid.UUID, signature string) (*domain.Acta, *domain.Participant, error) {
	if !s.signer.Verify(signature, signer.PurposeAttachmentDownload, actaID.String(), participantID.String(), docID.String()) {
		return nil, nil, domainerrors.New(domainerrors.CodeForbidden, "invalid signature")
	}
	return s.resolve(ctx, actaID, participantID)
}

func (s *Service) resolve(ctx context.Context, actaID, participantID uuid.UUID) (*domain.Acta, *domain.Participant, error) {
	acta, err := s.findActa(ctx, actaID)
	if err != nil {
		return nil, nil, err
	}
	participant, err := s.participants.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, domainerrors.New(domainerrors.CodeNotFound, "participant not found")
		}
		return nil, nil, err
	}
	if participant.ActaID != actaID {
		return nil, nil, domainerrors.New(domainerrors.CodeNotFound, "participant not found")
	}
	return acta, participant, nil
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

// actaDocuments returns only acta-owned attachments, the set exposed through
// public document links.
func (s *Service) actaDocuments(ctx context.Context, actaID uuid.UUID) ([]*domain.Attachment, error) {
	return s.attachments.ListByOwner(ctx, domain.OwnerActa, actaID)
}
