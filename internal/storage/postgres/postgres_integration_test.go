//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"recaudo/internal/domain"
	"recaudo/pkg/platform/sentinel"
	"recaudo/pkg/testutil/containers"
)

type PostgresSuite struct {
	suite.Suite

	ctx   context.Context
	actas *ActaStore
	parts *ParticipantStore
	appr  *ApprovalStore
	users *UserDirectory

	creator uuid.UUID
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.ctx = context.Background()
	dsn := containers.StartPostgres(s.T())

	db, err := Open(dsn)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })
	s.Require().NoError(ApplySchema(s.ctx, db))

	s.actas = NewActaStore(db)
	s.parts = NewParticipantStore(db)
	s.appr = NewApprovalStore(db)
	s.users = NewUserDirectory(db)

	s.creator = uuid.New()
	_, err = db.ExecContext(s.ctx,
		`INSERT INTO users (id, name, email, role) VALUES ($1, 'Ana Torres', 'ana@agency.example', 'agent')`,
		s.creator)
	s.Require().NoError(err)
}

func (s *PostgresSuite) newActa() *domain.Acta {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Acta{
		ID:          uuid.New(),
		Date:        now,
		Objective:   "Plan de pagos",
		Body:        "<p>Reunión</p>",
		State:       domain.StateDraft,
		CreatedBy:   s.creator,
		ClientIDs:   []uuid.UUID{uuid.New()},
		ActivityIDs: []uuid.UUID{uuid.New(), uuid.New()},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *PostgresSuite) TestActaRoundTrip() {
	acta := s.newActa()
	s.Require().NoError(s.actas.Create(s.ctx, acta))

	got, err := s.actas.FindByID(s.ctx, acta.ID)
	s.Require().NoError(err)
	s.Equal(acta.Objective, got.Objective)
	s.Equal(domain.StateDraft, got.State)
	s.Equal(acta.ClientIDs, got.ClientIDs)
	s.Equal(acta.ActivityIDs, got.ActivityIDs)
	s.Equal(0, got.ApprovalRound)
}

func (s *PostgresSuite) TestFindMissing() {
	_, err := s.actas.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.users.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresSuite) TestTransitionStateIsConditional() {
	acta := s.newActa()
	s.Require().NoError(s.actas.Create(s.ctx, acta))

	err := s.actas.TransitionState(s.ctx, acta.ID, domain.StateApproved, domain.StateSent)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	round, err := s.actas.BeginApprovalRound(s.ctx, acta.ID)
	s.Require().NoError(err)
	s.Equal(1, round)

	_, err = s.actas.BeginApprovalRound(s.ctx, acta.ID)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	s.Require().NoError(s.actas.TransitionState(s.ctx, acta.ID, domain.StatePendingApproval, domain.StateApproved))
	got, err := s.actas.FindByID(s.ctx, acta.ID)
	s.Require().NoError(err)
	s.Equal(domain.StateApproved, got.State)
}

func (s *PostgresSuite) TestApprovalConditionalUpdates() {
	acta := s.newActa()
	s.Require().NoError(s.actas.Create(s.ctx, acta))

	participant := &domain.Participant{
		ID: uuid.New(), ActaID: acta.ID, Name: "Carlos", Email: "carlos@client.example",
		Kind: domain.ParticipantExternal, RequiresApproval: true,
	}
	s.Require().NoError(s.parts.ReplaceForActa(s.ctx, acta.ID, []*domain.Participant{participant}))

	row := &domain.ParticipantApproval{
		ID: uuid.New(), ActaID: acta.ID, ParticipantID: participant.ID,
		Round: 1, CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.appr.CreateBatch(s.ctx, []*domain.ParticipantApproval{row}))

	applied, err := s.appr.Approve(s.ctx, row.ID, time.Now().UTC(), "actas/x/photo.jpg")
	s.Require().NoError(err)
	s.True(applied)

	// Second decision of any kind does not apply.
	applied, err = s.appr.Approve(s.ctx, row.ID, time.Now().UTC(), "actas/x/other.jpg")
	s.Require().NoError(err)
	s.False(applied)
	applied, err = s.appr.Reject(s.ctx, row.ID, "late")
	s.Require().NoError(err)
	s.False(applied)

	got, err := s.appr.FindCurrent(s.ctx, acta.ID, participant.ID, 1)
	s.Require().NoError(err)
	s.NotNil(got.ApprovedAt)
	s.Equal("actas/x/photo.jpg", got.PhotoPath)
	s.False(got.Rejected)
}

func (s *PostgresSuite) TestApproveMissingRow() {
	_, err := s.appr.Approve(s.ctx, uuid.New(), time.Now().UTC(), "p")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresSuite) TestParticipantReplaceIsWholesale() {
	acta := s.newActa()
	s.Require().NoError(s.actas.Create(s.ctx, acta))

	first := &domain.Participant{
		ID: uuid.New(), ActaID: acta.ID, Name: "A", Email: "a@client.example",
		Kind: domain.ParticipantExternal,
	}
	s.Require().NoError(s.parts.ReplaceForActa(s.ctx, acta.ID, []*domain.Participant{first}))

	second := &domain.Participant{
		ID: uuid.New(), ActaID: acta.ID, Name: "B", Email: "b@client.example",
		Kind: domain.ParticipantExternal, Position: 0,
	}
	s.Require().NoError(s.parts.ReplaceForActa(s.ctx, acta.ID, []*domain.Participant{second}))

	listed, err := s.parts.ListByActa(s.ctx, acta.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal("B", listed[0].Name)
}
