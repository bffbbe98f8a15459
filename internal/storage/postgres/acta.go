package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"recaudo/internal/domain"
	"recaudo/pkg/platform/sentinel"
)

type ActaStore struct {
	db *sql.DB
}

func NewActaStore(db *sql.DB) *ActaStore {
	return &ActaStore{db: db}
}

func (s *ActaStore) Create(ctx context.Context, acta *domain.Acta) error {
	query := `
		INSERT INTO actas (id, date, objective, body, commitments_summary, state,
			created_by, approved_by, client_ids, activity_ids, approval_round,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		acta.ID,
		acta.Date,
		acta.Objective,
		acta.Body,
		acta.CommitmentsSummary,
		string(acta.State),
		acta.CreatedBy,
		acta.ApprovedBy,
		uuidArray(acta.ClientIDs),
		uuidArray(acta.ActivityIDs),
		acta.ApprovalRound,
		acta.CreatedAt,
		acta.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert acta: %w", err)
	}
	return nil
}

func (s *ActaStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Acta, error) {
	query := `
		SELECT id, date, objective, body, commitments_summary, state,
			created_by, approved_by, client_ids, activity_ids, approval_round,
			created_at, updated_at
		FROM actas
		WHERE id = $1
	`
	acta, err := scanActa(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("acta %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find acta: %w", err)
	}
	return acta, nil
}

func (s *ActaStore) Update(ctx context.Context, acta *domain.Acta) error {
	// State and approval_round are owned by the conditional methods.
	query := `
		UPDATE actas
		SET date = $2, objective = $3, body = $4, commitments_summary = $5,
			client_ids = $6, activity_ids = $7, updated_at = $8
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		acta.ID,
		acta.Date,
		acta.Objective,
		acta.Body,
		acta.CommitmentsSummary,
		uuidArray(acta.ClientIDs),
		uuidArray(acta.ActivityIDs),
		acta.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update acta: %w", err)
	}
	return requireRow(result, sentinel.ErrNotFound)
}

func (s *ActaStore) TransitionState(ctx context.Context, id uuid.UUID, from, to domain.ActaState) error {
	query := `
		UPDATE actas
		SET state = $3, updated_at = now()
		WHERE id = $1 AND state = $2
	`
	result, err := s.db.ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("transition acta state: %w", err)
	}
	if err := requireRow(result, sentinel.ErrInvalidState); err != nil {
		// Distinguish missing acta from wrong state.
		if _, findErr := s.FindByID(ctx, id); errors.Is(findErr, sentinel.ErrNotFound) {
			return findErr
		}
		return err
	}
	return nil
}

func (s *ActaStore) BeginApprovalRound(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE actas
		SET state = $2, approval_round = approval_round + 1, updated_at = now()
		WHERE id = $1 AND state = $3
		RETURNING approval_round
	`
	var round int
	err := s.db.QueryRowContext(ctx, query, id,
		string(domain.StatePendingApproval), string(domain.StateDraft)).Scan(&round)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, findErr := s.FindByID(ctx, id); errors.Is(findErr, sentinel.ErrNotFound) {
				return 0, findErr
			}
			return 0, sentinel.ErrInvalidState
		}
		return 0, fmt.Errorf("begin approval round: %w", err)
	}
	return round, nil
}

func (s *ActaStore) SetApprover(ctx context.Context, id uuid.UUID, userID *uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE actas SET approved_by = $2, updated_at = now() WHERE id = $1`, id, userID)
	if err != nil {
		return fmt.Errorf("set approver: %w", err)
	}
	return requireRow(result, sentinel.ErrNotFound)
}

type row interface {
	Scan(dest ...any) error
}

func scanActa(r row) (*domain.Acta, error) {
	var (
		acta       domain.Acta
		state      string
		approvedBy *uuid.UUID
		clientIDs  pq.StringArray
		activities pq.StringArray
	)
	err := r.Scan(
		&acta.ID,
		&acta.Date,
		&acta.Objective,
		&acta.Body,
		&acta.CommitmentsSummary,
		&state,
		&acta.CreatedBy,
		&approvedBy,
		&clientIDs,
		&activities,
		&acta.ApprovalRound,
		&acta.CreatedAt,
		&acta.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	acta.State = domain.ActaState(state)
	acta.ApprovedBy = approvedBy
	if acta.ClientIDs, err = parseUUIDs(clientIDs); err != nil {
		return nil, fmt.Errorf("parse client ids: %w", err)
	}
	if acta.ActivityIDs, err = parseUUIDs(activities); err != nil {
		return nil, fmt.Errorf("parse activity ids: %w", err)
	}
	return &acta, nil
}

func uuidArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func parseUUIDs(raw pq.StringArray) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func requireRow(result sql.Result, missing error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return missing
	}
	return nil
}
