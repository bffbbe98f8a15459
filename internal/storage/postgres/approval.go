package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"recaudo/internal/domain"
	"recaudo/pkg/platform/sentinel"
)

type ApprovalStore struct {
	db *sql.DB
}

func NewApprovalStore(db *sql.DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

func (s *ApprovalStore) CreateBatch(ctx context.Context, approvals []*domain.ParticipantApproval) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create approvals: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO participant_approvals (id, acta_id, participant_id, round,
			approved_at, photo_path, rejected, rejection_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, a := range approvals {
		if _, err := tx.ExecContext(ctx, query,
			a.ID, a.ActaID, a.ParticipantID, a.Round,
			a.ApprovedAt, a.PhotoPath, a.Rejected, a.RejectionReason, a.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert approval: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create approvals: %w", err)
	}
	return nil
}

func (s *ApprovalStore) FindCurrent(ctx context.Context, actaID, participantID uuid.UUID, round int) (*domain.ParticipantApproval, error) {
	query := `
		SELECT id, acta_id, participant_id, round, approved_at, photo_path,
			rejected, rejection_reason, created_at
		FROM participant_approvals
		WHERE acta_id = $1 AND participant_id = $2 AND round = $3
	`
	a, err := scanApproval(s.db.QueryRowContext(ctx, query, actaID, participantID, round))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("approval for participant %s: %w", participantID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find approval: %w", err)
	}
	return a, nil
}

// Approve applies only when the row is still pending. The conditional WHERE
// makes concurrent approvals race-safe: the loser simply matches zero rows
// and reports applied=false, the idempotency signal.
func (s *ApprovalStore) Approve(ctx context.Context, id uuid.UUID, approvedAt time.Time, photoPath string) (bool, error) {
	query := `
		UPDATE participant_approvals
		SET approved_at = $2, photo_path = $3
		WHERE id = $1 AND approved_at IS NULL AND rejected = FALSE
	`
	result, err := s.db.ExecContext(ctx, query, id, approvedAt, photoPath)
	if err != nil {
		return false, fmt.Errorf("approve participant: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve rows affected: %w", err)
	}
	if rows == 0 {
		if exists, err := s.exists(ctx, id); err != nil {
			return false, err
		} else if !exists {
			return false, fmt.Errorf("approval %s: %w", id, sentinel.ErrNotFound)
		}
	}
	return rows > 0, nil
}

func (s *ApprovalStore) Reject(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	query := `
		UPDATE participant_approvals
		SET rejected = TRUE, rejection_reason = $2
		WHERE id = $1 AND approved_at IS NULL AND rejected = FALSE
	`
	result, err := s.db.ExecContext(ctx, query, id, reason)
	if err != nil {
		return false, fmt.Errorf("reject participant: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reject rows affected: %w", err)
	}
	if rows == 0 {
		if exists, err := s.exists(ctx, id); err != nil {
			return false, err
		} else if !exists {
			return false, fmt.Errorf("approval %s: %w", id, sentinel.ErrNotFound)
		}
	}
	return rows > 0, nil
}

func (s *ApprovalStore) ListByRound(ctx context.Context, actaID uuid.UUID, round int) ([]*domain.ParticipantApproval, error) {
	query := `
		SELECT id, acta_id, participant_id, round, approved_at, photo_path,
			rejected, rejection_reason, created_at
		FROM participant_approvals
		WHERE acta_id = $1 AND round = $2
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, actaID, round)
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	defer rows.Close()

	var out []*domain.ParticipantApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}
	return out, nil
}

func (s *ApprovalStore) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM participant_approvals WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("approval exists: %w", err)
	}
	return exists, nil
}

func scanApproval(r row) (*domain.ParticipantApproval, error) {
	var (
		a          domain.ParticipantApproval
		approvedAt sql.NullTime
	)
	err := r.Scan(&a.ID, &a.ActaID, &a.ParticipantID, &a.Round,
		&approvedAt, &a.PhotoPath, &a.Rejected, &a.RejectionReason, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		a.ApprovedAt = &approvedAt.Time
	}
	return &a, nil
}
