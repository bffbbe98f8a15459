package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"recaudo/internal/domain"
	"recaudo/pkg/platform/sentinel"
)

type CommitmentStore struct {
	db *sql.DB
}

func NewCommitmentStore(db *sql.DB) *CommitmentStore {
	return &CommitmentStore{db: db}
}

func (s *CommitmentStore) ReplaceForActa(ctx context.Context, actaID uuid.UUID, commitments []*domain.Commitment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace commitments: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM commitments WHERE acta_id = $1`, actaID); err != nil {
		return fmt.Errorf("clear commitments: %w", err)
	}
	query := `
		INSERT INTO commitments (id, acta_id, description, due_date,
			assignee_participant_pos, assignee_client_member_id,
			state, status_detail, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, c := range commitments {
		if _, err := tx.ExecContext(ctx, query,
			c.ID, c.ActaID, c.Description, c.DueDate,
			c.AssigneeParticipantPos, c.AssigneeClientMemberID,
			string(c.State), c.StatusDetail, c.UpdatedBy, c.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert commitment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace commitments: %w", err)
	}
	return nil
}

func (s *CommitmentStore) ListByActa(ctx context.Context, actaID uuid.UUID) ([]*domain.Commitment, error) {
	query := `
		SELECT id, acta_id, description, due_date,
			assignee_participant_pos, assignee_client_member_id,
			state, status_detail, updated_by, updated_at
		FROM commitments
		WHERE acta_id = $1
		ORDER BY updated_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, actaID)
	if err != nil {
		return nil, fmt.Errorf("query commitments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commitment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commitments: %w", err)
	}
	return out, nil
}

func (s *CommitmentStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Commitment, error) {
	query := `
		SELECT id, acta_id, description, due_date,
			assignee_participant_pos, assignee_client_member_id,
			state, status_detail, updated_by, updated_at
		FROM commitments
		WHERE id = $1
	`
	c, err := scanCommitment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("commitment %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find commitment: %w", err)
	}
	return c, nil
}

func (s *CommitmentStore) UpdateStatus(ctx context.Context, commitment *domain.Commitment) error {
	query := `
		UPDATE commitments
		SET state = $2, status_detail = $3, updated_by = $4, updated_at = $5
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query,
		commitment.ID, string(commitment.State), commitment.StatusDetail,
		commitment.UpdatedBy, commitment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update commitment status: %w", err)
	}
	return requireRow(result, sentinel.ErrNotFound)
}

func (s *CommitmentStore) AppendHistory(ctx context.Context, entry *domain.CommitmentHistoryEntry) error {
	query := `
		INSERT INTO commitment_history (id, commitment_id, previous_state, new_state, detail, author_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.CommitmentID, string(entry.PreviousState), string(entry.NewState),
		entry.Detail, entry.AuthorID, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert commitment history: %w", err)
	}
	return nil
}

func (s *CommitmentStore) ListHistory(ctx context.Context, commitmentID uuid.UUID) ([]*domain.CommitmentHistoryEntry, error) {
	query := `
		SELECT id, commitment_id, previous_state, new_state, detail, author_id, created_at
		FROM commitment_history
		WHERE commitment_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, commitmentID)
	if err != nil {
		return nil, fmt.Errorf("query commitment history: %w", err)
	}
	defer rows.Close()

	var out []*domain.CommitmentHistoryEntry
	for rows.Next() {
		var (
			e        domain.CommitmentHistoryEntry
			prev, nw string
		)
		if err := rows.Scan(&e.ID, &e.CommitmentID, &prev, &nw, &e.Detail, &e.AuthorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan commitment history: %w", err)
		}
		e.PreviousState = domain.CommitmentState(prev)
		e.NewState = domain.CommitmentState(nw)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commitment history: %w", err)
	}
	return out, nil
}

func scanCommitment(r row) (*domain.Commitment, error) {
	var (
		c     domain.Commitment
		state string
	)
	err := r.Scan(&c.ID, &c.ActaID, &c.Description, &c.DueDate,
		&c.AssigneeParticipantPos, &c.AssigneeClientMemberID,
		&state, &c.StatusDetail, &c.UpdatedBy, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.State = domain.CommitmentState(state)
	return &c, nil
}
