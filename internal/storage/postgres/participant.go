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

type ParticipantStore struct {
	db *sql.DB
}

func NewParticipantStore(db *sql.DB) *ParticipantStore {
	return &ParticipantStore{db: db}
}

// ReplaceForActa rewrites the participant list transactionally; edits always
// carry the full list.
func (s *ParticipantStore) ReplaceForActa(ctx context.Context, actaID uuid.UUID, participants []*domain.Participant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace participants: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM participants WHERE acta_id = $1`, actaID); err != nil {
		return fmt.Errorf("clear participants: %w", err)
	}
	query := `
		INSERT INTO participants (id, acta_id, user_id, name, email, kind, title, requires_approval, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	for _, p := range participants {
		if _, err := tx.ExecContext(ctx, query,
			p.ID, p.ActaID, p.UserID, p.Name, p.Email, string(p.Kind), p.Title, p.RequiresApproval, p.Position,
		); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace participants: %w", err)
	}
	return nil
}

func (s *ParticipantStore) ListByActa(ctx context.Context, actaID uuid.UUID) ([]*domain.Participant, error) {
	query := `
		SELECT id, acta_id, user_id, name, email, kind, title, requires_approval, position
		FROM participants
		WHERE acta_id = $1
		ORDER BY position
	`
	rows, err := s.db.QueryContext(ctx, query, actaID)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var out []*domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return out, nil
}

func (s *ParticipantStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Participant, error) {
	query := `
		SELECT id, acta_id, user_id, name, email, kind, title, requires_approval, position
		FROM participants
		WHERE id = $1
	`
	p, err := scanParticipant(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("participant %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find participant: %w", err)
	}
	return p, nil
}

func scanParticipant(r row) (*domain.Participant, error) {
	var (
		p    domain.Participant
		kind string
	)
	err := r.Scan(&p.ID, &p.ActaID, &p.UserID, &p.Name, &p.Email, &kind, &p.Title, &p.RequiresApproval, &p.Position)
	if err != nil {
		return nil, err
	}
	p.Kind = domain.ParticipantKind(kind)
	return &p, nil
}
