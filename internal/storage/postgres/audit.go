package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"recaudo/internal/domain"
)

type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (id, acta_id, kind, actor_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var metadata any
	if len(entry.Metadata) > 0 {
		metadata = []byte(entry.Metadata)
	}
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.ActaID, string(entry.Kind), entry.ActorID, metadata, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *AuditStore) ListByActa(ctx context.Context, actaID uuid.UUID) ([]*domain.AuditEntry, error) {
	query := `
		SELECT id, acta_id, kind, actor_id, metadata, created_at
		FROM audit_entries
		WHERE acta_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, actaID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditEntry
	for rows.Next() {
		var (
			e        domain.AuditEntry
			kind     string
			metadata []byte
		)
		if err := rows.Scan(&e.ID, &e.ActaID, &kind, &e.ActorID, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Kind = domain.AuditKind(kind)
		e.Metadata = metadata
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
