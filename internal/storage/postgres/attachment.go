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

type AttachmentStore struct {
	db *sql.DB
}

func NewAttachmentStore(db *sql.DB) *AttachmentStore {
	return &AttachmentStore{db: db}
}

func (s *AttachmentStore) Create(ctx context.Context, attachment *domain.Attachment) error {
	query := `
		INSERT INTO attachments (id, owner_kind, owner_id, acta_id, file_name, storage_path, content_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		attachment.ID, string(attachment.OwnerKind), attachment.OwnerID, attachment.ActaID,
		attachment.FileName, attachment.StoragePath, attachment.ContentType, attachment.Size,
		attachment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *AttachmentStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	query := `
		SELECT id, owner_kind, owner_id, acta_id, file_name, storage_path, content_type, size, created_at
		FROM attachments
		WHERE id = $1
	`
	a, err := scanAttachment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("attachment %s: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find attachment: %w", err)
	}
	return a, nil
}

func (s *AttachmentStore) ListByActa(ctx context.Context, actaID uuid.UUID) ([]*domain.Attachment, error) {
	query := `
		SELECT id, owner_kind, owner_id, acta_id, file_name, storage_path, content_type, size, created_at
		FROM attachments
		WHERE acta_id = $1
		ORDER BY created_at
	`
	return s.list(ctx, query, actaID)
}

func (s *AttachmentStore) ListByOwner(ctx context.Context, kind domain.AttachmentOwnerKind, ownerID uuid.UUID) ([]*domain.Attachment, error) {
	query := `
		SELECT id, owner_kind, owner_id, acta_id, file_name, storage_path, content_type, size, created_at
		FROM attachments
		WHERE owner_kind = $1 AND owner_id = $2
		ORDER BY created_at
	`
	return s.list(ctx, query, string(kind), ownerID)
}

func (s *AttachmentStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM attachments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return requireRow(result, sentinel.ErrNotFound)
}

func (s *AttachmentStore) list(ctx context.Context, query string, args ...any) ([]*domain.Attachment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attachments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return out, nil
}

func scanAttachment(r row) (*domain.Attachment, error) {
	var (
		a    domain.Attachment
		kind string
	)
	err := r.Scan(&a.ID, &kind, &a.OwnerID, &a.ActaID, &a.FileName, &a.StoragePath, &a.ContentType, &a.Size, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.OwnerKind = domain.AttachmentOwnerKind(kind)
	return &a, nil
}
