// Package attachment owns blob uploads and downloads: validation, storage
// paths, and the attachment rows tying blobs to their owners.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"recaudo/internal/blob"
	"recaudo/internal/domain"
	"recaudo/internal/platform/metrics"
	"recaudo/internal/storage"
	domainerrors "recaudo/pkg/domain-errors"
	"recaudo/pkg/platform/sentinel"
)

// Size ceilings. Proxied uploads pass through this process; direct uploads go
// straight to the object store and only their registration passes through.
const (
	MaxProxiedSize int64 = 10 << 20
	MaxDirectSize  int64 = 100 << 20
	MaxPhotoSize   int64 = 5 << 20
)

// documentTypes is the allow-list for acta and evidence attachments, mapping
// content type to the stored file extension.
var documentTypes = map[string]string{
	"application/pdf": ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
	"image/jpeg":  ".jpg",
	"image/png":   ".png",
	"image/gif":   ".gif",
	"image/webp":  ".webp",
	"text/plain":  ".txt",
	"text/csv":    ".csv",
}

// photoTypes is the stricter allow-list for approval photo evidence.
var photoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// UploadTicket is a pre-authorized direct upload: the client PUTs the bytes
// to UploadURL, then registers the completed upload with StoragePath.
type UploadTicket struct {
	UploadURL   string `json:"upload_url"`
	StoragePath string `json:"storage_path"`
}

type Service struct {
	attachments storage.AttachmentStore
	actas       storage.ActaStore
	blobs       blob.Store
	presignTTL  time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewService(
	attachments storage.AttachmentStore,
	actas storage.ActaStore,
	blobs blob.Store,
	presignTTL time.Duration,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		attachments: attachments,
		actas:       actas,
		blobs:       blobs,
		presignTTL:  presignTTL,
		metrics:     m,
		logger:      logger,
	}
}

// SaveUpload stores a proxied upload: validate, write the blob, record the
// row. Acta-owned uploads are accepted on drafts only; evidence uploads are
// accepted in any state.
func (s *Service) SaveUpload(ctx context.Context, ownerKind domain.AttachmentOwnerKind, ownerID, actaID uuid.UUID, fileName, contentType string, size int64, r io.Reader) (*domain.Attachment, error) {
	ext, err := validateDocument(contentType, size, MaxProxiedSize)
	if err != nil {
		return nil, err
	}
	if err := s.checkActa(ctx, actaID, ownerKind); err != nil {
		return nil, err
	}

	storagePath := buildPath(actaID, ext)
	if err := s.blobs.Put(ctx, storagePath, r, size, contentType); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}
	return s.record(ctx, ownerKind, ownerID, actaID, fileName, storagePath, contentType, size)
}

// SavePhoto stores approval photo evidence against the approval row. Photos
// use the stricter type list and the smaller ceiling.
func (s *Service) SavePhoto(ctx context.Context, approvalID, actaID uuid.UUID, fileName, contentType string, size int64, r io.Reader) (*domain.Attachment, error) {
	ext, ok := photoTypes[normalizeContentType(contentType)]
	if !ok {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "photo must be jpeg, png or webp")
	}
	if size <= 0 || size > MaxPhotoSize {
		return nil, domainerrors.New(domainerrors.CodeBadRequest,
			fmt.Sprintf("photo size must be between 1 byte and %d bytes", MaxPhotoSize))
	}

	storagePath := buildPath(actaID, ext)
	if err := s.blobs.Put(ctx, storagePath, r, size, contentType); err != nil {
		return nil, fmt.Errorf("store photo: %w", err)
	}
	return s.record(ctx, domain.OwnerApproval, approvalID, actaID, fileName, storagePath, contentType, size)
}

// RequestUpload pre-authorizes a direct upload. Only backends implementing
// blob.Presigner support this path, and only for files too large to proxy.
func (s *Service) RequestUpload(ctx context.Context, actaID uuid.UUID, contentType string, size int64) (*UploadTicket, error) {
	presigner, ok := s.blobs.(blob.Presigner)
	if !ok {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "direct uploads are not supported by the configured storage backend")
	}
	ext, err := validateDocument(contentType, size, MaxDirectSize)
	if err != nil {
		return nil, err
	}
	if size <= MaxProxiedSize {
		return nil, domainerrors.New(domainerrors.CodeBadRequest,
			fmt.Sprintf("files of %d bytes or less go through the proxied upload", MaxProxiedSize))
	}
	if err := s.checkActa(ctx, actaID, domain.OwnerActa); err != nil {
		return nil, err
	}

	storagePath := buildPath(actaID, ext)
	uploadURL, err := presigner.PresignPut(ctx, storagePath, contentType, s.presignTTL)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}
	return &UploadTicket{UploadURL: uploadURL, StoragePath: storagePath}, nil
}

// RegisterUpload records a completed direct upload. The storage path must be
// one this service minted for the same acta; anything else is rejected so a
// caller cannot register a foreign blob under their acta.
func (s *Service) RegisterUpload(ctx context.Context, ownerKind domain.AttachmentOwnerKind, ownerID, actaID uuid.UUID, fileName, storagePath, contentType string, size int64) (*domain.Attachment, error) {
	if _, err := validateDocument(contentType, size, MaxDirectSize); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(storagePath, pathPrefix(actaID)) {
		return nil, domainerrors.New(domainerrors.CodeBadRequest, "storage path does not belong to this acta")
	}
	if err := s.checkActa(ctx, actaID, ownerKind); err != nil {
		return nil, err
	}
	return s.record(ctx, ownerKind, ownerID, actaID, fileName, storagePath, contentType, size)
}

// Read returns the attachment row and an open blob stream. The caller owns
// closing the stream.
func (s *Service) Read(ctx context.Context, id uuid.UUID) (*domain.Attachment, io.ReadCloser, error) {
	att, err := s.attachments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, domainerrors.New(domainerrors.CodeNotFound, "attachment not found")
		}
		return nil, nil, err
	}
	rc, err := s.blobs.Get(ctx, att.StoragePath)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, domainerrors.New(domainerrors.CodeNotFound, "attachment content missing")
		}
		return nil, nil, fmt.Errorf("read blob: %w", err)
	}
	return att, rc, nil
}

func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*domain.Attachment, error) {
	att, err := s.attachments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domainerrors.New(domainerrors.CodeNotFound, "attachment not found")
		}
		return nil, err
	}
	return att, nil
}

func (s *Service) ListByActa(ctx context.Context, actaID uuid.UUID) ([]*domain.Attachment, error) {
	return s.attachments.ListByActa(ctx, actaID)
}

func (s *Service) ListByOwner(ctx context.Context, kind domain.AttachmentOwnerKind, ownerID uuid.UUID) ([]*domain.Attachment, error) {
	return s.attachments.ListByOwner(ctx, kind, ownerID)
}

// Delete removes the row first, then the blob best effort. A blob left behind
// after a crash is garbage, not corruption; a row pointing at a deleted blob
// would be.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	att, err := s.attachments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "attachment not found")
		}
		return err
	}
	if att.OwnerKind == domain.OwnerActa {
		if err := s.checkActa(ctx, att.ActaID, domain.OwnerActa); err != nil {
			return err
		}
	}
	if err := s.attachments.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete attachment row: %w", err)
	}
	if err := s.blobs.Delete(ctx, att.StoragePath); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "orphaned blob after attachment delete",
			"attachment_id", id,
			"storage_path", att.StoragePath,
			"error", err,
		)
	}
	return nil
}

func (s *Service) record(ctx context.Context, ownerKind domain.AttachmentOwnerKind, ownerID, actaID uuid.UUID, fileName, storagePath, contentType string, size int64) (*domain.Attachment, error) {
	att := &domain.Attachment{
		ID:          uuid.New(),
		OwnerKind:   ownerKind,
		OwnerID:     ownerID,
		ActaID:      actaID,
		FileName:    fileName,
		StoragePath: storagePath,
		ContentType: normalizeContentType(contentType),
		Size:        size,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.attachments.Create(ctx, att); err != nil {
		return nil, fmt.Errorf("create attachment row: %w", err)
	}
	if s.metrics != nil {
		s.metrics.AttachmentsUploaded.Inc()
	}
	return att, nil
}

// checkActa verifies the acta exists and, for acta-owned attachments, that it
// is still a draft.
func (s *Service) checkActa(ctx context.Context, actaID uuid.UUID, ownerKind domain.AttachmentOwnerKind) error {
	acta, err := s.actas.FindByID(ctx, actaID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "acta not found")
		}
		return err
	}
	if ownerKind == domain.OwnerActa && !acta.Editable() {
		return domainerrors.New(domainerrors.CodeInvalidState, "attachments can only change while the acta is a draft")
	}
	return nil
}

func validateDocument(contentType string, size, ceiling int64) (string, error) {
	ext, ok := documentTypes[normalizeContentType(contentType)]
	if !ok {
		return "", domainerrors.New(domainerrors.CodeBadRequest, "unsupported content type "+contentType)
	}
	if size <= 0 || size > ceiling {
		return "", domainerrors.New(domainerrors.CodeBadRequest,
			fmt.Sprintf("file size must be between 1 byte and %d bytes", ceiling))
	}
	return ext, nil
}

func normalizeContentType(ct string) string {
	// Strip parameters such as "; charset=utf-8".
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func pathPrefix(actaID uuid.UUID) string {
	return "actas/" + actaID.String() + "/"
}

func buildPath(actaID uuid.UUID, ext string) string {
	return path.Join("actas", actaID.String(), uuid.NewString()+ext)
}
