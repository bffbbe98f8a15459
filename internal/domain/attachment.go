package domain

import (
	"time"

	"github.com/google/uuid"
)

// AttachmentOwnerKind names the entity an attachment belongs to. Attachments
// are exclusively owned: deleting the parent deletes the blob (best effort).
type AttachmentOwnerKind string

const (
	OwnerActa              AttachmentOwnerKind = "acta"
	OwnerCommitmentHistory AttachmentOwnerKind = "commitment_history"
	OwnerApproval          AttachmentOwnerKind = "participant_approval"
)

// Attachment is the database row for one stored blob. ActaID is denormalized
// so public download links can be checked for ownership without walking the
// owner chain.
type Attachment struct {
	ID          uuid.UUID           `json:"id"`
	OwnerKind   AttachmentOwnerKind `json:"owner_kind"`
	OwnerID     uuid.UUID           `json:"owner_id"`
	ActaID      uuid.UUID           `json:"acta_id"`
	FileName    string              `json:"file_name"` // original name, used for Content-Disposition
	StoragePath string              `json:"-"`
	ContentType string              `json:"content_type"`
	Size        int64               `json:"size"`
	CreatedAt   time.Time           `json:"created_at"`
}
