// Package notify abstracts outbound participant notifications. Actual email
// delivery is owned by a separate system; this service only hands it the
// message. LogNotifier is the in-repo implementation.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// ApprovalRequest is everything the delivery channel needs to ask one
// participant for their sign-off.
type ApprovalRequest struct {
	ActaID           uuid.UUID
	ParticipantName  string
	ParticipantEmail string
	Objective        string
	ApprovalLink     string
	DocumentLinks    []string
}

type Notifier interface {
	SendApprovalRequest(ctx context.Context, req ApprovalRequest) error
}

// LogNotifier writes the notification to the log instead of delivering it.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendApprovalRequest(ctx context.Context, req ApprovalRequest) error {
	n.logger.InfoContext(ctx, "approval request notification",
		"acta_id", req.ActaID,
		"participant_email", req.ParticipantEmail,
		"approval_link", req.ApprovalLink,
		"document_links", len(req.DocumentLinks),
	)
	return nil
}
