// Package external serves the unauthenticated, signature-authorized surface
// that participants reach from their emailed links. Responses deliberately
// collapse every state or ownership mismatch into a generic 404 so the
// endpoint cannot be used to probe what exists.
package external

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"recaudo/internal/approval"
	"recaudo/internal/attachment"
	"recaudo/internal/platform/middleware"
	domainerrors "recaudo/pkg/domain-errors"
)

type Handler struct {
	approvals *approval.Service
	logger    *slog.Logger
}

func New(approvals *approval.Service, logger *slog.Logger) *Handler {
	return &Handler{approvals: approvals, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/approve", h.preview)
	r.Post("/approve", h.decide)
	r.Get("/documents", h.document)
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	actaID, participantID, signature, err := linkParams(r)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	preview, err := h.approvals.Preview(r.Context(), actaID, participantID, signature)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// decide is approve or reject on the same route: a non-empty reason field
// rejects, a photo file approves.
func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	actaID, participantID, signature, err := linkParams(r)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	if err := r.ParseMultipartForm(attachment.MaxPhotoSize + 1<<20); err != nil {
		h.writeError(r, w, domainerrors.New(domainerrors.CodeBadRequest, "invalid form"))
		return
	}

	if reason := r.FormValue("reason"); reason != "" {
		if err := h.approvals.Reject(r.Context(), actaID, participantID, signature, reason); err != nil {
			h.writeError(r, w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		h.writeError(r, w, domainerrors.New(domainerrors.CodeBadRequest, "a photo or a rejection reason is required"))
		return
	}
	defer file.Close()

	decision, err := h.approvals.Approve(r.Context(), actaID, participantID, signature,
		header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	actaID, participantID, signature, err := linkParams(r)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	docID, err := uuid.Parse(r.URL.Query().Get("doc"))
	if err != nil {
		h.writeError(r, w, domainerrors.New(domainerrors.CodeNotFound, ""))
		return
	}

	att, rc, err := h.approvals.Document(r.Context(), actaID, participantID, docID, signature)
	if err != nil {
		h.writeError(r, w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", att.Size))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(att.FileName)))
	_, _ = io.Copy(w, rc)
}

// writeError collapses service errors for the public surface: bad signatures
// come back 403, anything about state or existence comes back 404, and only
// validation problems keep a message.
func (h *Handler) writeError(r *http.Request, w http.ResponseWriter, err error) {
	switch domainerrors.CodeOf(err) {
	case domainerrors.CodeForbidden:
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case domainerrors.CodeBadRequest:
		var message string
		var de domainerrors.Error
		if errors.As(err, &de) {
			message = de.Message
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": message})
	case domainerrors.CodeInternal:
		h.logger.ErrorContext(r.Context(), "public endpoint failure",
			"error", err,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	}
}

func linkParams(r *http.Request) (actaID, participantID uuid.UUID, signature string, err error) {
	q := r.URL.Query()
	actaID, aErr := uuid.Parse(q.Get("acta"))
	participantID, pErr := uuid.Parse(q.Get("participant"))
	signature = q.Get("signature")
	if aErr != nil || pErr != nil || signature == "" {
		return uuid.Nil, uuid.Nil, "", domainerrors.New(domainerrors.CodeForbidden, "")
	}
	return actaID, participantID, signature, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
