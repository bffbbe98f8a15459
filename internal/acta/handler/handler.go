// Package handler exposes the internal (authenticated) acta API.
package handler

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"recaudo/internal/acta"
	"recaudo/internal/approval"
	"recaudo/internal/attachment"
	"recaudo/internal/domain"
	"recaudo/internal/platform/middleware"
	"recaudo/internal/transport/http/shared"
	domainerrors "recaudo/pkg/domain-errors"
)

type Handler struct {
	actas       *acta.Service
	approvals   *approval.Service
	attachments *attachment.Service
	logger      *slog.Logger
}

func New(actas *acta.Service, approvals *approval.Service, attachments *attachment.Service, logger *slog.Logger) *Handler {
	return &Handler{actas: actas, approvals: approvals, attachments: attachments, logger: logger}
}

// Register mounts all internal routes. The caller wraps them in the auth
// middleware.
func (h *Handler) Register(r chi.Router) {
	r.Route("/actas", func(r chi.Router) {
		r.Post("/", h.create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Put("/", h.edit)
			r.Post("/submit", h.submit)
			r.Post("/send", h.send)
			r.Get("/history", h.history)
			r.Post("/attachments", h.uploadAttachment)
			r.Post("/attachments/request", h.requestUpload)
			r.Post("/attachments/register", h.registerUpload)
			r.Post("/commitments/{commitmentID}/status", h.updateCommitmentStatus)
			r.Get("/commitments/{commitmentID}/history", h.commitmentHistory)
		})
	})
	r.Route("/attachments/{id}", func(r chi.Router) {
		r.Get("/", h.downloadAttachment)
		r.Delete("/", h.deleteAttachment)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actorID, err := actor(r)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	var draft acta.Draft
	if err := shared.DecodeJSON(r, &draft); err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	view, err := h.actas.Create(r.Context(), actorID, draft)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	view, err := h.actas.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	actorID, err := actor(r)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	var draft acta.Draft
	if err := shared.DecodeJSON(r, &draft); err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	view, err := h.actas.Edit(r.Context(), actorID, middleware.IsAdmin(r.Context()), id, draft)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	actorID, err := actor(r)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	if err := h.approvals.Submit(r.Context(), actorID, middleware.IsAdmin(r.Context()), id); err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "pending_approval"})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	actorID, err := actor(r)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	if err := h.approvals.MarkSent(r.Context(), actorID, middleware.IsAdmin(r.Context()), id); err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	entries, err := h.actas.History(r.Context(), id)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// uploadAttachment is the proxied path: the file travels through this process.
func (h *Handler) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	file, header, err := formFile(r, "file", attachment.MaxProxiedSize)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	defer file.Close()

	att, err := h.attachments.SaveUpload(r.Context(), domain.OwnerActa, id, id,
		header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, att)
}

type uploadRequest struct {
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func (h *Handler) requestUpload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	var req uploadRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	ticket, err := h.attachments.RequestUpload(r.Context(), id, req.ContentType, req.Size)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, ticket)
}

type registerRequest struct {
	FileName    string `json:"file_name"`
	StoragePath string `json:"storage_path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func (h *Handler) registerUpload(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	var req registerRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	att, err := h.attachments.RegisterUpload(r.Context(), domain.OwnerActa, id, id,
		req.FileName, req.StoragePath, req.ContentType, req.Size)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, att)
}

func (h *Handler) downloadAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	att, rc, err := h.attachments.Read(r.Context(), id)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	defer rc.Close()
	streamAttachment(w, att, rc)
}

func (h *Handler) deleteAttachment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	if err := h.attachments.Delete(r.Context(), id); err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// updateCommitmentStatus takes a multipart form: state and detail fields plus
// optional evidence files attached to the new history entry.
func (h *Handler) updateCommitmentStatus(w http.ResponseWriter, r *http.Request) {
	actaID, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	commitmentID, err := pathID(r, "commitmentID")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	actorID, err := actor(r)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	if err := r.ParseMultipartForm(attachment.MaxProxiedSize); err != nil {
		shared.WriteError(r.Context(), w, h.logger,
			domainerrors.New(domainerrors.CodeBadRequest, "invalid multipart form"))
		return
	}

	state := domain.CommitmentState(r.FormValue("state"))
	detail := r.FormValue("detail")
	entry, err := h.actas.UpdateCommitmentStatus(r.Context(), actorID, actaID, commitmentID, state, detail)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}

	var evidence []*domain.Attachment
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["evidence"] {
			file, err := header.Open()
			if err != nil {
				shared.WriteError(r.Context(), w, h.logger,
					domainerrors.New(domainerrors.CodeBadRequest, "unreadable evidence file"))
				return
			}
			att, err := h.attachments.SaveUpload(r.Context(), domain.OwnerCommitmentHistory, entry.ID, actaID,
				header.Filename, header.Header.Get("Content-Type"), header.Size, file)
			_ = file.Close()
			if err != nil {
				shared.WriteError(r.Context(), w, h.logger, err)
				return
			}
			evidence = append(evidence, att)
		}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"entry": entry, "evidence": evidence})
}

func (h *Handler) commitmentHistory(w http.ResponseWriter, r *http.Request) {
	actaID, err := pathID(r, "id")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	commitmentID, err := pathID(r, "commitmentID")
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	entries, err := h.actas.CommitmentHistory(r.Context(), actaID, commitmentID)
	if err != nil {
		shared.WriteError(r.Context(), w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func actor(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(middleware.GetUserID(r.Context()))
	if err != nil {
		return uuid.Nil, domainerrors.New(domainerrors.CodeUnauthorized, "invalid session subject")
	}
	return id, nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domainerrors.New(domainerrors.CodeBadRequest, "invalid "+name)
	}
	return id, nil
}

func formFile(r *http.Request, field string, maxSize int64) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, nil, domainerrors.New(domainerrors.CodeBadRequest, "invalid multipart form")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, domainerrors.New(domainerrors.CodeBadRequest, "missing "+field+" file")
	}
	return file, header, nil
}

func streamAttachment(w http.ResponseWriter, att *domain.Attachment, rc io.ReadCloser) {
	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", att.Size))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(att.FileName)))
	_, _ = io.Copy(w, rc)
}
