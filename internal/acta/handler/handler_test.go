package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"recaudo/internal/acta"
	"recaudo/internal/approval"
	"recaudo/internal/attachment"
	"recaudo/internal/audit"
	"recaudo/internal/blob"
	"recaudo/internal/domain"
	"recaudo/internal/notify"
	"recaudo/internal/platform/logger"
	"recaudo/internal/platform/middleware"
	"recaudo/internal/session"
	"recaudo/internal/signer"
	"recaudo/internal/storage/memory"
)

type HandlerSuite struct {
	suite.Suite

	ctx      context.Context
	router   chi.Router
	sessions *session.Service
	actas    *memory.ActaStore

	agent uuid.UUID
	other uuid.UUID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	log := logger.New()
	s.sessions = session.New("test-secret", "recaudo")
	s.agent = uuid.New()
	s.other = uuid.New()

	s.actas = memory.NewActaStore()
	participants := memory.NewParticipantStore()
	commitments := memory.NewCommitmentStore()
	attachments := memory.NewAttachmentStore()
	auditSvc := audit.NewService(memory.NewAuditStore())

	local, err := blob.NewLocal(s.T().TempDir())
	s.Require().NoError(err)
	attachmentSvc := attachment.NewService(attachments, s.actas, local, 15*time.Minute, nil, log)
	actaSvc := acta.NewService(s.actas, participants, commitments, attachments,
		memory.NewUserDirectory(), auditSvc, nil, log)
	approvalSvc := approval.NewService(s.actas, participants, memory.NewApprovalStore(), commitments,
		attachmentSvc, auditSvc, signer.New("test-key"), notify.NewLogNotifier(log),
		"https://public.example", nil, log)

	s.router = chi.NewRouter()
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(s.sessions, log))
		New(actaSvc, approvalSvc, attachmentSvc, log).Register(r)
	})
}

func (s *HandlerSuite) token(userID uuid.UUID, role string) string {
	token, err := s.sessions.Issue(userID, role, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *HandlerSuite) do(method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) draftBody() *bytes.Buffer {
	body, err := json.Marshal(map[string]any{
		"date":      time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
		"objective": "Acuerdo de pago",
		"body":      "<p>Se discutió el plan.</p>",
		"participants": []map[string]any{
			{"name": "Carlos Ruiz", "email": "carlos@client.example", "requires_approval": true},
		},
	})
	s.Require().NoError(err)
	return bytes.NewBuffer(body)
}

func (s *HandlerSuite) createDraft(token string) acta.View {
	rec := s.do(http.MethodPost, "/actas", token, s.draftBody(), "application/json")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var view acta.View
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func (s *HandlerSuite) TestRequiresToken() {
	rec := s.do(http.MethodPost, "/actas", "", s.draftBody(), "application/json")
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/actas", "not-a-token", s.draftBody(), "application/json")
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestCreateAndGet() {
	token := s.token(s.agent, middleware.RoleAgent)
	view := s.createDraft(token)
	s.Equal(s.agent, view.Acta.CreatedBy)
	s.Len(view.Participants, 1)

	rec := s.do(http.MethodGet, "/actas/"+view.Acta.ID.String(), token, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var got acta.View
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &got))
	s.Equal("Acuerdo de pago", got.Acta.Objective)
}

func (s *HandlerSuite) TestCreateRejectsUnknownFields() {
	token := s.token(s.agent, middleware.RoleAgent)
	rec := s.do(http.MethodPost, "/actas", token,
		bytes.NewBufferString(`{"objective":"x","surprise":true}`), "application/json")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestEditByOtherAgentIsForbidden() {
	view := s.createDraft(s.token(s.agent, middleware.RoleAgent))

	rec := s.do(http.MethodPut, "/actas/"+view.Acta.ID.String(),
		s.token(s.other, middleware.RoleAgent), s.draftBody(), "application/json")
	s.Equal(http.StatusForbidden, rec.Code)

	// An admin can edit anyone's draft.
	rec = s.do(http.MethodPut, "/actas/"+view.Acta.ID.String(),
		s.token(s.other, middleware.RoleAdmin), s.draftBody(), "application/json")
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestSubmitAccepted() {
	token := s.token(s.agent, middleware.RoleAgent)
	view := s.createDraft(token)

	rec := s.do(http.MethodPost, "/actas/"+view.Acta.ID.String()+"/submit", token, nil, "")
	s.Require().Equal(http.StatusAccepted, rec.Code)

	got, err := s.actas.FindByID(s.ctx, view.Acta.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatePendingApproval, got.State)
}

func (s *HandlerSuite) TestAttachmentUploadAndDelete() {
	token := s.token(s.agent, middleware.RoleAgent)
	view := s.createDraft(token)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="informe.pdf"`)
	header.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(header)
	s.Require().NoError(err)
	_, err = io.WriteString(part, "%PDF-1.4 contenido")
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	rec := s.do(http.MethodPost, "/actas/"+view.Acta.ID.String()+"/attachments",
		token, &buf, mw.FormDataContentType())
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var att domain.Attachment
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &att))
	s.Equal("informe.pdf", att.FileName)

	rec = s.do(http.MethodGet, "/attachments/"+att.ID.String(), token, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("%PDF-1.4 contenido", rec.Body.String())
	s.Equal("application/pdf", rec.Header().Get("Content-Type"))

	rec = s.do(http.MethodDelete, "/attachments/"+att.ID.String(), token, nil, "")
	s.Equal(http.StatusNoContent, rec.Code)
	rec = s.do(http.MethodGet, "/attachments/"+att.ID.String(), token, nil, "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestCommitmentStatusUpdate() {
	token := s.token(s.agent, middleware.RoleAgent)

	body, err := json.Marshal(map[string]any{
		"date":      time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
		"objective": "Seguimiento",
		"participants": []map[string]any{
			{"name": "Carlos Ruiz", "email": "carlos@client.example", "requires_approval": true},
		},
		"commitments": []map[string]any{
			{"description": "Enviar comprobante", "assignee_participant_pos": 0},
		},
	})
	s.Require().NoError(err)
	rec := s.do(http.MethodPost, "/actas", token, bytes.NewBuffer(body), "application/json")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var view acta.View
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &view))
	s.Require().Len(view.Commitments, 1)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	s.Require().NoError(mw.WriteField("state", string(domain.CommitmentFulfilled)))
	s.Require().NoError(mw.WriteField("detail", "comprobante recibido"))
	s.Require().NoError(mw.Close())

	target := fmt.Sprintf("/actas/%s/commitments/%s/status", view.Acta.ID, view.Commitments[0].ID)
	rec = s.do(http.MethodPost, target, token, &buf, mw.FormDataContentType())
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet,
		fmt.Sprintf("/actas/%s/commitments/%s/history", view.Acta.ID, view.Commitments[0].ID),
		token, nil, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "comprobante recibido")
}

func (s *HandlerSuite) TestBadPathID() {
	token := s.token(s.agent, middleware.RoleAgent)
	rec := s.do(http.MethodGet, "/actas/not-a-uuid", token, nil, "")
	s.Equal(http.StatusBadRequest, rec.Code)
}
