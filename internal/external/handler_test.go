package external

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
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"recaudo/internal/approval"
	"recaudo/internal/attachment"
	"recaudo/internal/audit"
	"recaudo/internal/blob"
	"recaudo/internal/domain"
	"recaudo/internal/notify"
	"recaudo/internal/platform/logger"
	"recaudo/internal/signer"
	"recaudo/internal/storage/memory"
)

type HandlerSuite struct {
	suite.Suite

	ctx          context.Context
	router       chi.Router
	actas        *memory.ActaStore
	participants *memory.ParticipantStore
	attachSvc    *attachment.Service
	approvalSvc  *approval.Service
	signer       *signer.Signer

	acta        *domain.Acta
	participant *domain.Participant
	creator     uuid.UUID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	s.actas = memory.NewActaStore()
	s.participants = memory.NewParticipantStore()
	s.signer = signer.New("test-key")
	s.creator = uuid.New()

	log := logger.New()
	local, err := blob.NewLocal(s.T().TempDir())
	s.Require().NoError(err)
	attachments := memory.NewAttachmentStore()
	s.attachSvc = attachment.NewService(attachments, s.actas, local, 15*time.Minute, nil, log)
	s.approvalSvc = approval.NewService(
		s.actas, s.participants, memory.NewApprovalStore(), memory.NewCommitmentStore(),
		s.attachSvc, audit.NewService(memory.NewAuditStore()), s.signer,
		notify.NewLogNotifier(log), "https://public.example", nil, log,
	)

	s.router = chi.NewRouter()
	New(s.approvalSvc, log).Register(s.router)

	s.acta = &domain.Acta{
		ID:        uuid.New(),
		Date:      time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
		Objective: "Plan de pagos",
		Body:      "<p>Reunión</p>",
		State:     domain.StateDraft,
		CreatedBy: s.creator,
	}
	s.Require().NoError(s.actas.Create(s.ctx, s.acta))
	s.participant = &domain.Participant{
		ID:               uuid.New(),
		ActaID:           s.acta.ID,
		Name:             "Carlos Ruiz",
		Email:            "carlos@client.example",
		Kind:             domain.ParticipantExternal,
		RequiresApproval: true,
	}
	s.Require().NoError(s.participants.ReplaceForActa(s.ctx, s.acta.ID, []*domain.Participant{s.participant}))
	s.Require().NoError(s.approvalSvc.Submit(s.ctx, s.creator, false, s.acta.ID))
}

func (s *HandlerSuite) sig() string {
	return s.signer.Sign(signer.PurposeParticipantApproval, s.acta.ID.String(), s.participant.ID.String())
}

func (s *HandlerSuite) approveURL(signature string) string {
	return fmt.Sprintf("/approve?acta=%s&participant=%s&signature=%s",
		s.acta.ID, s.participant.ID, signature)
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestPreview() {
	rec := s.do(httptest.NewRequest(http.MethodGet, s.approveURL(s.sig()), nil))
	s.Require().Equal(http.StatusOK, rec.Code)

	var preview approval.Preview
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &preview))
	s.Equal("Plan de pagos", preview.Objective)
	s.Equal(approval.StatusPending, preview.Status)
}

func (s *HandlerSuite) TestPreviewBadSignature() {
	rec := s.do(httptest.NewRequest(http.MethodGet, s.approveURL("deadbeef"), nil))
	s.Equal(http.StatusForbidden, rec.Code)
	s.JSONEq(`{"error":"forbidden"}`, rec.Body.String())
}

func (s *HandlerSuite) TestPreviewMissingParams() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/approve?acta=nope", nil))
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *HandlerSuite) TestPreviewUnknownActaIsGeneric404() {
	other := uuid.New()
	sig := s.signer.Sign(signer.PurposeParticipantApproval, other.String(), s.participant.ID.String())
	rec := s.do(httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/approve?acta=%s&participant=%s&signature=%s", other, s.participant.ID, sig), nil))
	s.Equal(http.StatusNotFound, rec.Code)
	s.JSONEq(`{"error":"not_found"}`, rec.Body.String())
}

func (s *HandlerSuite) photoForm() (*bytes.Buffer, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="photo"; filename="selfie.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(header)
	s.Require().NoError(err)
	_, err = io.WriteString(part, "jpegbytes")
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())
	return &buf, mw.FormDataContentType()
}

func (s *HandlerSuite) TestApproveWithPhoto() {
	body, contentType := s.photoForm()
	req := httptest.NewRequest(http.MethodPost, s.approveURL(s.sig()), body)
	req.Header.Set("Content-Type", contentType)

	rec := s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var decision approval.Decision
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &decision))
	s.True(decision.ActaApproved)

	got, err := s.actas.FindByID(s.ctx, s.acta.ID)
	s.Require().NoError(err)
	s.Equal(domain.StateApproved, got.State)
}

func (s *HandlerSuite) TestApproveTwiceIsAcknowledged() {
	for i := 0; i < 2; i++ {
		body, contentType := s.photoForm()
		req := httptest.NewRequest(http.MethodPost, s.approveURL(s.sig()), body)
		req.Header.Set("Content-Type", contentType)
		rec := s.do(req)
		s.Require().Equal(http.StatusOK, rec.Code)
		if i == 1 {
			var decision approval.Decision
			s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &decision))
			s.True(decision.AlreadyApproved)
		}
	}
}

func (s *HandlerSuite) TestRejectWithReason() {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	s.Require().NoError(mw.WriteField("reason", "faltan los anexos"))
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, s.approveURL(s.sig()), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "rejected")

	got, err := s.actas.FindByID(s.ctx, s.acta.ID)
	s.Require().NoError(err)
	s.Equal(domain.StateDraft, got.State)
}

func (s *HandlerSuite) TestDecideNeedsPhotoOrReason() {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, s.approveURL(s.sig()), &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := s.do(req)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestDocumentDownload() {
	// Re-seed a fresh draft so a document can be attached, then walk it to sent.
	acta := &domain.Acta{ID: uuid.New(), Objective: "x", State: domain.StateDraft, CreatedBy: s.creator}
	s.Require().NoError(s.actas.Create(s.ctx, acta))
	content := "%PDF-1.4 informe"
	doc, err := s.attachSvc.SaveUpload(s.ctx, domain.OwnerActa, acta.ID, acta.ID,
		"informe final.pdf", "application/pdf", int64(len(content)), strings.NewReader(content))
	s.Require().NoError(err)
	s.Require().NoError(s.actas.TransitionState(s.ctx, acta.ID, domain.StateDraft, domain.StatePendingApproval))
	s.Require().NoError(s.actas.TransitionState(s.ctx, acta.ID, domain.StatePendingApproval, domain.StateApproved))
	s.Require().NoError(s.actas.TransitionState(s.ctx, acta.ID, domain.StateApproved, domain.StateSent))

	participants := []*domain.Participant{{
		ID: uuid.New(), ActaID: acta.ID, Name: "P", Email: "p@client.example",
		Kind: domain.ParticipantExternal,
	}}
	s.Require().NoError(s.participants.ReplaceForActa(s.ctx, acta.ID, participants))

	sig := s.signer.Sign(signer.PurposeAttachmentDownload,
		acta.ID.String(), participants[0].ID.String(), doc.ID.String())
	target := fmt.Sprintf("/documents?acta=%s&participant=%s&doc=%s&signature=%s",
		acta.ID, participants[0].ID, doc.ID, sig)

	rec := s.do(httptest.NewRequest(http.MethodGet, target, nil))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(content, rec.Body.String())
	s.Equal("application/pdf", rec.Header().Get("Content-Type"))
	s.Contains(rec.Header().Get("Content-Disposition"), "attachment")
	s.Contains(rec.Header().Get("Content-Disposition"), url.PathEscape("informe final.pdf"))
}

func (s *HandlerSuite) TestDocumentHiddenBeforeSent() {
	content := "%PDF-1.4"
	doc, err := s.attachSvc.SaveUpload(s.ctx, domain.OwnerCommitmentHistory, uuid.New(), s.acta.ID,
		"informe.pdf", "application/pdf", int64(len(content)), strings.NewReader(content))
	s.Require().NoError(err)

	sig := s.signer.Sign(signer.PurposeAttachmentDownload,
		s.acta.ID.String(), s.participant.ID.String(), doc.ID.String())
	target := fmt.Sprintf("/documents?acta=%s&participant=%s&doc=%s&signature=%s",
		s.acta.ID, s.participant.ID, doc.ID, sig)

	rec := s.do(httptest.NewRequest(http.MethodGet, target, nil))
	s.Equal(http.StatusNotFound, rec.Code)
	s.JSONEq(`{"error":"not_found"}`, rec.Body.String())
}

func (s *HandlerSuite) TestDocumentBadDocParam() {
	target := fmt.Sprintf("/documents?acta=%s&participant=%s&doc=nope&signature=%s",
		s.acta.ID, s.participant.ID, s.sig())
	rec := s.do(httptest.NewRequest(http.MethodGet, target, nil))
	s.Equal(http.StatusNotFound, rec.Code)
}
