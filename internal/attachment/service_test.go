package attachment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"recaudo/internal/blob"
	"recaudo/internal/domain"
	"recaudo/internal/platform/logger"
	"recaudo/internal/storage/memory"
	domainerrors "recaudo/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite

	ctx     context.Context
	actas   *memory.ActaStore
	store   *memory.AttachmentStore
	blobs   *blob.Local
	service *Service
	actaID  uuid.UUID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.actas = memory.NewActaStore()
	s.store = memory.NewAttachmentStore()

	local, err := blob.NewLocal(s.T().TempDir())
	s.Require().NoError(err)
	s.blobs = local

	s.service = NewService(s.store, s.actas, s.blobs, 15*time.Minute, nil, logger.New())

	s.actaID = uuid.New()
	s.Require().NoError(s.actas.Create(s.ctx, &domain.Acta{
		ID:        s.actaID,
		State:     domain.StateDraft,
		CreatedBy: uuid.New(),
	}))
}

func (s *ServiceSuite) setActaState(state domain.ActaState) {
	acta, err := s.actas.FindByID(s.ctx, s.actaID)
	s.Require().NoError(err)
	s.Require().NoError(s.actas.TransitionState(s.ctx, s.actaID, acta.State, state))
}

func (s *ServiceSuite) TestSaveUpload() {
	content := "%PDF-1.4 fake"
	att, err := s.service.SaveUpload(s.ctx, domain.OwnerActa, s.actaID, s.actaID,
		"informe.pdf", "application/pdf", int64(len(content)), strings.NewReader(content))
	s.Require().NoError(err)

	s.Equal("informe.pdf", att.FileName)
	s.Equal("application/pdf", att.ContentType)
	s.True(strings.HasPrefix(att.StoragePath, "actas/"+s.actaID.String()+"/"))

	rc, err := s.blobs.Get(s.ctx, att.StoragePath)
	s.Require().NoError(err)
	_ = rc.Close()
}

func (s *ServiceSuite) TestSaveUploadRejectsUnknownType() {
	_, err := s.service.SaveUpload(s.ctx, domain.OwnerActa, s.actaID, s.actaID,
		"run.exe", "application/x-msdownload", 10, strings.NewReader("0123456789"))
	s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))
}

func (s *ServiceSuite) TestSaveUploadRejectsOversizeBeforeIO() {
	_, err := s.service.SaveUpload(s.ctx, domain.OwnerActa, s.actaID, s.actaID,
		"big.pdf", "application/pdf", MaxProxiedSize+1, strings.NewReader("irrelevant"))
	s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))

	listed, err := s.store.ListByActa(s.ctx, s.actaID)
	s.Require().NoError(err)
	s.Empty(listed)
}

func (s *ServiceSuite) TestSaveUploadRejectsNonDraftActa() {
	s.setActaState(domain.StatePendingApproval)

	_, err := s.service.SaveUpload(s.ctx, domain.OwnerActa, s.actaID, s.actaID,
		"late.pdf", "application/pdf", 4, strings.NewReader("late"))
	s.True(domainerrors.Is(err, domainerrors.CodeInvalidState))
}

func (s *ServiceSuite) TestEvidenceUploadAllowedAfterSent() {
	s.setActaState(domain.StatePendingApproval)
	s.setActaState(domain.StateApproved)
	s.setActaState(domain.StateSent)

	entryID := uuid.New()
	_, err := s.service.SaveUpload(s.ctx, domain.OwnerCommitmentHistory, entryID, s.actaID,
		"evidence.jpg", "image/jpeg", 4, strings.NewReader("data"))
	s.NoError(err)
}

func (s *ServiceSuite) TestSavePhoto() {
	approvalID := uuid.New()
	att, err := s.service.SavePhoto(s.ctx, approvalID, s.actaID,
		"selfie.jpg", "image/jpeg", 4, strings.NewReader("data"))
	s.Require().NoError(err)
	s.Equal(domain.OwnerApproval, att.OwnerKind)
	s.Equal(approvalID, att.OwnerID)
}

func (s *ServiceSuite) TestSavePhotoRejectsNonPhotoTypes() {
	_, err := s.service.SavePhoto(s.ctx, uuid.New(), s.actaID,
		"anim.gif", "image/gif", 4, strings.NewReader("data"))
	s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))

	_, err = s.service.SavePhoto(s.ctx, uuid.New(), s.actaID,
		"doc.pdf", "application/pdf", 4, strings.NewReader("data"))
	s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))
}

func (s *ServiceSuite) TestSavePhotoRejectsOversize() {
	_, err := s.service.SavePhoto(s.ctx, uuid.New(), s.actaID,
		"huge.jpg", "image/jpeg", MaxPhotoSize+1, strings.NewReader("x"))
	s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))
}

func (s *ServiceSuite) TestRequestUploadUnsupportedOnLocalBackend() {
	_, err := s.service.RequestUpload(s.ctx, s.actaID, "application/pdf", 50<<20)
	s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))
}

// presignBlobStore adds the presign capability on top of the local backend so
// the direct-upload path is testable without an object store.
type presignBlobStore struct {
	*blob.Local
}

func (p *presignBlobStore) PresignPut(_ context.Context, path, _ string, _ time.Duration) (string, error) {
	return "https://bucket.example/" + path, nil
}

func (s *ServiceSuite) TestRequestUploadOnlyAboveProxyCeiling() {
	svc := NewService(s.store, s.actas, &presignBlobStore{Local: s.blobs}, 15*time.Minute, nil, logger.New())

	// Anything the proxied path can carry is not eligible for a ticket.
	_, err := svc.RequestUpload(s.ctx, s.actaID, "application/pdf", 5<<20)
	s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))
	_, err = svc.RequestUpload(s.ctx, s.actaID, "application/pdf", MaxProxiedSize)
	s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))

	ticket, err := svc.RequestUpload(s.ctx, s.actaID, "application/pdf", 50<<20)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(ticket.StoragePath, "actas/"+s.actaID.String()+"/"))
	s.Contains(ticket.UploadURL, ticket.StoragePath)
}

func (s *ServiceSuite) TestRegisterUploadRejectsForeignPath() {
	otherActa := uuid.New()
	_, err := s.service.RegisterUpload(s.ctx, domain.OwnerActa, s.actaID, s.actaID,
		"f.pdf", "actas/"+otherActa.String()+"/x.pdf", "application/pdf", 100)
	s.True(domainerrors.Is(err, domainerrors.CodeBadRequest))
}

func (s *ServiceSuite) TestRegisterUpload() {
	path := "actas/" + s.actaID.String() + "/direct.pdf"
	att, err := s.service.RegisterUpload(s.ctx, domain.OwnerActa, s.actaID, s.actaID,
		"direct.pdf", path, "application/pdf", 50<<20)
	s.Require().NoError(err)
	s.Equal(path, att.StoragePath)
}

func (s *ServiceSuite) TestDelete() {
	content := "bytes"
	att, err := s.service.SaveUpload(s.ctx, domain.OwnerActa, s.actaID, s.actaID,
		"gone.pdf", "application/pdf", int64(len(content)), strings.NewReader(content))
	s.Require().NoError(err)

	s.Require().NoError(s.service.Delete(s.ctx, att.ID))

	_, err = s.service.FindByID(s.ctx, att.ID)
	s.True(domainerrors.Is(err, domainerrors.CodeNotFound))
	_, err = s.blobs.Get(s.ctx, att.StoragePath)
	s.Error(err)
}

func (s *ServiceSuite) TestDeleteRejectedOnNonDraftActa() {
	content := "bytes"
	att, err := s.service.SaveUpload(s.ctx, domain.OwnerActa, s.actaID, s.actaID,
		"keep.pdf", "application/pdf", int64(len(content)), strings.NewReader(content))
	s.Require().NoError(err)

	s.setActaState(domain.StatePendingApproval)

	err = s.service.Delete(s.ctx, att.ID)
	s.True(domainerrors.Is(err, domainerrors.CodeInvalidState))
}

func (s *ServiceSuite) TestReadMissing() {
	_, _, err := s.service.Read(s.ctx, uuid.New())
	s.True(domainerrors.Is(err, domainerrors.CodeNotFound))
}

func (s *ServiceSuite) TestContentTypeParametersIgnored() {
	content := "a,b\n1,2\n"
	att, err := s.service.SaveUpload(s.ctx, domain.OwnerActa, s.actaID, s.actaID,
		"data.csv", "text/csv; charset=utf-8", int64(len(content)), strings.NewReader(content))
	s.Require().NoError(err)
	s.Equal("text/csv", att.ContentType)
}
