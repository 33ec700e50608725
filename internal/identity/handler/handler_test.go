package handler

//go:generate mockgen -source=handler.go -destination=mocks/handler_mock.go -package=mocks Service

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"presence/internal/identity/handler/mocks"
	"presence/internal/identity/models"
	dErrors "presence/pkg/domain-errors"
	"presence/pkg/platform/httputil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
	h.RegisterAdmin(s.router)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) errorCode(rec *httptest.ResponseRecorder) string {
	var body httputil.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func testIdentity() *models.CreatedIdentity {
	pub, priv, _ := ed25519.GenerateKey(bytes.NewReader(bytes.Repeat([]byte{9}, 32)))
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	d := models.DID("did:key:z6MkTest")
	return &models.CreatedIdentity{
		Record:     models.Record{DID: d, ControllerDID: d, Keys: []models.KeyVersion{{Version: 1, PublicKey: pub, CreatedAt: now}}, CreatedAt: now},
		Subject:    models.Subject{DID: d, CardUID: "04A1B2C3D4E5F6", CardStatus: models.CardActive, Attributes: models.Attributes{Name: "Ada"}, CreatedAt: now},
		PrivateKey: priv,
	}
}

func (s *HandlerSuite) TestCreateIdentity() {
	s.Run("normalizes the card uid and returns the key once", func() {
		created := testIdentity()
		s.service.EXPECT().
			CreateIdentity(gomock.Any(), models.CardUID("04A1B2C3D4E5F6"), models.Attributes{Name: "Ada", Email: "ada@example.edu"}).
			Return(created, nil)

		rec := s.do(http.MethodPost, "/identities", `{"card_uid":"04a1b2c3d4e5f6","name":" Ada ","email":"Ada@Example.edu"}`)
		s.Require().Equal(http.StatusCreated, rec.Code)

		var resp CreateIdentityResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("did:key:z6MkTest", resp.DID)
		s.Equal("did:key:z6MkTest#key-1", resp.Keys[0].ID)
		s.Equal(string(models.CardMifareClassic), resp.Subject.CardType)
		s.NotEmpty(resp.PrivateKey)
	})

	s.Run("invalid card uid is rejected before the service", func() {
		rec := s.do(http.MethodPost, "/identities", `{"card_uid":"XYZ","name":"Ada"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal(string(dErrors.CodeValidation), s.errorCode(rec))
	})

	s.Run("missing name", func() {
		rec := s.do(http.MethodPost, "/identities", `{"card_uid":"A1B2C3D4"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("bad enrollment date", func() {
		rec := s.do(http.MethodPost, "/identities", `{"card_uid":"A1B2C3D4","name":"Ada","enrollment_date":"01/09/2025"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("duplicate card maps to 409", func() {
		s.service.EXPECT().CreateIdentity(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeDuplicateSubject, "card is already bound to a subject"))

		rec := s.do(http.MethodPost, "/identities", `{"card_uid":"A1B2C3D4","name":"Ada"}`)
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal(string(dErrors.CodeDuplicateSubject), s.errorCode(rec))
	})

	s.Run("unexpected errors are opaque", func() {
		s.service.EXPECT().CreateIdentity(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("pq: connection refused"))

		rec := s.do(http.MethodPost, "/identities", `{"card_uid":"A1B2C3D4","name":"Ada"}`)
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.NotContains(rec.Body.String(), "connection refused")
	})
}

func (s *HandlerSuite) TestResolve() {
	s.Run("found", func() {
		created := testIdentity()
		s.service.EXPECT().Resolve(gomock.Any(), models.DID("did:key:z6MkTest")).Return(created.Record, nil)

		rec := s.do(http.MethodGet, "/identities/did:key:z6MkTest", "")
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp RecordResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal(base58.Encode(created.Record.PublicKey()), resp.PublicKey)
	})

	s.Run("unknown", func() {
		s.service.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(models.Record{}, dErrors.New(dErrors.CodeNotFound, "did not found"))
		rec := s.do(http.MethodGet, "/identities/did:key:z6MkNope", "")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestRotateKey() {
	pub := make([]byte, ed25519.PublicKeySize)
	pub[0] = 7

	s.Run("appends a key version", func() {
		s.service.EXPECT().RotateKey(gomock.Any(), models.DID("did:key:z6MkTest"), ed25519.PublicKey(pub)).
			Return(models.KeyVersion{Version: 2, PublicKey: pub}, nil)

		rec := s.do(http.MethodPost, "/identities/did:key:z6MkTest/keys", `{"public_key_base58":"`+base58.Encode(pub)+`"}`)
		s.Require().Equal(http.StatusCreated, rec.Code)
		var resp KeyResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("did:key:z6MkTest#key-2", resp.ID)
	})

	s.Run("wrong key length", func() {
		rec := s.do(http.MethodPost, "/identities/did:key:z6MkTest/keys", `{"public_key_base58":"`+base58.Encode(pub[:16])+`"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestCard() {
	s.Run("registered card reports type and owner", func() {
		s.service.EXPECT().ResolveByCard(gomock.Any(), models.CardUID("A1B2C3D4")).
			Return(models.Subject{DID: "did:key:z6MkTest", CardUID: "A1B2C3D4", CardStatus: models.CardActive}, nil)

		rec := s.do(http.MethodGet, "/cards/a1b2c3d4", "")
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp CardResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal(string(models.CardMifareUltralight), resp.CardType)
		s.Equal("did:key:z6MkTest", resp.DID)
	})

	s.Run("malformed uid", func() {
		rec := s.do(http.MethodGet, "/cards/zz", "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unregistered card", func() {
		s.service.EXPECT().ResolveByCard(gomock.Any(), gomock.Any()).Return(models.Subject{}, dErrors.New(dErrors.CodeNotFound, "card is not registered"))
		rec := s.do(http.MethodGet, "/cards/FFFFFFFF", "")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestCardStatus() {
	s.Run("deactivate", func() {
		s.service.EXPECT().DeactivateCard(gomock.Any(), models.CardUID("A1B2C3D4")).
			Return(models.Subject{DID: "did:key:z6MkTest", CardUID: "A1B2C3D4", CardStatus: models.CardInactive}, nil)

		rec := s.do(http.MethodPost, "/cards/a1b2c3d4/deactivate", "")
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp CardResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("inactive", resp.CardStatus)
	})

	s.Run("reactivate", func() {
		s.service.EXPECT().ReactivateCard(gomock.Any(), models.CardUID("A1B2C3D4")).
			Return(models.Subject{DID: "did:key:z6MkTest", CardUID: "A1B2C3D4", CardStatus: models.CardActive}, nil)

		rec := s.do(http.MethodPost, "/cards/A1B2C3D4/reactivate", "")
		s.Require().Equal(http.StatusOK, rec.Code)
		var resp CardResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("active", resp.CardStatus)
	})

	s.Run("malformed uid", func() {
		rec := s.do(http.MethodPost, "/cards/zz/deactivate", "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unregistered card", func() {
		s.service.EXPECT().DeactivateCard(gomock.Any(), gomock.Any()).Return(models.Subject{}, dErrors.New(dErrors.CodeNotFound, "card is not registered"))
		rec := s.do(http.MethodPost, "/cards/FFFFFFFF/deactivate", "")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestList() {
	s.service.EXPECT().ListSubjects(gomock.Any()).Return([]models.Subject{testIdentity().Subject}, nil)

	rec := s.do(http.MethodGet, "/identities", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp SubjectListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(1, resp.Total)
	s.Equal("Ada", resp.Subjects[0].Name)
}
