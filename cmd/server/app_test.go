package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"presence/internal/platform/config"
	"presence/internal/platform/logger"
	"presence/pkg/platform/middleware/admin"
)

// AppSuite drives the in-memory component graph through its HTTP surface.
type AppSuite struct {
	suite.Suite
	cfg    config.Config
	app    *app
	server *httptest.Server
}

func TestAppSuite(t *testing.T) {
	suite.Run(t, new(AppSuite))
}

func (s *AppSuite) SetupTest() {
	s.cfg = config.Default()
	s.cfg.Server.Environment = "test"
	s.cfg.Issuer.KeystorePath = filepath.Join(s.T().TempDir(), "issuer.key")

	a, err := build(context.Background(), &s.cfg, logger.NewWithWriter(io.Discard, "error"), prometheus.NewRegistry())
	s.Require().NoError(err)
	s.app = a
	s.server = httptest.NewServer(a.router)
}

func (s *AppSuite) TearDownTest() {
	s.server.Close()
	s.app.close()
}

func (s *AppSuite) do(method, path string, body []byte, header http.Header) (*http.Response, []byte) {
	req, err := http.NewRequest(method, s.server.URL+path, bytes.NewReader(body))
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, raw
}

func (s *AppSuite) postJSON(path string, v any, header http.Header) (*http.Response, []byte) {
	body, err := json.Marshal(v)
	s.Require().NoError(err)
	return s.do(http.MethodPost, path, body, header)
}

func (s *AppSuite) createSubject(cardUID string) string {
	resp, body := s.postJSON("/identities", map[string]string{"card_uid": cardUID, "name": "Ada Lovelace"}, nil)
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(body))
	var created struct {
		DID string `json:"did"`
	}
	s.Require().NoError(json.Unmarshal(body, &created))
	s.Require().NotEmpty(created.DID)
	return created.DID
}

func (s *AppSuite) attend(did string, day int) *http.Response {
	ts := time.Date(2026, 3, 2+day, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)
	resp, _ := s.postJSON("/attendance", map[string]string{"did": did, "timestamp": ts}, nil)
	return resp
}

func (s *AppSuite) verify(document []byte) (valid bool, reason string) {
	resp, body := s.do(http.MethodPost, "/credentials/verify", document, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	var result struct {
		Valid  bool   `json:"valid"`
		Reason string `json:"reason"`
	}
	s.Require().NoError(json.Unmarshal(body, &result))
	return result.Valid, result.Reason
}

func (s *AppSuite) TestCredentialLifecycle() {
	did := s.createSubject("04A1B2C3D4E5F6")

	for day := range 8 {
		s.Require().Equal(http.StatusCreated, s.attend(did, day).StatusCode)
	}
	s.Equal(http.StatusConflict, s.attend(did, 7).StatusCode, "second mark on the same day")

	resp, body := s.do(http.MethodGet, "/attendance/"+did+"/ratio", nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var ratio struct {
		Ratio float64 `json:"ratio"`
	}
	s.Require().NoError(json.Unmarshal(body, &ratio))
	s.InDelta(0.8, ratio.Ratio, 1e-9)

	resp, document := s.postJSON("/credentials/issue", map[string]string{"did": did}, nil)
	s.Require().Equal(http.StatusCreated, resp.StatusCode, string(document))
	var issued struct {
		ID     string `json:"id"`
		Issuer string `json:"issuer"`
	}
	s.Require().NoError(json.Unmarshal(document, &issued))
	s.Equal(s.app.issuerDID.String(), issued.Issuer)

	resp, _ = s.postJSON("/credentials/issue", map[string]string{"did": did}, nil)
	s.Equal(http.StatusConflict, resp.StatusCode)

	valid, reason := s.verify(document)
	s.True(valid, reason)

	revokePath := fmt.Sprintf("/credentials/%s/revoke", issued.ID)
	resp, _ = s.postJSON(revokePath, map[string]string{"reason": "issued in error"}, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	token, err := admin.NewAuthenticator(s.cfg.Admin.JWTSecret, s.cfg.Admin.Audience).Issue("ops@example.com", time.Now(), time.Minute)
	s.Require().NoError(err)
	resp, body = s.postJSON(revokePath, map[string]string{"reason": "issued in error"},
		http.Header{"Authorization": []string{"Bearer " + token}})
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	valid, reason = s.verify(document)
	s.False(valid)
	s.Equal("revoked", reason)
}

func (s *AppSuite) TestDeactivatedCardCannotAttend() {
	s.createSubject("04A1B2C3D4E5F8")
	tap := func() *http.Response {
		resp, _ := s.postJSON("/attendance", map[string]string{"card_uid": "04A1B2C3D4E5F8"}, nil)
		return resp
	}

	resp, _ := s.postJSON("/cards/04A1B2C3D4E5F8/deactivate", nil, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	token, err := admin.NewAuthenticator(s.cfg.Admin.JWTSecret, s.cfg.Admin.Audience).Issue("ops@example.com", time.Now(), time.Minute)
	s.Require().NoError(err)
	bearer := http.Header{"Authorization": []string{"Bearer " + token}}

	resp, body := s.postJSON("/cards/04A1B2C3D4E5F8/deactivate", nil, bearer)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	s.Equal(http.StatusForbidden, tap().StatusCode)

	resp, body = s.postJSON("/cards/04A1B2C3D4E5F8/reactivate", nil, bearer)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	s.Equal(http.StatusCreated, tap().StatusCode)
}

func (s *AppSuite) TestIssuerCannotAttend() {
	s.Equal(http.StatusUnprocessableEntity, s.attend(s.app.issuerDID.String(), 0).StatusCode)
}

func (s *AppSuite) TestVerifyRejectsGarbageWithReason() {
	valid, reason := s.verify([]byte(`{"id":"nope"}`))
	s.False(valid)
	s.Equal("malformed_credential", reason)
}

func (s *AppSuite) TestIssueBelowThreshold() {
	did := s.createSubject("04A1B2C3D4E5F7")
	s.Require().Equal(http.StatusCreated, s.attend(did, 0).StatusCode)

	resp, body := s.postJSON("/credentials/issue", map[string]string{"did": did}, nil)
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode, string(body))
}

func (s *AppSuite) TestSnapshotAndHealthChecks() {
	resp, body := s.do(http.MethodGet, "/verifier/snapshot", nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))
	var snap struct {
		Issuer string `json:"issuer"`
	}
	s.Require().NoError(json.Unmarshal(body, &snap))
	s.Equal(s.app.issuerDID.String(), snap.Issuer)

	resp, _ = s.do(http.MethodGet, "/health/live", nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	resp, _ = s.do(http.MethodGet, "/health/ready", nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *AppSuite) TestRestartReusesIssuerKey() {
	first := s.app.issuerDID

	again, err := build(context.Background(), &s.cfg, logger.NewWithWriter(io.Discard, "error"), prometheus.NewRegistry())
	s.Require().NoError(err)
	defer again.close()

	s.Equal(first, again.issuerDID)
}
