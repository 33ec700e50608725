package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"presence/pkg/requestcontext"
)

// AdminMiddlewareSuite checks that only live admin tokens reach revocation handlers.
type AdminMiddlewareSuite struct {
	suite.Suite
	auth    *Authenticator
	logger  *slog.Logger
	reached bool
	actor   string
	handler http.Handler
}

func TestAdminMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AdminMiddlewareSuite))
}

func (s *AdminMiddlewareSuite) SetupTest() {
	s.auth = NewAuthenticator("test-secret", "presence-admin")
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.reached = false
	s.actor = ""
	s.handler = RequireAdmin(s.auth, s.logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.reached = true
		s.actor = requestcontext.Actor(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
}

func (s *AdminMiddlewareSuite) serve(authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/credentials/vc_x/revoke", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *AdminMiddlewareSuite) TestValidTokenPasses() {
	token, err := s.auth.Issue("registrar@campus", time.Now(), time.Minute)
	s.Require().NoError(err)

	w := s.serve("Bearer " + token)

	s.Equal(http.StatusOK, w.Code)
	s.True(s.reached)
	s.Equal("registrar@campus", s.actor)
}

func (s *AdminMiddlewareSuite) TestRejections() {
	s.Run("missing header", func() {
		s.SetupTest()
		w := s.serve("")
		s.Equal(http.StatusUnauthorized, w.Code)
		s.False(s.reached)
	})

	s.Run("expired token", func() {
		s.SetupTest()
		token, err := s.auth.Issue("registrar", time.Now().Add(-2*time.Hour), time.Minute)
		s.Require().NoError(err)
		w := s.serve("Bearer " + token)
		s.Equal(http.StatusUnauthorized, w.Code)
		s.False(s.reached)
	})

	s.Run("wrong secret", func() {
		s.SetupTest()
		other := NewAuthenticator("other-secret", "presence-admin")
		token, err := other.Issue("registrar", time.Now(), time.Minute)
		s.Require().NoError(err)
		w := s.serve("Bearer " + token)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("missing admin role", func() {
		s.SetupTest()
		claims := Claims{
			Role: "viewer",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "someone",
				Audience:  jwt.ClaimStrings{"presence-admin"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		s.Require().NoError(err)
		w := s.serve("Bearer " + token)
		s.Equal(http.StatusUnauthorized, w.Code)
		s.False(s.reached)
	})

	s.Run("wrong audience", func() {
		s.SetupTest()
		other := NewAuthenticator("test-secret", "somebody-else")
		token, err := other.Issue("registrar", time.Now(), time.Minute)
		s.Require().NoError(err)
		w := s.serve("Bearer " + token)
		s.Equal(http.StatusUnauthorized, w.Code)
	})
}
