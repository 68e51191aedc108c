package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"alumnus/internal/agerules"
	"alumnus/internal/session/handler/mocks"
	"alumnus/internal/session/models"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/session-mocks.go -package=mocks Service
type SessionHandlerSuite struct {
	suite.Suite
	service   *mocks.MockService
	router    http.Handler
	accountID id.AccountID
}

func TestSessionHandlerSuite(t *testing.T) {
	suite.Run(t, new(SessionHandlerSuite))
}

func (s *SessionHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.accountID = id.NewAccountID()

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.RegisterPublic(r)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(requestcontext.WithAccountID(req.Context(), s.accountID)))
			})
		})
		h.Register(r)
	})
	s.router = r
}

func (s *SessionHandlerSuite) do(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *SessionHandlerSuite) TestSwitchActiveProfile() {
	profileID := id.NewProfileID()

	s.Run("returns credentials for the profile", func() {
		s.service.EXPECT().SwitchActiveProfile(gomock.Any(), s.accountID, profileID).Return(&models.SwitchResult{
			AccessToken:   "access",
			TokenType:     "Bearer",
			ExpiresIn:     900,
			RefreshToken:  "refresh",
			ActiveProfile: models.ActiveProfile{ID: profileID, AccessLevel: agerules.AccessSupervised},
		}, nil)

		rec := s.do("/session/active-profile", `{"profile_id":"`+profileID.String()+`"}`)

		s.Equal(http.StatusOK, rec.Code)
		var body map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal("refresh", body["refresh_token"])
		s.Equal("supervised", body["active_profile"].(map[string]any)["access_level"])
	})

	s.Run("blocked profile is forbidden", func() {
		s.service.EXPECT().SwitchActiveProfile(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeAccessDenied, "profile is blocked pending parental consent"))

		rec := s.do("/session/active-profile", `{"profile_id":"`+profileID.String()+`"}`)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("malformed profile id", func() {
		rec := s.do("/session/active-profile", `{"profile_id":"nope"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *SessionHandlerSuite) TestRefresh() {
	s.Run("rotates", func() {
		s.service.EXPECT().Refresh(gomock.Any(), "old").Return(&models.SwitchResult{RefreshToken: "new"}, nil)

		rec := s.do("/session/refresh", `{"refresh_token":" old "}`)
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("spent token is unauthorized", func() {
		s.service.EXPECT().Refresh(gomock.Any(), "old").
			Return(nil, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token"))

		rec := s.do("/session/refresh", `{"refresh_token":"old"}`)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("missing token", func() {
		rec := s.do("/session/refresh", `{}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
