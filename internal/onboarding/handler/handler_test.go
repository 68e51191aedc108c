package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"alumnus/internal/agerules"
	consentmodels "alumnus/internal/consent/models"
	"alumnus/internal/onboarding/handler/mocks"
	"alumnus/internal/onboarding/models"
	profilemodels "alumnus/internal/profile/models"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/onboarding-mocks.go -package=mocks Service
type OnboardingHandlerSuite struct {
	suite.Suite
	service   *mocks.MockService
	router    http.Handler
	accountID id.AccountID
}

func TestOnboardingHandlerSuite(t *testing.T) {
	suite.Run(t, new(OnboardingHandlerSuite))
}

func (s *OnboardingHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.accountID = id.NewAccountID()

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func (s *OnboardingHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := testutil.NewRequest(s.T(), method, path)
	if body != "" {
		req = testutil.NewRequestWithBody(s.T(), method, path, body)
	}
	return testutil.DoRequest(s.router, testutil.WithAccountID(req, s.accountID))
}

func (s *OnboardingHandlerSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (s *OnboardingHandlerSuite) TestDiscover() {
	s.Run("returns matches", func() {
		age := 15
		s.service.EXPECT().DiscoverForAccount(gomock.Any(), s.accountID).Return([]models.AlumniMatch{{
			Age:         &age,
			CoppaStatus: agerules.Classify(&age),
		}}, nil)

		rec := s.do(http.MethodGet, "/onboarding/matches", "")

		s.Equal(http.StatusOK, rec.Code)
		matches := s.decode(rec)["matches"].([]any)
		s.Require().Len(matches, 1)
		status := matches[0].(map[string]any)["coppa_status"].(map[string]any)
		s.Equal(true, status["requires_consent"])
	})

	s.Run("anonymous caller is unauthorized", func() {
		rec := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/onboarding/matches"))
		testutil.AssertStatusAndError(s.T(), rec, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
	})
}

func (s *OnboardingHandlerSuite) TestCreateProfiles() {
	s.Run("passes selections through", func() {
		yob := 2010
		want := []models.Selection{
			{AlumniRecordID: 501, Relationship: profilemodels.RelationshipParent},
			{AlumniRecordID: 502, Relationship: profilemodels.RelationshipChild, YearOfBirth: &yob},
		}
		s.service.EXPECT().CreateProfiles(gomock.Any(), s.accountID, want).Return(&models.CreateProfilesResult{
			CreatedProfiles: []*profilemodels.Profile{},
			Skipped:         []id.AlumniRecordID{},
			RequiresConsent: true,
		}, nil)

		rec := s.do(http.MethodPost, "/onboarding/profiles", `{"selections":[
			{"alumni_record_id":501,"relationship":" parent "},
			{"alumni_record_id":502,"relationship":"child","year_of_birth":2010}]}`)

		s.Equal(http.StatusCreated, rec.Code)
		s.Equal(true, s.decode(rec)["requires_consent"])
	})

	s.Run("empty selections are rejected before the service", func() {
		rec := s.do(http.MethodPost, "/onboarding/profiles", `{"selections":[]}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("conflict from the service", func() {
		s.service.EXPECT().CreateProfiles(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "record 501 is already claimed by this account"))

		rec := s.do(http.MethodPost, "/onboarding/profiles", `{"selections":[{"alumni_record_id":501,"relationship":"parent"}]}`)
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *OnboardingHandlerSuite) TestListProfiles() {
	now := time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)
	p := &profilemodels.Profile{ID: id.NewProfileID(), AccountID: s.accountID, AccessLevel: agerules.AccessFull, Status: profilemodels.StatusActive}
	s.service.EXPECT().ListProfiles(gomock.Any(), s.accountID).Return([]models.ProfileView{models.NewProfileView(p, now)}, nil)

	rec := s.do(http.MethodGet, "/profiles", "")

	s.Equal(http.StatusOK, rec.Code)
	profiles := s.decode(rec)["profiles"].([]any)
	s.Require().Len(profiles, 1)
	s.Equal("full", profiles[0].(map[string]any)["effective_access_level"])
}

func (s *OnboardingHandlerSuite) TestGrantConsent() {
	childID := id.NewProfileID()

	s.Run("returns expiry", func() {
		expires := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)
		s.service.EXPECT().GrantConsent(gomock.Any(), s.accountID, childID).
			Return(&models.GrantConsentResult{ExpiresAt: expires}, nil)

		rec := s.do(http.MethodPost, "/profiles/"+childID.String()+"/consent", "")

		s.Equal(http.StatusOK, rec.Code)
		s.Equal("2026-06-15T00:00:00Z", s.decode(rec)["expires_at"])
	})

	s.Run("foreign profile is not found", func() {
		s.service.EXPECT().GrantConsent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "profile not found"))

		rec := s.do(http.MethodPost, "/profiles/"+childID.String()+"/consent", "")
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("malformed profile id", func() {
		rec := s.do(http.MethodPost, "/profiles/not-a-uuid/consent", "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *OnboardingHandlerSuite) TestRevokeConsent() {
	childID := id.NewProfileID()

	s.Run("with reason", func() {
		s.service.EXPECT().RevokeConsent(gomock.Any(), s.accountID, childID, "moved schools").Return(nil)

		rec := s.do(http.MethodPost, "/profiles/"+childID.String()+"/consent/revoke", `{"reason":" moved schools "}`)
		s.Equal(http.StatusNoContent, rec.Code)
	})

	s.Run("without body", func() {
		s.service.EXPECT().RevokeConsent(gomock.Any(), s.accountID, childID, "").Return(nil)

		rec := s.do(http.MethodPost, "/profiles/"+childID.String()+"/consent/revoke", "")
		s.Equal(http.StatusNoContent, rec.Code)
	})

	s.Run("multibyte reason within the character limit", func() {
		reason := strings.Repeat("ж", 300)
		s.service.EXPECT().RevokeConsent(gomock.Any(), s.accountID, childID, reason).Return(nil)

		rec := s.do(http.MethodPost, "/profiles/"+childID.String()+"/consent/revoke", `{"reason":"`+reason+`"}`)
		s.Equal(http.StatusNoContent, rec.Code)
	})

	s.Run("reason too long", func() {
		body := `{"reason":"` + strings.Repeat("x", 501) + `"}`
		rec := s.do(http.MethodPost, "/profiles/"+childID.String()+"/consent/revoke", body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *OnboardingHandlerSuite) TestConsentHistory() {
	childID := id.NewProfileID()
	s.service.EXPECT().ConsentHistory(gomock.Any(), s.accountID, childID).Return([]*consentmodels.Record{
		{ID: "01J0000000000000000000000A", ChildProfileID: childID, Action: consentmodels.ActionGranted},
	}, nil)

	rec := s.do(http.MethodGet, "/profiles/"+childID.String()+"/consent", "")

	s.Equal(http.StatusOK, rec.Code)
	records := s.decode(rec)["records"].([]any)
	s.Require().Len(records, 1)
	s.Equal("granted", records[0].(map[string]any)["action"])
}
