package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"alumnus/internal/agerules"
	"alumnus/internal/platform/metrics"
	profilemodels "alumnus/internal/profile/models"
	profilestore "alumnus/internal/profile/store"
	"alumnus/internal/session/store"
	"alumnus/internal/session/token"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/requestcontext"
)

const firefoxLinux = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"

type SessionServiceSuite struct {
	suite.Suite
	now      time.Time
	ctx      context.Context
	profiles *profilestore.InMemory
	sessions *store.InMemory
	jwt      *token.JWTService
	metrics  *metrics.Metrics
	service  *Service
	account  id.AccountID
	parent   *profilemodels.Profile
	records  int64
}

func TestSessionServiceSuite(t *testing.T) {
	suite.Run(t, new(SessionServiceSuite))
}

func (s *SessionServiceSuite) SetupTest() {
	s.now = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithClientMetadata(requestcontext.WithTime(context.Background(), s.now), "203.0.113.7", firefoxLinux)
	s.profiles = profilestore.NewInMemory()
	s.sessions = store.NewInMemory()
	s.jwt = token.NewJWTService("test-signing-key", "alumnus", "alumnus-api", token.WithClock(func() time.Time { return s.now }))
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.service = New(s.profiles, s.jwt, s.sessions,
		WithMetrics(s.metrics),
		WithTokenTTLs(15*time.Minute, 24*time.Hour),
	)

	s.account = id.NewAccountID()
	s.parent = s.createProfile(s.account, profilemodels.RelationshipParent, nil, 40)
}

func (s *SessionServiceSuite) createProfile(accountID id.AccountID, rel profilemodels.Relationship, parent *id.ProfileID, age int) *profilemodels.Profile {
	s.records++
	p, err := profilemodels.NewProfile(id.NewProfileID(), profilemodels.NewProfileParams{
		AccountID:       accountID,
		AlumniRecordID:  id.AlumniRecordID(s.records),
		Relationship:    rel,
		ParentProfileID: parent,
		Classification:  agerules.Classify(&age),
		Now:             s.now,
	})
	s.Require().NoError(err)
	s.Require().NoError(s.profiles.Create(context.Background(), p))
	return p
}

func (s *SessionServiceSuite) pendingChild() *profilemodels.Profile {
	parentID := s.parent.ID
	return s.createProfile(s.account, profilemodels.RelationshipChild, &parentID, 15)
}

func (s *SessionServiceSuite) consentedChild() *profilemodels.Profile {
	c := s.pendingChild()
	c.ApplyConsentGrant(s.now)
	s.Require().NoError(s.profiles.Update(context.Background(), c))
	return c
}

func (s *SessionServiceSuite) switches(outcome string) float64 {
	return promtestutil.ToFloat64(s.metrics.ProfileSwitches.WithLabelValues(outcome))
}

func (s *SessionServiceSuite) TestSwitchToAdultProfile() {
	result, err := s.service.SwitchActiveProfile(s.ctx, s.account, s.parent.ID)
	s.Require().NoError(err)

	claims, err := s.jwt.ValidateToken(result.AccessToken)
	s.Require().NoError(err)
	s.Equal(s.account.String(), claims.AccountID)
	s.Equal(s.parent.ID.String(), claims.ProfileID)
	s.Equal("Bearer", result.TokenType)
	s.Equal(900, result.ExpiresIn)
	s.NotEmpty(result.RefreshToken)
	s.Equal(s.parent.ID, result.ActiveProfile.ID)
	s.Equal(agerules.AccessFull, result.ActiveProfile.AccessLevel)
	s.Equal(1, s.sessions.Len())
	s.Equal(1.0, s.switches("ok"))
}

func (s *SessionServiceSuite) TestSwitchIsRepeatable() {
	first, err := s.service.SwitchActiveProfile(s.ctx, s.account, s.parent.ID)
	s.Require().NoError(err)
	second, err := s.service.SwitchActiveProfile(s.ctx, s.account, s.parent.ID)
	s.Require().NoError(err)

	s.NotEqual(first.RefreshToken, second.RefreshToken)
	s.Equal(first.ActiveProfile, second.ActiveProfile)
}

func (s *SessionServiceSuite) TestSwitchToSupervisedChild() {
	c := s.consentedChild()
	result, err := s.service.SwitchActiveProfile(s.ctx, s.account, c.ID)
	s.Require().NoError(err)
	s.Equal(agerules.AccessSupervised, result.ActiveProfile.AccessLevel)
}

func (s *SessionServiceSuite) TestSwitchDenied() {
	s.Run("pending consent is blocked", func() {
		c := s.pendingChild()
		_, err := s.service.SwitchActiveProfile(s.ctx, s.account, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})

	s.Run("lapsed consent is blocked", func() {
		c := s.consentedChild()
		later := requestcontext.WithTime(context.Background(), s.now.Add(agerules.ConsentValidity))
		_, err := s.service.SwitchActiveProfile(later, s.account, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})

	s.Run("suspended profile", func() {
		c := s.consentedChild()
		c.Status = profilemodels.StatusSuspended
		s.Require().NoError(s.profiles.Update(context.Background(), c))
		_, err := s.service.SwitchActiveProfile(s.ctx, s.account, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeAccessDenied))
	})

	s.Zero(s.sessions.Len())
	s.Equal(3.0, s.switches("denied"))
}

func (s *SessionServiceSuite) TestSwitchToForeignProfileIsNotFound() {
	other := s.createProfile(id.NewAccountID(), profilemodels.RelationshipParent, nil, 35)

	_, err := s.service.SwitchActiveProfile(s.ctx, s.account, other.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.SwitchActiveProfile(s.ctx, s.account, id.NewProfileID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Equal(2.0, s.switches("not_found"))
}

func (s *SessionServiceSuite) TestRefreshRotatesToken() {
	switched, err := s.service.SwitchActiveProfile(s.ctx, s.account, s.parent.ID)
	s.Require().NoError(err)

	refreshed, err := s.service.Refresh(s.ctx, switched.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(switched.RefreshToken, refreshed.RefreshToken)
	s.Equal(s.parent.ID, refreshed.ActiveProfile.ID)

	_, err = s.service.Refresh(s.ctx, switched.RefreshToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.Refresh(s.ctx, refreshed.RefreshToken)
	s.Require().NoError(err)
}

func (s *SessionServiceSuite) TestRefreshFromAnotherDeviceStillWorks() {
	switched, err := s.service.SwitchActiveProfile(s.ctx, s.account, s.parent.ID)
	s.Require().NoError(err)

	other := requestcontext.WithClientMetadata(requestcontext.WithTime(context.Background(), s.now), "198.51.100.1",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	_, err = s.service.Refresh(other, switched.RefreshToken)
	s.Require().NoError(err)
}

func (s *SessionServiceSuite) TestRefreshRechecksAccess() {
	c := s.consentedChild()
	switched, err := s.service.SwitchActiveProfile(s.ctx, s.account, c.ID)
	s.Require().NoError(err)

	c.ApplyConsentRevocation(s.now)
	s.Require().NoError(s.profiles.Update(context.Background(), c))

	_, err = s.service.Refresh(s.ctx, switched.RefreshToken)
	s.True(dErrors.HasCode(err, dErrors.CodeAccessDenied))
	s.Zero(s.sessions.Len(), "a refused refresh still spends the token")
}

func (s *SessionServiceSuite) TestRefreshRejectsBadTokens() {
	_, err := s.service.Refresh(s.ctx, "")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.service.Refresh(s.ctx, "unknown")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	switched, err := s.service.SwitchActiveProfile(s.ctx, s.account, s.parent.ID)
	s.Require().NoError(err)
	later := requestcontext.WithTime(context.Background(), s.now.Add(25*time.Hour))
	_, err = s.service.Refresh(later, switched.RefreshToken)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
