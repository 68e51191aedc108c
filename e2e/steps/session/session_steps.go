package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	POSTAnonymous(path string, body interface{}) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetProfileID(recordID int64) (string, error)
	GetRefreshToken() string
	SetRefreshToken(token string)
}

// RegisterSteps registers active profile step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &sessionSteps{tc: tc}

	ctx.Step(`^I switch to the profile for record (\d+)$`, steps.switchToProfile)
	ctx.Step(`^I switch to profile "([^"]*)"$`, steps.switchToProfileID)
	ctx.Step(`^I refresh the session$`, steps.refreshSession)
	ctx.Step(`^I refresh the session with token "([^"]*)"$`, steps.refreshWithToken)
	ctx.Step(`^the active profile should have access level "([^"]*)"$`, steps.activeProfileShouldHaveAccessLevel)
}

type sessionSteps struct {
	tc TestContext
}

func (s *sessionSteps) switchToProfile(ctx context.Context, recordID int64) error {
	profileID, err := s.tc.GetProfileID(recordID)
	if err != nil {
		return err
	}
	return s.switchToProfileID(ctx, profileID)
}

func (s *sessionSteps) switchToProfileID(ctx context.Context, profileID string) error {
	if err := s.tc.POST("/session/active-profile", map[string]string{"profile_id": profileID}); err != nil {
		return err
	}
	return s.keepRefreshToken()
}

func (s *sessionSteps) refreshSession(ctx context.Context) error {
	if s.tc.GetRefreshToken() == "" {
		return fmt.Errorf("no refresh token: switch to a profile first")
	}
	return s.refreshWithToken(ctx, s.tc.GetRefreshToken())
}

func (s *sessionSteps) refreshWithToken(ctx context.Context, token string) error {
	if err := s.tc.POSTAnonymous("/session/refresh", map[string]string{"refresh_token": token}); err != nil {
		return err
	}
	return s.keepRefreshToken()
}

// keepRefreshToken stores the rotated refresh token from a successful switch
// or refresh.
func (s *sessionSteps) keepRefreshToken() error {
	if s.tc.GetLastResponseStatus() != http.StatusOK {
		return nil
	}
	token, err := s.tc.GetResponseField("refresh_token")
	if err != nil {
		return err
	}
	s.tc.SetRefreshToken(fmt.Sprint(token))
	return nil
}

func (s *sessionSteps) activeProfileShouldHaveAccessLevel(ctx context.Context, level string) error {
	value, err := s.tc.GetResponseField("active_profile.access_level")
	if err != nil {
		return err
	}
	if fmt.Sprint(value) != level {
		return fmt.Errorf("expected active profile access level %q, got %q", level, value)
	}
	return nil
}
