package common

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// Password is shared by every family account the features sign in with.
const Password = "correct-horse-battery"

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	POSTAnonymous(path string, body interface{}) error
	GetResponseField(field string) (interface{}, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	SetAccessToken(token string)
}

// RegisterSteps registers background, sign-in and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^the alumni service is running$`, steps.serviceIsRunning)
	ctx.Step(`^I sign in as the alumni family "([^"]*)"$`, steps.signInAsFamily)
	ctx.Step(`^I register with email "([^"]*)" and password "([^"]*)"$`, steps.register)

	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, steps.errorCodeShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.responseFieldShouldEqual)
	ctx.Step(`^the response should have field "([^"]*)"$`, steps.responseShouldHaveField)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) serviceIsRunning(ctx context.Context) error {
	if err := s.tc.GET("/healthz"); err != nil {
		return err
	}
	return s.responseStatusShouldBe(ctx, http.StatusOK)
}

// signInAsFamily registers the account on first use and logs in. Accounts
// survive between runs against the same server, so a conflict is fine.
func (s *commonSteps) signInAsFamily(ctx context.Context, email string) error {
	body := map[string]string{"email": email, "password": Password}
	if err := s.tc.POSTAnonymous("/auth/register", body); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusCreated && status != http.StatusConflict {
		return fmt.Errorf("register %s: unexpected status %d: %s", email, status, s.tc.GetLastResponseBody())
	}

	if err := s.tc.POSTAnonymous("/auth/login", body); err != nil {
		return err
	}
	if err := s.responseStatusShouldBe(ctx, http.StatusOK); err != nil {
		return err
	}
	token, err := s.tc.GetResponseField("access_token")
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(fmt.Sprint(token))
	return nil
}

func (s *commonSteps) register(ctx context.Context, email, password string) error {
	return s.tc.POSTAnonymous("/auth/register", map[string]string{"email": email, "password": password})
}

func (s *commonSteps) responseStatusShouldBe(ctx context.Context, expected int) error {
	if actual := s.tc.GetLastResponseStatus(); actual != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, actual, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *commonSteps) errorCodeShouldBe(ctx context.Context, code string) error {
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &envelope); err != nil {
		return fmt.Errorf("response is not an error envelope: %w", err)
	}
	if envelope.Error != code {
		return fmt.Errorf("expected error %q, got %q", code, envelope.Error)
	}
	return nil
}

func (s *commonSteps) responseFieldShouldEqual(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if actual := fmt.Sprint(value); actual != expected {
		return fmt.Errorf("expected %s to be %q, got %q", field, expected, actual)
	}
	return nil
}

func (s *commonSteps) responseShouldHaveField(ctx context.Context, field string) error {
	_, err := s.tc.GetResponseField(field)
	return err
}
