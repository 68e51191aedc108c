package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POSTAnonymous(path string, body interface{}) error
	GetLastResponseStatus() int
	GetLastResponseHeader(name string) string
}

// RegisterSteps registers rate limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I attempt (\d+) logins for "([^"]*)" with a wrong password$`, steps.attemptLogins)
	ctx.Step(`^the first (\d+) attempts should return (\d+)$`, steps.firstAttemptsShouldReturn)
	ctx.Step(`^the (\d+)(?:st|nd|rd|th) attempt should return (\d+)$`, steps.nthAttemptShouldReturn)
	ctx.Step(`^the response should include a Retry-After header$`, steps.responseShouldIncludeRetryAfter)
}

type ratelimitSteps struct {
	tc       TestContext
	statuses []int
}

func (s *ratelimitSteps) attemptLogins(ctx context.Context, attempts int, email string) error {
	s.statuses = s.statuses[:0]
	body := map[string]string{"email": email, "password": "not-the-password"}
	for i := 0; i < attempts; i++ {
		if err := s.tc.POSTAnonymous("/auth/login", body); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *ratelimitSteps) firstAttemptsShouldReturn(ctx context.Context, n, expected int) error {
	if n > len(s.statuses) {
		return fmt.Errorf("only %d attempts were made", len(s.statuses))
	}
	for i, status := range s.statuses[:n] {
		if status != expected {
			return fmt.Errorf("attempt %d: expected %d, got %d", i+1, expected, status)
		}
	}
	return nil
}

func (s *ratelimitSteps) nthAttemptShouldReturn(ctx context.Context, n, expected int) error {
	if n < 1 || n > len(s.statuses) {
		return fmt.Errorf("attempt %d was not made (%d attempts)", n, len(s.statuses))
	}
	if actual := s.statuses[n-1]; actual != expected {
		return fmt.Errorf("attempt %d: expected %d, got %d", n, expected, actual)
	}
	return nil
}

func (s *ratelimitSteps) responseShouldIncludeRetryAfter(ctx context.Context) error {
	if s.tc.GetLastResponseStatus() != http.StatusTooManyRequests {
		return fmt.Errorf("last response was %d, not 429", s.tc.GetLastResponseStatus())
	}
	raw := s.tc.GetLastResponseHeader("Retry-After")
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 1 {
		return fmt.Errorf("invalid Retry-After header %q", raw)
	}
	return nil
}
