package onboarding

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	GETWithToken(path, token string) error
	POST(path string, body interface{}) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	DecodeResponse(v interface{}) error
	SetProfileID(recordID int64, profileID string)
	GetProfileID(recordID int64) (string, error)
}

// RegisterSteps registers discovery, profile and consent step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &onboardingSteps{tc: tc}

	ctx.Step(`^I discover my alumni matches$`, steps.discoverMatches)
	ctx.Step(`^I discover my alumni matches without signing in$`, steps.discoverMatchesAnonymously)
	ctx.Step(`^I should see (\d+) matches$`, steps.shouldSeeNMatches)
	ctx.Step(`^the match for record (\d+) should have access level "([^"]*)"$`, steps.matchShouldHaveAccessLevel)
	ctx.Step(`^the match for record (\d+) should not allow a profile$`, steps.matchShouldNotAllowProfile)

	ctx.Step(`^I create profiles for:$`, steps.createProfiles)
	ctx.Step(`^record (\d+) should be skipped$`, steps.recordShouldBeSkipped)
	ctx.Step(`^the profile for record (\d+) should start with access level "([^"]*)"$`, steps.createdProfileShouldHaveAccessLevel)

	ctx.Step(`^I grant consent for record (\d+)$`, steps.grantConsent)
	ctx.Step(`^I revoke consent for record (\d+) because "([^"]*)"$`, steps.revokeConsent)
	ctx.Step(`^I list my profiles$`, steps.listProfiles)
	ctx.Step(`^the profile for record (\d+) should have effective access level "([^"]*)"$`, steps.profileShouldHaveEffectiveAccessLevel)
}

type onboardingSteps struct {
	tc TestContext

	matches  []match
	created  []profile
	skipped  []int64
	profiles []profileView
}

type match struct {
	Record struct {
		ID int64 `json:"id"`
	} `json:"record"`
	CoppaStatus struct {
		AccessLevel      string `json:"access_level"`
		CanCreateProfile bool   `json:"can_create_profile"`
	} `json:"coppa_status"`
}

type profile struct {
	ID             string `json:"id"`
	AlumniRecordID int64  `json:"alumni_record_id"`
	AccessLevel    string `json:"access_level"`
}

type profileView struct {
	profile
	EffectiveAccessLevel string `json:"effective_access_level"`
}

func (s *onboardingSteps) discoverMatches(ctx context.Context) error {
	if err := s.tc.GET("/onboarding/matches"); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusOK {
		return fmt.Errorf("discover matches: status %d: %s", status, s.tc.GetLastResponseBody())
	}
	var resp struct {
		Matches []match `json:"matches"`
	}
	if err := s.tc.DecodeResponse(&resp); err != nil {
		return err
	}
	s.matches = resp.Matches
	return nil
}

func (s *onboardingSteps) discoverMatchesAnonymously(ctx context.Context) error {
	return s.tc.GETWithToken("/onboarding/matches", "")
}

func (s *onboardingSteps) shouldSeeNMatches(ctx context.Context, n int) error {
	if len(s.matches) != n {
		return fmt.Errorf("expected %d matches, got %d", n, len(s.matches))
	}
	return nil
}

func (s *onboardingSteps) findMatch(recordID int64) (*match, error) {
	for i := range s.matches {
		if s.matches[i].Record.ID == recordID {
			return &s.matches[i], nil
		}
	}
	return nil, fmt.Errorf("no match for record %d", recordID)
}

func (s *onboardingSteps) matchShouldHaveAccessLevel(ctx context.Context, recordID int64, level string) error {
	m, err := s.findMatch(recordID)
	if err != nil {
		return err
	}
	if m.CoppaStatus.AccessLevel != level {
		return fmt.Errorf("record %d: expected access level %q, got %q", recordID, level, m.CoppaStatus.AccessLevel)
	}
	return nil
}

func (s *onboardingSteps) matchShouldNotAllowProfile(ctx context.Context, recordID int64) error {
	m, err := s.findMatch(recordID)
	if err != nil {
		return err
	}
	if m.CoppaStatus.CanCreateProfile {
		return fmt.Errorf("record %d: expected no profile to be allowed", recordID)
	}
	return nil
}

// createProfiles reads a table with "record" and "relationship" columns.
func (s *onboardingSteps) createProfiles(ctx context.Context, table *godog.Table) error {
	if len(table.Rows) < 2 {
		return fmt.Errorf("table needs a header and at least one row")
	}
	selections := make([]map[string]interface{}, 0, len(table.Rows)-1)
	for _, row := range table.Rows[1:] {
		recordID, err := strconv.ParseInt(row.Cells[0].Value, 10, 64)
		if err != nil {
			return fmt.Errorf("record id %q: %w", row.Cells[0].Value, err)
		}
		selections = append(selections, map[string]interface{}{
			"alumni_record_id": recordID,
			"relationship":     row.Cells[1].Value,
		})
	}
	if err := s.tc.POST("/onboarding/profiles", map[string]interface{}{"selections": selections}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != http.StatusCreated {
		return nil
	}

	var resp struct {
		CreatedProfiles []profile `json:"created_profiles"`
		Skipped         []int64   `json:"skipped"`
	}
	if err := s.tc.DecodeResponse(&resp); err != nil {
		return err
	}
	s.created = resp.CreatedProfiles
	s.skipped = resp.Skipped
	for _, p := range resp.CreatedProfiles {
		s.tc.SetProfileID(p.AlumniRecordID, p.ID)
	}
	return nil
}

func (s *onboardingSteps) recordShouldBeSkipped(ctx context.Context, recordID int64) error {
	for _, skipped := range s.skipped {
		if skipped == recordID {
			return nil
		}
	}
	return fmt.Errorf("record %d was not skipped (skipped: %v)", recordID, s.skipped)
}

func (s *onboardingSteps) createdProfileShouldHaveAccessLevel(ctx context.Context, recordID int64, level string) error {
	for _, p := range s.created {
		if p.AlumniRecordID == recordID {
			if p.AccessLevel != level {
				return fmt.Errorf("record %d: expected access level %q, got %q", recordID, level, p.AccessLevel)
			}
			return nil
		}
	}
	return fmt.Errorf("no profile created for record %d", recordID)
}

func (s *onboardingSteps) grantConsent(ctx context.Context, recordID int64) error {
	profileID, err := s.tc.GetProfileID(recordID)
	if err != nil {
		return err
	}
	return s.tc.POST("/profiles/"+profileID+"/consent", nil)
}

func (s *onboardingSteps) revokeConsent(ctx context.Context, recordID int64, reason string) error {
	profileID, err := s.tc.GetProfileID(recordID)
	if err != nil {
		return err
	}
	return s.tc.POST("/profiles/"+profileID+"/consent/revoke", map[string]string{"reason": reason})
}

func (s *onboardingSteps) listProfiles(ctx context.Context) error {
	if err := s.tc.GET("/profiles"); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusOK {
		return fmt.Errorf("list profiles: status %d: %s", status, s.tc.GetLastResponseBody())
	}
	var resp struct {
		Profiles []profileView `json:"profiles"`
	}
	if err := s.tc.DecodeResponse(&resp); err != nil {
		return err
	}
	s.profiles = resp.Profiles
	return nil
}

func (s *onboardingSteps) profileShouldHaveEffectiveAccessLevel(ctx context.Context, recordID int64, level string) error {
	for _, p := range s.profiles {
		if p.AlumniRecordID == recordID {
			if p.EffectiveAccessLevel != level {
				return fmt.Errorf("record %d: expected effective access level %q, got %q", recordID, level, p.EffectiveAccessLevel)
			}
			return nil
		}
	}
	return fmt.Errorf("no listed profile for record %d", recordID)
}
