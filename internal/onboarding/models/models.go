package models

import (
	"time"

	"alumnus/internal/agerules"
	alumnimodels "alumnus/internal/alumni/models"
	profilemodels "alumnus/internal/profile/models"
	id "alumnus/pkg/domain"
)

// AlumniMatch is a directory record found for the account's email, annotated
// with what claiming it would mean.
type AlumniMatch struct {
	Record         alumnimodels.Record     `json:"record"`
	Age            *int                    `json:"age"`
	CoppaStatus    agerules.Classification `json:"coppa_status"`
	AlreadyClaimed bool                    `json:"already_claimed"`
}

// Selection is one record the caller wants to claim. YearOfBirth is required
// only when the directory has none for the record.
type Selection struct {
	AlumniRecordID id.AlumniRecordID          `json:"alumni_record_id"`
	Relationship   profilemodels.Relationship `json:"relationship"`
	YearOfBirth    *int                       `json:"year_of_birth,omitempty"`
}

// CreateProfilesResult lists the profiles that were created. Selections whose
// derived age is below the minimum are absent from CreatedProfiles and listed
// in Skipped.
type CreateProfilesResult struct {
	CreatedProfiles []*profilemodels.Profile `json:"created_profiles"`
	Skipped         []id.AlumniRecordID      `json:"skipped"`
	RequiresConsent bool                     `json:"requires_consent"`
}

type GrantConsentResult struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// ProfileView is a profile with its access evaluated at request time.
type ProfileView struct {
	*profilemodels.Profile
	EffectiveAccessLevel agerules.AccessLevel `json:"effective_access_level"`
	EffectiveStatus      profilemodels.Status `json:"effective_status"`
	ConsentValid         bool                 `json:"consent_valid"`
}

// NewProfileView evaluates p at now.
func NewProfileView(p *profilemodels.Profile, now time.Time) ProfileView {
	return ProfileView{
		Profile:              p,
		EffectiveAccessLevel: p.EffectiveAccessLevel(now),
		EffectiveStatus:      p.EffectiveStatus(now),
		ConsentValid:         p.HasValidConsent(now),
	}
}
