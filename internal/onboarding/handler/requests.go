package handler

import (
	consentmodels "alumnus/internal/consent/models"
	"alumnus/internal/onboarding/models"
	dErrors "alumnus/pkg/domain-errors"
)

// maxSelections bounds one CreateProfiles call.
const maxSelections = 20

// CreateProfilesRequest is the body of POST /onboarding/profiles.
type CreateProfilesRequest struct {
	Selections []models.Selection `json:"selections"`
}

func (r *CreateProfilesRequest) Validate() error {
	if len(r.Selections) == 0 {
		return dErrors.New(dErrors.CodeValidation, "selections are required")
	}
	if len(r.Selections) > maxSelections {
		return dErrors.New(dErrors.CodeValidation, "too many selections")
	}
	return nil
}

// RevokeConsentRequest is the optional body of POST
// /profiles/{profileID}/consent/revoke.
type RevokeConsentRequest struct {
	Reason string `json:"reason"`
}

func (r *RevokeConsentRequest) Validate() error {
	return consentmodels.ValidateReason(r.Reason)
}

type MatchesResponse struct {
	Matches []models.AlumniMatch `json:"matches"`
}

type ProfilesResponse struct {
	Profiles []models.ProfileView `json:"profiles"`
}

type ConsentHistoryResponse struct {
	Records []*consentmodels.Record `json:"records"`
}
