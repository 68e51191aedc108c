package handler

import (
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
)

// SwitchProfileRequest is the body of POST /session/active-profile.
type SwitchProfileRequest struct {
	ProfileID string `json:"profile_id"`

	profileID id.ProfileID
}

// Validate parses ProfileID; handlers read the parsed value.
func (r *SwitchProfileRequest) Validate() error {
	if r.ProfileID == "" {
		return dErrors.New(dErrors.CodeValidation, "profile_id is required")
	}
	parsed, err := id.ParseProfileID(r.ProfileID)
	if err != nil {
		return err
	}
	r.profileID = parsed
	return nil
}

// RefreshRequest is the body of POST /session/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (r *RefreshRequest) Validate() error {
	if r.RefreshToken == "" {
		return dErrors.New(dErrors.CodeValidation, "refresh_token is required")
	}
	return nil
}
