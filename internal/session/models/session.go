package models

import (
	"time"

	"alumnus/internal/agerules"
	profilemodels "alumnus/internal/profile/models"
	id "alumnus/pkg/domain"
)

// RefreshSession is the server-side half of an opaque refresh token. It is
// consumed exactly once; every refresh issues a new one.
type RefreshSession struct {
	Token       string       `json:"token"`
	AccountID   id.AccountID `json:"account_id"`
	ProfileID   id.ProfileID `json:"profile_id"`
	DeviceLabel string       `json:"device_label"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	ClientIP    string       `json:"client_ip,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

func (s *RefreshSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// ActiveProfile is the profile a session is bound to, with access evaluated
// at issue time.
type ActiveProfile struct {
	ID           id.ProfileID               `json:"id"`
	Relationship profilemodels.Relationship `json:"relationship"`
	AccessLevel  agerules.AccessLevel       `json:"access_level"`
	Status       profilemodels.Status       `json:"status"`
}

func NewActiveProfile(p *profilemodels.Profile, now time.Time) ActiveProfile {
	return ActiveProfile{
		ID:           p.ID,
		Relationship: p.Relationship,
		AccessLevel:  p.EffectiveAccessLevel(now),
		Status:       p.EffectiveStatus(now),
	}
}

// SwitchResult carries the credentials issued for an active profile.
type SwitchResult struct {
	AccessToken   string        `json:"access_token"`
	TokenType     string        `json:"token_type"`
	ExpiresIn     int           `json:"expires_in"`
	RefreshToken  string        `json:"refresh_token"`
	ActiveProfile ActiveProfile `json:"active_profile"`
}
