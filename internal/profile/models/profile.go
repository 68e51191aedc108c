package models

import (
	"time"

	"alumnus/internal/agerules"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
)

// Relationship says whom a profile represents on its account.
type Relationship string

const (
	RelationshipParent Relationship = "parent"
	RelationshipChild  Relationship = "child"
)

// ParseRelationship constructs a Relationship from request input.
func ParseRelationship(s string) (Relationship, error) {
	switch r := Relationship(s); r {
	case RelationshipParent, RelationshipChild:
		return r, nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "relationship is required")
	default:
		return "", dErrors.New(dErrors.CodeValidation, "relationship must be parent or child")
	}
}

func (r Relationship) String() string { return string(r) }

// Status is the lifecycle state of a profile.
type Status string

const (
	StatusActive         Status = "active"
	StatusPendingConsent Status = "pending_consent"
	StatusSuspended      Status = "suspended"
)

func (s Status) String() string { return string(s) }

// Profile links an account to an alumni record it has claimed.
//
// Invariants:
//   - a profile only exists for a derived age of at least agerules.MinimumProfileAge
//   - a child profile always has a ParentProfileID on the same account
//   - RequiresConsent holds exactly for derived ages 14 to 17
//   - AccessLevel is full exactly for adults
//   - AccessLevel is supervised only while consent is given and unexpired
//     (see EffectiveAccessLevel for the read-time check)
//
// A parent profile aged 14 to 17 is created pending consent and stays there:
// consent applies to child profiles only, so no operation activates it.
// Children linked to it are unaffected, since grant checks the account.
//
// Profiles are never deleted.
type Profile struct {
	ID                 id.ProfileID         `json:"id"`
	AccountID          id.AccountID         `json:"account_id"`
	AlumniRecordID     id.AlumniRecordID    `json:"alumni_record_id"`
	Relationship       Relationship         `json:"relationship"`
	ParentProfileID    *id.ProfileID        `json:"parent_profile_id,omitempty"`
	RequiresConsent    bool                 `json:"requires_consent"`
	ParentConsentGiven bool                 `json:"parent_consent_given"`
	ConsentGrantedAt   *time.Time           `json:"consent_granted_at,omitempty"`
	ConsentExpiresAt   *time.Time           `json:"consent_expires_at,omitempty"`
	AccessLevel        agerules.AccessLevel `json:"access_level"`
	Status             Status               `json:"status"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// NewProfileParams carries what NewProfile needs to build a profile from a
// classified selection.
type NewProfileParams struct {
	AccountID       id.AccountID
	AlumniRecordID  id.AlumniRecordID
	Relationship    Relationship
	ParentProfileID *id.ProfileID
	Classification  agerules.Classification
	Now             time.Time
}

// NewProfile builds a profile whose access fields follow the classification.
func NewProfile(profileID id.ProfileID, p NewProfileParams) (*Profile, error) {
	if !p.Classification.CanCreateProfile {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "profile cannot be created below the minimum age")
	}
	if p.AccountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "profile requires an account")
	}
	switch p.Relationship {
	case RelationshipParent:
		if p.ParentProfileID != nil {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "parent profile cannot reference a parent")
		}
	case RelationshipChild:
		if p.ParentProfileID == nil || p.ParentProfileID.IsNil() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "child profile requires a parent profile")
		}
	default:
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown relationship")
	}

	status := StatusActive
	if p.Classification.RequiresConsent {
		status = StatusPendingConsent
	}
	return &Profile{
		ID:              profileID,
		AccountID:       p.AccountID,
		AlumniRecordID:  p.AlumniRecordID,
		Relationship:    p.Relationship,
		ParentProfileID: p.ParentProfileID,
		RequiresConsent: p.Classification.RequiresConsent,
		AccessLevel:     p.Classification.AccessLevel,
		Status:          status,
		CreatedAt:       p.Now,
		UpdatedAt:       p.Now,
	}, nil
}

func (p *Profile) IsChild() bool     { return p.Relationship == RelationshipChild }
func (p *Profile) IsSuspended() bool { return p.Status == StatusSuspended }

// HasValidConsent reports a given consent that has not yet expired at now.
func (p *Profile) HasValidConsent(now time.Time) bool {
	return p.ParentConsentGiven && p.ConsentExpiresAt != nil && now.Before(*p.ConsentExpiresAt)
}

// EffectiveAccessLevel is the stored level, downgraded to blocked when a
// supervised profile's consent has lapsed. Expiry is only detected here; no
// job rewrites the stored row.
func (p *Profile) EffectiveAccessLevel(now time.Time) agerules.AccessLevel {
	if p.AccessLevel == agerules.AccessSupervised && !p.HasValidConsent(now) {
		return agerules.AccessBlocked
	}
	return p.AccessLevel
}

// EffectiveStatus mirrors EffectiveAccessLevel for the status field.
func (p *Profile) EffectiveStatus(now time.Time) Status {
	if p.Status == StatusActive && p.AccessLevel == agerules.AccessSupervised && !p.HasValidConsent(now) {
		return StatusPendingConsent
	}
	return p.Status
}

// CanGrantConsent checks that consent applies to this profile.
// Use with ApplyConsentGrant inside a transaction.
func (p *Profile) CanGrantConsent() error {
	if !p.IsChild() {
		return dErrors.New(dErrors.CodeInvariantViolation, "consent applies to child profiles only")
	}
	if !p.RequiresConsent {
		return dErrors.New(dErrors.CodeInvariantViolation, "profile does not require parental consent")
	}
	if p.IsSuspended() {
		return dErrors.New(dErrors.CodeInvariantViolation, "profile is suspended")
	}
	return nil
}

// ApplyConsentGrant records consent given at now and returns its expiry.
// Call CanGrantConsent first.
func (p *Profile) ApplyConsentGrant(now time.Time) time.Time {
	expires := agerules.ConsentExpiry(now)
	granted := now
	p.ParentConsentGiven = true
	p.ConsentGrantedAt = &granted
	p.ConsentExpiresAt = &expires
	p.AccessLevel = agerules.AccessSupervised
	p.Status = StatusActive
	p.UpdatedAt = now
	return expires
}

// CanRevokeConsent checks that consent applies to this profile.
// Use with ApplyConsentRevocation inside a transaction.
func (p *Profile) CanRevokeConsent() error {
	if !p.IsChild() {
		return dErrors.New(dErrors.CodeInvariantViolation, "consent applies to child profiles only")
	}
	if !p.RequiresConsent {
		return dErrors.New(dErrors.CodeInvariantViolation, "profile does not require parental consent")
	}
	if p.IsSuspended() {
		return dErrors.New(dErrors.CodeInvariantViolation, "profile is suspended")
	}
	return nil
}

// ApplyConsentRevocation withdraws consent. The grant and expiry timestamps
// are kept as history.
func (p *Profile) ApplyConsentRevocation(now time.Time) {
	p.ParentConsentGiven = false
	p.AccessLevel = agerules.AccessBlocked
	p.Status = StatusPendingConsent
	p.UpdatedAt = now
}
