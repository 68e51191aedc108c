// Package agerules derives an age from a year of birth and classifies it into
// the access tier a profile may hold.
//
// The rules are pure: no I/O, no clock. Callers pass the current year.
package agerules

import (
	"fmt"
	"time"

	dErrors "alumnus/pkg/domain-errors"
)

const (
	// MinimumProfileAge is the youngest age at which a profile may exist.
	MinimumProfileAge = 14
	// AdultAge grants full access without parental consent.
	AdultAge = 18
	// EarliestYearOfBirth is the oldest year of birth accepted.
	EarliestYearOfBirth = 1920
)

// ConsentValidity is how long a parental consent grant lasts.
const ConsentValidity = 365 * 24 * time.Hour

// AccessLevel is the coarse permission tier of a profile.
type AccessLevel string

const (
	AccessFull       AccessLevel = "full"
	AccessSupervised AccessLevel = "supervised"
	AccessBlocked    AccessLevel = "blocked"
)

func (a AccessLevel) String() string { return string(a) }

// IsValid reports whether a is one of the known tiers.
func (a AccessLevel) IsValid() bool {
	switch a {
	case AccessFull, AccessSupervised, AccessBlocked:
		return true
	}
	return false
}

// Classification is the outcome of Classify.
type Classification struct {
	AccessLevel      AccessLevel `json:"access_level"`
	RequiresConsent  bool        `json:"requires_consent"`
	CanCreateProfile bool        `json:"can_create_profile"`
}

// DeriveAge is the literal difference of years. It does not look at the
// birthday, so someone born late in the year counts as a year older until then.
func DeriveAge(yearOfBirth, currentYear int) int {
	return currentYear - yearOfBirth
}

// Classify maps an age to its tier. A nil age (year of birth unknown) is
// treated as a minor who cannot yet hold a profile.
func Classify(age *int) Classification {
	switch {
	case age == nil:
		return Classification{AccessLevel: AccessBlocked, RequiresConsent: true, CanCreateProfile: false}
	case *age < MinimumProfileAge:
		return Classification{AccessLevel: AccessBlocked, RequiresConsent: false, CanCreateProfile: false}
	case *age < AdultAge:
		return Classification{AccessLevel: AccessBlocked, RequiresConsent: true, CanCreateProfile: true}
	default:
		return Classification{AccessLevel: AccessFull, RequiresConsent: false, CanCreateProfile: true}
	}
}

// ClassifyYear derives the age for yearOfBirth and classifies it.
func ClassifyYear(yearOfBirth, currentYear int) (int, Classification) {
	age := DeriveAge(yearOfBirth, currentYear)
	return age, Classify(&age)
}

// ValidateYearOfBirth rejects years outside [EarliestYearOfBirth, currentYear].
func ValidateYearOfBirth(year, currentYear int) error {
	if year < EarliestYearOfBirth || year > currentYear {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("year of birth must be between %d and %d", EarliestYearOfBirth, currentYear))
	}
	return nil
}

// ConsentExpiry returns when a consent granted at grantedAt lapses.
func ConsentExpiry(grantedAt time.Time) time.Time {
	return grantedAt.Add(ConsentValidity)
}
