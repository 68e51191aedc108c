// Package profile holds the claimed-profile model, its stores and the
// ownership check every profile-scoped operation goes through.
package profile

import (
	"context"
	"errors"

	"alumnus/internal/profile/models"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/platform/sentinel"
)

// Finder loads a profile by id, returning sentinel.ErrNotFound when absent.
type Finder interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
}

// ResolveOwned loads profileID and checks it belongs to accountID. A profile
// owned by someone else is reported exactly like a missing one, so callers
// cannot probe for other accounts' profiles.
func ResolveOwned(ctx context.Context, finder Finder, accountID id.AccountID, profileID id.ProfileID) (*models.Profile, error) {
	if accountID.IsNil() || profileID.IsNil() {
		return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	p, err := finder.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load profile")
	}
	if p.AccountID != accountID {
		return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	return p, nil
}

// ResolveOwnedChild is ResolveOwned restricted to child profiles; a parent
// profile is reported as not found.
func ResolveOwnedChild(ctx context.Context, finder Finder, accountID id.AccountID, profileID id.ProfileID) (*models.Profile, error) {
	p, err := ResolveOwned(ctx, finder, accountID, profileID)
	if err != nil {
		return nil, err
	}
	if !p.IsChild() {
		return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	return p, nil
}
