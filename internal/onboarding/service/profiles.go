package service

import (
	"context"

	"alumnus/internal/onboarding/models"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
)

// ListProfiles returns the account's profiles with access evaluated now, so a
// lapsed consent shows as blocked even though the stored row says supervised.
func (s *Service) ListProfiles(ctx context.Context, accountID id.AccountID) (views []models.ProfileView, err error) {
	ctx, span := s.startSpan(ctx, "ListProfiles", accountID)
	defer func() { endSpan(span, err) }()

	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "account is required")
	}
	profiles, err := s.profiles.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, dErrors.Translate(err, "failed to list profiles")
	}
	ts := now(ctx)
	views = make([]models.ProfileView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, models.NewProfileView(p, ts))
	}
	return views, nil
}
