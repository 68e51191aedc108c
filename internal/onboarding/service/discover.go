package service

import (
	"context"

	"alumnus/internal/agerules"
	"alumnus/internal/onboarding/models"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/platform/dedupe"
)

// DiscoverForAccount lists directory records issued to the account's email.
// No match yields an empty slice. Reads are not transactional; a concurrent
// claim may not be reflected in AlreadyClaimed.
func (s *Service) DiscoverForAccount(ctx context.Context, accountID id.AccountID) (matches []models.AlumniMatch, err error) {
	ctx, span := s.startSpan(ctx, "DiscoverForAccount", accountID)
	defer func() { endSpan(span, err) }()

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	records, err := s.alumni.FindByEmail(ctx, account.Email)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []models.AlumniMatch{}, nil
	}

	recordIDs := make([]id.AlumniRecordID, 0, len(records))
	for _, r := range records {
		recordIDs = append(recordIDs, r.ID)
	}
	claimed, err := s.profiles.ClaimedRecordIDs(ctx, accountID, dedupe.Values(recordIDs))
	if err != nil {
		return nil, dErrors.Translate(err, "failed to check claimed records")
	}

	currentYear := now(ctx).Year()
	matches = make([]models.AlumniMatch, 0, len(records))
	for _, r := range records {
		var age *int
		if r.YearOfBirth != nil {
			a := agerules.DeriveAge(*r.YearOfBirth, currentYear)
			age = &a
		}
		matches = append(matches, models.AlumniMatch{
			Record:         r,
			Age:            age,
			CoppaStatus:    agerules.Classify(age),
			AlreadyClaimed: claimed[r.ID],
		})
	}
	return matches, nil
}
