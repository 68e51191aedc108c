package service

import (
	"context"
	"fmt"

	accountmodels "alumnus/internal/account/models"
	"alumnus/internal/agerules"
	alumnimodels "alumnus/internal/alumni/models"
	"alumnus/internal/onboarding/models"
	profilemodels "alumnus/internal/profile/models"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/platform/dedupe"
)

// CreateProfiles claims the selected records for the account in one
// transaction. Parents are created first; the first one becomes the parent of
// every child in the call, falling back to the account's existing first
// parent. Children below the minimum age are skipped without error and
// without needing a parent. Any other failure rolls back the whole call. A
// record the account already claimed fails with a conflict from the store's
// uniqueness check.
func (s *Service) CreateProfiles(ctx context.Context, accountID id.AccountID, selections []models.Selection) (result *models.CreateProfilesResult, err error) {
	ctx, span := s.startSpan(ctx, "CreateProfiles", accountID)
	defer func() { endSpan(span, err) }()

	if err := validateSelections(ctx, selections); err != nil {
		return nil, err
	}

	parents, children := partition(selections)
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		account, err := s.accounts.FindByID(txCtx, accountID)
		if err != nil {
			return err
		}
		if account.IsSuspended() {
			return dErrors.New(dErrors.CodeAccessDenied, "account is suspended")
		}

		result = &models.CreateProfilesResult{
			CreatedProfiles: []*profilemodels.Profile{},
			Skipped:         []id.AlumniRecordID{},
		}
		var defaultParent *id.ProfileID

		for _, sel := range parents {
			record, classification, err := s.classify(txCtx, account, sel)
			if err != nil {
				return err
			}
			if !classification.CanCreateProfile {
				return dErrors.New(dErrors.CodeValidation,
					fmt.Sprintf("record %d: the account holder must be at least %d", sel.AlumniRecordID, agerules.MinimumProfileAge))
			}
			p, err := s.createProfile(txCtx, account.ID, record, sel.Relationship, nil, classification)
			if err != nil {
				return err
			}
			result.CreatedProfiles = append(result.CreatedProfiles, p)
			if defaultParent == nil {
				parentID := p.ID
				defaultParent = &parentID
			}
		}

		for _, sel := range children {
			record, classification, err := s.classify(txCtx, account, sel)
			if err != nil {
				return err
			}
			if !classification.CanCreateProfile {
				result.Skipped = append(result.Skipped, sel.AlumniRecordID)
				continue
			}
			if defaultParent == nil {
				if defaultParent, err = s.existingParent(txCtx, account.ID); err != nil {
					return err
				}
			}
			p, err := s.createProfile(txCtx, account.ID, record, sel.Relationship, defaultParent, classification)
			if err != nil {
				return err
			}
			result.CreatedProfiles = append(result.CreatedProfiles, p)
		}

		for _, p := range result.CreatedProfiles {
			if err := s.alumni.MarkClaimed(txCtx, p.AlumniRecordID, accountID); err != nil {
				return err
			}
			if p.RequiresConsent {
				result.RequiresConsent = true
			}
		}

		owned, err := s.profiles.CountByAccount(txCtx, accountID)
		if err != nil {
			return dErrors.Translate(err, "failed to count profiles")
		}
		if owned > 0 {
			if err := s.accounts.SetStatus(txCtx, accountID, accountmodels.StatusActive); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Translate(err, "failed to create profiles")
	}

	for _, p := range result.CreatedProfiles {
		s.metrics.IncrementProfileCreated(p.Relationship.String(), p.AccessLevel.String())
		s.logAudit(ctx, "profile_created",
			"account_id", accountID.String(),
			"profile_id", p.ID.String(),
			"alumni_record_id", int64(p.AlumniRecordID),
			"relationship", p.Relationship.String(),
			"access_level", p.AccessLevel.String(),
		)
	}
	for _, recordID := range result.Skipped {
		s.metrics.IncrementUnderageSkipped()
		s.logAudit(ctx, "profile_skipped_underage",
			"account_id", accountID.String(),
			"alumni_record_id", int64(recordID),
		)
	}
	return result, nil
}

// classify resolves the selected record and its age classification.
func (s *Service) classify(ctx context.Context, account *accountmodels.Account, sel models.Selection) (*alumnimodels.Record, agerules.Classification, error) {
	record, err := s.alumni.FindByID(ctx, sel.AlumniRecordID)
	if err != nil {
		return nil, agerules.Classification{}, err
	}
	if !record.BelongsTo(account.Email) {
		return nil, agerules.Classification{}, dErrors.New(dErrors.CodeNotFound, "alumni record not found")
	}
	year, err := s.resolveYearOfBirth(ctx, record, sel)
	if err != nil {
		return nil, agerules.Classification{}, err
	}
	_, classification := agerules.ClassifyYear(year, now(ctx).Year())
	return record, classification, nil
}

func (s *Service) createProfile(ctx context.Context, accountID id.AccountID, record *alumnimodels.Record, rel profilemodels.Relationship, parent *id.ProfileID, classification agerules.Classification) (*profilemodels.Profile, error) {
	p, err := profilemodels.NewProfile(s.newID(), profilemodels.NewProfileParams{
		AccountID:       accountID,
		AlumniRecordID:  record.ID,
		Relationship:    rel,
		ParentProfileID: parent,
		Classification:  classification,
		Now:             now(ctx),
	})
	if err != nil {
		return nil, err
	}
	if err := s.profiles.Create(ctx, p); err != nil {
		err = dErrors.Translate(err, "failed to create profile")
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, dErrors.New(dErrors.CodeConflict,
				fmt.Sprintf("record %d is already claimed by this account", record.ID))
		}
		return nil, err
	}
	return p, nil
}

// existingParent returns the account's first parent profile from an earlier
// call.
func (s *Service) existingParent(ctx context.Context, accountID id.AccountID) (*id.ProfileID, error) {
	parent, err := s.profiles.FindFirstParent(ctx, accountID)
	if err != nil {
		err = dErrors.Translate(err, "failed to load parent profile")
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "a parent profile is required before adding children")
		}
		return nil, err
	}
	parentID := parent.ID
	return &parentID, nil
}

// resolveYearOfBirth prefers the directory's year. A missing year is taken
// from the selection and written back to the directory.
func (s *Service) resolveYearOfBirth(ctx context.Context, record *alumnimodels.Record, sel models.Selection) (int, error) {
	if record.HasYearOfBirth() {
		return *record.YearOfBirth, nil
	}
	if sel.YearOfBirth == nil {
		return 0, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("record %d: year_of_birth is required", record.ID))
	}
	if err := s.alumni.BackfillYearOfBirth(ctx, record.ID, *sel.YearOfBirth); err != nil {
		return 0, err
	}
	return *sel.YearOfBirth, nil
}

func validateSelections(ctx context.Context, selections []models.Selection) error {
	if len(selections) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one selection is required")
	}
	currentYear := now(ctx).Year()
	recordIDs := make([]id.AlumniRecordID, 0, len(selections))
	for _, sel := range selections {
		if sel.AlumniRecordID <= 0 {
			return dErrors.New(dErrors.CodeValidation, "alumni_record_id must be positive")
		}
		if _, err := profilemodels.ParseRelationship(string(sel.Relationship)); err != nil {
			return err
		}
		if sel.YearOfBirth != nil {
			if err := agerules.ValidateYearOfBirth(*sel.YearOfBirth, currentYear); err != nil {
				return err
			}
		}
		recordIDs = append(recordIDs, sel.AlumniRecordID)
	}
	if dup, ok := dedupe.FirstDuplicate(recordIDs); ok {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("record %d is selected more than once", dup))
	}
	return nil
}

func partition(selections []models.Selection) (parents, children []models.Selection) {
	for _, sel := range selections {
		if sel.Relationship == profilemodels.RelationshipParent {
			parents = append(parents, sel)
		} else {
			children = append(children, sel)
		}
	}
	return parents, children
}
