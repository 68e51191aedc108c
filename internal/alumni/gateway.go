// Package alumni is the gateway to the alumni directory: it finds records by
// email or id, fills in a missing year of birth and marks records claimed.
package alumni

import (
	"context"
	"errors"
	"strings"

	"alumnus/internal/agerules"
	"alumnus/internal/alumni/models"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/platform/sentinel"
	"alumnus/pkg/requestcontext"
)

// Store is the directory backend. Implementations return sentinel.ErrNotFound
// for unknown ids.
type Store interface {
	FindByEmail(ctx context.Context, email string) ([]models.Record, error)
	FindByID(ctx context.Context, recordID id.AlumniRecordID) (*models.Record, error)
	BackfillYearOfBirth(ctx context.Context, recordID id.AlumniRecordID, year int) error
	MarkClaimed(ctx context.Context, claim models.Claim) error
}

// Gateway translates directory store facts into domain errors.
type Gateway struct {
	store Store
}

func NewGateway(store Store) *Gateway {
	return &Gateway{store: store}
}

// FindByEmail returns every record issued to email. No match is an empty
// slice, not an error.
func (g *Gateway) FindByEmail(ctx context.Context, email string) ([]models.Record, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	records, err := g.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to search alumni directory")
	}
	return records, nil
}

func (g *Gateway) FindByID(ctx context.Context, recordID id.AlumniRecordID) (*models.Record, error) {
	record, err := g.store.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "alumni record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load alumni record")
	}
	return record, nil
}

// BackfillYearOfBirth records year on a record that has none. A record that
// already carries a year is left untouched.
func (g *Gateway) BackfillYearOfBirth(ctx context.Context, recordID id.AlumniRecordID, year int) error {
	if err := agerules.ValidateYearOfBirth(year, requestcontext.Now(ctx).Year()); err != nil {
		return err
	}
	if err := g.store.BackfillYearOfBirth(ctx, recordID, year); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "alumni record not found")
		}
		return dErrors.Wrap(err, dErrors.CodeStorage, "failed to record year of birth")
	}
	return nil
}

// MarkClaimed writes the advisory claim marker.
func (g *Gateway) MarkClaimed(ctx context.Context, recordID id.AlumniRecordID, accountID id.AccountID) error {
	err := g.store.MarkClaimed(ctx, models.Claim{
		RecordID:  recordID,
		AccountID: accountID,
		ClaimedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "alumni record not found")
		}
		return dErrors.Wrap(err, dErrors.CodeStorage, "failed to mark alumni record claimed")
	}
	return nil
}
