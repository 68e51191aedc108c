package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alumnus/internal/alumni/models"
	id "alumnus/pkg/domain"
	"alumnus/pkg/platform/sentinel"
	txcontext "alumnus/pkg/platform/tx"
)

func yob(y int) *int { return &y }

func seeded() *InMemory {
	s := NewInMemory()
	s.Seed(
		models.Record{ID: 501, FirstName: "Asha", LastName: "Rao", Email: "Family@Example.org", Batch: "2003"},
		models.Record{ID: 502, FirstName: "Dev", LastName: "Rao", Email: "family@example.org", YearOfBirth: yob(2010)},
		models.Record{ID: 600, FirstName: "Other", Email: "other@example.org"},
	)
	return s
}

func TestInMemoryFindByEmail(t *testing.T) {
	s := seeded()

	records, err := s.FindByEmail(context.Background(), "FAMILY@example.org")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, id.AlumniRecordID(501), records[0].ID)
	assert.Equal(t, id.AlumniRecordID(502), records[1].ID)

	none, err := s.FindByEmail(context.Background(), "nobody@example.org")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryFindByID(t *testing.T) {
	s := seeded()

	_, err := s.FindByID(context.Background(), 999)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))

	r, err := s.FindByID(context.Background(), 502)
	require.NoError(t, err)
	*r.YearOfBirth = 1900

	again, err := s.FindByID(context.Background(), 502)
	require.NoError(t, err)
	assert.Equal(t, 2010, *again.YearOfBirth, "callers must not be able to mutate stored records")
}

func TestInMemoryBackfillYearOfBirth(t *testing.T) {
	ctx := context.Background()
	s := seeded()

	require.NoError(t, s.BackfillYearOfBirth(ctx, 501, 1985))
	r, err := s.FindByID(ctx, 501)
	require.NoError(t, err)
	assert.Equal(t, 1985, *r.YearOfBirth)

	// Existing values are never overwritten.
	require.NoError(t, s.BackfillYearOfBirth(ctx, 502, 1999))
	r, err = s.FindByID(ctx, 502)
	require.NoError(t, err)
	assert.Equal(t, 2010, *r.YearOfBirth)

	assert.True(t, errors.Is(s.BackfillYearOfBirth(ctx, 999, 1990), sentinel.ErrNotFound))
}

func TestInMemoryRollbackUndoesBackfillAndClaim(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	runner := txcontext.NewMemory(s)
	accountID := id.NewAccountID()
	require.NoError(t, s.MarkClaimed(ctx, models.Claim{RecordID: 502, AccountID: accountID, ClaimedAt: time.Now()}))

	err := runner.RunInTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, s.BackfillYearOfBirth(txCtx, 501, 1985))
		require.NoError(t, s.MarkClaimed(txCtx, models.Claim{RecordID: 501, AccountID: accountID, ClaimedAt: time.Now()}))
		require.NoError(t, s.MarkClaimed(txCtx, models.Claim{RecordID: 502, AccountID: accountID, ClaimedAt: time.Now()}))
		return errors.New("profile insert failed")
	})
	require.Error(t, err)

	r, err := s.FindByID(ctx, 501)
	require.NoError(t, err)
	assert.Nil(t, r.YearOfBirth)
	assert.False(t, s.IsClaimed(501, accountID))
	assert.True(t, s.IsClaimed(502, accountID), "claims made before the transaction stay")
}
