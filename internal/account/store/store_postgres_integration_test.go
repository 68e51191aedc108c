//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"alumnus/internal/account/models"
	"alumnus/internal/account/store"
	id "alumnus/pkg/domain"
	"alumnus/pkg/platform/sentinel"
	"alumnus/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "accounts"))
}

func newAccount(s *PostgresStoreSuite, email string) *models.Account {
	a, err := models.NewAccount(id.NewAccountID(), email, "$2a$10$hash", time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return a
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	a := newAccount(s, "jane@example.org")
	s.Require().NoError(s.store.Create(ctx, a))

	byID, err := s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(a.Email, byID.Email)
	s.Equal(a.Status, byID.Status)

	byEmail, err := s.store.FindByEmail(ctx, "jane@example.org")
	s.Require().NoError(err)
	s.Equal(a.ID, byEmail.ID)
}

func (s *PostgresStoreSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.NewAccountID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByEmail(context.Background(), "nobody@example.org")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentDuplicateEmail verifies the unique index lets exactly one
// registration through.
func (s *PostgresStoreSuite) TestConcurrentDuplicateEmail() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var created, conflicts atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, newAccount(s, "race@example.org"))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *PostgresStoreSuite) TestUpdateStatus() {
	ctx := context.Background()
	a := newAccount(s, "status@example.org")
	s.Require().NoError(s.store.Create(ctx, a))

	s.Require().NoError(s.store.UpdateStatus(ctx, a.ID, models.StatusSuspended, time.Now()))
	found, err := s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSuspended, found.Status)

	err = s.store.UpdateStatus(ctx, id.NewAccountID(), models.StatusActive, time.Now())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
