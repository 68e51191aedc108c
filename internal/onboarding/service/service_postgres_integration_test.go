//go:build integration

package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	accountmodels "alumnus/internal/account/models"
	accountservice "alumnus/internal/account/service"
	accountstore "alumnus/internal/account/store"
	"alumnus/internal/agerules"
	"alumnus/internal/alumni"
	alumnistore "alumnus/internal/alumni/store"
	"alumnus/internal/consent"
	consentmodels "alumnus/internal/consent/models"
	consentstore "alumnus/internal/consent/store"
	"alumnus/internal/onboarding/models"
	"alumnus/internal/onboarding/service"
	"alumnus/internal/outbox"
	outboxstore "alumnus/internal/outbox/store"
	"alumnus/internal/platform/postgres"
	profilemodels "alumnus/internal/profile/models"
	profilestore "alumnus/internal/profile/store"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/requestcontext"
	"alumnus/pkg/testutil/containers"
)

// PostgresOnboardingSuite runs the onboarding service against every postgres
// store inside real transactions.
type PostgresOnboardingSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	profiles *profilestore.Postgres
	alumni   *alumnistore.Postgres
	outbox   *outboxstore.Postgres
	accounts *accountstore.Postgres
	service  *service.Service
	ctx      context.Context
}

func TestPostgresOnboardingSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresOnboardingSuite))
}

func (s *PostgresOnboardingSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	db := s.postgres.DB

	s.accounts = accountstore.NewPostgres(db)
	s.alumni = alumnistore.NewPostgres(db)
	s.profiles = profilestore.NewPostgres(db)
	s.outbox = outboxstore.NewPostgres(db)

	s.service = service.New(
		accountservice.New(s.accounts, nil),
		alumni.NewGateway(s.alumni),
		s.profiles,
		consent.NewLedger(consentstore.NewPostgres(db), consent.WithOutbox(s.outbox)),
		postgres.NewTxRunner(db, postgres.WithTimeout(5*time.Second)),
	)
}

func (s *PostgresOnboardingSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"outbox", "consent_records", "user_profiles", "alumni_claims", "alumni_records", "accounts"))
	s.ctx = requestcontext.WithTime(context.Background(), time.Now().UTC().Truncate(time.Microsecond))
}

func (s *PostgresOnboardingSuite) newAccount(email string) *accountmodels.Account {
	a, err := accountmodels.NewAccount(id.NewAccountID(), email, "hash", time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.accounts.Create(context.Background(), a))
	return a
}

func (s *PostgresOnboardingSuite) seedRecord(recordID int64, email string, yob *int) {
	_, err := s.postgres.DB.ExecContext(context.Background(), `
		INSERT INTO alumni_records (id, first_name, last_name, email, batch, center_name, year_of_birth)
		VALUES ($1, 'Jane', 'Doe', $2, '2008', 'North Campus', $3)`,
		recordID, email, yob,
	)
	s.Require().NoError(err)
}

func yearsAgo(n int) *int {
	y := time.Now().UTC().Year() - n
	return &y
}

func selection(recordID int64, rel profilemodels.Relationship, yob *int) models.Selection {
	return models.Selection{AlumniRecordID: id.AlumniRecordID(recordID), Relationship: rel, YearOfBirth: yob}
}

func (s *PostgresOnboardingSuite) TestParentAndMinorChildThroughConsent() {
	account := s.newAccount("family@example.org")
	s.seedRecord(1, "family@example.org", nil)
	s.seedRecord(2, "family@example.org", yearsAgo(15))

	result, err := s.service.CreateProfiles(s.ctx, account.ID, []models.Selection{
		selection(1, profilemodels.RelationshipParent, yearsAgo(45)),
		selection(2, profilemodels.RelationshipChild, nil),
	})
	s.Require().NoError(err)
	s.Require().Len(result.CreatedProfiles, 2)
	s.True(result.RequiresConsent)

	backfilled, err := s.alumni.FindByID(context.Background(), 1)
	s.Require().NoError(err)
	s.Equal(yearsAgo(45), backfilled.YearOfBirth)

	kid := result.CreatedProfiles[1]
	s.Equal(agerules.AccessBlocked, kid.AccessLevel)

	grant, err := s.service.GrantConsent(s.ctx, account.ID, kid.ID)
	s.Require().NoError(err)
	s.True(grant.ExpiresAt.After(requestcontext.Now(s.ctx)))

	stored, err := s.profiles.FindByID(context.Background(), kid.ID)
	s.Require().NoError(err)
	s.Equal(agerules.AccessSupervised, stored.AccessLevel)
	s.Equal(profilemodels.StatusActive, stored.Status)

	later := requestcontext.WithTime(context.Background(), requestcontext.Now(s.ctx).Add(time.Minute))
	s.Require().NoError(s.service.RevokeConsent(later, account.ID, kid.ID, "moved schools"))

	history, err := s.service.ConsentHistory(s.ctx, account.ID, kid.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(consentmodels.ActionGranted, history[0].Action)
	s.Equal(consentmodels.ActionRevoked, history[1].Action)
	s.Equal("moved schools", history[1].Reason)

	var pending []*outbox.Entry
	s.Require().NoError(postgres.NewTxRunner(s.postgres.DB).RunInTx(context.Background(), func(txCtx context.Context) error {
		var err error
		pending, err = s.outbox.ClaimBatch(txCtx, 10)
		return err
	}))
	s.Len(pending, 2)
}

func (s *PostgresOnboardingSuite) TestDuplicateSelectionRollsBackEverything() {
	account := s.newAccount("dupe@example.org")
	s.seedRecord(10, "dupe@example.org", nil)
	s.seedRecord(11, "dupe@example.org", yearsAgo(40))

	_, err := s.service.CreateProfiles(s.ctx, account.ID, []models.Selection{
		selection(11, profilemodels.RelationshipParent, nil),
	})
	s.Require().NoError(err)

	_, err = s.service.CreateProfiles(s.ctx, account.ID, []models.Selection{
		selection(10, profilemodels.RelationshipChild, yearsAgo(16)),
		selection(11, profilemodels.RelationshipParent, nil),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	n, err := s.profiles.CountByAccount(context.Background(), account.ID)
	s.Require().NoError(err)
	s.Equal(1, n)

	untouched, err := s.alumni.FindByID(context.Background(), 10)
	s.Require().NoError(err)
	s.Nil(untouched.YearOfBirth)
}

// TestConcurrentClaimsCreateOneProfile races claims for one record. Losers see
// either the ownership conflict or a serialization failure, never a second row.
func (s *PostgresOnboardingSuite) TestConcurrentClaimsCreateOneProfile() {
	account := s.newAccount("race@example.org")
	s.seedRecord(20, "race@example.org", yearsAgo(35))
	const goroutines = 10

	var wg sync.WaitGroup
	var created, rejected atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.CreateProfiles(s.ctx, account.ID, []models.Selection{
				selection(20, profilemodels.RelationshipParent, nil),
			})
			switch {
			case err == nil:
				created.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict), dErrors.HasCode(err, dErrors.CodeStorage):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), rejected.Load())

	n, err := s.profiles.CountByAccount(context.Background(), account.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
}
