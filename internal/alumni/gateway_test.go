package alumni

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"alumnus/internal/alumni/models"
	"alumnus/internal/alumni/store"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/requestcontext"
)

type GatewaySuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemory
	gateway *Gateway
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, time.May, 4, 10, 0, 0, 0, time.UTC))
	s.store = store.NewInMemory()
	s.store.Seed(
		models.Record{ID: 501, FirstName: "Asha", LastName: "Rao", Email: "family@example.org"},
	)
	s.gateway = NewGateway(s.store)
}

func (s *GatewaySuite) TestFindByEmail() {
	s.Run("matches case-insensitively", func() {
		records, err := s.gateway.FindByEmail(s.ctx, " Family@Example.ORG ")
		s.Require().NoError(err)
		s.Len(records, 1)
	})

	s.Run("blank email is a validation error", func() {
		_, err := s.gateway.FindByEmail(s.ctx, "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *GatewaySuite) TestFindByIDNotFound() {
	_, err := s.gateway.FindByID(s.ctx, 404)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *GatewaySuite) TestBackfillYearOfBirth() {
	s.Run("rejects years outside range", func() {
		for _, year := range []int{1919, 2026} {
			err := s.gateway.BackfillYearOfBirth(s.ctx, 501, year)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "year %d", year)
		}
		record, err := s.gateway.FindByID(s.ctx, 501)
		s.Require().NoError(err)
		s.Nil(record.YearOfBirth)
	})

	s.Run("writes a missing year once", func() {
		s.Require().NoError(s.gateway.BackfillYearOfBirth(s.ctx, 501, 1985))
		s.Require().NoError(s.gateway.BackfillYearOfBirth(s.ctx, 501, 1990))

		record, err := s.gateway.FindByID(s.ctx, 501)
		s.Require().NoError(err)
		s.Equal(1985, *record.YearOfBirth)
	})

	s.Run("unknown record", func() {
		err := s.gateway.BackfillYearOfBirth(s.ctx, 404, 1985)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *GatewaySuite) TestMarkClaimed() {
	accountID := id.NewAccountID()
	s.Require().NoError(s.gateway.MarkClaimed(s.ctx, 501, accountID))
	s.Require().NoError(s.gateway.MarkClaimed(s.ctx, 501, accountID))
	s.True(s.store.IsClaimed(501, accountID))

	err := s.gateway.MarkClaimed(s.ctx, 404, accountID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

type failingStore struct{ Store }

func (failingStore) FindByID(context.Context, id.AlumniRecordID) (*models.Record, error) {
	return nil, errors.New("connection reset")
}

func (s *GatewaySuite) TestStorageFailureIsTransient() {
	g := NewGateway(failingStore{})
	_, err := g.FindByID(s.ctx, 501)
	s.True(dErrors.HasCode(err, dErrors.CodeStorage))
}
