package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"alumnus/internal/alumni/models"
	id "alumnus/pkg/domain"
	"alumnus/pkg/platform/sentinel"
	txcontext "alumnus/pkg/platform/tx"
)

type claimKey struct {
	record  id.AlumniRecordID
	account id.AccountID
}

// InMemory is the directory backend used in development and tests.
type InMemory struct {
	gate    *txcontext.Gate
	mu      sync.RWMutex
	records map[id.AlumniRecordID]models.Record
	claims  map[claimKey]time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[id.AlumniRecordID]models.Record),
		claims:  make(map[claimKey]time.Time),
	}
}

// JoinTx implements tx.Participant.
func (s *InMemory) JoinTx(g *txcontext.Gate) { s.gate = g }

// Seed loads directory records, replacing any with the same id.
func (s *InMemory) Seed(records ...models.Record) {
	defer s.gate.Enter(context.Background())()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = copyRecord(r)
	}
}

func (s *InMemory) FindByEmail(ctx context.Context, email string) ([]models.Record, error) {
	defer s.gate.Enter(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.TrimSpace(email)
	var out []models.Record
	for _, r := range s.records {
		if r.BelongsTo(email) {
			out = append(out, copyRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) FindByID(ctx context.Context, recordID id.AlumniRecordID) (*models.Record, error) {
	defer s.gate.Enter(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[recordID]
	if !ok {
		return nil, fmt.Errorf("alumni record %d: %w", recordID, sentinel.ErrNotFound)
	}
	out := copyRecord(r)
	return &out, nil
}

func (s *InMemory) BackfillYearOfBirth(ctx context.Context, recordID id.AlumniRecordID, year int) error {
	defer s.gate.Enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("alumni record %d: %w", recordID, sentinel.ErrNotFound)
	}
	if r.YearOfBirth != nil {
		return nil
	}
	r.YearOfBirth = &year
	s.records[recordID] = r
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if current, ok := s.records[recordID]; ok {
			current.YearOfBirth = nil
			s.records[recordID] = current
		}
	})
	return nil
}

func (s *InMemory) MarkClaimed(ctx context.Context, claim models.Claim) error {
	defer s.gate.Enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[claim.RecordID]; !ok {
		return fmt.Errorf("alumni record %d: %w", claim.RecordID, sentinel.ErrNotFound)
	}
	key := claimKey{record: claim.RecordID, account: claim.AccountID}
	if _, exists := s.claims[key]; exists {
		return nil
	}
	s.claims[key] = claim.ClaimedAt
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.claims, key)
	})
	return nil
}

// IsClaimed reports whether accountID has marked recordID claimed.
func (s *InMemory) IsClaimed(recordID id.AlumniRecordID, accountID id.AccountID) bool {
	defer s.gate.Enter(context.Background())()
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.claims[claimKey{record: recordID, account: accountID}]
	return ok
}

func copyRecord(r models.Record) models.Record {
	if r.YearOfBirth != nil {
		y := *r.YearOfBirth
		r.YearOfBirth = &y
	}
	return r
}
