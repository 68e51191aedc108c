package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"alumnus/internal/profile/models"
	id "alumnus/pkg/domain"
	"alumnus/pkg/platform/sentinel"
	txcontext "alumnus/pkg/platform/tx"
)

type ownershipKey struct {
	account id.AccountID
	record  id.AlumniRecordID
}

// InMemory stores profiles in a map with a (account, record) unique index.
type InMemory struct {
	gate     *txcontext.Gate
	mu       sync.RWMutex
	profiles map[id.ProfileID]models.Profile
	claimed  map[ownershipKey]id.ProfileID
}

func NewInMemory() *InMemory {
	return &InMemory{
		profiles: make(map[id.ProfileID]models.Profile),
		claimed:  make(map[ownershipKey]id.ProfileID),
	}
}

// JoinTx implements tx.Participant.
func (s *InMemory) JoinTx(g *txcontext.Gate) { s.gate = g }

func (s *InMemory) Create(ctx context.Context, p *models.Profile) error {
	defer s.gate.Enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownershipKey{account: p.AccountID, record: p.AlumniRecordID}
	if _, exists := s.claimed[key]; exists {
		return fmt.Errorf("profile for record %d: %w", p.AlumniRecordID, sentinel.ErrConflict)
	}
	if _, exists := s.profiles[p.ID]; exists {
		return fmt.Errorf("profile %s: %w", p.ID, sentinel.ErrConflict)
	}
	s.profiles[p.ID] = clone(*p)
	s.claimed[key] = p.ID
	profileID := p.ID
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.profiles, profileID)
		delete(s.claimed, key)
	})
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	defer s.gate.Enter(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[profileID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", profileID, sentinel.ErrNotFound)
	}
	out := clone(p)
	return &out, nil
}

// Update replaces the mutable access fields of an existing profile.
func (s *InMemory) Update(ctx context.Context, p *models.Profile) error {
	defer s.gate.Enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.profiles[p.ID]
	if !ok {
		return fmt.Errorf("profile %s: %w", p.ID, sentinel.ErrNotFound)
	}
	s.profiles[p.ID] = clone(*p)
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.profiles[prev.ID] = prev
	})
	return nil
}

// ListByAccount returns the account's profiles, oldest first.
func (s *InMemory) ListByAccount(ctx context.Context, accountID id.AccountID) ([]*models.Profile, error) {
	defer s.gate.Enter(ctx)()
	return s.listByAccount(accountID), nil
}

func (s *InMemory) listByAccount(accountID id.AccountID) []*models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Profile
	for _, p := range s.profiles {
		if p.AccountID == accountID {
			c := clone(p)
			out = append(out, &c)
		}
	}
	sortOldestFirst(out)
	return out
}

// FindFirstParent returns the account's oldest parent profile.
func (s *InMemory) FindFirstParent(ctx context.Context, accountID id.AccountID) (*models.Profile, error) {
	defer s.gate.Enter(ctx)()
	for _, p := range s.listByAccount(accountID) {
		if p.Relationship == models.RelationshipParent {
			return p, nil
		}
	}
	return nil, fmt.Errorf("parent profile for account %s: %w", accountID, sentinel.ErrNotFound)
}

// ClaimedRecordIDs reports which of recordIDs the account already holds a
// profile for.
func (s *InMemory) ClaimedRecordIDs(ctx context.Context, accountID id.AccountID, recordIDs []id.AlumniRecordID) (map[id.AlumniRecordID]bool, error) {
	defer s.gate.Enter(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[id.AlumniRecordID]bool, len(recordIDs))
	for _, recordID := range recordIDs {
		if _, ok := s.claimed[ownershipKey{account: accountID, record: recordID}]; ok {
			out[recordID] = true
		}
	}
	return out, nil
}

func (s *InMemory) CountByAccount(ctx context.Context, accountID id.AccountID) (int, error) {
	defer s.gate.Enter(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for key := range s.claimed {
		if key.account == accountID {
			n++
		}
	}
	return n, nil
}

func sortOldestFirst(profiles []*models.Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		if !profiles[i].CreatedAt.Equal(profiles[j].CreatedAt) {
			return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
		}
		// Parents sort ahead of children created in the same transaction.
		if profiles[i].Relationship != profiles[j].Relationship {
			return profiles[i].Relationship == models.RelationshipParent
		}
		return profiles[i].AlumniRecordID < profiles[j].AlumniRecordID
	})
}

func clone(p models.Profile) models.Profile {
	if p.ParentProfileID != nil {
		v := *p.ParentProfileID
		p.ParentProfileID = &v
	}
	if p.ConsentGrantedAt != nil {
		v := *p.ConsentGrantedAt
		p.ConsentGrantedAt = &v
	}
	if p.ConsentExpiresAt != nil {
		v := *p.ConsentExpiresAt
		p.ConsentExpiresAt = &v
	}
	return p
}
