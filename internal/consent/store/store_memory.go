package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"alumnus/internal/consent/models"
	id "alumnus/pkg/domain"
	"alumnus/pkg/platform/sentinel"
	txcontext "alumnus/pkg/platform/tx"
)

// InMemory is an append-only ledger kept per child profile.
type InMemory struct {
	gate    *txcontext.Gate
	mu      sync.RWMutex
	byChild map[id.ProfileID][]models.Record
	ids     map[string]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		byChild: make(map[id.ProfileID][]models.Record),
		ids:     make(map[string]struct{}),
	}
}

// JoinTx implements tx.Participant.
func (s *InMemory) JoinTx(g *txcontext.Gate) { s.gate = g }

func (s *InMemory) Append(ctx context.Context, r *models.Record) error {
	defer s.gate.Enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.ids[r.ID]; dup {
		return fmt.Errorf("consent record %s: %w", r.ID, sentinel.ErrConflict)
	}
	recordID, child := r.ID, r.ChildProfileID
	s.ids[recordID] = struct{}{}
	s.byChild[child] = append(s.byChild[child], copyRecord(*r))
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.ids, recordID)
		s.byChild[child] = slices.DeleteFunc(s.byChild[child], func(e models.Record) bool {
			return e.ID == recordID
		})
	})
	return nil
}

// ListByChild returns entries oldest first.
func (s *InMemory) ListByChild(ctx context.Context, childProfileID id.ProfileID) ([]*models.Record, error) {
	defer s.gate.Enter(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.byChild[childProfileID]
	out := make([]*models.Record, 0, len(entries))
	for _, r := range entries {
		c := copyRecord(r)
		out = append(out, &c)
	}
	slices.SortStableFunc(out, func(a, b *models.Record) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return out, nil
}

func copyRecord(r models.Record) models.Record {
	if r.ParentProfileID != nil {
		v := *r.ParentProfileID
		r.ParentProfileID = &v
	}
	return r
}
