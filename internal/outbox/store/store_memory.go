package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"alumnus/internal/outbox"
	"alumnus/pkg/platform/sentinel"
	txcontext "alumnus/pkg/platform/tx"
)

// InMemory holds entries in insertion order.
type InMemory struct {
	gate    *txcontext.Gate
	mu      sync.Mutex
	entries []outbox.Entry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

// JoinTx implements tx.Participant.
func (s *InMemory) JoinTx(g *txcontext.Gate) { s.gate = g }

func (s *InMemory) Insert(ctx context.Context, e *outbox.Entry) error {
	defer s.gate.Enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.entries {
		if existing.ID == e.ID {
			return fmt.Errorf("outbox entry %s: %w", e.ID, sentinel.ErrConflict)
		}
	}
	s.entries = append(s.entries, copyEntry(*e))
	entryID := e.ID
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.entries = slices.DeleteFunc(s.entries, func(x outbox.Entry) bool { return x.ID == entryID })
	})
	return nil
}

func (s *InMemory) ClaimBatch(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	defer s.gate.Enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*outbox.Entry
	for _, e := range s.entries {
		if len(out) >= limit {
			break
		}
		if e.IsPublished() {
			continue
		}
		c := copyEntry(e)
		out = append(out, &c)
	}
	return out, nil
}

func (s *InMemory) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	defer s.gate.Enter(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	var marked []uuid.UUID
	for i := range s.entries {
		if s.entries[i].IsPublished() || !slices.Contains(ids, s.entries[i].ID) {
			continue
		}
		t := at
		s.entries[i].PublishedAt = &t
		marked = append(marked, s.entries[i].ID)
	}
	txcontext.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i := range s.entries {
			if slices.Contains(marked, s.entries[i].ID) {
				s.entries[i].PublishedAt = nil
			}
		}
	})
	return nil
}

// Pending returns unpublished entries, oldest first.
func (s *InMemory) Pending() []*outbox.Entry {
	defer s.gate.Enter(context.Background())()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*outbox.Entry
	for _, e := range s.entries {
		if !e.IsPublished() {
			c := copyEntry(e)
			out = append(out, &c)
		}
	}
	return out
}

func copyEntry(e outbox.Entry) outbox.Entry {
	e.Payload = slices.Clone(e.Payload)
	if e.PublishedAt != nil {
		t := *e.PublishedAt
		e.PublishedAt = &t
	}
	return e
}
