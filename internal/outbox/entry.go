package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is a domain event waiting to be handed to the broker. Entries are
// written in the same transaction as the state change they describe.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// NewEntry stamps a fresh entry id.
func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, at time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     at,
	}
}

// IsPublished reports whether the worker has delivered the entry.
func (e *Entry) IsPublished() bool {
	return e.PublishedAt != nil
}

// Writer enqueues entries. Implementations pick up the transaction from ctx.
type Writer interface {
	Insert(ctx context.Context, e *Entry) error
}

// Store is what the worker needs from persistence. ClaimBatch is called inside
// a transaction and must lock the rows it returns.
type Store interface {
	Writer
	ClaimBatch(ctx context.Context, limit int) ([]*Entry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Publisher delivers a batch to the broker. It returns only once every entry
// is acknowledged.
type Publisher interface {
	Publish(ctx context.Context, entries []*Entry) error
}
