package consent

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"alumnus/internal/consent/models"
	"alumnus/internal/outbox"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/requestcontext"
)

// Outbox aggregate and event names for consent changes.
const (
	AggregateChildProfile = "child_profile"
	EventConsentGranted   = "consent.granted"
	EventConsentRevoked   = "consent.revoked"
)

// Store persists ledger entries. Append must join the transaction on ctx.
type Store interface {
	Append(ctx context.Context, r *models.Record) error
	ListByChild(ctx context.Context, childProfileID id.ProfileID) ([]*models.Record, error)
}

// Ledger is the append-only history of parental consent decisions.
type Ledger struct {
	store   Store
	outbox  outbox.Writer
	entropy io.Reader
	logger  *slog.Logger
}

type Option func(*Ledger)

// WithOutbox enqueues every appended entry for publication. The entry is
// written through the same transaction as the ledger row.
func WithOutbox(w outbox.Writer) Option {
	return func(l *Ledger) {
		l.outbox = w
	}
}

// WithEntropy overrides the ULID randomness source.
func WithEntropy(r io.Reader) Option {
	return func(l *Ledger) {
		l.entropy = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		entropy: ulid.DefaultEntropy(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Event is the payload published for each ledger entry.
type Event struct {
	RecordID        string        `json:"record_id"`
	ChildProfileID  id.ProfileID  `json:"child_profile_id"`
	ParentProfileID *id.ProfileID `json:"parent_profile_id,omitempty"`
	ActorAccountID  id.AccountID  `json:"actor_account_id"`
	Action          models.Action `json:"action"`
	Reason          string        `json:"reason,omitempty"`
	Timestamp       string        `json:"timestamp"`
	RequestID       string        `json:"request_id,omitempty"`
}

// Append records a decision at the request time on ctx.
func (l *Ledger) Append(ctx context.Context, action models.Action, child id.ProfileID, parent *id.ProfileID, actor id.AccountID, reason string) (*models.Record, error) {
	rec, err := models.NewRecord(l.entropy, action, child, parent, actor, reason, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := l.store.Append(ctx, rec); err != nil {
		return nil, dErrors.Translate(err, "failed to append consent record")
	}
	if l.outbox != nil {
		if err := l.enqueue(ctx, rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// History lists every decision for a child profile, oldest first.
func (l *Ledger) History(ctx context.Context, child id.ProfileID) ([]*models.Record, error) {
	records, err := l.store.ListByChild(ctx, child)
	if err != nil {
		return nil, dErrors.Translate(err, "failed to load consent history")
	}
	if records == nil {
		records = []*models.Record{}
	}
	return records, nil
}

func (l *Ledger) enqueue(ctx context.Context, rec *models.Record) error {
	payload, err := json.Marshal(Event{
		RecordID:        rec.ID,
		ChildProfileID:  rec.ChildProfileID,
		ParentProfileID: rec.ParentProfileID,
		ActorAccountID:  rec.ActorAccountID,
		Action:          rec.Action,
		Reason:          rec.Reason,
		Timestamp:       rec.Timestamp.UTC().Format(time.RFC3339Nano),
		RequestID:       requestcontext.RequestID(ctx),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode consent event")
	}

	eventType := EventConsentGranted
	if rec.Action == models.ActionRevoked {
		eventType = EventConsentRevoked
	}
	entry := outbox.NewEntry(AggregateChildProfile, rec.ChildProfileID.String(), eventType, payload, rec.Timestamp)
	if err := l.outbox.Insert(ctx, entry); err != nil {
		l.logger.ErrorContext(ctx, "failed to enqueue consent event",
			"record_id", rec.ID,
			"error", err,
		)
		return dErrors.Translate(err, "failed to enqueue consent event")
	}
	return nil
}
