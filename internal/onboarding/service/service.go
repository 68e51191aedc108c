// Package service implements onboarding: discovering directory records for an
// account, claiming them as parent or child profiles under the age rules, and
// the parental consent lifecycle of child profiles.
package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	accountmodels "alumnus/internal/account/models"
	alumnimodels "alumnus/internal/alumni/models"
	consentmodels "alumnus/internal/consent/models"
	"alumnus/internal/platform/metrics"
	profilemodels "alumnus/internal/profile/models"
	"alumnus/pkg/attrs"
	id "alumnus/pkg/domain"
	"alumnus/pkg/requestcontext"
)

// AccountDirectory reads accounts and moves them to active once they own a profile.
type AccountDirectory interface {
	FindByID(ctx context.Context, accountID id.AccountID) (*accountmodels.Account, error)
	SetStatus(ctx context.Context, accountID id.AccountID, status accountmodels.Status) error
}

// AlumniGateway is the read side of the directory plus the two writes a claim makes.
type AlumniGateway interface {
	FindByEmail(ctx context.Context, email string) ([]alumnimodels.Record, error)
	FindByID(ctx context.Context, recordID id.AlumniRecordID) (*alumnimodels.Record, error)
	BackfillYearOfBirth(ctx context.Context, recordID id.AlumniRecordID, year int) error
	MarkClaimed(ctx context.Context, recordID id.AlumniRecordID, accountID id.AccountID) error
}

// ProfileStore returns sentinel errors; FindByID locks the row when called
// inside a transaction.
type ProfileStore interface {
	Create(ctx context.Context, p *profilemodels.Profile) error
	FindByID(ctx context.Context, profileID id.ProfileID) (*profilemodels.Profile, error)
	Update(ctx context.Context, p *profilemodels.Profile) error
	ListByAccount(ctx context.Context, accountID id.AccountID) ([]*profilemodels.Profile, error)
	FindFirstParent(ctx context.Context, accountID id.AccountID) (*profilemodels.Profile, error)
	ClaimedRecordIDs(ctx context.Context, accountID id.AccountID, recordIDs []id.AlumniRecordID) (map[id.AlumniRecordID]bool, error)
	CountByAccount(ctx context.Context, accountID id.AccountID) (int, error)
}

// ConsentLedger appends consent decisions; Append must join the transaction on ctx.
type ConsentLedger interface {
	Append(ctx context.Context, action consentmodels.Action, child id.ProfileID, parent *id.ProfileID, actor id.AccountID, reason string) (*consentmodels.Record, error)
	History(ctx context.Context, child id.ProfileID) ([]*consentmodels.Record, error)
}

// TxRunner runs fn in one serializable transaction carried on txCtx.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Service coordinates the onboarding flow. CreateProfiles, GrantConsent and
// RevokeConsent each run in a single transaction.
type Service struct {
	accounts AccountDirectory
	alumni   AlumniGateway
	profiles ProfileStore
	ledger   ConsentLedger
	tx       TxRunner
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	newID    func() id.ProfileID
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithProfileIDs overrides profile id generation.
func WithProfileIDs(newID func() id.ProfileID) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

func New(accounts AccountDirectory, alumni AlumniGateway, profiles ProfileStore, ledger ConsentLedger, tx TxRunner, opts ...Option) *Service {
	s := &Service{
		accounts: accounts,
		alumni:   alumni,
		profiles: profiles,
		ledger:   ledger,
		tx:       tx,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:   otel.Tracer("alumnus/onboarding"),
		newID:    id.NewProfileID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, accountID id.AccountID) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "onboarding."+name,
		trace.WithAttributes(attribute.String("account.id", accountID.String())),
	)
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// logAudit writes an audit line and mirrors it as a span event.
func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
	attrs.AddSpanEvent(ctx, event, attributes, "account_id", "profile_id", "child_profile_id")
}

func now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx)
}
