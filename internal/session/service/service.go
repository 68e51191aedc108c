// Package service issues session credentials bound to an active profile and
// rotates them through single-use refresh tokens.
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

	"alumnus/internal/agerules"
	"alumnus/internal/platform/metrics"
	"alumnus/internal/profile"
	profilemodels "alumnus/internal/profile/models"
	"alumnus/internal/session/device"
	"alumnus/internal/session/models"
	"alumnus/pkg/attrs"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/requestcontext"
	"alumnus/pkg/secrets"
)

type TokenIssuer interface {
	GenerateAccessToken(accountID id.AccountID, profileID *id.ProfileID, issuedAt time.Time, expiresIn time.Duration) (string, error)
}

// Store holds refresh sessions. Consume must hand a token out at most once
// and return sentinel.ErrNotFound for unknown tokens.
type Store interface {
	Save(ctx context.Context, session *models.RefreshSession, ttl time.Duration) error
	Consume(ctx context.Context, token string) (*models.RefreshSession, error)
}

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Service switches the active profile of a session. It reads profiles but
// never writes them.
type Service struct {
	profiles        profile.Finder
	tokens          TokenIssuer
	store           Store
	devices         *device.Service
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	newRefreshToken func() (string, error)
	logger          *slog.Logger
	metrics         *metrics.Metrics
	tracer          trace.Tracer
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

func WithTokenTTLs(access, refresh time.Duration) Option {
	return func(s *Service) {
		if access > 0 {
			s.accessTokenTTL = access
		}
		if refresh > 0 {
			s.refreshTokenTTL = refresh
		}
	}
}

func WithDeviceService(d *device.Service) Option {
	return func(s *Service) {
		s.devices = d
	}
}

func New(profiles profile.Finder, tokens TokenIssuer, store Store, opts ...Option) *Service {
	s := &Service{
		profiles:        profiles,
		tokens:          tokens,
		store:           store,
		devices:         device.NewService(true),
		accessTokenTTL:  defaultAccessTokenTTL,
		refreshTokenTTL: defaultRefreshTokenTTL,
		newRefreshToken: secrets.Generate,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:          otel.Tracer("alumnus/session"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SwitchActiveProfile issues credentials scoped to profileID. The profile
// must belong to the account and be usable now: suspended profiles and those
// whose effective access is blocked are refused. Calling it again for the
// same profile simply issues fresh credentials.
func (s *Service) SwitchActiveProfile(ctx context.Context, accountID id.AccountID, profileID id.ProfileID) (result *models.SwitchResult, err error) {
	ctx, span := s.tracer.Start(ctx, "session.SwitchActiveProfile",
		trace.WithAttributes(
			attribute.String("account.id", accountID.String()),
			attribute.String("profile.id", profileID.String()),
		),
	)
	defer func() {
		s.metrics.IncrementProfileSwitch(outcome(err))
		endSpan(span, err)
	}()

	p, err := profile.ResolveOwned(ctx, s.profiles, accountID, profileID)
	if err != nil {
		return nil, err
	}
	if err := checkAccess(p, requestcontext.Now(ctx)); err != nil {
		s.logAudit(ctx, "profile_switch_denied",
			"account_id", accountID.String(),
			"profile_id", profileID.String(),
			"reason", err.Error(),
		)
		return nil, err
	}

	result, err = s.issue(ctx, accountID, p)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "profile_switched",
		"account_id", accountID.String(),
		"profile_id", profileID.String(),
		"access_level", result.ActiveProfile.AccessLevel.String(),
	)
	return result, nil
}

// Refresh redeems a refresh token for new credentials on the same profile.
// The token is spent whatever the outcome. Access is re-evaluated, so a child
// whose consent lapsed since the switch is refused.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (result *models.SwitchResult, err error) {
	ctx, span := s.tracer.Start(ctx, "session.Refresh")
	defer func() { endSpan(span, err) }()

	if refreshToken == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "refresh token is required")
	}
	session, err := s.store.Consume(ctx, refreshToken)
	if err != nil {
		err = dErrors.Translate(err, "failed to load refresh token")
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if session.IsExpired(now) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "refresh token expired")
	}
	issuedTo := device.Binding{Label: session.DeviceLabel, Fingerprint: session.Fingerprint}
	if s.devices.Drifted(issuedTo, requestcontext.UserAgent(ctx)) {
		s.logger.WarnContext(ctx, "refresh token used from a different device",
			"account_id", session.AccountID.String(),
			"profile_id", session.ProfileID.String(),
			"issued_to", session.DeviceLabel,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	p, err := profile.ResolveOwned(ctx, s.profiles, session.AccountID, session.ProfileID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, err
	}
	if err := checkAccess(p, now); err != nil {
		return nil, err
	}

	result, err = s.issue(ctx, session.AccountID, p)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "session_refreshed",
		"account_id", session.AccountID.String(),
		"profile_id", p.ID.String(),
	)
	return result, nil
}

// checkAccess refuses suspended profiles and profiles blocked at now.
func checkAccess(p *profilemodels.Profile, now time.Time) error {
	if p.IsSuspended() {
		return dErrors.New(dErrors.CodeAccessDenied, "profile is suspended")
	}
	if p.EffectiveAccessLevel(now) == agerules.AccessBlocked {
		return dErrors.New(dErrors.CodeAccessDenied, "profile is blocked pending parental consent")
	}
	return nil
}

func (s *Service) issue(ctx context.Context, accountID id.AccountID, p *profilemodels.Profile) (*models.SwitchResult, error) {
	now := requestcontext.Now(ctx)
	profileID := p.ID
	accessToken, err := s.tokens.GenerateAccessToken(accountID, &profileID, now, s.accessTokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}
	refreshToken, err := s.newRefreshToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue refresh token")
	}

	binding := s.devices.Bind(requestcontext.UserAgent(ctx))
	session := &models.RefreshSession{
		Token:       refreshToken,
		AccountID:   accountID,
		ProfileID:   profileID,
		DeviceLabel: binding.Label,
		Fingerprint: binding.Fingerprint,
		ClientIP:    requestcontext.ClientIP(ctx),
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.refreshTokenTTL),
	}
	if err := s.store.Save(ctx, session, s.refreshTokenTTL); err != nil {
		return nil, dErrors.Translate(err, "failed to store refresh token")
	}

	return &models.SwitchResult{
		AccessToken:   accessToken,
		TokenType:     "Bearer",
		ExpiresIn:     int(s.accessTokenTTL.Seconds()),
		RefreshToken:  refreshToken,
		ActiveProfile: models.NewActiveProfile(p, now),
	}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case dErrors.HasCode(err, dErrors.CodeAccessDenied):
		return "denied"
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
	attrs.AddSpanEvent(ctx, event, attributes, "account_id", "profile_id")
}
