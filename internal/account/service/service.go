package service

import (
	"context"
	"log/slog"
	"time"

	"alumnus/internal/account/models"
	"alumnus/internal/platform/metrics"
	id "alumnus/pkg/domain"
	dErrors "alumnus/pkg/domain-errors"
	"alumnus/pkg/email"
	"alumnus/pkg/requestcontext"
	"alumnus/pkg/secrets"
)

type Store interface {
	Create(ctx context.Context, a *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdateStatus(ctx context.Context, accountID id.AccountID, status models.Status, at time.Time) error
}

// TokenIssuer mints access tokens. A nil profile id yields an account-scoped
// token with no active profile.
type TokenIssuer interface {
	GenerateAccessToken(accountID id.AccountID, profileID *id.ProfileID, issuedAt time.Time, expiresIn time.Duration) (string, error)
}

const defaultAccessTokenTTL = 15 * time.Minute

// Service registers accounts, verifies logins and owns account status.
type Service struct {
	store          Store
	tokens         TokenIssuer
	accessTokenTTL time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
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

func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTokenTTL = ttl
		}
	}
}

func New(store Store, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{
		store:          store,
		tokens:         tokens,
		accessTokenTTL: defaultAccessTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, address, password string) (*models.Account, error) {
	normalized, err := email.Normalize(address)
	if err != nil {
		return nil, err
	}
	hash, err := secrets.Hash(password)
	if err != nil {
		if _, ok := dErrors.As(err); ok {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	account, err := models.NewAccount(id.NewAccountID(), normalized, hash, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, account); err != nil {
		err = dErrors.Translate(err, "failed to create account")
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
		}
		return nil, err
	}

	s.metrics.IncrementAccountsRegistered()
	s.logAudit(ctx, "account_registered",
		"account_id", account.ID.String(),
		"email_domain", email.Domain(normalized),
	)
	return account, nil
}

func (s *Service) Login(ctx context.Context, address, password string) (*models.LoginResult, error) {
	normalized, err := email.Normalize(address)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	account, err := s.store.FindByEmail(ctx, normalized)
	if err != nil {
		err = dErrors.Translate(err, "failed to load account")
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, err
	}
	if err := secrets.Verify(password, account.PasswordHash); err != nil {
		if _, ok := dErrors.As(err); ok {
			s.logAudit(ctx, "login_failed", "account_id", account.ID.String())
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	if err := account.CanLogin(); err != nil {
		return nil, dErrors.New(dErrors.CodeAccessDenied, "account is suspended")
	}

	token, err := s.tokens.GenerateAccessToken(account.ID, nil, requestcontext.Now(ctx), s.accessTokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}
	s.logAudit(ctx, "login_succeeded", "account_id", account.ID.String())
	return &models.LoginResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.accessTokenTTL.Seconds()),
		Account:     account,
	}, nil
}

func (s *Service) FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error) {
	if accountID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "account is required")
	}
	account, err := s.store.FindByID(ctx, accountID)
	if err != nil {
		return nil, dErrors.Translate(err, "failed to load account")
	}
	return account, nil
}

// SetStatus moves an account to status. Runs inside the caller's transaction
// when ctx carries one. Setting the current status is a no-op.
func (s *Service) SetStatus(ctx context.Context, accountID id.AccountID, status models.Status) error {
	account, err := s.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Status == status {
		return nil
	}
	if err := account.CanTransitionTo(status); err != nil {
		return dErrors.New(dErrors.CodeAccessDenied, "account is suspended")
	}
	if err := s.store.UpdateStatus(ctx, accountID, status, requestcontext.Now(ctx)); err != nil {
		return dErrors.Translate(err, "failed to update account status")
	}
	s.logAudit(ctx, "account_status_changed",
		"account_id", accountID.String(),
		"from", account.Status.String(),
		"to", status.String(),
	)
	return nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
