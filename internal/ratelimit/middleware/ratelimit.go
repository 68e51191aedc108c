package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"alumnus/internal/platform/metrics"
	"alumnus/internal/ratelimit/models"
	"alumnus/pkg/platform/circuit"
	"alumnus/pkg/platform/httputil"
	"alumnus/pkg/requestcontext"
)

// Store counts requests per key in a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// HeaderStatus is set to "degraded" while checks are served by the fallback.
const HeaderStatus = "X-RateLimit-Status"

type Middleware struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	limits   map[models.EndpointClass]models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithLimit sets the window for class. Classes without a limit are not checked.
func WithLimit(class models.EndpointClass, limit models.Limit) Option {
	return func(m *Middleware) {
		if limit.RequestsPerWindow > 0 && limit.Window > 0 {
			m.limits[class] = limit
		}
	}
}

// WithFallback serves checks from store while the primary's circuit is open.
func WithFallback(store Store, breaker *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.fallback = store
		m.breaker = breaker
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

// WithDisabled turns every check into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(primary Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		primary: primary,
		limits:  make(map[models.EndpointClass]models.Limit),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fallback != nil && m.breaker == nil {
		m.breaker = circuit.New("ratelimit")
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return m.limit(class, func(r *http.Request) string {
		return models.NewIPKey(requestcontext.ClientIP(r.Context()), class)
	})
}

// RateLimitAccount limits mutating requests per authenticated account, falling
// back to the client IP when the request carries no account. Safe methods are
// not counted.
func (m *Middleware) RateLimitAccount(class models.EndpointClass) func(http.Handler) http.Handler {
	return m.limit(class, func(r *http.Request) string {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return ""
		}
		if accountID := requestcontext.AccountID(r.Context()); !accountID.IsNil() {
			return models.NewAccountKey(accountID.String(), class)
		}
		return models.NewIPKey(requestcontext.ClientIP(r.Context()), class)
	})
}

func (m *Middleware) limit(class models.EndpointClass, keyOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}
			limit, ok := m.limits[class]
			key := keyOf(r)
			if !ok || key == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, degraded := m.check(r.Context(), key, class, limit)
			if result == nil {
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if degraded {
				w.Header().Set(HeaderStatus, "degraded")
			}
			if !result.Allowed {
				m.metrics.IncrementRateLimitRejected(class.String())
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// check returns nil when no store could answer; the request is then let
// through.
func (m *Middleware) check(ctx context.Context, key string, class models.EndpointClass, limit models.Limit) (*models.RateLimitResult, bool) {
	result, err := m.primary.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
	if m.fallback == nil {
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check rate limit", "error", err, "class", class.String())
			return nil, false
		}
		return result, false
	}

	if err != nil {
		useFallback, change := m.breaker.RecordFailure()
		if change.Opened {
			m.logger.WarnContext(ctx, "rate limit store unavailable, using in-memory fallback", "error", err, "breaker", m.breaker.Name())
		}
		if !useFallback {
			m.logger.ErrorContext(ctx, "failed to check rate limit", "error", err, "class", class.String())
			return nil, false
		}
		return m.checkFallback(ctx, key, class, limit)
	}

	usePrimary, change := m.breaker.RecordSuccess()
	if change.Closed {
		m.logger.InfoContext(ctx, "rate limit store recovered", "breaker", m.breaker.Name())
	}
	if usePrimary {
		return result, false
	}
	return m.checkFallback(ctx, key, class, limit)
}

func (m *Middleware) checkFallback(ctx context.Context, key string, class models.EndpointClass, limit models.Limit) (*models.RateLimitResult, bool) {
	m.metrics.IncrementRateLimitFallback(class.String())
	result, err := m.fallback.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
	if err != nil {
		m.logger.ErrorContext(ctx, "fallback rate limit check failed", "error", err, "class", class.String())
		return nil, true
	}
	return result, true
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:            "rate_limit_exceeded",
		ErrorDescription: "Too many requests. Please try again later.",
		RetryAfter:       result.RetryAfter,
	})
}
