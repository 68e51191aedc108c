package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics holds all Prometheus metrics for the application.
// Every method is safe on a nil receiver so services may run without metrics.
type Metrics struct {
	AccountsRegistered prometheus.Counter
	ProfilesCreated    *prometheus.CounterVec
	UnderageSkipped    prometheus.Counter
	ConsentEvents      *prometheus.CounterVec
	ProfileSwitches    *prometheus.CounterVec
	TxDuration         *prometheus.HistogramVec
	OutboxPublished    *prometheus.CounterVec
	HTTPLatency        *prometheus.HistogramVec
	RateLimitRejected  *prometheus.CounterVec
	RateLimitFallback  *prometheus.CounterVec
}

// New registers metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers metrics on reg. Tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AccountsRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "alumnus_accounts_registered_total",
			Help: "Total number of accounts registered",
		}),
		ProfilesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alumnus_profiles_created_total",
			Help: "Profiles created by relationship and initial access level",
		}, []string{"relationship", "access_level"}),
		UnderageSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "alumnus_profiles_underage_skipped_total",
			Help: "Child selections skipped because the derived age is below the minimum",
		}),
		ConsentEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alumnus_consent_events_total",
			Help: "Parental consent ledger entries by action",
		}, []string{"action"}),
		ProfileSwitches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alumnus_profile_switches_total",
			Help: "Active profile switches by outcome",
		}, []string{"outcome"}),
		TxDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alumnus_db_transaction_duration_seconds",
			Help:    "Duration of storage transactions by outcome",
			Buckets: latencyBuckets,
		}, []string{"outcome"}),
		OutboxPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alumnus_outbox_published_total",
			Help: "Consent outbox entries handed to the broker by result",
		}, []string{"result"}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alumnus_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: latencyBuckets,
		}, []string{"route", "method", "status"}),
		RateLimitRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alumnus_ratelimit_rejected_total",
			Help: "Requests rejected with 429 by endpoint class",
		}, []string{"class"}),
		RateLimitFallback: f.NewCounterVec(prometheus.CounterOpts{
			Name: "alumnus_ratelimit_fallback_total",
			Help: "Rate limit checks served by the in-memory fallback by endpoint class",
		}, []string{"class"}),
	}
}

func (m *Metrics) IncrementAccountsRegistered() {
	if m != nil {
		m.AccountsRegistered.Inc()
	}
}

func (m *Metrics) IncrementProfileCreated(relationship, accessLevel string) {
	if m != nil {
		m.ProfilesCreated.WithLabelValues(relationship, accessLevel).Inc()
	}
}

func (m *Metrics) IncrementUnderageSkipped() {
	if m != nil {
		m.UnderageSkipped.Inc()
	}
}

func (m *Metrics) IncrementConsentEvent(action string) {
	if m != nil {
		m.ConsentEvents.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncrementProfileSwitch(outcome string) {
	if m != nil {
		m.ProfileSwitches.WithLabelValues(outcome).Inc()
	}
}

// ObserveTx matches the postgres.WithObserver callback signature.
func (m *Metrics) ObserveTx(outcome string, d time.Duration) {
	if m != nil {
		m.TxDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementOutboxPublished(result string, n int) {
	if m != nil && n > 0 {
		m.OutboxPublished.WithLabelValues(result).Add(float64(n))
	}
}

func (m *Metrics) ObserveHTTP(route, method, status string, d time.Duration) {
	if m != nil {
		m.HTTPLatency.WithLabelValues(route, method, status).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementRateLimitRejected(class string) {
	if m != nil {
		m.RateLimitRejected.WithLabelValues(class).Inc()
	}
}

func (m *Metrics) IncrementRateLimitFallback(class string) {
	if m != nil {
		m.RateLimitFallback.WithLabelValues(class).Inc()
	}
}
