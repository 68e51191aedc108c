package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alumnus/internal/platform/metrics"
	"alumnus/pkg/platform/httputil"
	authmw "alumnus/pkg/platform/middleware/auth"
	"alumnus/pkg/platform/middleware/metadata"
	"alumnus/pkg/platform/middleware/request"
	"alumnus/pkg/platform/middleware/requesttime"
)

// RouteRegistrar mounts a group of routes. Handlers pass their Register
// methods.
type RouteRegistrar func(r chi.Router)

// HealthCheck is one backend probed by /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options wires the router. Public routes run without authentication;
// Protected routes require a valid bearer token. The group middleware slices
// run inside their group, after authentication for Protected.
type Options struct {
	Logger              *slog.Logger
	Metrics             *metrics.Metrics
	Validator           authmw.JWTValidator
	AllowedOrigins      []string
	RequestTimeout      time.Duration
	HealthChecks        []HealthCheck
	Public              []RouteRegistrar
	Protected           []RouteRegistrar
	PublicMiddleware    []func(http.Handler) http.Handler
	ProtectedMiddleware []func(http.Handler) http.Handler
}

// NewRouter builds the chi router with the shared middleware stack.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(request.Recovery(opts.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(opts.Logger))
	r.Use(request.Latency(opts.Metrics))
	if opts.RequestTimeout > 0 {
		r.Use(request.Timeout(opts.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", request.HeaderRequestID},
		ExposedHeaders:   []string{request.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler(opts.HealthChecks))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(pub chi.Router) {
		pub.Use(opts.PublicMiddleware...)
		for _, register := range opts.Public {
			register(pub)
		}
	})
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.RequireAuth(opts.Validator, opts.Logger))
		pr.Use(opts.ProtectedMiddleware...)
		for _, register := range opts.Protected {
			register(pr)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				resp.Checks[c.Name] = err.Error()
				resp.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
