package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	accounthandler "alumnus/internal/account/handler"
	accountservice "alumnus/internal/account/service"
	accountstore "alumnus/internal/account/store"
	"alumnus/internal/alumni"
	alumnimodels "alumnus/internal/alumni/models"
	alumnistore "alumnus/internal/alumni/store"
	"alumnus/internal/consent"
	consentstore "alumnus/internal/consent/store"
	onboardinghandler "alumnus/internal/onboarding/handler"
	onboardingservice "alumnus/internal/onboarding/service"
	"alumnus/internal/outbox"
	"alumnus/internal/outbox/kafka"
	outboxstore "alumnus/internal/outbox/store"
	"alumnus/internal/platform/config"
	"alumnus/internal/platform/httpserver"
	"alumnus/internal/platform/logger"
	"alumnus/internal/platform/metrics"
	"alumnus/internal/platform/postgres"
	"alumnus/internal/platform/redis"
	profilestore "alumnus/internal/profile/store"
	ratelimitmw "alumnus/internal/ratelimit/middleware"
	ratelimitmodels "alumnus/internal/ratelimit/models"
	"alumnus/internal/ratelimit/store/bucket"
	"alumnus/internal/session/device"
	sessionhandler "alumnus/internal/session/handler"
	sessionservice "alumnus/internal/session/service"
	sessionstore "alumnus/internal/session/store"
	"alumnus/internal/session/token"
	httptransport "alumnus/internal/transport/http"
	"alumnus/pkg/platform/circuit"
	txcontext "alumnus/pkg/platform/tx"
)

// backends holds the storage implementations selected by configuration.
type backends struct {
	accounts accountservice.Store
	alumni   alumni.Store
	profiles onboardingservice.ProfileStore
	consent  consent.Store
	outbox   outbox.Store
	tx       onboardingservice.TxRunner
	health   []httptransport.HealthCheck
	close    func()
}

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	db, err := postgres.Open(cfg.Database)
	if err != nil {
		return err
	}
	var b *backends
	if db != nil {
		log.Info("using postgres storage", "driver", cfg.Database.Driver)
		b = postgresBackends(db, cfg.Database, m)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory storage")
		b, err = memoryBackends(cfg.AlumniSeedFile)
		if err != nil {
			return err
		}
	}
	defer b.close()

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		defer func() { _ = rc.Close() }()
		b.health = append(b.health, httptransport.HealthCheck{Name: "redis", Check: rc.Health})
	}
	sessions := sessionBackend(rc, log)
	limiter := rateLimiter(cfg.RateLimit, rc, log, m)

	jwt := token.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience)

	accounts := accountservice.New(b.accounts, jwt,
		accountservice.WithLogger(log),
		accountservice.WithMetrics(m),
		accountservice.WithAccessTokenTTL(cfg.Auth.AccessTokenTTL),
	)
	ledger := consent.NewLedger(b.consent,
		consent.WithOutbox(b.outbox),
		consent.WithLogger(log),
	)
	onboarding := onboardingservice.New(accounts, alumni.NewGateway(b.alumni), b.profiles, ledger, b.tx,
		onboardingservice.WithLogger(log),
		onboardingservice.WithMetrics(m),
	)
	switcher := sessionservice.New(b.profiles, jwt, sessions,
		sessionservice.WithLogger(log),
		sessionservice.WithMetrics(m),
		sessionservice.WithTokenTTLs(cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL),
		sessionservice.WithDeviceService(device.NewService(true)),
	)

	accountH := accounthandler.New(accounts, log)
	onboardingH := onboardinghandler.New(onboarding, log)
	sessionH := sessionhandler.New(switcher, log)

	router := httptransport.NewRouter(httptransport.Options{
		Logger:         log,
		Metrics:        m,
		Validator:      token.NewMiddlewareAdapter(jwt),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		HealthChecks:   b.health,
		Public:         []httptransport.RouteRegistrar{accountH.Register, sessionH.RegisterPublic},
		Protected:      []httptransport.RouteRegistrar{onboardingH.Register, sessionH.Register},
		PublicMiddleware: []func(http.Handler) http.Handler{
			limiter.RateLimit(ratelimitmodels.ClassAuth),
		},
		ProtectedMiddleware: []func(http.Handler) http.Handler{
			limiter.RateLimitAccount(ratelimitmodels.ClassAccountWrite),
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(cfg.Addr, router), 10*time.Second, log)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ConsentTopic, log)
		if err != nil {
			return err
		}
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, cfg.Kafka.TopicPartitions, cfg.Kafka.ReplicationFactor); err != nil {
			return fmt.Errorf("ensure consent topic: %w", err)
		}
		worker := outbox.NewWorker(b.outbox, b.tx, producer,
			outbox.WithPollInterval(cfg.Kafka.OutboxPollInterval),
			outbox.WithBatchSize(cfg.Kafka.OutboxBatchSize),
			outbox.WithLogger(log),
			outbox.WithMetrics(m),
		)
		g.Go(func() error { return worker.Run(gctx) })
	} else {
		log.Warn("KAFKA_BROKERS not set, consent events stay in the outbox")
	}

	return g.Wait()
}

func postgresBackends(db *sql.DB, cfg config.Database, m *metrics.Metrics) *backends {
	return &backends{
		accounts: accountstore.NewPostgres(db),
		alumni:   alumnistore.NewPostgres(db),
		profiles: profilestore.NewPostgres(db),
		consent:  consentstore.NewPostgres(db),
		outbox:   outboxstore.NewPostgres(db),
		tx: postgres.NewTxRunner(db,
			postgres.WithTimeout(cfg.TxTimeout),
			postgres.WithObserver(m.ObserveTx),
		),
		health: []httptransport.HealthCheck{{Name: "postgres", Check: db.PingContext}},
		close:  func() { _ = db.Close() },
	}
}

func memoryBackends(seedFile string) (*backends, error) {
	accounts := accountstore.NewInMemory()
	directory := alumnistore.NewInMemory()
	profiles := profilestore.NewInMemory()
	ledger := consentstore.NewInMemory()
	events := outboxstore.NewInMemory()

	if seedFile != "" {
		records, err := loadSeed(seedFile)
		if err != nil {
			return nil, err
		}
		directory.Seed(records...)
	}
	return &backends{
		accounts: accounts,
		alumni:   directory,
		profiles: profiles,
		consent:  ledger,
		outbox:   events,
		tx:       txcontext.NewMemory(accounts, directory, profiles, ledger, events),
		close:    func() {},
	}, nil
}

func loadSeed(path string) ([]alumnimodels.Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alumni seed: %w", err)
	}
	var records []alumnimodels.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode alumni seed: %w", err)
	}
	return records, nil
}

func sessionBackend(client *redis.Client, log *slog.Logger) sessionservice.Store {
	if client == nil {
		log.Warn("REDIS_URL not set, refresh tokens are kept in memory")
		return sessionstore.NewInMemory()
	}
	return sessionstore.NewRedis(client.Client)
}

// rateLimiter counts in Redis when available, switching to process memory
// while Redis keeps failing.
func rateLimiter(cfg config.RateLimit, client *redis.Client, log *slog.Logger, m *metrics.Metrics) *ratelimitmw.Middleware {
	opts := []ratelimitmw.Option{
		ratelimitmw.WithLimit(ratelimitmodels.ClassAuth, ratelimitmodels.Limit{RequestsPerWindow: cfg.AuthPerWindow, Window: cfg.Window}),
		ratelimitmw.WithLimit(ratelimitmodels.ClassAccountWrite, ratelimitmodels.Limit{RequestsPerWindow: cfg.AccountWritesPerWindow, Window: cfg.Window}),
		ratelimitmw.WithMetrics(m),
		ratelimitmw.WithDisabled(cfg.Disabled),
	}
	if client == nil {
		return ratelimitmw.New(bucket.NewInMemory(), log, opts...)
	}
	opts = append(opts, ratelimitmw.WithFallback(bucket.NewInMemory(), circuit.New("ratelimit")))
	return ratelimitmw.New(bucket.NewRedis(client.Client), log, opts...)
}
