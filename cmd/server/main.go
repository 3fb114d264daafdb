package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sistema-escolar/escuela-backend/internal/config"
	"github.com/sistema-escolar/escuela-backend/internal/csrf"
	"github.com/sistema-escolar/escuela-backend/internal/database"
	"github.com/sistema-escolar/escuela-backend/internal/handler"
	"github.com/sistema-escolar/escuela-backend/internal/logger"
	"github.com/sistema-escolar/escuela-backend/internal/queue"
	"github.com/sistema-escolar/escuela-backend/internal/ratelimit"
	"github.com/sistema-escolar/escuela-backend/internal/repository"
	"github.com/sistema-escolar/escuela-backend/internal/router"
	"github.com/sistema-escolar/escuela-backend/internal/service"
	"github.com/sistema-escolar/escuela-backend/internal/session"
	"github.com/sistema-escolar/escuela-backend/internal/validator"
	"github.com/sistema-escolar/escuela-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("session_backend", cfg.SessionBackend).
		Dur("idle_timeout", cfg.SessionIdleTimeout).
		Msg("Starting escuela backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	health := map[string]handler.HealthCheck{
		"postgres": pool.Ping,
	}

	// ─── Session Store & Counters ──────────────────────────────────────
	var (
		store   session.Store
		counter ratelimit.Counter
		rdb     *redis.Client
	)
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		rdb, err = database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		store = session.NewRedisStore(rdb, cfg.SessionIdleTimeout)
		counter = ratelimit.NewRedisCounter(rdb)
		health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	default:
		log.Warn().Msg("Using in-process session store; sessions are lost on restart")
		store = session.NewMemoryStore()
		counter = ratelimit.NewMemoryCounter()
	}

	if cfg.CookieHashKey == "" {
		log.Warn().Msg("COOKIE_HASH_KEY not set; using a random key, cookies will not survive a restart")
	}
	cookies := session.NewCookieCodec(cfg.SessionCookieName, cfg.CookieSecure, []byte(cfg.CookieHashKey), []byte(cfg.CookieBlockKey))
	sessions := session.NewManager(store, cfg.SessionIdleTimeout, cfg.SessionRotateEvery, cfg.StoreTimeout)

	// ─── Audit Sinks ───────────────────────────────────────────────────
	auditRepo := repository.NewAuditRepository(pool)
	sinks := []service.AuditSink{auditRepo}

	var publisher *queue.Publisher
	if cfg.AMQPURL != "" {
		publisher = queue.NewPublisher(cfg.AMQPURL, cfg.AuditQueue, cfg.StoreTimeout, log)
		sinks = append(sinks, publisher)
	}
	auditor := service.NewAuditor(log, cfg.StoreTimeout, sinks...)

	// ─── Initialize Services ──────────────────────────────────────────
	hasher, err := service.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid BCRYPT_COST")
	}
	accountRepo := repository.NewAccountRepository(pool)

	authService := service.NewAuthService(cfg, accountRepo, sessions, counter, hasher, auditor, log)
	authService.SetAttemptLog(auditRepo)
	csrfService := service.NewCSRFService(csrf.NewIssuer(sessions, cfg.CSRFTokenTTL), sessions, auditor, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService, cookies, cfg.SessionIdleTimeout, log),
		CSRF:    handler.NewCSRFHandler(csrfService, cookies, log),
		Account: handler.NewAccountHandler(authService),
		Health:  handler.NewHealthHandler(health, cfg.StoreTimeout, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	janitor, err := worker.NewJanitor(cfg.JanitorSchedule, cfg.AuditRetention, auditRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid JANITOR_SCHEDULE")
	}
	if mem, ok := store.(*session.MemoryStore); ok {
		janitor.AddSweep("sessions", func() int { return mem.Sweep(time.Now(), cfg.SessionIdleTimeout) })
	}
	if mem, ok := counter.(*ratelimit.MemoryCounter); ok {
		janitor.AddSweep("counters", mem.Sweep)
	}
	go func() {
		janitor.Start(workerCtx)
		close(workerDone)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(cfg, &router.Deps{
		Sessions:    sessions,
		Cookies:     cookies,
		AuthService: authService,
		CSRFService: csrfService,
		Counter:     counter,
	}, handlers, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the janitor and close the audit publisher.
	workerCancel()
	<-workerDone
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close audit publisher")
		}
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
