package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"refhub/internal/audit"
	jwttoken "refhub/internal/jwt_token"
	"refhub/internal/notify"
	"refhub/internal/platform/config"
	"refhub/internal/platform/httpserver"
	"refhub/internal/platform/logger"
	platformredis "refhub/internal/platform/redis"
	referralhandler "refhub/internal/referral/handler"
	referralmetrics "refhub/internal/referral/metrics"
	"refhub/internal/referral/ports"
	"refhub/internal/referral/service"
	"refhub/internal/referral/store/countcache"
	"refhub/internal/referral/store/memory"
	"refhub/internal/referral/store/postgres"
	httptransport "refhub/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	var (
		store ports.Store
		db    *sql.DB
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		store = postgres.New(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store")
		store = memory.New()
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var notifier ports.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier, err = notify.NewWebhook(cfg.NotifyWebhookURL, notify.WithLogger(log))
		if err != nil {
			log.Error("failed to build notifier", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("NOTIFY_WEBHOOK_URL not set, goal notifications disabled")
		notifier = notify.NewDisabled(log)
	}

	m := referralmetrics.New()

	var auditStore audit.Store
	if db != nil {
		if err := audit.EnsureAuditSchema(ctx, db); err != nil {
			log.Error("failed to ensure audit schema", "error", err)
			os.Exit(1)
		}
		auditStore = audit.NewPostgresStore(db)
	} else {
		auditStore = audit.NewInMemoryStore()
	}
	auditPublisher := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)
	defer auditPublisher.Close()

	registry, err := service.NewRegistry(store,
		service.WithRegistryLogger(log),
		service.WithRegistryMetrics(m),
		service.WithRegistryAuditPublisher(auditPublisher),
	)
	if err != nil {
		log.Error("failed to build registry", "error", err)
		os.Exit(1)
	}

	engineOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditPublisher(auditPublisher),
		service.WithGoal(cfg.ReferralGoal),
	}
	if redisClient != nil {
		engineOpts = append(engineOpts, service.WithCountCache(
			countcache.NewRedis(redisClient.Client, countcache.WithTTL(config.CountCacheTTL)),
		))
	}
	engine, err := service.New(store, notifier, engineOpts...)
	if err != nil {
		log.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "refhub", "refhub-api")
	handler := referralhandler.New(registry, engine, log, jwttoken.NewJWTServiceAdapter(jwtService))

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Referral: handler,
		DB:       db,
		Redis:    redisClient,
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting refhub", "addr", cfg.Addr, "goal", cfg.ReferralGoal)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
