package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"membergate/api/internal/abuse"
	abuserepo "membergate/api/internal/abuse/repository"
	"membergate/api/internal/audit"
	auditrepo "membergate/api/internal/audit/repository"
	authservice "membergate/api/internal/auth/service"
	"membergate/api/internal/config"
	"membergate/api/internal/db"
	"membergate/api/internal/mail"
	"membergate/api/internal/observability"
	ratelimitrepo "membergate/api/internal/ratelimit/repository"
	"membergate/api/internal/security"
	"membergate/api/internal/server"
	tokenrepo "membergate/api/internal/token/repository"
	userrepo "membergate/api/internal/user/repository"
)

const detectorSweepInterval = 5 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel)

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}
	defer conn.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	users := userrepo.NewPostgresRepository(conn)
	tokens := tokenrepo.NewPostgresRepository(conn)
	rateLimits := ratelimitrepo.NewPostgresRepository(conn)
	bans := abuserepo.NewPostgresRepository(conn)
	audits := auditrepo.NewPostgresRepository(conn)

	detector := abuse.NewDetector(abuse.Config{
		Enabled:         cfg.AutoBanEnabled,
		Threshold:       cfg.AutoBanThreshold,
		WindowSecs:      cfg.AutoBanWindowSecs,
		BanDurationSecs: cfg.AutoBanDurationSecs,
	}, bans, logger)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	if err := detector.LoadBans(startCtx); err != nil {
		logger.WithError(err).Fatal("failed to load ip bans")
	}
	cancelStart()

	provider := security.NewTokenProvider([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.AccessTTL(), cfg.RefreshTTL())
	hasher := security.NewHasher(cfg.BcryptCost)
	auditLog := audit.NewLogger(audits, logger)
	mailer := mail.NewLogMailer(logger)

	auth := authservice.NewAuthService(users, tokens, hasher, provider, mailer, auditLog, logger)

	srv := server.New(cfg.Addr, server.Deps{
		Auth:       auth,
		Audits:     audits,
		Detector:   detector,
		RateLimits: rateLimits,
		Metrics:    metrics,
		Registry:   registry,
		Log:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	g.Go(func() error {
		ticker := time.NewTicker(detectorSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				detector.CleanupExpired()
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
	logger.Info("server stopped")
}
