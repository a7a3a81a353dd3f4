// worker runs the periodic cleanup jobs: expired tokens, stale rate-limit
// windows, and lapsed ip bans. Runs alongside the API server; all jobs are
// single-statement deletes, so running multiple workers is safe.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	abuserepo "membergate/api/internal/abuse/repository"
	"membergate/api/internal/config"
	"membergate/api/internal/db"
	"membergate/api/internal/observability"
	ratelimitrepo "membergate/api/internal/ratelimit/repository"
	tokenrepo "membergate/api/internal/token/repository"
)

const jobTimeout = time.Minute

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

	tokens := tokenrepo.NewPostgresRepository(conn)
	rateLimits := ratelimitrepo.NewPostgresRepository(conn)
	bans := abuserepo.NewPostgresRepository(conn)

	c := cron.New()

	mustAdd(c, "@every 1h", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		n, err := tokens.DeleteExpiredTokens(ctx)
		if err != nil {
			logger.WithError(err).Error("token cleanup failed")
			return
		}
		logger.WithField("deleted", n).Info("expired tokens cleaned up")
	})

	mustAdd(c, "@every 1h", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		n, err := rateLimits.CleanupExpired(ctx)
		if err != nil {
			logger.WithError(err).Error("rate limit cleanup failed")
			return
		}
		logger.WithField("deleted", n).Info("stale rate limit windows cleaned up")
	})

	mustAdd(c, "@every 5m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		n, err := bans.DeleteExpired(ctx)
		if err != nil {
			logger.WithError(err).Error("ip ban cleanup failed")
			return
		}
		if n > 0 {
			logger.WithField("deleted", n).Info("expired ip bans cleaned up")
		}
	})

	c.Start()
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("worker stopping")
	<-c.Stop().Done()
}

func mustAdd(c *cron.Cron, spec string, job func()) {
	if _, err := c.AddFunc(spec, job); err != nil {
		log.Fatalf("cron: %v", err)
	}
}
