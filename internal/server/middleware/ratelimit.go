package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"membergate/api/internal/apperr"
	"membergate/api/internal/observability"
	ratelimitdomain "membergate/api/internal/ratelimit/domain"
	ratelimitrepo "membergate/api/internal/ratelimit/repository"
)

// RateLimit enforces the given per-IP limit on the wrapped handler. Every
// attempt is counted, including rejected ones, so hammering a limited
// endpoint pushes the reset further out. Store failures fail closed.
func RateLimit(repo ratelimitrepo.Repository, cfg ratelimitdomain.Config, metrics *observability.Metrics, log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)

			count, err := repo.CheckAndIncrement(r.Context(), key, cfg)
			if err != nil {
				log.WithError(err).WithField("action", cfg.Action).Error("rate limit check failed")
				writeRateLimitError(w, apperr.Internal("an internal error occurred"), 0)
				return
			}
			remaining := cfg.MaxRequests - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(cfg.MaxRequests, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > cfg.MaxRequests {
				metrics.RateLimitRejected.WithLabelValues(cfg.Action).Inc()
				retryAfter, err := repo.RetryAfter(r.Context(), key, cfg)
				if err != nil || retryAfter <= 0 {
					retryAfter = cfg.WindowSecs
				}
				writeRateLimitError(w, apperr.RateLimited(retryAfter), retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimitError(w http.ResponseWriter, e *apperr.Error, retryAfter int64) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    e.Code,
			"message": e.Message,
		},
	})
}
