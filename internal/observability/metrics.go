package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters exported at /metrics.
type Metrics struct {
	AuthAttempts       *prometheus.CounterVec
	RateLimitRejected  *prometheus.CounterVec
	SuspiciousRequests prometheus.Counter
	BansIssued         prometheus.Counter
	BannedRejected     prometheus.Counter
}

// NewMetrics registers the counters on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "membergate_auth_attempts_total",
			Help: "Authentication attempts by flow and outcome.",
		}, []string{"flow", "outcome"}),
		RateLimitRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "membergate_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter, by action.",
		}, []string{"action"}),
		SuspiciousRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "membergate_suspicious_requests_total",
			Help: "Requests whose path matched a suspicious pattern.",
		}),
		BansIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "membergate_ip_bans_issued_total",
			Help: "IP bans issued by the abuse detector.",
		}),
		BannedRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "membergate_banned_requests_total",
			Help: "Requests rejected because the client IP is banned.",
		}),
	}
}
