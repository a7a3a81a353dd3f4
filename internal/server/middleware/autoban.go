package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"membergate/api/internal/abuse"
	"membergate/api/internal/observability"
)

// AutoBan rejects requests from banned addresses and records strikes for
// suspicious paths. A suspicious request is always rejected, whether or not
// this particular strike tipped the address into a ban.
func AutoBan(detector *abuse.Detector, metrics *observability.Metrics, log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !detector.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			ip := ClientIP(r)

			if detector.IsBanned(ip) {
				metrics.BannedRejected.Inc()
				w.WriteHeader(http.StatusForbidden)
				return
			}

			if detector.IsSuspicious(r.URL.Path) {
				metrics.SuspiciousRequests.Inc()
				if detector.RecordStrike(ip, r.URL.Path) {
					metrics.BansIssued.Inc()
					log.WithFields(logrus.Fields{"ip": ip, "path": r.URL.Path}).
						Info("suspicious request triggered auto-ban")
				} else {
					log.WithFields(logrus.Fields{"ip": ip, "path": r.URL.Path}).
						Info("suspicious request recorded as strike")
				}
				w.WriteHeader(http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
