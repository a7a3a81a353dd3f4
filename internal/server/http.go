// Package server assembles the HTTP surface: router, middleware chain, and
// lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"membergate/api/internal/abuse"
	auditrepo "membergate/api/internal/audit/repository"
	authservice "membergate/api/internal/auth/service"
	"membergate/api/internal/observability"
	ratelimitdomain "membergate/api/internal/ratelimit/domain"
	ratelimitrepo "membergate/api/internal/ratelimit/repository"
	"membergate/api/internal/server/handlers"
	"membergate/api/internal/server/middleware"
)

// Deps carries everything the router needs.
type Deps struct {
	Auth       *authservice.AuthService
	Audits     auditrepo.Repository
	Detector   *abuse.Detector
	RateLimits ratelimitrepo.Repository
	Metrics    *observability.Metrics
	Registry   *prometheus.Registry
	Log        *logrus.Logger
}

// Server wraps the HTTP listener.
type Server struct {
	srv *http.Server
	log *logrus.Logger
}

// New builds the router and returns a server bound to addr.
func New(addr string, d Deps) *Server {
	r := mux.NewRouter()

	// Outermost first: every request gets an ID, headers, and the ban check
	// before any routing happens.
	r.Use(middleware.RequestID)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.AutoBan(d.Detector, d.Metrics, d.Log))

	r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	auth := handlers.NewAuthHandler(d.Auth, d.Metrics)
	audit := handlers.NewAuditHandler(d.Audits)
	limited := func(cfg ratelimitdomain.Config, h http.HandlerFunc) http.Handler {
		return middleware.RateLimit(d.RateLimits, cfg, d.Metrics, d.Log)(h)
	}
	requireAuth := middleware.RequireAuth(d.Auth)

	v1 := r.PathPrefix("/v1/auth").Subrouter()
	v1.Handle("/register", limited(ratelimitdomain.Registration, auth.Register)).Methods(http.MethodPost)
	v1.Handle("/login", limited(ratelimitdomain.Login, auth.Login)).Methods(http.MethodPost)
	v1.Handle("/refresh", limited(ratelimitdomain.APIUnauth, auth.Refresh)).Methods(http.MethodPost)
	v1.Handle("/logout", limited(ratelimitdomain.APIUnauth, auth.Logout)).Methods(http.MethodPost)
	v1.Handle("/magic-link", limited(ratelimitdomain.MagicLink, auth.RequestMagicLink)).Methods(http.MethodPost)
	v1.Handle("/magic-link/verify", limited(ratelimitdomain.APIUnauth, auth.VerifyMagicLink)).Methods(http.MethodPost)
	v1.Handle("/password-reset", limited(ratelimitdomain.PasswordReset, auth.RequestPasswordReset)).Methods(http.MethodPost)
	v1.Handle("/password-reset/verify", limited(ratelimitdomain.APIUnauth, auth.VerifyResetToken)).Methods(http.MethodPost)
	v1.Handle("/password-reset/confirm", limited(ratelimitdomain.APIUnauth, auth.CompletePasswordReset)).Methods(http.MethodPost)

	v1.Handle("/logout-all", requireAuth(limited(ratelimitdomain.APIAuth, auth.LogoutAll))).Methods(http.MethodPost)
	v1.Handle("/sessions", requireAuth(limited(ratelimitdomain.APIAuth, auth.Sessions))).Methods(http.MethodGet)
	v1.Handle("/me", requireAuth(limited(ratelimitdomain.APIAuth, auth.Me))).Methods(http.MethodGet)
	v1.Handle("/change-password", requireAuth(limited(ratelimitdomain.APIAuth, auth.ChangePassword))).Methods(http.MethodPost)
	v1.Handle("/activity", requireAuth(limited(ratelimitdomain.APIAuth, audit.Activity))).Methods(http.MethodGet)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		log: d.Log,
	}
}

// Start serves until the listener is closed.
func (s *Server) Start() error {
	s.log.WithField("addr", s.srv.Addr).Info("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
