package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pbengoa/Tourline-front-sub001/pkg/health"
	"github.com/pbengoa/Tourline-front-sub001/pkg/middleware"
)

const tracerName = "tourline-agent"

// RouterConfig holds the dependencies of the agent router.
type RouterConfig struct {
	Sessions     SessionService
	Connectivity ConnectivityService
	Lifecycle    Lifecycle
	Bookings     BookingService
	Health       *health.Handler
	Logger       *slog.Logger

	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates a chi router with all agent routes registered. ctx bounds
// the rate limiter's background eviction.
func NewRouter(ctx context.Context, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(middleware.Tracing(tracerName))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.Metrics)

	// Probes stay outside the rate limit.
	r.Get("/healthz", cfg.Health.LivenessHandler())
	r.Get("/readyz", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	sessions := NewSessionHandler(cfg.Sessions, cfg.Logger)
	conn := NewConnectivityHandler(cfg.Connectivity, cfg.Lifecycle, cfg.Logger)
	bookings := NewBookingHandler(cfg.Bookings, cfg.Connectivity, cfg.Logger)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.Logger))

		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessions.Get)
			r.Post("/login", sessions.Login)
			r.Post("/register", sessions.Register)
			r.Post("/logout", sessions.Logout)
			r.Post("/refresh", sessions.Refresh)
			r.Post("/password/forgot", sessions.ForgotPassword)
			r.Post("/password/reset", sessions.ResetPassword)
			r.Post("/email/verify", sessions.VerifyEmail)
			r.Post("/email/resend", sessions.ResendVerification)
		})

		r.Get("/connectivity", conn.Get)
		r.Post("/connectivity/check", conn.Check)
		r.Post("/lifecycle/foreground", conn.Foreground)
		r.Post("/lifecycle/background", conn.Background)

		r.Route("/bookings", func(r chi.Router) {
			r.Use(RequireSession(cfg.Sessions, cfg.Logger))
			r.Get("/", bookings.List)
			r.Post("/", bookings.Create)
			r.Post("/{id}/cancel", bookings.Cancel)
		})
	})

	return r
}
