// Package httpapi exposes the session engine over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Engine is the part of *sessionguard.Engine the handlers call.
type Engine interface {
	Login(ctx context.Context, username, password string) (sessionguard.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (sessionguard.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	Verify(ctx context.Context, token string) (*jwt.Claims, error)
	Validate(ctx context.Context, token string) (sessionguard.Payload, error)
	Allow(ctx context.Context, clientID string) (sessionguard.RateDecision, error)
	Ping(ctx context.Context) (time.Duration, error)
}

type RouterDeps struct {
	Engine Engine
	Logger zerolog.Logger

	// Gatherer serves /metrics when set. HTTPMetrics records RED metrics.
	Gatherer    prometheus.Gatherer
	HTTPMetrics *middleware.HTTPMetrics

	RequireRequestID  bool
	TrustForwardedFor bool
	RateLimit         bool
}

func NewRouter(d RouterDeps) http.Handler {
	if d.Engine == nil {
		panic("httpapi.NewRouter: nil engine")
	}
	h := NewHandler(d.Engine)

	r := chi.NewRouter()

	// Probes bypass request-id enforcement and rate limiting.
	r.Get("/healthz", h.Health)
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if d.TrustForwardedFor {
			r.Use(chimw.RealIP)
		}
		r.Use(middleware.RequestID(d.RequireRequestID))
		r.Use(middleware.AccessLog(d.Logger))
		r.Use(chimw.Recoverer)
		if d.HTTPMetrics != nil {
			r.Use(d.HTTPMetrics.Handler)
		}
		if d.RateLimit {
			r.Use(middleware.RateLimit(d.Engine, d.TrustForwardedFor, d.Logger))
		}

		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
		r.Post("/validate", h.Validate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(d.Engine))
			r.Get("/me", h.Me)
			r.With(middleware.RequireRoles(jwt.RoleAdmin, jwt.RoleSuperuser)).Get("/admin/me", h.Me)
		})
	})

	return r
}
