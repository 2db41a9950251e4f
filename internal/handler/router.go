package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/synk/synk-server-go/internal/config"
	"github.com/synk/synk-server-go/internal/gateway"
	"github.com/synk/synk-server-go/internal/middleware"
	"github.com/synk/synk-server-go/internal/service"
)

type RouterDeps struct {
	Config   *config.Config
	Accounts *service.AccountService
	Pairing  *service.PairingService
	Hub      *gateway.Hub
	Auth     *middleware.AuthMiddleware
	// RateLimit is nil when rate limiting is disabled.
	RateLimit *middleware.RateLimitMiddleware
	DB        Pinger
}

func NewRouter(deps RouterDeps) http.Handler {
	accountHandler := NewAccountHandler(deps.Accounts)
	pairHandler := NewPairHandler(deps.Pairing)
	gatewayHandler := NewGatewayHandler(deps.Hub, deps.Config.AllowedOrigins)
	healthHandler := NewHealthHandler(deps.DB, deps.Hub)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxRequestBodyBytes)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(deps.Config.IsProduction())

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	if deps.Config.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.StripSlashes)

	r.Get("/health", healthHandler.ServeHTTP)

	// Long-lived: no request timeout.
	r.With(deps.Auth.Handler, middleware.Require).Get("/ws", gatewayHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(securityHeadersMiddleware.Handler)
		r.Use(bodyLimitMiddleware.Handler)
		r.Use(deps.Auth.Handler)
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Handler)
		}

		r.Post("/register", accountHandler.Register)
		r.Post("/auth/token", accountHandler.Token)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Require)
			r.Mount("/pair", pairHandler.Routes())
			r.Mount("/users", accountHandler.UserRoutes())
		})
	})

	return r
}
