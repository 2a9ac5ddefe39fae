package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/karyatek/storefront/internal/identity/auth"
	"github.com/karyatek/storefront/internal/identity/service"
	"github.com/karyatek/storefront/pkg/middleware"
)

// Credential endpoints get a tight per-IP budget; brute force shows up here
// first.
const (
	authRateLimitRPS   = 5
	authRateLimitBurst = 10
)

// RegisterRoutes mounts the auth, profile, and address endpoints.
func RegisterRoutes(r chi.Router, svc *service.IdentityService, jwt *auth.JWTManager, logger *slog.Logger) {
	authHandler := NewAuthHandler(svc, logger)
	addressHandler := NewAddressHandler(svc, logger)

	resolveOwner := ResolveOwner(jwt)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(authRateLimitRPS, authRateLimitBurst, logger))

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/provider", authHandler.ProviderExchange)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
	})

	r.Route("/api/v1/users/me", func(r chi.Router) {
		r.Use(resolveOwner, RequireAuth)

		r.Get("/", authHandler.Me)
		r.Put("/", authHandler.UpdateProfile)
		r.Post("/password", authHandler.ChangePassword)
	})

	r.Route("/api/v1/addresses", func(r chi.Router) {
		r.Use(resolveOwner, RequireAuth)

		r.Get("/", addressHandler.List)
		r.Post("/", addressHandler.Create)
		r.Put("/{id}", addressHandler.Update)
		r.Delete("/{id}", addressHandler.Delete)
		r.Put("/{id}/default", addressHandler.SetDefault)
	})
}
