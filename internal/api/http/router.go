package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/apnabook-auth/internal/api/http/handlers"
	"github.com/spec-kit/apnabook-auth/internal/auth"
	"github.com/spec-kit/apnabook-auth/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	AdminUsers     *handlers.AdminUsersHandler
	AuthMiddleware *auth.AuthMiddleware
	OTPLimiter     fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	limited := cfg.OTPLimiter
	if limited == nil {
		limited = func(c *fiber.Ctx) error { return c.Next() }
	}

	authGroup := app.Group("/api/auth")
	authGroup.Post("/request-otp", limited, cfg.Auth.RequestSignupOTP)
	authGroup.Post("/verify-otp", cfg.Auth.VerifySignupOTP)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/login-otp", limited, cfg.Auth.RequestLoginOTP)
	authGroup.Post("/login-otp/verify", cfg.Auth.VerifyLoginOTP)
	authGroup.Post("/verify-email", cfg.Auth.VerifyEmail)
	authGroup.Post("/forgot-password/request-otp", limited, cfg.Auth.RequestPasswordResetOTP)
	authGroup.Post("/forgot-password/reset", cfg.Auth.ResetPassword)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Auth.Me)

	admin := app.Group("/api/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/users", cfg.AdminUsers.List)
	admin.Patch("/users/:id/role", cfg.AdminUsers.UpdateRole)
	admin.Patch("/users/:id/status", cfg.AdminUsers.UpdateStatus)
}
