package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/bookswap-api/internal/middleware"
)

// SetupRoutes регистрирует маршруты в Fiber
func (s *AuthService) SetupRoutes(app *fiber.App) {
	if s.devTokens {
		app.Post("/api/auth/dev-token", s.DevTokenHandler)
	}

	// Защищенные маршруты
	protected := app.Group("/api/profile")
	protected.Use(middleware.AuthMiddleware(s.jwtService))
	protected.Get("/", s.ProfileHandler)
}
