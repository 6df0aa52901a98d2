package notification

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/bookswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для ленты уведомлений
func (s *NotificationService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/notifications")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("/", s.List)
	api.Get("/unread-count", s.UnreadCount)
	api.Post("/read", s.MarkRead)
}
