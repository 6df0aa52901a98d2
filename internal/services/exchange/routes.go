package exchange

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/bookswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API обменов
func (s *ExchangeService) SetupRoutes(app *fiber.App) {
	// Группа для API обменов
	api := app.Group("/api/exchanges")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Post("/", s.CreateRequest)
	api.Get("/", s.ListRequests)
	api.Get("/pending-count", s.PendingCount)
	api.Get("/:id", s.GetRequest)
	api.Get("/:id/status", s.GetStatus)

	// Переходы жизненного цикла
	api.Post("/:id/counter-offer", s.CounterOffer)
	api.Post("/:id/cash-offer", s.OfferCash)
	api.Post("/:id/accept", s.Accept)
	api.Post("/:id/reject", s.Reject)
	api.Post("/:id/approve-cash", s.ApproveCash)
	api.Post("/:id/confirm", s.ConfirmReceipt)
	api.Post("/:id/cancel", s.Cancel)
}
