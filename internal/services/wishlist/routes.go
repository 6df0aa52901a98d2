package wishlist

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/bookswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API списка желаемого
func (s *WishlistService) SetupRoutes(app *fiber.App) {
	// Группа для API списка желаемого
	api := app.Group("/api/wishlist")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("/", s.GetWishlist)
	api.Post("/", s.AddToWishlist)
	api.Delete("/:id", s.RemoveFromWishlist)
}
