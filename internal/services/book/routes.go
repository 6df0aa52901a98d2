package book

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/bookswap-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API книг
func (s *BookService) SetupRoutes(app *fiber.App) {
	// Группа для API книг
	api := app.Group("/api/books")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	// Лента свободных книг других пользователей
	api.Get("/", s.ExploreBooks)
	api.Post("/", s.CreateBook)
	api.Get("/my", s.MyBooks)
	api.Get("/:id", s.GetBook)
	api.Put("/:id", s.UpdateBook)
	api.Delete("/:id", s.DeleteBook)

	// Снятие с обмена и возврат
	api.Put("/:id/availability", s.SetAvailability)
}
