// Package server собирает Fiber-приложение из сервисов.
package server

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	jsoniter "github.com/json-iterator/go"

	"github.com/rajivgeraev/bookswap-api/internal/catalog"
	"github.com/rajivgeraev/bookswap-api/internal/exchange"
	"github.com/rajivgeraev/bookswap-api/internal/notify"
	"github.com/rajivgeraev/bookswap-api/internal/services/auth"
	"github.com/rajivgeraev/bookswap-api/internal/services/book"
	exchangesvc "github.com/rajivgeraev/bookswap-api/internal/services/exchange"
	"github.com/rajivgeraev/bookswap-api/internal/services/notification"
	"github.com/rajivgeraev/bookswap-api/internal/services/wishlist"
	"github.com/rajivgeraev/bookswap-api/internal/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Deps - зависимости HTTP-слоя
type Deps struct {
	Engine     *exchange.Engine
	Catalog    *catalog.Service
	Feed       notify.Feed
	JWTService *utils.JWTService
	Logger     *slog.Logger
	// DevTokens включает /api/auth/dev-token
	DevTokens bool
	// AccessLog включает журнал запросов
	AccessLog bool
	// RequestTimeout ограничивает работу с хранилищем в одном запросе
	RequestTimeout time.Duration
}

// New создаёт приложение со всеми маршрутами
func New(d Deps) *fiber.App {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "BookSwap API",
		ErrorHandler: errorHandler,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	// Добавляем middleware
	app.Use(recover.New())
	if d.AccessLog {
		app.Use(logger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Регистрируем маршруты
	auth.NewAuthService(d.JWTService, d.DevTokens).SetupRoutes(app)
	book.NewBookService(d.Catalog, d.JWTService, d.Logger, d.RequestTimeout).SetupRoutes(app)
	wishlist.NewWishlistService(d.Catalog, d.JWTService, d.Logger, d.RequestTimeout).SetupRoutes(app)
	exchangesvc.NewExchangeService(d.Engine, d.JWTService, d.Logger, d.RequestTimeout).SetupRoutes(app)
	notification.NewNotificationService(d.Feed, d.JWTService, d.Logger, d.RequestTimeout).SetupRoutes(app)

	return app
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	// Проверяем, является ли ошибка из Fiber
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Отправляем ошибку в JSON
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
