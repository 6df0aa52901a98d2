package utils

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
)

// DefaultRequestTimeout - ограничение по умолчанию на работу с хранилищем в одном запросе
const DefaultRequestTimeout = 5 * time.Second

// RequestContext возвращает контекст запроса с таймаутом для обращений к хранилищу
func RequestContext(c fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return context.WithTimeout(c.Context(), timeout)
}
