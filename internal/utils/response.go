package utils

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/apperr"
)

// RespondError переводит ошибку приложения в HTTP-ответ. Нарушения
// состояния отдаются как предупреждение, сбои хранилища скрываются.
func RespondError(c fiber.Ctx, logger *slog.Logger, err error) error {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindValidation:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": apperr.MessageOf(err)})
	case apperr.KindForbidden:
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": apperr.MessageOf(err)})
	case apperr.KindNotFound:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": apperr.MessageOf(err)})
	case apperr.KindState:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"warning": apperr.MessageOf(err)})
	case apperr.KindUnavailable, apperr.KindConcurrentModification:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": apperr.MessageOf(err)})
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("внутренняя ошибка", "method", c.Method(), "path", c.Path(), "err", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Внутренняя ошибка сервера"})
}

// BadRequest отвечает 400 с сообщением
func BadRequest(c fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": message})
}

// UserID возвращает id пользователя, положенный AuthMiddleware
func UserID(c fiber.Ctx) uuid.UUID {
	id, _ := c.Locals("userID").(uuid.UUID)
	return id
}

// ParamUUID разбирает параметр пути как UUID
func ParamUUID(c fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
