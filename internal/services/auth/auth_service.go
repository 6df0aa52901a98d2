package auth

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/utils"
)

// AuthService выдаёт и проверяет токены доступа. Учётные записи ведутся
// внешним сервисом, здесь известен только user_id из токена.
type AuthService struct {
	jwtService *utils.JWTService
	devTokens  bool
}

// NewAuthService – конструктор AuthService. devTokens включает выдачу
// токенов без проверки личности и допустим только в режиме разработки.
func NewAuthService(jwtService *utils.JWTService, devTokens bool) *AuthService {
	return &AuthService{
		jwtService: jwtService,
		devTokens:  devTokens,
	}
}

// DevTokenHandler выдаёт JWT для указанного или нового user_id
func (s *AuthService) DevTokenHandler(c fiber.Ctx) error {
	var payload struct {
		UserID string `json:"user_id"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
		}
	}

	userID := uuid.New()
	if payload.UserID != "" {
		parsed, err := uuid.Parse(payload.UserID)
		if err != nil || parsed == uuid.Nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user_id"})
		}
		userID = parsed
	}

	// Генерируем JWT
	jwtToken, err := s.jwtService.GenerateToken(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate JWT"})
	}

	return c.JSON(fiber.Map{
		"token":   jwtToken,
		"user_id": userID,
	})
}

// ProfileHandler возвращает пользователя из токена
func (s *AuthService) ProfileHandler(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"user_id": utils.UserID(c)})
}
