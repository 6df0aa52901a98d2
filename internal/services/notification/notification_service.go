package notification

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/bookswap-api/internal/models"
	"github.com/rajivgeraev/bookswap-api/internal/notify"
	"github.com/rajivgeraev/bookswap-api/internal/utils"
)

// NotificationService отдаёт ленту уведомлений пользователя
type NotificationService struct {
	feed       notify.Feed
	jwtService *utils.JWTService
	logger     *slog.Logger
	timeout    time.Duration
}

// NewNotificationService создает новый экземпляр NotificationService
func NewNotificationService(feed notify.Feed, jwtService *utils.JWTService, logger *slog.Logger, timeout time.Duration) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		feed:       feed,
		jwtService: jwtService,
		logger:     logger.With("service", "notification"),
		timeout:    timeout,
	}
}

// List возвращает уведомления, новые первыми. ?unread=true - только непрочитанные.
func (s *NotificationService) List(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	unreadOnly := c.Query("unread") == "true"

	notes, err := s.feed.List(ctx, utils.UserID(c), limit, unreadOnly)
	if err != nil {
		return s.internal(c, err)
	}
	if notes == nil {
		notes = []models.Notification{}
	}
	return c.JSON(fiber.Map{"notifications": notes, "count": len(notes)})
}

// UnreadCount возвращает число непрочитанных уведомлений
func (s *NotificationService) UnreadCount(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	n, err := s.feed.UnreadCount(ctx, utils.UserID(c))
	if err != nil {
		return s.internal(c, err)
	}
	return c.JSON(fiber.Map{"count": n})
}

// MarkRead отмечает прочитанными перечисленные уведомления или все сразу
func (s *NotificationService) MarkRead(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	var body struct {
		IDs []string `json:"ids"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&body); err != nil {
			return utils.BadRequest(c, "Неверный формат данных")
		}
	}

	n, err := s.feed.MarkRead(ctx, utils.UserID(c), body.IDs)
	if err != nil {
		return s.internal(c, err)
	}
	return c.JSON(fiber.Map{"updated": n})
}

func (s *NotificationService) internal(c fiber.Ctx, err error) error {
	s.logger.Error("ошибка ленты уведомлений", "path", c.Path(), "err", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Не удалось получить уведомления"})
}
