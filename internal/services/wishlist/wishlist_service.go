package wishlist

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/catalog"
	"github.com/rajivgeraev/bookswap-api/internal/models"
	"github.com/rajivgeraev/bookswap-api/internal/utils"
)

// WishlistService представляет сервис для работы со списком желаемого
type WishlistService struct {
	catalog    *catalog.Service
	jwtService *utils.JWTService
	logger     *slog.Logger
	timeout    time.Duration
}

// NewWishlistService создает новый экземпляр WishlistService
func NewWishlistService(svc *catalog.Service, jwtService *utils.JWTService, logger *slog.Logger, timeout time.Duration) *WishlistService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WishlistService{
		catalog:    svc,
		jwtService: jwtService,
		logger:     logger.With("service", "wishlist"),
		timeout:    timeout,
	}
}

// AddToWishlist добавляет книгу в список желаемого
func (s *WishlistService) AddToWishlist(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	var body struct {
		BookID string `json:"book_id"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}
	bookID, err := uuid.Parse(body.BookID)
	if err != nil {
		return utils.BadRequest(c, "Неверный формат ID книги")
	}

	item, err := s.catalog.AddToWishlist(ctx, utils.UserID(c), bookID)
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"item": item})
}

// RemoveFromWishlist удаляет книгу из списка желаемого. id - ID книги.
func (s *WishlistService) RemoveFromWishlist(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	bookID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Неверный формат ID книги")
	}
	if err := s.catalog.RemoveFromWishlist(ctx, utils.UserID(c), bookID); err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetWishlist возвращает список желаемого текущего пользователя
func (s *WishlistService) GetWishlist(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	items, err := s.catalog.Wishlist(ctx, utils.UserID(c))
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	if items == nil {
		items = []models.WishlistItem{}
	}
	return c.JSON(fiber.Map{"items": items, "count": len(items)})
}
