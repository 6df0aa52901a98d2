package book

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/bookswap-api/internal/catalog"
	"github.com/rajivgeraev/bookswap-api/internal/models"
	"github.com/rajivgeraev/bookswap-api/internal/utils"
)

// BookService представляет HTTP-сервис каталога книг
type BookService struct {
	catalog    *catalog.Service
	jwtService *utils.JWTService
	validator  *utils.Validator
	logger     *slog.Logger
	timeout    time.Duration
}

// NewBookService создает новый экземпляр BookService
func NewBookService(svc *catalog.Service, jwtService *utils.JWTService, logger *slog.Logger, timeout time.Duration) *BookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookService{
		catalog:    svc,
		jwtService: jwtService,
		validator:  utils.NewValidator(),
		logger:     logger.With("service", "book"),
		timeout:    timeout,
	}
}

// CreateBook выставляет книгу на обмен
func (s *BookService) CreateBook(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	in, msg := s.bindInput(c)
	if in == nil {
		return utils.BadRequest(c, msg)
	}
	book, err := s.catalog.CreateBook(ctx, utils.UserID(c), *in)
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"book": book})
}

// UpdateBook изменяет свободную книгу владельца
func (s *BookService) UpdateBook(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Неверный формат ID книги")
	}
	in, msg := s.bindInput(c)
	if in == nil {
		return utils.BadRequest(c, msg)
	}
	book, err := s.catalog.UpdateBook(ctx, utils.UserID(c), id, *in)
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.JSON(fiber.Map{"book": book})
}

// DeleteBook удаляет свободную книгу без истории обменов
func (s *BookService) DeleteBook(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Неверный формат ID книги")
	}
	if err := s.catalog.DeleteBook(ctx, utils.UserID(c), id); err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// SetAvailability снимает книгу с обмена или возвращает её
func (s *BookService) SetAvailability(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Неверный формат ID книги")
	}
	var body struct {
		Available *bool `json:"available" validate:"required"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}
	if err := s.validator.Validate(body); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	book, err := s.catalog.SetAvailability(ctx, utils.UserID(c), id, *body.Available)
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.JSON(fiber.Map{"book": book})
}

// GetBook возвращает книгу по ID
func (s *BookService) GetBook(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Неверный формат ID книги")
	}
	book, err := s.catalog.GetBook(ctx, id)
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.JSON(fiber.Map{"book": book})
}

// MyBooks возвращает книги текущего пользователя
func (s *BookService) MyBooks(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	limit, offset := pagination(c)
	books, err := s.catalog.MyBooks(ctx, utils.UserID(c), limit, offset)
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.JSON(booksResponse(books))
}

// ExploreBooks возвращает свободные книги других пользователей
func (s *BookService) ExploreBooks(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	limit, offset := pagination(c)
	books, err := s.catalog.ExploreBooks(ctx, utils.UserID(c), limit, offset)
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.JSON(booksResponse(books))
}

// bindInput разбирает и проверяет форму книги; при ошибке возвращает nil и сообщение
func (s *BookService) bindInput(c fiber.Ctx) (*catalog.BookInput, string) {
	var in catalog.BookInput
	if err := c.Bind().Body(&in); err != nil {
		return nil, "Неверный формат данных"
	}
	if err := s.validator.Validate(in); err != nil {
		return nil, err.Error()
	}
	return &in, ""
}

func pagination(c fiber.Ctx) (int, int) {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func booksResponse(books []models.Book) fiber.Map {
	if books == nil {
		books = []models.Book{}
	}
	return fiber.Map{"books": books, "count": len(books)}
}
