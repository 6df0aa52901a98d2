package exchange

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/exchange"
	"github.com/rajivgeraev/bookswap-api/internal/models"
	"github.com/rajivgeraev/bookswap-api/internal/utils"
)

// ExchangeService представляет HTTP-сервис для работы с обменами
type ExchangeService struct {
	engine     *exchange.Engine
	jwtService *utils.JWTService
	validator  *utils.Validator
	logger     *slog.Logger
	timeout    time.Duration
}

// NewExchangeService создает новый экземпляр ExchangeService
func NewExchangeService(engine *exchange.Engine, jwtService *utils.JWTService, logger *slog.Logger, timeout time.Duration) *ExchangeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExchangeService{
		engine:     engine,
		jwtService: jwtService,
		validator:  utils.NewValidator(),
		logger:     logger.With("service", "exchange"),
		timeout:    timeout,
	}
}

type createRequestBody struct {
	BookID    string `json:"book_id" validate:"required,uuid"`
	WantsCash bool   `json:"wants_cash"`
	Message   string `json:"message" validate:"max=1000"`
}

type counterOfferBody struct {
	ExpectedBookID string `json:"expected_book_id" validate:"required,uuid"`
}

type reasonBody struct {
	Reason string `json:"reason" validate:"max=500"`
}

// CreateRequest создает запрос на обмен книги
func (s *ExchangeService) CreateRequest(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	var body createRequestBody
	if err := c.Bind().Body(&body); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}
	if err := s.validator.Validate(body); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	r, err := s.engine.CreateRequest(ctx, utils.UserID(c), uuid.MustParse(body.BookID), body.WantsCash, strings.TrimSpace(body.Message))
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"request": r})
}

// ListRequests возвращает запросы пользователя. role: owner, requester или all.
func (s *ExchangeService) ListRequests(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	userID := utils.UserID(c)
	filter := models.RequestFilter{}

	switch c.Query("role", "all") {
	case "owner":
		filter.OwnerID = &userID
	case "requester":
		filter.RequesterID = &userID
	case "all":
		filter.PartyID = &userID
	default:
		return utils.BadRequest(c, "Неверное значение role")
	}

	if raw := c.Query("status"); raw != "" {
		for _, st := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, models.ExchangeStatus(strings.TrimSpace(st)))
		}
	}
	if raw := c.Query("book_id"); raw != "" {
		bookID, err := uuid.Parse(raw)
		if err != nil {
			return utils.BadRequest(c, "Неверный формат book_id")
		}
		filter.BookID = &bookID
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit", "0"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset", "0"))

	requests, err := s.engine.ListRequests(ctx, filter)
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	if requests == nil {
		requests = []models.ExchangeRequest{}
	}
	return c.JSON(fiber.Map{"requests": requests, "count": len(requests)})
}

// PendingCount возвращает число входящих запросов, ожидающих ответа
func (s *ExchangeService) PendingCount(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	n, err := s.engine.CountPendingForOwner(ctx, utils.UserID(c))
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.JSON(fiber.Map{"count": n})
}

// GetRequest возвращает запрос одной из сторон обмена
func (s *ExchangeService) GetRequest(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Неверный формат ID запроса")
	}
	r, err := s.engine.GetRequest(ctx, id, utils.UserID(c))
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.JSON(fiber.Map{"request": r})
}

// GetStatus возвращает статус и флаги подтверждения
func (s *ExchangeService) GetStatus(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Неверный формат ID запроса")
	}
	r, err := s.engine.GetRequest(ctx, id, utils.UserID(c))
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.JSON(r.View())
}

// CounterOffer - владелец предлагает книгу запрашивающего взамен
func (s *ExchangeService) CounterOffer(c fiber.Ctx) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Неверный формат ID запроса")
	}
	var body counterOfferBody
	if err := c.Bind().Body(&body); err != nil {
		return utils.BadRequest(c, "Неверный формат данных")
	}
	if err := s.validator.Validate(body); err != nil {
		return utils.BadRequest(c, err.Error())
	}

	res, err := s.engine.CounterOffer(ctx, id, utils.UserID(c), uuid.MustParse(body.ExpectedBookID))
	return s.respond(c, res, err)
}

// OfferCash - владелец предлагает продать книгу
func (s *ExchangeService) OfferCash(c fiber.Ctx) error {
	return s.simple(c, s.engine.OfferCash)
}

// Accept - запрашивающий принимает предложение
func (s *ExchangeService) Accept(c fiber.Ctx) error {
	return s.simple(c, s.engine.Accept)
}

// ApproveCash - владелец одобряет покупку книги
func (s *ExchangeService) ApproveCash(c fiber.Ctx) error {
	return s.simple(c, s.engine.ApproveCash)
}

// ConfirmReceipt - сторона подтверждает получение
func (s *ExchangeService) ConfirmReceipt(c fiber.Ctx) error {
	return s.simple(c, s.engine.ConfirmReceipt)
}

// Reject отклоняет запрос
func (s *ExchangeService) Reject(c fiber.Ctx) error {
	return s.withReason(c, s.engine.Reject)
}

// Cancel отменяет активный обмен
func (s *ExchangeService) Cancel(c fiber.Ctx) error {
	return s.withReason(c, s.engine.Cancel)
}

type transitionFunc func(ctx context.Context, requestID, callerID uuid.UUID) (*exchange.Result, error)

type reasonFunc func(ctx context.Context, requestID, callerID uuid.UUID, reason string) (*exchange.Result, error)

func (s *ExchangeService) simple(c fiber.Ctx, fn transitionFunc) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Неверный формат ID запроса")
	}
	res, err := fn(ctx, id, utils.UserID(c))
	return s.respond(c, res, err)
}

// withReason разбирает необязательную причину из тела
func (s *ExchangeService) withReason(c fiber.Ctx, fn reasonFunc) error {
	ctx, cancel := utils.RequestContext(c, s.timeout)
	defer cancel()

	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return utils.BadRequest(c, "Неверный формат ID запроса")
	}
	var body reasonBody
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&body); err != nil {
			return utils.BadRequest(c, "Неверный формат данных")
		}
		if err := s.validator.Validate(body); err != nil {
			return utils.BadRequest(c, err.Error())
		}
	}
	res, err := fn(ctx, id, utils.UserID(c), strings.TrimSpace(body.Reason))
	return s.respond(c, res, err)
}

func (s *ExchangeService) respond(c fiber.Ctx, res *exchange.Result, err error) error {
	if err != nil {
		return utils.RespondError(c, s.logger, err)
	}
	return c.JSON(res)
}
