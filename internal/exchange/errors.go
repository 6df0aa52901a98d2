package exchange

import (
	"github.com/rajivgeraev/bookswap-api/internal/apperr"
	"github.com/rajivgeraev/bookswap-api/internal/inventory"
)

// Ошибки движка обменов. Все, кроме сбоя хранилища, восстановимы на
// границе вызова и показываются пользователю как сообщение.
var (
	ErrSelfExchange           = apperr.New(apperr.KindValidation, "you cannot request your own book")
	ErrBookUnavailable        = inventory.ErrUnavailable
	ErrDuplicateRequest       = apperr.New(apperr.KindState, "you already have an active request for this book")
	ErrInvalidState           = apperr.New(apperr.KindState, "request was already handled")
	ErrRequestExpired         = apperr.New(apperr.KindState, "request has expired")
	ErrNotApproved            = apperr.New(apperr.KindState, "this deal is not approved yet")
	ErrMissingExpectedBook    = apperr.New(apperr.KindValidation, "expected book is required")
	ErrExpectedBookOwner      = apperr.New(apperr.KindValidation, "expected book must belong to the requester")
	ErrCashInvariant          = apperr.New(apperr.KindValidation, "cash offer cannot carry an expected book")
	ErrNoOffer                = apperr.New(apperr.KindValidation, "owner has not made an offer yet")
	ErrNoPrice                = apperr.New(apperr.KindValidation, "book has no price for a cash deal")
	ErrCashNotRequested       = apperr.New(apperr.KindValidation, "requester did not ask for cash")
	ErrInvalidInput           = apperr.New(apperr.KindValidation, "invalid input")
	ErrForbidden              = apperr.ErrForbidden
	ErrNotFound               = apperr.ErrNotFound
	ErrConcurrentModification = apperr.ErrConcurrentModification
)

// Причины автоматического отклонения конкурирующих запросов
const (
	ReasonAnotherApproved = "Another request for this book was approved."
	ReasonAnotherCash     = "Another offer was accepted."
)
