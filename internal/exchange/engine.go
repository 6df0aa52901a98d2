// Package exchange реализует движок согласования обменов: жизненный цикл
// запроса, встречные предложения, взаимное подтверждение и истечение срока.
// Каждый переход меняет статус запроса и складской учёт в одной транзакции.
package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/apperr"
	"github.com/rajivgeraev/bookswap-api/internal/inventory"
	"github.com/rajivgeraev/bookswap-api/internal/models"
)

// DefaultTTL - срок жизни запроса на обмен
const DefaultTTL = 48 * time.Hour

// Result - итог перехода
type Result struct {
	Request *models.ExchangeRequest `json:"request"`
	// AutoRejected - конкурирующие запросы, отклонённые в той же транзакции
	AutoRejected []uuid.UUID `json:"auto_rejected,omitempty"`

	notes []models.Notification
}

func (r *Result) notify(userID uuid.UUID, typ models.NotificationType, ex *models.ExchangeRequest, message string) {
	r.notes = append(r.notes, models.Notification{
		UserID:     userID,
		Type:       typ,
		ExchangeID: ex.ID,
		BookID:     ex.BookID,
		Message:    message,
	})
}

// Engine - движок согласования обменов
type Engine struct {
	store    Store
	ledger   *inventory.Ledger
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	ttl      time.Duration
}

// Option настраивает Engine
type Option func(*Engine)

// WithClock подменяет источник времени
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTTL задаёт срок жизни запроса
func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithNotifier задаёт доставку уведомлений
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithLogger задаёт логгер
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine создает новый экземпляр Engine
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		notifier: nopNotifier{},
		logger:   slog.Default(),
		now:      time.Now,
		ttl:      DefaultTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ledger = inventory.NewLedger(e.now)
	return e
}

// CreateRequest создает запрос на книгу. Склад не блокируется: пока владелец
// не выбрал предложение, книгу могут запрашивать и другие пользователи.
func (e *Engine) CreateRequest(ctx context.Context, requesterID, bookID uuid.UUID, wantsCash bool, message string) (*models.ExchangeRequest, error) {
	if requesterID == uuid.Nil || bookID == uuid.Nil {
		return nil, ErrInvalidInput
	}

	var created *models.ExchangeRequest
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		book, err := tx.BookByID(ctx, bookID)
		if err != nil {
			return err
		}
		if book.OwnerID == requesterID {
			return ErrSelfExchange
		}

		// Разделяемая блокировка упорядочивает создание со встречными
		// предложениями, но не с другими созданиями
		inv, err := tx.InventoryForShare(ctx, bookID)
		if err != nil {
			return err
		}
		if inv.Status != models.InventoryAvailable {
			return ErrBookUnavailable
		}

		exists, err := tx.ActiveRequestExists(ctx, requesterID, bookID)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateRequest
		}

		now := e.now().UTC()
		r := &models.ExchangeRequest{
			ID:                 uuid.New(),
			RequesterID:        requesterID,
			OwnerID:            book.OwnerID,
			BookID:             bookID,
			Message:            message,
			RequesterWantsCash: wantsCash,
			Status:             models.StatusPending,
			CreatedAt:          now,
			UpdatedAt:          now,
			ExpiresAt:          now.Add(e.ttl),
		}
		if err := checkInvariants(r); err != nil {
			return err
		}
		if err := tx.InsertRequest(ctx, r); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		e.logFailure("create_request", bookID, err)
		return nil, err
	}

	out := &Result{Request: created}
	out.notify(created.OwnerID, models.NotifyNewRequest, created, "You have a new exchange request.")
	e.deliver(ctx, out.notes)
	return created, nil
}

// CounterOffer - владелец предлагает взамен книгу запрашивающего. Обе книги
// сразу блокируются этим запросом; статус остаётся pending до ответа.
func (e *Engine) CounterOffer(ctx context.Context, requestID, ownerID, expectedBookID uuid.UUID) (*Result, error) {
	if expectedBookID == uuid.Nil {
		return nil, ErrMissingExpectedBook
	}

	return e.transition(ctx, "counter_offer", requestID, func(ctx context.Context, tx Tx, r *models.ExchangeRequest, out *Result) error {
		if r.OwnerID != ownerID {
			return ErrForbidden
		}
		if err := e.ensurePending(r); err != nil {
			return err
		}
		if expectedBookID == r.BookID {
			return ErrExpectedBookOwner
		}
		expected, err := tx.BookByID(ctx, expectedBookID)
		if err != nil {
			return err
		}
		if expected.OwnerID != r.RequesterID {
			return ErrExpectedBookOwner
		}

		if r.ExpectedBookID != nil && *r.ExpectedBookID != expectedBookID {
			if err := e.ledger.Release(ctx, tx, []uuid.UUID{*r.ExpectedBookID}, r.ID); err != nil {
				return err
			}
		}
		id := expectedBookID
		r.ExpectedBookID = &id
		r.IsCash = false
		r.CashAmount = nil

		if err := e.ledger.Lock(ctx, tx, r.BookIDs(), r.ID); err != nil {
			return err
		}
		out.notify(r.RequesterID, models.NotifyCounterOffer, r, fmt.Sprintf("Owner offered an exchange for %q.", expected.Title))
		return nil
	})
}

// OfferCash - владелец переводит pending-запрос в денежное предложение по
// цене книги. Книга блокируется этим запросом.
func (e *Engine) OfferCash(ctx context.Context, requestID, ownerID uuid.UUID) (*Result, error) {
	return e.transition(ctx, "offer_cash", requestID, func(ctx context.Context, tx Tx, r *models.ExchangeRequest, out *Result) error {
		if r.OwnerID != ownerID {
			return ErrForbidden
		}
		if err := e.ensurePending(r); err != nil {
			return err
		}
		if err := e.applyCash(ctx, tx, r); err != nil {
			return err
		}
		if err := e.ledger.Lock(ctx, tx, r.BookIDs(), r.ID); err != nil {
			return err
		}
		out.notify(r.RequesterID, models.NotifyCashOffer, r, fmt.Sprintf("Owner offered cash %s instead of exchange.", r.CashAmount.StringFixed(2)))
		return nil
	})
}

// Accept - запрашивающий принимает встречное предложение. Запрос
// одобряется, книги блокируются, а все прочие pending-запросы на эти книги
// отклоняются в той же транзакции.
func (e *Engine) Accept(ctx context.Context, requestID, requesterID uuid.UUID) (*Result, error) {
	return e.transition(ctx, "accept", requestID, func(ctx context.Context, tx Tx, r *models.ExchangeRequest, out *Result) error {
		if r.RequesterID != requesterID {
			return ErrForbidden
		}
		if err := e.ensurePending(r); err != nil {
			return err
		}
		if !r.HasOffer() {
			return ErrNoOffer
		}
		if r.IsCash {
			// сумма всегда повторяет цену книги на момент одобрения
			if err := e.applyCash(ctx, tx, r); err != nil {
				return err
			}
		}

		r.Status = models.StatusApproved
		if err := e.ledger.Lock(ctx, tx, r.BookIDs(), r.ID); err != nil {
			return err
		}
		if err := e.rejectCompetitors(ctx, tx, r, ReasonAnotherApproved, out); err != nil {
			return err
		}
		out.notify(r.OwnerID, models.NotifyAccepted, r, "Requester accepted your offer.")
		return nil
	})
}

// Reject отклоняет pending-запрос. Может вызвать любая сторона.
func (e *Engine) Reject(ctx context.Context, requestID, callerID uuid.UUID, reason string) (*Result, error) {
	return e.transition(ctx, "reject", requestID, func(ctx context.Context, tx Tx, r *models.ExchangeRequest, out *Result) error {
		if !r.IsParty(callerID) {
			return ErrForbidden
		}
		if err := e.ensurePending(r); err != nil {
			return err
		}

		by := callerID
		r.Status = models.StatusRejected
		r.RejectedBy = &by
		r.RejectReason = reason
		if err := e.ledger.Release(ctx, tx, r.BookIDs(), r.ID); err != nil {
			return err
		}
		out.notify(otherParty(r, callerID), models.NotifyRejected, r, "Exchange request was rejected.")
		return nil
	})
}

// ApproveCash - владелец сразу одобряет запрос, в котором запрашивающий
// хотел купить книгу. Блокируется только книга владельца.
func (e *Engine) ApproveCash(ctx context.Context, requestID, ownerID uuid.UUID) (*Result, error) {
	return e.transition(ctx, "approve_cash", requestID, func(ctx context.Context, tx Tx, r *models.ExchangeRequest, out *Result) error {
		if r.OwnerID != ownerID {
			return ErrForbidden
		}
		if err := e.ensurePending(r); err != nil {
			return err
		}
		if !r.RequesterWantsCash {
			return ErrCashNotRequested
		}
		if err := e.applyCash(ctx, tx, r); err != nil {
			return err
		}

		r.Status = models.StatusApproved
		if err := e.ledger.Lock(ctx, tx, r.BookIDs(), r.ID); err != nil {
			return err
		}
		if err := e.rejectCompetitors(ctx, tx, r, ReasonAnotherCash, out); err != nil {
			return err
		}
		out.notify(r.RequesterID, models.NotifyAccepted, r, "Cash purchase approved.")
		return nil
	})
}

// ConfirmReceipt отмечает получение книги одной из сторон. Обмен
// завершается только когда подтвердили обе стороны.
func (e *Engine) ConfirmReceipt(ctx context.Context, requestID, callerID uuid.UUID) (*Result, error) {
	return e.transition(ctx, "confirm_receipt", requestID, func(ctx context.Context, tx Tx, r *models.ExchangeRequest, out *Result) error {
		if !r.IsParty(callerID) {
			return ErrForbidden
		}
		if r.Status != models.StatusApproved {
			if r.Status.IsTerminal() {
				return ErrInvalidState
			}
			return ErrNotApproved
		}
		if err := e.ensureNotExpired(r); err != nil {
			return err
		}

		if callerID == r.OwnerID {
			r.OwnerConfirmed = true
		}
		if callerID == r.RequesterID {
			r.RequesterConfirmed = true
		}

		if !(r.OwnerConfirmed && r.RequesterConfirmed) {
			out.notify(otherParty(r, callerID), models.NotifyConfirmed, r, "The other party marked the book as received.")
			return nil
		}

		r.Status = models.StatusCompleted
		if err := e.ledger.Settle(ctx, tx, r.BookIDs(), r.ID); err != nil {
			return err
		}
		out.notify(r.OwnerID, models.NotifyCompleted, r, "Exchange completed.")
		out.notify(r.RequesterID, models.NotifyCompleted, r, "Exchange completed.")
		return nil
	})
}

// Cancel отменяет активный запрос и освобождает книги
func (e *Engine) Cancel(ctx context.Context, requestID, callerID uuid.UUID, reason string) (*Result, error) {
	return e.transition(ctx, "cancel", requestID, func(ctx context.Context, tx Tx, r *models.ExchangeRequest, out *Result) error {
		if !r.IsParty(callerID) {
			return ErrForbidden
		}
		if r.Status.IsTerminal() {
			return ErrInvalidState
		}
		if err := e.ensureNotExpired(r); err != nil {
			return err
		}

		by := callerID
		r.Status = models.StatusCancelled
		r.CancelledBy = &by
		r.CancelReason = reason
		if err := e.ledger.Release(ctx, tx, r.BookIDs(), r.ID); err != nil {
			return err
		}
		out.notify(otherParty(r, callerID), models.NotifyCancelled, r, "Exchange was cancelled.")
		return nil
	})
}

type step func(ctx context.Context, tx Tx, r *models.ExchangeRequest, out *Result) error

// transition блокирует запрос, применяет шаг, проверяет инварианты и
// сохраняет запрос в одной транзакции. Уведомления уходят после фиксации.
func (e *Engine) transition(ctx context.Context, op string, requestID uuid.UUID, fn step) (*Result, error) {
	if requestID == uuid.Nil {
		return nil, ErrInvalidInput
	}

	var out *Result
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.RequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		out = &Result{Request: r}
		if err := fn(ctx, tx, r, out); err != nil {
			return err
		}
		if err := checkInvariants(r); err != nil {
			return err
		}
		r.UpdatedAt = e.now().UTC()
		return tx.UpdateRequest(ctx, r)
	})
	if err != nil {
		e.logFailure(op, requestID, err)
		return nil, err
	}

	e.deliver(ctx, out.notes)
	return out, nil
}

// rejectCompetitors отклоняет остальные pending-запросы на книги одобренного обмена
func (e *Engine) rejectCompetitors(ctx context.Context, tx Tx, winner *models.ExchangeRequest, reason string, out *Result) error {
	competitors, err := tx.PendingForBooksForUpdate(ctx, winner.BookIDs(), winner.ID)
	if err != nil {
		return err
	}

	now := e.now().UTC()
	for i := range competitors {
		c := &competitors[i]
		by := c.OwnerID
		c.Status = models.StatusRejected
		c.RejectedBy = &by
		c.RejectReason = reason
		c.UpdatedAt = now

		if err := e.ledger.Release(ctx, tx, c.BookIDs(), c.ID); err != nil {
			return err
		}
		if err := tx.UpdateRequest(ctx, c); err != nil {
			return err
		}
		out.AutoRejected = append(out.AutoRejected, c.ID)
		out.notify(c.RequesterID, models.NotifyAutoRejected, c, reason)
	}
	return nil
}

// applyCash делает запрос денежным предложением по текущей цене книги
func (e *Engine) applyCash(ctx context.Context, tx Tx, r *models.ExchangeRequest) error {
	book, err := tx.BookByID(ctx, r.BookID)
	if err != nil {
		return err
	}
	if book.Price == nil {
		return ErrNoPrice
	}
	if r.ExpectedBookID != nil {
		if err := e.ledger.Release(ctx, tx, []uuid.UUID{*r.ExpectedBookID}, r.ID); err != nil {
			return err
		}
		r.ExpectedBookID = nil
	}
	amount := *book.Price
	r.IsCash = true
	r.CashAmount = &amount
	return nil
}

func (e *Engine) ensurePending(r *models.ExchangeRequest) error {
	if r.Status != models.StatusPending {
		return ErrInvalidState
	}
	return e.ensureNotExpired(r)
}

// ensureNotExpired отсекает действия над запросом, который истёк, но ещё
// не обработан чистильщиком
func (e *Engine) ensureNotExpired(r *models.ExchangeRequest) error {
	if !e.now().Before(r.ExpiresAt) {
		return ErrRequestExpired
	}
	return nil
}

// checkInvariants не даёт сохранить денежное предложение с книгой взамен
// и книжное предложение с суммой
func checkInvariants(r *models.ExchangeRequest) error {
	if r.IsCash && r.ExpectedBookID != nil {
		return ErrCashInvariant
	}
	if !r.IsCash && r.CashAmount != nil {
		return ErrCashInvariant
	}
	return nil
}

func otherParty(r *models.ExchangeRequest, userID uuid.UUID) uuid.UUID {
	if userID == r.OwnerID {
		return r.RequesterID
	}
	return r.OwnerID
}

// deliver отправляет уведомления. Ошибка доставки не отменяет переход.
func (e *Engine) deliver(ctx context.Context, notes []models.Notification) {
	if len(notes) == 0 {
		return
	}
	now := e.now().UTC()
	for i := range notes {
		notes[i].CreatedAt = now
	}
	if err := e.notifier.Notify(ctx, notes); err != nil {
		e.logger.Warn("не удалось сохранить уведомления", "count", len(notes), "err", err)
	}
}

func (e *Engine) logFailure(op string, id uuid.UUID, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindStorage:
		e.logger.Error("ошибка хранилища при обработке обмена", "op", op, "id", id, "err", err)
	case apperr.KindState, apperr.KindConcurrentModification:
		e.logger.Warn("операция над обменом не выполнена", "op", op, "id", id, "reason", apperr.MessageOf(err))
	default:
		e.logger.Debug("операция над обменом отклонена", "op", op, "id", id, "reason", apperr.MessageOf(err))
	}
}
