package exchange

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/inventory"
	"github.com/rajivgeraev/bookswap-api/internal/models"
)

// Tx - операции хранилища внутри одной транзакции. Методы ...ForUpdate
// берут построчную блокировку и не ждут чужих блокировок: конфликт
// возвращается как ErrConcurrentModification.
type Tx interface {
	inventory.Tx

	BookByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	// InventoryForShare читает строку склада под разделяемой блокировкой:
	// она не мешает другим созданиям запросов, но не даёт одновременно
	// заблокировать книгу под обмен
	InventoryForShare(ctx context.Context, bookID uuid.UUID) (*models.Inventory, error)
	RequestForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeRequest, error)
	ActiveRequestExists(ctx context.Context, requesterID, bookID uuid.UUID) (bool, error)
	InsertRequest(ctx context.Context, r *models.ExchangeRequest) error
	UpdateRequest(ctx context.Context, r *models.ExchangeRequest) error
	// PendingForBooksForUpdate возвращает pending-запросы на любую из книг,
	// кроме exceptID
	PendingForBooksForUpdate(ctx context.Context, bookIDs []uuid.UUID, exceptID uuid.UUID) ([]models.ExchangeRequest, error)
}

// Store - хранилище запросов на обмен
type Store interface {
	// InTx выполняет fn в транзакции: фиксирует при nil, откатывает при ошибке
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetRequest(ctx context.Context, id uuid.UUID) (*models.ExchangeRequest, error)
	CountPending(ctx context.Context, ownerID uuid.UUID) (int, error)
	ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.ExchangeRequest, error)
	// ExpiredCandidates возвращает активные запросы с expires_at < now
	ExpiredCandidates(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// Notifier доставляет уведомления после фиксации перехода
type Notifier interface {
	Notify(ctx context.Context, notes []models.Notification) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, []models.Notification) error { return nil }
