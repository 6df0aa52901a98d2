package exchange

import (
	"context"

	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/models"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// GetStatus возвращает статус и флаги подтверждения запроса
func (e *Engine) GetStatus(ctx context.Context, requestID uuid.UUID) (*models.StatusView, error) {
	r, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return r.View(), nil
}

// GetRequest возвращает запрос одной из его сторон
func (e *Engine) GetRequest(ctx context.Context, requestID, callerID uuid.UUID) (*models.ExchangeRequest, error) {
	r, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !r.IsParty(callerID) {
		return nil, ErrForbidden
	}
	return r, nil
}

// CountPendingForOwner возвращает число входящих pending-запросов владельца
func (e *Engine) CountPendingForOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	return e.store.CountPending(ctx, ownerID)
}

// ListRequests возвращает запросы по фильтру, новые первыми
func (e *Engine) ListRequests(ctx context.Context, filter models.RequestFilter) ([]models.ExchangeRequest, error) {
	for _, s := range filter.Statuses {
		if !s.Valid() {
			return nil, ErrInvalidInput
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return e.store.ListRequests(ctx, filter)
}
