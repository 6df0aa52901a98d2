// Package notify хранит ленту уведомлений пользователей. Движок обменов
// пишет в неё после фиксации перехода, HTTP-слой читает и отмечает
// прочитанное.
package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/models"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Feed - лента уведомлений
type Feed interface {
	Notify(ctx context.Context, notes []models.Notification) error
	List(ctx context.Context, userID uuid.UUID, limit int, unreadOnly bool) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	// MarkRead отмечает прочитанными уведомления пользователя; пустой ids - все
	MarkRead(ctx context.Context, userID uuid.UUID, ids []string) (int64, error)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
