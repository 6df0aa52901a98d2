package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType определяет тип уведомления
type NotificationType string

const (
	NotifyNewRequest   NotificationType = "new_request"
	NotifyCounterOffer NotificationType = "counter_offer"
	NotifyCashOffer    NotificationType = "cash_offer"
	NotifyAccepted     NotificationType = "accepted"
	NotifyAutoRejected NotificationType = "auto_rejected"
	NotifyRejected     NotificationType = "rejected"
	NotifyConfirmed    NotificationType = "confirmed"
	NotifyCompleted    NotificationType = "completed"
	NotifyCancelled    NotificationType = "cancelled"
	NotifyExpired      NotificationType = "expired"
)

// Notification - уведомление пользователя о событии обмена
type Notification struct {
	ID         string           `json:"id,omitempty"`
	UserID     uuid.UUID        `json:"user_id"`
	Type       NotificationType `json:"type"`
	ExchangeID uuid.UUID        `json:"exchange_id"`
	BookID     uuid.UUID        `json:"book_id"`
	Message    string           `json:"message"`
	IsRead     bool             `json:"is_read"`
	CreatedAt  time.Time        `json:"created_at"`
}
