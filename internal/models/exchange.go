package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExchangeStatus - статус запроса на обмен
type ExchangeStatus string

const (
	StatusPending   ExchangeStatus = "pending"
	StatusApproved  ExchangeStatus = "approved"
	StatusRejected  ExchangeStatus = "rejected"
	StatusCompleted ExchangeStatus = "completed"
	StatusCancelled ExchangeStatus = "cancelled"
	StatusExpired   ExchangeStatus = "expired"
)

// IsActive сообщает, может ли запрос ещё держать блокировку книги
func (s ExchangeStatus) IsActive() bool {
	return s == StatusPending || s == StatusApproved
}

// IsTerminal сообщает, что переходы из статуса запрещены
func (s ExchangeStatus) IsTerminal() bool {
	return !s.IsActive()
}

// Valid проверяет, что статус известен
func (s ExchangeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// ExchangeRequest представляет запрос на обмен книгой
type ExchangeRequest struct {
	ID             uuid.UUID  `json:"id"`
	RequesterID    uuid.UUID  `json:"requester_id"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	BookID         uuid.UUID  `json:"book_id"`
	ExpectedBookID *uuid.UUID `json:"expected_book_id,omitempty"`
	Message        string     `json:"message"`

	RequesterWantsCash bool             `json:"requester_wants_cash"`
	IsCash             bool             `json:"is_cash"`
	CashAmount         *decimal.Decimal `json:"cash_amount,omitempty"`

	OwnerConfirmed     bool `json:"owner_confirmed"`
	RequesterConfirmed bool `json:"requester_confirmed"`

	Status       ExchangeStatus `json:"status"`
	RejectedBy   *uuid.UUID     `json:"rejected_by,omitempty"`
	RejectReason string         `json:"reject_reason,omitempty"`
	CancelledBy  *uuid.UUID     `json:"cancelled_by,omitempty"`
	CancelReason string         `json:"cancel_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BookIDs возвращает книги, участвующие в обмене
func (r *ExchangeRequest) BookIDs() []uuid.UUID {
	ids := []uuid.UUID{r.BookID}
	if r.ExpectedBookID != nil {
		ids = append(ids, *r.ExpectedBookID)
	}
	return ids
}

// IsParty сообщает, является ли пользователь стороной обмена
func (r *ExchangeRequest) IsParty(userID uuid.UUID) bool {
	return userID == r.OwnerID || userID == r.RequesterID
}

// HasOffer сообщает, сделал ли владелец встречное предложение
func (r *ExchangeRequest) HasOffer() bool {
	return r.ExpectedBookID != nil || r.IsCash
}

// StatusView - проекция статуса для опроса клиентом
type StatusView struct {
	Status             ExchangeStatus `json:"status"`
	OwnerConfirmed     bool           `json:"owner_confirmed"`
	RequesterConfirmed bool           `json:"requester_confirmed"`
}

// View возвращает проекцию статуса запроса
func (r *ExchangeRequest) View() *StatusView {
	return &StatusView{
		Status:             r.Status,
		OwnerConfirmed:     r.OwnerConfirmed,
		RequesterConfirmed: r.RequesterConfirmed,
	}
}

// RequestFilter описывает выборку запросов на обмен
type RequestFilter struct {
	OwnerID     *uuid.UUID
	RequesterID *uuid.UUID
	PartyID     *uuid.UUID
	BookID      *uuid.UUID
	Statuses    []ExchangeStatus
	Limit       int
	Offset      int
}

// Matches проверяет запрос на соответствие фильтру без учёта пагинации
func (f RequestFilter) Matches(r *ExchangeRequest) bool {
	if f.OwnerID != nil && r.OwnerID != *f.OwnerID {
		return false
	}
	if f.RequesterID != nil && r.RequesterID != *f.RequesterID {
		return false
	}
	if f.PartyID != nil && !r.IsParty(*f.PartyID) {
		return false
	}
	if f.BookID != nil && r.BookID != *f.BookID {
		return false
	}
	if len(f.Statuses) > 0 {
		for _, s := range f.Statuses {
			if r.Status == s {
				return true
			}
		}
		return false
	}
	return true
}
