package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rajivgeraev/bookswap-api/internal/models"
)

// Денежные поля читаются как ::text, чтобы не терять точность
const requestColumns = `id, requester_id, owner_id, book_id, expected_book_id, message,
	requester_wants_cash, is_cash, cash_amount::text, owner_confirmed, requester_confirmed,
	status, rejected_by, reject_reason, cancelled_by, cancel_reason,
	created_at, updated_at, expires_at`

const bookColumns = `b.id, b.owner_id, b.title, b.author, b.slug, b.description, b.isbn,
	b.category_id, b.genre_id, b.language, b.condition, b.price::text, b.location,
	b.created_at, b.updated_at`

const bookWithInventoryColumns = bookColumns + `, i.status, i.locked_by, i.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*models.ExchangeRequest, error) {
	var (
		r      models.ExchangeRequest
		amount *string
		status string
	)
	err := row.Scan(
		&r.ID, &r.RequesterID, &r.OwnerID, &r.BookID, &r.ExpectedBookID, &r.Message,
		&r.RequesterWantsCash, &r.IsCash, &amount, &r.OwnerConfirmed, &r.RequesterConfirmed,
		&status, &r.RejectedBy, &r.RejectReason, &r.CancelledBy, &r.CancelReason,
		&r.CreatedAt, &r.UpdatedAt, &r.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	r.Status = models.ExchangeStatus(status)
	if r.CashAmount, err = parseDecimal(amount); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanBook(row scanner, withInventory bool) (*models.Book, error) {
	var (
		b     models.Book
		price *string
	)
	dest := []any{
		&b.ID, &b.OwnerID, &b.Title, &b.Author, &b.Slug, &b.Description, &b.ISBN,
		&b.CategoryID, &b.GenreID, &b.Language, &b.Condition, &price, &b.Location,
		&b.CreatedAt, &b.UpdatedAt,
	}

	var (
		invStatus  *string
		invLocked  *uuid.UUID
		invUpdated *time.Time
	)
	if withInventory {
		dest = append(dest, &invStatus, &invLocked, &invUpdated)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if b.Price, err = parseDecimal(price); err != nil {
		return nil, err
	}
	if invStatus != nil {
		b.Inventory = &models.Inventory{BookID: b.ID, Status: *invStatus, LockedBy: invLocked}
		if invUpdated != nil {
			b.Inventory.UpdatedAt = *invUpdated
		}
	}
	return &b, nil
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
