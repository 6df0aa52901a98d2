// Package inventory ведёт складской учёт книг: доступность и блокировку
// книги активным обменом. Писать в учёт может только движок обменов и
// только внутри транзакции, меняющей статус обмена.
package inventory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/apperr"
	"github.com/rajivgeraev/bookswap-api/internal/models"
)

var (
	// ErrUnavailable - книга не в том состоянии, которого требует операция
	ErrUnavailable = apperr.New(apperr.KindUnavailable, "book is not available")
	// ErrLockedElsewhere - книга заблокирована другим обменом
	ErrLockedElsewhere = apperr.New(apperr.KindUnavailable, "book is reserved by another exchange")
)

// Tx - транзакционный доступ к строкам склада. InventoryForUpdate обязан
// взять построчную блокировку до возврата.
type Tx interface {
	InventoryForUpdate(ctx context.Context, bookIDs []uuid.UUID) ([]models.Inventory, error)
	SaveInventory(ctx context.Context, inv models.Inventory) error
}

// Ledger применяет переходы складского учёта
type Ledger struct {
	now func() time.Time
}

// NewLedger создает новый экземпляр Ledger
func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{now: now}
}

// Lock переводит книги в requested и привязывает их к обмену.
// Книги, уже заблокированные этим же обменом, не меняются.
func (l *Ledger) Lock(ctx context.Context, tx Tx, bookIDs []uuid.UUID, exchangeID uuid.UUID) error {
	return l.apply(ctx, tx, bookIDs, func(inv *models.Inventory) (bool, error) {
		if inv.Status == models.InventoryRequested && inv.LockedBy != nil && *inv.LockedBy == exchangeID {
			return false, nil
		}
		if inv.LockedBy != nil {
			return false, ErrLockedElsewhere
		}
		if inv.Status != models.InventoryAvailable {
			return false, ErrUnavailable
		}
		id := exchangeID
		inv.Status = models.InventoryRequested
		inv.LockedBy = &id
		return true, nil
	})
}

// Release возвращает в available книги, заблокированные обменом.
// Книги чужих обменов и уже свободные книги пропускаются.
func (l *Ledger) Release(ctx context.Context, tx Tx, bookIDs []uuid.UUID, exchangeID uuid.UUID) error {
	return l.apply(ctx, tx, bookIDs, func(inv *models.Inventory) (bool, error) {
		if inv.LockedBy == nil || *inv.LockedBy != exchangeID {
			return false, nil
		}
		inv.Status = models.InventoryAvailable
		inv.LockedBy = nil
		return true, nil
	})
}

// Settle переводит книги обмена в exchanged и снимает блокировку
func (l *Ledger) Settle(ctx context.Context, tx Tx, bookIDs []uuid.UUID, exchangeID uuid.UUID) error {
	return l.apply(ctx, tx, bookIDs, func(inv *models.Inventory) (bool, error) {
		if inv.Status == models.InventoryExchanged && inv.LockedBy == nil {
			return false, nil
		}
		if inv.LockedBy == nil || *inv.LockedBy != exchangeID {
			return false, ErrLockedElsewhere
		}
		inv.Status = models.InventoryExchanged
		inv.LockedBy = nil
		return true, nil
	})
}

// Withdraw снимает свободную книгу с обмена по желанию владельца
func (l *Ledger) Withdraw(ctx context.Context, tx Tx, bookID uuid.UUID) error {
	return l.apply(ctx, tx, []uuid.UUID{bookID}, func(inv *models.Inventory) (bool, error) {
		switch {
		case inv.Status == models.InventoryUnavailable:
			return false, nil
		case inv.Status != models.InventoryAvailable || inv.LockedBy != nil:
			return false, ErrUnavailable
		}
		inv.Status = models.InventoryUnavailable
		return true, nil
	})
}

// Restore возвращает снятую книгу в available
func (l *Ledger) Restore(ctx context.Context, tx Tx, bookID uuid.UUID) error {
	return l.apply(ctx, tx, []uuid.UUID{bookID}, func(inv *models.Inventory) (bool, error) {
		switch inv.Status {
		case models.InventoryAvailable:
			return false, nil
		case models.InventoryUnavailable:
			inv.Status = models.InventoryAvailable
			return true, nil
		}
		return false, ErrUnavailable
	})
}

func (l *Ledger) apply(ctx context.Context, tx Tx, bookIDs []uuid.UUID, step func(*models.Inventory) (bool, error)) error {
	ids := normalize(bookIDs)
	if len(ids) == 0 {
		return nil
	}

	rows, err := tx.InventoryForUpdate(ctx, ids)
	if err != nil {
		return err
	}
	byBook := make(map[uuid.UUID]models.Inventory, len(rows))
	for _, inv := range rows {
		byBook[inv.BookID] = inv
	}

	for _, id := range ids {
		inv, ok := byBook[id]
		if !ok {
			return apperr.Wrap(apperr.KindNotFound, "inventory not found", fmt.Errorf("book %s", id))
		}
		changed, err := step(&inv)
		if err != nil {
			return err
		}
		if !changed {
			continue
		}
		inv.UpdatedAt = l.now().UTC()
		if err := tx.SaveInventory(ctx, inv); err != nil {
			return err
		}
	}
	return nil
}

// normalize убирает дубликаты и пустые id и сортирует, чтобы строки
// блокировались в одном порядке во всех транзакциях
func normalize(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}
