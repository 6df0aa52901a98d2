package memstore

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/apperr"
	"github.com/rajivgeraev/bookswap-api/internal/models"
)

// memTx реализует exchange.Tx и catalog.Tx над рабочей копией состояния.
// Транзакции сериализованы, поэтому блокировки строк не нужны.
type memTx struct {
	st *state
}

func (tx *memTx) BookByID(_ context.Context, id uuid.UUID) (*models.Book, error) {
	b, ok := tx.st.books[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &b, nil
}

func (tx *memTx) InventoryForUpdate(_ context.Context, bookIDs []uuid.UUID) ([]models.Inventory, error) {
	out := make([]models.Inventory, 0, len(bookIDs))
	for _, id := range bookIDs {
		if inv, ok := tx.st.inventory[id]; ok {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (tx *memTx) InventoryForShare(_ context.Context, bookID uuid.UUID) (*models.Inventory, error) {
	inv, ok := tx.st.inventory[bookID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &inv, nil
}

func (tx *memTx) SaveInventory(_ context.Context, inv models.Inventory) error {
	if _, ok := tx.st.inventory[inv.BookID]; !ok {
		return apperr.ErrNotFound
	}
	tx.st.inventory[inv.BookID] = inv
	return nil
}

func (tx *memTx) InsertInventory(_ context.Context, inv models.Inventory) error {
	if _, ok := tx.st.inventory[inv.BookID]; ok {
		return apperr.ErrConcurrentModification
	}
	tx.st.inventory[inv.BookID] = inv
	return nil
}

func (tx *memTx) RequestForUpdate(_ context.Context, id uuid.UUID) (*models.ExchangeRequest, error) {
	r, ok := tx.st.requests[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &r, nil
}

func (tx *memTx) ActiveRequestExists(_ context.Context, requesterID, bookID uuid.UUID) (bool, error) {
	for _, r := range tx.st.requests {
		if r.RequesterID == requesterID && r.BookID == bookID && r.Status.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) InsertRequest(_ context.Context, r *models.ExchangeRequest) error {
	if _, ok := tx.st.requests[r.ID]; ok {
		return apperr.ErrConcurrentModification
	}
	tx.st.requests[r.ID] = *r
	return nil
}

func (tx *memTx) UpdateRequest(_ context.Context, r *models.ExchangeRequest) error {
	if _, ok := tx.st.requests[r.ID]; !ok {
		return apperr.ErrNotFound
	}
	tx.st.requests[r.ID] = *r
	return nil
}

func (tx *memTx) PendingForBooksForUpdate(_ context.Context, bookIDs []uuid.UUID, exceptID uuid.UUID) ([]models.ExchangeRequest, error) {
	books := make(map[uuid.UUID]bool, len(bookIDs))
	for _, id := range bookIDs {
		books[id] = true
	}
	var out []models.ExchangeRequest
	for _, r := range tx.st.requests {
		if r.ID != exceptID && r.Status == models.StatusPending && books[r.BookID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (tx *memTx) SlugExists(_ context.Context, slug string) (bool, error) {
	for _, b := range tx.st.books {
		if b.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) InsertBook(_ context.Context, b *models.Book) error {
	stored := *b
	stored.Inventory = nil
	tx.st.books[b.ID] = stored
	return nil
}

func (tx *memTx) UpdateBook(_ context.Context, b *models.Book) error {
	if _, ok := tx.st.books[b.ID]; !ok {
		return apperr.ErrNotFound
	}
	stored := *b
	stored.Inventory = nil
	tx.st.books[b.ID] = stored
	return nil
}

func (tx *memTx) DeleteBook(_ context.Context, id uuid.UUID) error {
	if _, ok := tx.st.books[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(tx.st.books, id)
	delete(tx.st.inventory, id)
	for wid, w := range tx.st.wishlist {
		if w.BookID == id {
			delete(tx.st.wishlist, wid)
		}
	}
	return nil
}

func (tx *memTx) BookHasRequests(_ context.Context, id uuid.UUID) (bool, error) {
	for _, r := range tx.st.requests {
		if r.BookID == id || (r.ExpectedBookID != nil && *r.ExpectedBookID == id) {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memTx) CategoryByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	c, ok := tx.st.categories[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &c, nil
}

func (tx *memTx) CategoryByName(_ context.Context, name string) (*models.Category, error) {
	if c := findCategory(tx.st, strings.TrimSpace(name)); c != nil {
		return c, nil
	}
	return nil, apperr.ErrNotFound
}

func (tx *memTx) InsertCategory(_ context.Context, c *models.Category) error {
	tx.st.categories[c.ID] = *c
	return nil
}

func (tx *memTx) GenreByID(_ context.Context, id uuid.UUID) (*models.Genre, error) {
	g, ok := tx.st.genres[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &g, nil
}

func (tx *memTx) GenreByName(_ context.Context, name string) (*models.Genre, error) {
	if g := findGenre(tx.st, strings.TrimSpace(name)); g != nil {
		return g, nil
	}
	return nil, apperr.ErrNotFound
}

func (tx *memTx) InsertGenre(_ context.Context, g *models.Genre) error {
	tx.st.genres[g.ID] = *g
	return nil
}
