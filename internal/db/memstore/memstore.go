// Package memstore - хранилище в памяти процесса для режима разработки и
// тестов. Транзакции выполняются строго по одной над копией данных и
// применяются только при успешном завершении.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/apperr"
	"github.com/rajivgeraev/bookswap-api/internal/catalog"
	"github.com/rajivgeraev/bookswap-api/internal/exchange"
	"github.com/rajivgeraev/bookswap-api/internal/models"
)

type state struct {
	books      map[uuid.UUID]models.Book
	inventory  map[uuid.UUID]models.Inventory
	requests   map[uuid.UUID]models.ExchangeRequest
	categories map[uuid.UUID]models.Category
	genres     map[uuid.UUID]models.Genre
	wishlist   map[uuid.UUID]models.WishlistItem
}

func newState() *state {
	return &state{
		books:      make(map[uuid.UUID]models.Book),
		inventory:  make(map[uuid.UUID]models.Inventory),
		requests:   make(map[uuid.UUID]models.ExchangeRequest),
		categories: make(map[uuid.UUID]models.Category),
		genres:     make(map[uuid.UUID]models.Genre),
		wishlist:   make(map[uuid.UUID]models.WishlistItem),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.books {
		c.books[k] = v
	}
	for k, v := range s.inventory {
		c.inventory[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.genres {
		c.genres[k] = v
	}
	for k, v := range s.wishlist {
		c.wishlist[k] = v
	}
	return c
}

// DB - общее состояние хранилища
type DB struct {
	mu   sync.Mutex
	data *state
}

// New создает хранилище с категорией и жанром "Others"
func New() *DB {
	st := newState()
	cat := models.Category{ID: uuid.New(), Name: models.OthersName}
	gen := models.Genre{ID: uuid.New(), Name: models.OthersName}
	st.categories[cat.ID] = cat
	st.genres[gen.ID] = gen
	return &DB{data: st}
}

// inTx копирует всё состояние на каждую транзакцию: O(n) по числу записей,
// что приемлемо только для разработки и тестов.
func (db *DB) inTx(ctx context.Context, fn func(ctx context.Context, tx *memTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	work := db.data.clone()
	if err := fn(ctx, &memTx{st: work}); err != nil {
		return err
	}
	db.data = work
	return nil
}

func (db *DB) read(fn func(st *state)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	fn(db.data)
}

// ExchangeStore реализует exchange.Store
type ExchangeStore struct{ db *DB }

// NewExchangeStore создает новый экземпляр ExchangeStore
func NewExchangeStore(db *DB) *ExchangeStore { return &ExchangeStore{db: db} }

var _ exchange.Store = (*ExchangeStore)(nil)

// InTx выполняет fn в транзакции
func (s *ExchangeStore) InTx(ctx context.Context, fn func(ctx context.Context, tx exchange.Tx) error) error {
	return s.db.inTx(ctx, func(ctx context.Context, tx *memTx) error { return fn(ctx, tx) })
}

// GetRequest возвращает запрос по id
func (s *ExchangeStore) GetRequest(_ context.Context, id uuid.UUID) (*models.ExchangeRequest, error) {
	var (
		r  models.ExchangeRequest
		ok bool
	)
	s.db.read(func(st *state) { r, ok = st.requests[id] })
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &r, nil
}

// CountPending возвращает число pending-запросов владельца
func (s *ExchangeStore) CountPending(_ context.Context, ownerID uuid.UUID) (int, error) {
	n := 0
	s.db.read(func(st *state) {
		for _, r := range st.requests {
			if r.OwnerID == ownerID && r.Status == models.StatusPending {
				n++
			}
		}
	})
	return n, nil
}

// ListRequests возвращает запросы по фильтру, новые первыми
func (s *ExchangeStore) ListRequests(_ context.Context, f models.RequestFilter) ([]models.ExchangeRequest, error) {
	var out []models.ExchangeRequest
	s.db.read(func(st *state) {
		for _, r := range st.requests {
			r := r
			if f.Matches(&r) {
				out = append(out, r)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return paginate(out, f.Limit, f.Offset), nil
}

// ExpiredCandidates возвращает активные запросы с истёкшим сроком
func (s *ExchangeStore) ExpiredCandidates(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	s.db.read(func(st *state) {
		for _, r := range st.requests {
			if r.Status.IsActive() && r.ExpiresAt.Before(now) {
				ids = append(ids, r.ID)
			}
		}
	})
	return ids, nil
}

// CatalogStore реализует catalog.Store
type CatalogStore struct{ db *DB }

// NewCatalogStore создает новый экземпляр CatalogStore
func NewCatalogStore(db *DB) *CatalogStore { return &CatalogStore{db: db} }

var _ catalog.Store = (*CatalogStore)(nil)

// InTx выполняет fn в транзакции
func (s *CatalogStore) InTx(ctx context.Context, fn func(ctx context.Context, tx catalog.Tx) error) error {
	return s.db.inTx(ctx, func(ctx context.Context, tx *memTx) error { return fn(ctx, tx) })
}

// GetBook возвращает книгу с состоянием склада
func (s *CatalogStore) GetBook(_ context.Context, id uuid.UUID) (*models.Book, error) {
	var (
		b  models.Book
		ok bool
	)
	s.db.read(func(st *state) {
		b, ok = st.books[id]
		if ok {
			b = withInventory(st, b)
		}
	})
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &b, nil
}

// ListBooks возвращает книги по фильтру, новые первыми
func (s *CatalogStore) ListBooks(_ context.Context, f catalog.BookFilter) ([]models.Book, error) {
	var out []models.Book
	s.db.read(func(st *state) {
		for _, b := range st.books {
			if f.OwnerID != nil && b.OwnerID != *f.OwnerID {
				continue
			}
			if f.ExcludeOwnerID != nil && b.OwnerID == *f.ExcludeOwnerID {
				continue
			}
			if f.Status != "" && st.inventory[b.ID].Status != f.Status {
				continue
			}
			out = append(out, withInventory(st, b))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Slug < out[j].Slug
	})
	return paginate(out, f.Limit, f.Offset), nil
}

// CategoryByName ищет категорию по имени
func (s *CatalogStore) CategoryByName(_ context.Context, name string) (*models.Category, error) {
	var c *models.Category
	s.db.read(func(st *state) { c = findCategory(st, name) })
	if c == nil {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

// GenreByName ищет жанр по имени
func (s *CatalogStore) GenreByName(_ context.Context, name string) (*models.Genre, error) {
	var g *models.Genre
	s.db.read(func(st *state) { g = findGenre(st, name) })
	if g == nil {
		return nil, apperr.ErrNotFound
	}
	return g, nil
}

// AddWishlist добавляет книгу в список желаемого
func (s *CatalogStore) AddWishlist(ctx context.Context, item *models.WishlistItem) error {
	return s.db.inTx(ctx, func(_ context.Context, tx *memTx) error {
		if _, ok := tx.st.books[item.BookID]; !ok {
			return apperr.ErrNotFound
		}
		for _, w := range tx.st.wishlist {
			if w.UserID == item.UserID && w.BookID == item.BookID {
				return catalog.ErrAlreadyWishlisted
			}
		}
		tx.st.wishlist[item.ID] = *item
		return nil
	})
}

// RemoveWishlist удаляет книгу из списка желаемого
func (s *CatalogStore) RemoveWishlist(ctx context.Context, userID, bookID uuid.UUID) error {
	return s.db.inTx(ctx, func(_ context.Context, tx *memTx) error {
		for id, w := range tx.st.wishlist {
			if w.UserID == userID && w.BookID == bookID {
				delete(tx.st.wishlist, id)
				return nil
			}
		}
		return apperr.ErrNotFound
	})
}

// ListWishlist возвращает список желаемого пользователя
func (s *CatalogStore) ListWishlist(_ context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	var out []models.WishlistItem
	s.db.read(func(st *state) {
		for _, w := range st.wishlist {
			if w.UserID != userID {
				continue
			}
			if b, ok := st.books[w.BookID]; ok {
				b = withInventory(st, b)
				w.Book = &b
			}
			out = append(out, w)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func withInventory(st *state, b models.Book) models.Book {
	if inv, ok := st.inventory[b.ID]; ok {
		b.Inventory = &inv
	}
	return b
}

func findCategory(st *state, name string) *models.Category {
	for _, c := range st.categories {
		if strings.EqualFold(c.Name, name) {
			c := c
			return &c
		}
	}
	return nil
}

func findGenre(st *state, name string) *models.Genre {
	for _, g := range st.genres {
		if strings.EqualFold(g.Name, name) {
			g := g
			return &g
		}
	}
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
