package db

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajivgeraev/bookswap-api/internal/apperr"
	"github.com/rajivgeraev/bookswap-api/internal/catalog"
	"github.com/rajivgeraev/bookswap-api/internal/models"
)

// CatalogStore реализует catalog.Store поверх PostgreSQL
type CatalogStore struct {
	pool *pgxpool.Pool
}

// NewCatalogStore создает новый экземпляр CatalogStore
func NewCatalogStore(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

var _ catalog.Store = (*CatalogStore)(nil)

// InTx выполняет fn в транзакции READ COMMITTED
func (s *CatalogStore) InTx(ctx context.Context, fn func(ctx context.Context, tx catalog.Tx) error) error {
	return inTx(ctx, s.pool, func(ctx context.Context, tx *pgTx) error { return fn(ctx, tx) })
}

// GetBook возвращает книгу с состоянием склада
func (s *CatalogStore) GetBook(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bookWithInventoryColumns+`
		FROM books b LEFT JOIN inventory i ON i.book_id = b.id
		WHERE b.id = $1`, id)
	b, err := scanBook(row, true)
	if err != nil {
		return nil, mapErr("чтение книги", err)
	}
	return b, nil
}

// ListBooks возвращает книги по фильтру, новые первыми
func (s *CatalogStore) ListBooks(ctx context.Context, f catalog.BookFilter) ([]models.Book, error) {
	query, args, err := buildListBooksQuery(f)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr("список книг", err)
	}
	return collectBooks(rows, true)
}

// CategoryByName ищет категорию по имени без учёта регистра
func (s *CatalogStore) CategoryByName(ctx context.Context, name string) (*models.Category, error) {
	return categoryByName(ctx, s.pool, name)
}

// GenreByName ищет жанр по имени без учёта регистра
func (s *CatalogStore) GenreByName(ctx context.Context, name string) (*models.Genre, error) {
	return genreByName(ctx, s.pool, name)
}

// AddWishlist добавляет книгу в список желаемого
func (s *CatalogStore) AddWishlist(ctx context.Context, item *models.WishlistItem) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, item.BookID).Scan(&exists); err != nil {
		return mapErr("проверка книги", err)
	}
	if !exists {
		return apperr.ErrNotFound
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO wishlist (id, user_id, book_id, created_at)
		VALUES ($1, $2, $3, $4)`, item.ID, item.UserID, item.BookID, item.CreatedAt)
	if isUniqueViolation(err) {
		return catalog.ErrAlreadyWishlisted
	}
	return mapErr("добавление в список желаемого", err)
}

// RemoveWishlist удаляет книгу из списка желаемого
func (s *CatalogStore) RemoveWishlist(ctx context.Context, userID, bookID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM wishlist WHERE user_id = $1 AND book_id = $2`, userID, bookID)
	if err != nil {
		return mapErr("удаление из списка желаемого", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ListWishlist возвращает список желаемого пользователя вместе с книгами
func (s *CatalogStore) ListWishlist(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT w.id, w.user_id, w.book_id, w.created_at, `+bookWithInventoryColumns+`
		FROM wishlist w
		JOIN books b ON b.id = w.book_id
		LEFT JOIN inventory i ON i.book_id = b.id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC`, userID)
	if err != nil {
		return nil, mapErr("список желаемого", err)
	}
	defer rows.Close()

	var out []models.WishlistItem
	for rows.Next() {
		var item models.WishlistItem
		b, err := scanBook(prefixScanner{row: rows, prefix: []any{&item.ID, &item.UserID, &item.BookID, &item.CreatedAt}}, true)
		if err != nil {
			return nil, mapErr("чтение списка желаемого", err)
		}
		item.Book = b
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("список желаемого", err)
	}
	return out, nil
}

// prefixScanner дописывает впереди поля, предшествующие колонкам книги
type prefixScanner struct {
	row    scanner
	prefix []any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.row.Scan(append(p.prefix, dest...)...)
}

func buildListBooksQuery(f catalog.BookFilter) (string, []any, error) {
	where := make([]exp.Expression, 0, 3)
	if f.OwnerID != nil {
		where = append(where, goqu.I("b.owner_id").Eq(f.OwnerID.String()))
	}
	if f.ExcludeOwnerID != nil {
		where = append(where, goqu.I("b.owner_id").Neq(f.ExcludeOwnerID.String()))
	}
	if f.Status != "" {
		where = append(where, goqu.I("i.status").Eq(f.Status))
	}

	stmt := goqu.Dialect(dialectPostgres).
		From(goqu.T("books").As("b")).
		LeftJoin(goqu.T("inventory").As("i"), goqu.On(goqu.I("i.book_id").Eq(goqu.I("b.id")))).
		Select(goqu.L(bookWithInventoryColumns)).
		Where(where...).
		Order(goqu.I("b.created_at").Desc(), goqu.I("b.slug").Asc()).
		Prepared(true)
	if f.Limit > 0 {
		stmt = stmt.Limit(uint(f.Limit))
	}
	if f.Offset > 0 {
		stmt = stmt.Offset(uint(f.Offset))
	}

	query, args, err := stmt.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("ошибка построения запроса: %w", err)
	}
	return query, args, nil
}
