package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajivgeraev/bookswap-api/internal/apperr"
	"github.com/rajivgeraev/bookswap-api/internal/exchange"
	"github.com/rajivgeraev/bookswap-api/internal/models"
)

// pgTx реализует exchange.Tx и catalog.Tx. Все блокировки берутся с
// NOWAIT: занятая строка сразу даёт ошибку 55P03.
type pgTx struct {
	tx pgx.Tx
}

func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context, tx *pgTx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapErr("начало транзакции", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return mapErr("транзакция", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr("фиксация транзакции", err)
	}
	return nil
}

func (t *pgTx) BookByID(ctx context.Context, id uuid.UUID) (*models.Book, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+bookColumns+` FROM books b WHERE b.id = $1`, id)
	b, err := scanBook(row, false)
	if err != nil {
		return nil, mapErr("чтение книги", err)
	}
	return b, nil
}

func (t *pgTx) InventoryForUpdate(ctx context.Context, bookIDs []uuid.UUID) ([]models.Inventory, error) {
	return t.lockInventory(ctx, bookIDs, "FOR UPDATE NOWAIT")
}

// InventoryForShare берёт разделяемую блокировку: параллельные создания
// запросов на одну книгу не мешают друг другу, но конфликтуют с FOR UPDATE
// встречного предложения и одобрения.
func (t *pgTx) InventoryForShare(ctx context.Context, bookID uuid.UUID) (*models.Inventory, error) {
	rows, err := t.lockInventory(ctx, []uuid.UUID{bookID}, "FOR SHARE NOWAIT")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.ErrNotFound
	}
	return &rows[0], nil
}

func (t *pgTx) lockInventory(ctx context.Context, bookIDs []uuid.UUID, lock string) ([]models.Inventory, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT book_id, status, locked_by, updated_at
		FROM inventory
		WHERE book_id = ANY($1::uuid[])
		ORDER BY book_id
		`+lock, uuidStrings(bookIDs))
	if err != nil {
		return nil, mapErr("блокировка склада", err)
	}
	defer rows.Close()

	var out []models.Inventory
	for rows.Next() {
		var inv models.Inventory
		if err := rows.Scan(&inv.BookID, &inv.Status, &inv.LockedBy, &inv.UpdatedAt); err != nil {
			return nil, mapErr("чтение склада", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("блокировка склада", err)
	}
	return out, nil
}

func (t *pgTx) SaveInventory(ctx context.Context, inv models.Inventory) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE inventory SET status = $2, locked_by = $3, updated_at = $4
		WHERE book_id = $1`, inv.BookID, inv.Status, inv.LockedBy, inv.UpdatedAt)
	if err != nil {
		return mapErr("обновление склада", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertInventory(ctx context.Context, inv models.Inventory) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO inventory (book_id, status, locked_by, updated_at)
		VALUES ($1, $2, $3, $4)`, inv.BookID, inv.Status, inv.LockedBy, inv.UpdatedAt)
	return mapErr("создание записи склада", err)
}

func (t *pgTx) RequestForUpdate(ctx context.Context, id uuid.UUID) (*models.ExchangeRequest, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+requestColumns+`
		FROM exchange_requests WHERE id = $1 FOR UPDATE NOWAIT`, id)
	r, err := scanRequest(row)
	if err != nil {
		return nil, mapErr("блокировка запроса", err)
	}
	return r, nil
}

func (t *pgTx) ActiveRequestExists(ctx context.Context, requesterID, bookID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM exchange_requests
			WHERE requester_id = $1 AND book_id = $2 AND status IN ('pending', 'approved')
		)`, requesterID, bookID).Scan(&exists)
	if err != nil {
		return false, mapErr("проверка активного запроса", err)
	}
	return exists, nil
}

func (t *pgTx) InsertRequest(ctx context.Context, r *models.ExchangeRequest) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO exchange_requests (
			id, requester_id, owner_id, book_id, expected_book_id, message,
			requester_wants_cash, is_cash, cash_amount, owner_confirmed, requester_confirmed,
			status, rejected_by, reject_reason, cancelled_by, cancel_reason,
			created_at, updated_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		r.ID, r.RequesterID, r.OwnerID, r.BookID, r.ExpectedBookID, r.Message,
		r.RequesterWantsCash, r.IsCash, decimalArg(r.CashAmount), r.OwnerConfirmed, r.RequesterConfirmed,
		string(r.Status), r.RejectedBy, r.RejectReason, r.CancelledBy, r.CancelReason,
		r.CreatedAt, r.UpdatedAt, r.ExpiresAt,
	)
	if isUniqueViolation(err) {
		return exchange.ErrDuplicateRequest
	}
	return mapErr("создание запроса", err)
}

func (t *pgTx) UpdateRequest(ctx context.Context, r *models.ExchangeRequest) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE exchange_requests SET
			expected_book_id = $2, is_cash = $3, cash_amount = $4::numeric,
			owner_confirmed = $5, requester_confirmed = $6, status = $7,
			rejected_by = $8, reject_reason = $9, cancelled_by = $10, cancel_reason = $11,
			updated_at = $12
		WHERE id = $1`,
		r.ID, r.ExpectedBookID, r.IsCash, decimalArg(r.CashAmount),
		r.OwnerConfirmed, r.RequesterConfirmed, string(r.Status),
		r.RejectedBy, r.RejectReason, r.CancelledBy, r.CancelReason,
		r.UpdatedAt,
	)
	if err != nil {
		return mapErr("обновление запроса", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (t *pgTx) PendingForBooksForUpdate(ctx context.Context, bookIDs []uuid.UUID, exceptID uuid.UUID) ([]models.ExchangeRequest, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+requestColumns+`
		FROM exchange_requests
		WHERE book_id = ANY($1::uuid[]) AND status = 'pending' AND id <> $2
		ORDER BY id
		FOR UPDATE NOWAIT`, uuidStrings(bookIDs), exceptID)
	if err != nil {
		return nil, mapErr("блокировка конкурирующих запросов", err)
	}
	return collectRequests(rows)
}

func (t *pgTx) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM books WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, mapErr("проверка slug", err)
	}
	return exists, nil
}

func (t *pgTx) InsertBook(ctx context.Context, b *models.Book) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO books (
			id, owner_id, title, author, slug, description, isbn, category_id, genre_id,
			language, condition, price, location, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::numeric, $13, $14, $15)`,
		b.ID, b.OwnerID, b.Title, b.Author, b.Slug, b.Description, b.ISBN, b.CategoryID, b.GenreID,
		b.Language, b.Condition, decimalArg(b.Price), b.Location, b.CreatedAt, b.UpdatedAt,
	)
	return mapErr("создание книги", err)
}

func (t *pgTx) UpdateBook(ctx context.Context, b *models.Book) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE books SET
			title = $2, author = $3, slug = $4, description = $5, isbn = $6,
			category_id = $7, genre_id = $8, language = $9, condition = $10,
			price = $11::numeric, location = $12, updated_at = $13
		WHERE id = $1`,
		b.ID, b.Title, b.Author, b.Slug, b.Description, b.ISBN,
		b.CategoryID, b.GenreID, b.Language, b.Condition,
		decimalArg(b.Price), b.Location, b.UpdatedAt,
	)
	if err != nil {
		return mapErr("обновление книги", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteBook удаляет книгу; склад и список желаемого чистятся каскадно
func (t *pgTx) DeleteBook(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return mapErr("удаление книги", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (t *pgTx) BookHasRequests(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM exchange_requests WHERE book_id = $1 OR expected_book_id = $1
		)`, id).Scan(&exists)
	if err != nil {
		return false, mapErr("проверка истории обменов", err)
	}
	return exists, nil
}

func (t *pgTx) CategoryByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var c models.Category
	err := t.tx.QueryRow(ctx, `SELECT id, name FROM categories WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	if err != nil {
		return nil, mapErr("чтение категории", err)
	}
	return &c, nil
}

func (t *pgTx) CategoryByName(ctx context.Context, name string) (*models.Category, error) {
	return categoryByName(ctx, t.tx, name)
}

func (t *pgTx) InsertCategory(ctx context.Context, c *models.Category) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO categories (id, name) VALUES ($1, $2)`, c.ID, c.Name)
	return mapErr("создание категории", err)
}

func (t *pgTx) GenreByID(ctx context.Context, id uuid.UUID) (*models.Genre, error) {
	var g models.Genre
	err := t.tx.QueryRow(ctx, `SELECT id, name FROM genres WHERE id = $1`, id).Scan(&g.ID, &g.Name)
	if err != nil {
		return nil, mapErr("чтение жанра", err)
	}
	return &g, nil
}

func (t *pgTx) GenreByName(ctx context.Context, name string) (*models.Genre, error) {
	return genreByName(ctx, t.tx, name)
}

func (t *pgTx) InsertGenre(ctx context.Context, g *models.Genre) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO genres (id, name) VALUES ($1, $2)`, g.ID, g.Name)
	return mapErr("создание жанра", err)
}

// querier - общее подмножество pgxpool.Pool и pgx.Tx
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func categoryByName(ctx context.Context, q querier, name string) (*models.Category, error) {
	var c models.Category
	err := q.QueryRow(ctx, `SELECT id, name FROM categories WHERE lower(name) = lower(btrim($1))`, name).
		Scan(&c.ID, &c.Name)
	if err != nil {
		return nil, mapErr("поиск категории", err)
	}
	return &c, nil
}

func genreByName(ctx context.Context, q querier, name string) (*models.Genre, error) {
	var g models.Genre
	err := q.QueryRow(ctx, `SELECT id, name FROM genres WHERE lower(name) = lower(btrim($1))`, name).
		Scan(&g.ID, &g.Name)
	if err != nil {
		return nil, mapErr("поиск жанра", err)
	}
	return &g, nil
}

func collectRequests(rows pgx.Rows) ([]models.ExchangeRequest, error) {
	defer rows.Close()
	var out []models.ExchangeRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, mapErr("чтение запроса", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("чтение запросов", err)
	}
	return out, nil
}

func collectBooks(rows pgx.Rows, withInventory bool) ([]models.Book, error) {
	defer rows.Close()
	var out []models.Book
	for rows.Next() {
		b, err := scanBook(rows, withInventory)
		if err != nil {
			return nil, mapErr("чтение книги", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("чтение книг", err)
	}
	return out, nil
}
