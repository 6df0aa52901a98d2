package db

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/bookswap-api/internal/apperr"
	"github.com/rajivgeraev/bookswap-api/internal/catalog"
	"github.com/rajivgeraev/bookswap-api/internal/exchange"
	"github.com/rajivgeraev/bookswap-api/internal/models"
)

// Тесты против живой PostgreSQL. Без TEST_DATABASE_URL пропускаются.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL не задан")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	return pool
}

type pgEnv struct {
	ctx     context.Context
	pool    *pgxpool.Pool
	store   *ExchangeStore
	engine  *exchange.Engine
	catalog *catalog.Service
	others  uuid.UUID
}

func newPGEnv(t *testing.T) *pgEnv {
	pool := openTestPool(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cs := NewCatalogStore(pool)
	svc, err := catalog.NewService(ctx, cs, logger, nil)
	require.NoError(t, err)
	others, err := cs.CategoryByName(ctx, models.OthersName)
	require.NoError(t, err)
	store := NewExchangeStore(pool)
	return &pgEnv{
		ctx:     ctx,
		pool:    pool,
		store:   store,
		engine:  exchange.NewEngine(store, exchange.WithLogger(logger)),
		catalog: svc,
		others:  others.ID,
	}
}

func (e *pgEnv) book(t *testing.T, owner uuid.UUID, title, price string) *models.Book {
	t.Helper()
	in := catalog.BookInput{
		Title:          title,
		Author:         "Author",
		Condition:      "good",
		CategoryID:     &e.others,
		CustomCategory: "Integration",
	}
	if price != "" {
		p := decimal.RequireFromString(price)
		in.Price = &p
	}
	b, err := e.catalog.CreateBook(e.ctx, owner, in)
	require.NoError(t, err)
	return b
}

func TestMigrateIsIdempotent(t *testing.T) {
	pool := openTestPool(t)
	require.NoError(t, Migrate(context.Background(), pool))
}

func TestPostgresExchangeCycle(t *testing.T) {
	e := newPGEnv(t)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	x := e.book(t, a, "Dune", "12.50")
	y := e.book(t, b, "Solaris", "")
	require.NotNil(t, x.Price)
	assert.True(t, decimal.RequireFromString("12.5").Equal(*x.Price))

	r, err := e.engine.CreateRequest(e.ctx, b, x.ID, false, "hi")
	require.NoError(t, err)
	competitor, err := e.engine.CreateRequest(e.ctx, c, x.ID, false, "")
	require.NoError(t, err)

	_, err = e.engine.CreateRequest(e.ctx, b, x.ID, false, "")
	assert.ErrorIs(t, err, exchange.ErrDuplicateRequest)

	n, err := e.engine.CountPendingForOwner(e.ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = e.engine.CounterOffer(e.ctx, r.ID, a, y.ID)
	require.NoError(t, err)

	res, err := e.engine.Accept(e.ctx, r.ID, b)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, res.Request.Status)
	assert.Equal(t, []uuid.UUID{competitor.ID}, res.AutoRejected)

	got, err := e.store.GetRequest(e.ctx, competitor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	require.NotNil(t, got.RejectedBy)
	assert.Equal(t, a, *got.RejectedBy)

	book, err := e.catalog.GetBook(e.ctx, x.ID)
	require.NoError(t, err)
	require.NotNil(t, book.Inventory.LockedBy)
	assert.Equal(t, r.ID, *book.Inventory.LockedBy)

	_, err = e.engine.ConfirmReceipt(e.ctx, r.ID, a)
	require.NoError(t, err)
	res, err = e.engine.ConfirmReceipt(e.ctx, r.ID, b)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, res.Request.Status)

	for _, id := range []uuid.UUID{x.ID, y.ID} {
		book, err := e.catalog.GetBook(e.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.InventoryExchanged, book.Inventory.Status)
		assert.Nil(t, book.Inventory.LockedBy)
	}

	list, err := e.engine.ListRequests(e.ctx, models.RequestFilter{PartyID: &a, BookID: &x.ID})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	err = e.catalog.DeleteBook(e.ctx, a, x.ID)
	assert.Error(t, err)
}

func TestPostgresCashPrice(t *testing.T) {
	e := newPGEnv(t)
	a, b := uuid.New(), uuid.New()
	x := e.book(t, a, "Emma", "7.25")

	r, err := e.engine.CreateRequest(e.ctx, b, x.ID, true, "")
	require.NoError(t, err)
	res, err := e.engine.ApproveCash(e.ctx, r.ID, a)
	require.NoError(t, err)
	require.NotNil(t, res.Request.CashAmount)
	assert.Equal(t, "7.25", res.Request.CashAmount.StringFixed(2))

	got, err := e.store.GetRequest(e.ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCash)
	assert.Nil(t, got.ExpectedBookID)
	assert.True(t, res.Request.CashAmount.Equal(*got.CashAmount))
}

// Строка склада, удерживаемая другой транзакцией, даёт немедленный
// конфликт вместо ожидания.
func TestPostgresLockConflictFailsFast(t *testing.T) {
	e := newPGEnv(t)
	a, b := uuid.New(), uuid.New()
	x := e.book(t, a, "Ubik", "")
	y := e.book(t, b, "Valis", "")

	r, err := e.engine.CreateRequest(e.ctx, b, x.ID, false, "")
	require.NoError(t, err)

	holder, err := e.pool.Begin(e.ctx)
	require.NoError(t, err)
	defer holder.Rollback(e.ctx)
	_, err = holder.Exec(e.ctx, `SELECT 1 FROM inventory WHERE book_id = $1 FOR UPDATE`, x.ID.String())
	require.NoError(t, err)

	_, err = e.engine.CounterOffer(e.ctx, r.ID, a, y.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConcurrentModification, apperr.KindOf(err))

	require.NoError(t, holder.Rollback(e.ctx))
	_, err = e.engine.CounterOffer(e.ctx, r.ID, a, y.ID)
	assert.NoError(t, err)
}

// Создание запроса берёт разделяемую блокировку склада: чужое создание
// ему не мешает, а блокировка под обмен мешает.
func TestPostgresCreateRequestSharesInventoryLock(t *testing.T) {
	e := newPGEnv(t)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	x := e.book(t, a, "Hyperion", "")

	sharer, err := e.pool.Begin(e.ctx)
	require.NoError(t, err)
	defer sharer.Rollback(e.ctx)
	_, err = sharer.Exec(e.ctx, `SELECT 1 FROM inventory WHERE book_id = $1 FOR SHARE`, x.ID.String())
	require.NoError(t, err)

	_, err = e.engine.CreateRequest(e.ctx, b, x.ID, false, "")
	require.NoError(t, err)
	require.NoError(t, sharer.Rollback(e.ctx))

	holder, err := e.pool.Begin(e.ctx)
	require.NoError(t, err)
	defer holder.Rollback(e.ctx)
	_, err = holder.Exec(e.ctx, `SELECT 1 FROM inventory WHERE book_id = $1 FOR UPDATE`, x.ID.String())
	require.NoError(t, err)

	_, err = e.engine.CreateRequest(e.ctx, c, x.ID, false, "")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConcurrentModification, apperr.KindOf(err))
	require.NoError(t, holder.Rollback(e.ctx))

	_, err = e.engine.CreateRequest(e.ctx, c, x.ID, false, "")
	require.NoError(t, err)
	n, err := e.engine.CountPendingForOwner(e.ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPostgresConcurrentCreatesOnOneBook(t *testing.T) {
	e := newPGEnv(t)
	owner := uuid.New()
	x := e.book(t, owner, "Anathem", "")

	const n = 6
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.engine.CreateRequest(e.ctx, uuid.New(), x.ID, false, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	pending, err := e.engine.CountPendingForOwner(e.ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, n, pending)
}

func TestPostgresWishlist(t *testing.T) {
	e := newPGEnv(t)
	a, b := uuid.New(), uuid.New()
	x := e.book(t, a, "Kindred", "")

	_, err := e.catalog.AddToWishlist(e.ctx, b, x.ID)
	require.NoError(t, err)
	_, err = e.catalog.AddToWishlist(e.ctx, b, x.ID)
	assert.ErrorIs(t, err, catalog.ErrAlreadyWishlisted)

	items, err := e.catalog.Wishlist(e.ctx, b)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Book)
	assert.Equal(t, "Kindred", items[0].Book.Title)

	require.NoError(t, e.catalog.RemoveFromWishlist(e.ctx, b, x.ID))
	assert.ErrorIs(t, e.catalog.RemoveFromWishlist(e.ctx, b, x.ID), apperr.ErrNotFound)
}
