package catalog_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/bookswap-api/internal/apperr"
	"github.com/rajivgeraev/bookswap-api/internal/catalog"
	"github.com/rajivgeraev/bookswap-api/internal/db/memstore"
	"github.com/rajivgeraev/bookswap-api/internal/exchange"
	"github.com/rajivgeraev/bookswap-api/internal/models"
)

type fixture struct {
	ctx     context.Context
	store   *memstore.CatalogStore
	svc     *catalog.Service
	engine  *exchange.Engine
	others  uuid.UUID
	othersG uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := memstore.New()
	store := memstore.NewCatalogStore(db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := func() time.Time { return time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC) }

	svc, err := catalog.NewService(ctx, store, logger, now)
	require.NoError(t, err)

	cat, err := store.CategoryByName(ctx, models.OthersName)
	require.NoError(t, err)
	gen, err := store.GenreByName(ctx, models.OthersName)
	require.NoError(t, err)

	return &fixture{
		ctx:     ctx,
		store:   store,
		svc:     svc,
		engine:  exchange.NewEngine(memstore.NewExchangeStore(db), exchange.WithLogger(logger)),
		others:  cat.ID,
		othersG: gen.ID,
	}
}

func input(title string) catalog.BookInput {
	return catalog.BookInput{Title: title, Author: "Stanisław Lem", Condition: "good"}
}

func TestCreateBook(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()
	in := input("  Solaris  ")
	price := decimal.RequireFromString("12.50")
	in.Price = &price

	b, err := f.svc.CreateBook(f.ctx, owner, in)
	require.NoError(t, err)
	assert.Equal(t, "Solaris", b.Title)
	assert.Equal(t, "solaris", b.Slug)
	assert.Equal(t, owner, b.OwnerID)
	require.NotNil(t, b.Inventory)
	assert.Equal(t, models.InventoryAvailable, b.Inventory.Status)
	assert.True(t, price.Equal(*b.Price))

	again, err := f.svc.CreateBook(f.ctx, owner, input("Solaris"))
	require.NoError(t, err)
	assert.Equal(t, "solaris-1", again.Slug)
}

func TestCreateBookValidation(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	cases := map[string]struct {
		mutate func(*catalog.BookInput)
		want   error
	}{
		"без названия":          {func(in *catalog.BookInput) { in.Title = " " }, catalog.ErrTitleRequired},
		"без автора":            {func(in *catalog.BookInput) { in.Author = "" }, catalog.ErrAuthorRequired},
		"неизвестное состояние": {func(in *catalog.BookInput) { in.Condition = "shiny" }, catalog.ErrBadCondition},
		"отрицательная цена": {func(in *catalog.BookInput) {
			p := decimal.NewFromInt(-1)
			in.Price = &p
		}, catalog.ErrNegativePrice},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := input("Eden")
			tc.mutate(&in)
			_, err := f.svc.CreateBook(f.ctx, owner, in)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestOthersResolvesToCustomClassification(t *testing.T) {
	f := newFixture(t)
	owner := uuid.New()

	in := input("Eden")
	in.CategoryID = &f.others
	_, err := f.svc.CreateBook(f.ctx, owner, in)
	assert.ErrorIs(t, err, catalog.ErrCustomCategory)

	in.CustomCategory = "Hard SF"
	in.GenreID = &f.othersG
	in.CustomGenre = "Philosophical"
	b, err := f.svc.CreateBook(f.ctx, owner, in)
	require.NoError(t, err)
	require.NotNil(t, b.CategoryID)
	assert.NotEqual(t, f.others, *b.CategoryID)
	require.NotNil(t, b.GenreID)
	assert.NotEqual(t, f.othersG, *b.GenreID)

	cat, err := f.store.CategoryByName(f.ctx, "hard sf")
	require.NoError(t, err)
	assert.Equal(t, cat.ID, *b.CategoryID)

	// повторное использование существующей пользовательской категории
	in.Title = "Fiasco"
	second, err := f.svc.CreateBook(f.ctx, owner, in)
	require.NoError(t, err)
	assert.Equal(t, *b.CategoryID, *second.CategoryID)

	in.CategoryID = &cat.ID
	in.CustomCategory = ""
	third, err := f.svc.CreateBook(f.ctx, owner, in)
	require.NoError(t, err)
	assert.Equal(t, cat.ID, *third.CategoryID)

	unknown := uuid.New()
	in.CategoryID = &unknown
	_, err = f.svc.CreateBook(f.ctx, owner, in)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateAndDeleteOnlyWhileFree(t *testing.T) {
	f := newFixture(t)
	owner, requester := uuid.New(), uuid.New()
	b, err := f.svc.CreateBook(f.ctx, owner, input("Eden"))
	require.NoError(t, err)
	offered, err := f.svc.CreateBook(f.ctx, requester, input("Fiasco"))
	require.NoError(t, err)

	_, err = f.svc.UpdateBook(f.ctx, requester, b.ID, input("Mine now"))
	assert.ErrorIs(t, err, catalog.ErrNotOwner)

	updated, err := f.svc.UpdateBook(f.ctx, owner, b.ID, input("Eden (2nd ed.)"))
	require.NoError(t, err)
	assert.Equal(t, "Eden (2nd ed.)", updated.Title)
	assert.Equal(t, b.Slug, updated.Slug, "slug не меняется при правке")

	r, err := f.engine.CreateRequest(f.ctx, requester, b.ID, false, "")
	require.NoError(t, err)
	_, err = f.engine.CounterOffer(f.ctx, r.ID, owner, offered.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateBook(f.ctx, owner, b.ID, input("Eden"))
	assert.ErrorIs(t, err, catalog.ErrBookLocked)
	assert.ErrorIs(t, f.svc.DeleteBook(f.ctx, owner, b.ID), catalog.ErrBookLocked)
	_, err = f.svc.SetAvailability(f.ctx, owner, b.ID, false)
	assert.ErrorIs(t, err, exchange.ErrBookUnavailable)

	_, err = f.engine.Cancel(f.ctx, r.ID, owner, "")
	require.NoError(t, err)

	// после обмена, даже отменённого, книгу нельзя удалить
	assert.ErrorIs(t, f.svc.DeleteBook(f.ctx, owner, b.ID), catalog.ErrBookHasHistory)

	fresh, err := f.svc.CreateBook(f.ctx, owner, input("Peace on Earth"))
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteBook(f.ctx, owner, fresh.ID))
	_, err = f.svc.GetBook(f.ctx, fresh.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSetAvailability(t *testing.T) {
	f := newFixture(t)
	owner, viewer := uuid.New(), uuid.New()
	b, err := f.svc.CreateBook(f.ctx, owner, input("Eden"))
	require.NoError(t, err)

	_, err = f.svc.SetAvailability(f.ctx, viewer, b.ID, false)
	assert.ErrorIs(t, err, catalog.ErrNotOwner)

	got, err := f.svc.SetAvailability(f.ctx, owner, b.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.InventoryUnavailable, got.Inventory.Status)

	explore, err := f.svc.ExploreBooks(f.ctx, viewer, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, explore)

	got, err = f.svc.SetAvailability(f.ctx, owner, b.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.InventoryAvailable, got.Inventory.Status)

	explore, err = f.svc.ExploreBooks(f.ctx, viewer, 0, 0)
	require.NoError(t, err)
	require.Len(t, explore, 1)

	own, err := f.svc.ExploreBooks(f.ctx, owner, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, own, "свои книги не показываются в ленте")

	mine, err := f.svc.MyBooks(f.ctx, owner, 10, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestWishlist(t *testing.T) {
	f := newFixture(t)
	owner, user := uuid.New(), uuid.New()
	b, err := f.svc.CreateBook(f.ctx, owner, input("Eden"))
	require.NoError(t, err)

	_, err = f.svc.AddToWishlist(f.ctx, owner, b.ID)
	assert.ErrorIs(t, err, catalog.ErrOwnBookWishlist)

	item, err := f.svc.AddToWishlist(f.ctx, user, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, item.BookID)

	_, err = f.svc.AddToWishlist(f.ctx, user, b.ID)
	assert.ErrorIs(t, err, catalog.ErrAlreadyWishlisted)

	_, err = f.svc.AddToWishlist(f.ctx, user, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	items, err := f.svc.Wishlist(f.ctx, user)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Book)
	assert.Equal(t, "Eden", items[0].Book.Title)

	require.NoError(t, f.svc.RemoveFromWishlist(f.ctx, user, b.ID))
	assert.ErrorIs(t, f.svc.RemoveFromWishlist(f.ctx, user, b.ID), apperr.ErrNotFound)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Solaris":                 "solaris",
		"  The Cyberiad: Fables ": "the-cyberiad-fables",
		"Пикник на обочине":       "пикник-на-обочине",
		"!!!":                     "",
		"C++ -- for dummies":      "c-for-dummies",
	}
	for in, want := range cases {
		assert.Equal(t, want, catalog.Slugify(in), in)
	}
}
