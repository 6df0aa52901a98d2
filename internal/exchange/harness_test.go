package exchange_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/bookswap-api/internal/catalog"
	"github.com/rajivgeraev/bookswap-api/internal/db/memstore"
	"github.com/rajivgeraev/bookswap-api/internal/exchange"
	"github.com/rajivgeraev/bookswap-api/internal/models"
	"github.com/rajivgeraev/bookswap-api/internal/notify"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	clock   *clock
	store   *memstore.ExchangeStore
	engine  *exchange.Engine
	catalog *catalog.Service
	feed    *notify.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	clk := &clock{now: time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db := memstore.New()
	store := memstore.NewExchangeStore(db)
	feed := notify.NewMemoryStore()
	svc, err := catalog.NewService(ctx, memstore.NewCatalogStore(db), logger, clk.Now)
	require.NoError(t, err)

	return &harness{
		t:     t,
		ctx:   ctx,
		clock: clk,
		store: store,
		engine: exchange.NewEngine(store,
			exchange.WithClock(clk.Now),
			exchange.WithNotifier(feed),
			exchange.WithLogger(logger),
		),
		catalog: svc,
		feed:    feed,
	}
}

// book выставляет книгу; пустая цена - книга без цены
func (h *harness) book(owner uuid.UUID, title, price string) uuid.UUID {
	h.t.Helper()
	in := catalog.BookInput{Title: title, Author: "Author", Condition: "good"}
	if price != "" {
		p := decimal.RequireFromString(price)
		in.Price = &p
	}
	b, err := h.catalog.CreateBook(h.ctx, owner, in)
	require.NoError(h.t, err)
	return b.ID
}

func (h *harness) inventory(bookID uuid.UUID) models.Inventory {
	h.t.Helper()
	b, err := h.catalog.GetBook(h.ctx, bookID)
	require.NoError(h.t, err)
	require.NotNil(h.t, b.Inventory)
	return *b.Inventory
}

func (h *harness) request(id uuid.UUID) *models.ExchangeRequest {
	h.t.Helper()
	r, err := h.store.GetRequest(h.ctx, id)
	require.NoError(h.t, err)
	return r
}

func (h *harness) create(requester, bookID uuid.UUID, wantsCash bool) *models.ExchangeRequest {
	h.t.Helper()
	r, err := h.engine.CreateRequest(h.ctx, requester, bookID, wantsCash, "")
	require.NoError(h.t, err)
	return r
}

func (h *harness) requireLockedBy(bookID, requestID uuid.UUID) {
	h.t.Helper()
	inv := h.inventory(bookID)
	require.Equal(h.t, models.InventoryRequested, inv.Status)
	require.NotNil(h.t, inv.LockedBy)
	require.Equal(h.t, requestID, *inv.LockedBy)
}

func (h *harness) requireFree(bookID uuid.UUID) {
	h.t.Helper()
	inv := h.inventory(bookID)
	require.Equal(h.t, models.InventoryAvailable, inv.Status)
	require.Nil(h.t, inv.LockedBy)
}
