// Package app собирает зависимости процесса по конфигурации: хранилище,
// ленту уведомлений, движок обменов и каталог.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/rajivgeraev/bookswap-api/internal/catalog"
	"github.com/rajivgeraev/bookswap-api/internal/config"
	"github.com/rajivgeraev/bookswap-api/internal/db"
	"github.com/rajivgeraev/bookswap-api/internal/db/memstore"
	"github.com/rajivgeraev/bookswap-api/internal/exchange"
	"github.com/rajivgeraev/bookswap-api/internal/notify"
)

// Deps - собранные зависимости
type Deps struct {
	Engine  *exchange.Engine
	Catalog *catalog.Service
	Feed    notify.Feed

	closers   []func()
	closeOnce sync.Once
}

// Close освобождает соединения. Повторный вызов ничего не делает.
func (d *Deps) Close() {
	d.closeOnce.Do(func() {
		for i := len(d.closers) - 1; i >= 0; i-- {
			d.closers[i]()
		}
	})
}

// NewLogger создаёт логгер: текстовый в режиме разработки, JSON иначе
func NewLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Build подключает хранилища и создаёт сервисы
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	d := &Deps{}

	var (
		exchangeStore exchange.Store
		catalogStore  catalog.Store
	)
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("используется хранилище в памяти, данные не сохраняются между запусками")
		mem := memstore.New()
		exchangeStore = memstore.NewExchangeStore(mem)
		catalogStore = memstore.NewCatalogStore(mem)
	default:
		if err := db.InitDB(cfg); err != nil {
			return nil, err
		}
		d.closers = append(d.closers, db.CloseDB)
		if err := db.Migrate(ctx, db.Pool); err != nil {
			d.Close()
			return nil, err
		}
		exchangeStore = db.NewExchangeStore(db.Pool)
		catalogStore = db.NewCatalogStore(db.Pool)
	}

	feed, err := buildFeed(ctx, cfg, logger, d)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Feed = feed

	d.Engine = exchange.NewEngine(exchangeStore,
		exchange.WithTTL(cfg.ExchangeTTL),
		exchange.WithNotifier(feed),
		exchange.WithLogger(logger.With("component", "exchange")),
	)

	d.Catalog, err = catalog.NewService(ctx, catalogStore, logger.With("component", "catalog"), time.Now)
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func buildFeed(ctx context.Context, cfg *config.Config, logger *slog.Logger, d *Deps) (notify.Feed, error) {
	if cfg.MongoConfig.URI == "" {
		logger.Warn("MONGO_URI не задан, лента уведомлений хранится в памяти")
		return notify.NewMemoryStore(), nil
	}

	client, err := notify.Connect(ctx, cfg.MongoConfig.URI)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, func() { disconnect(client, logger) })

	store := notify.NewMongoStore(client.Database(cfg.MongoConfig.Database))
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ошибка подготовки ленты уведомлений: %w", err)
	}
	logger.Info("лента уведомлений подключена к MongoDB", "db", cfg.MongoConfig.Database)
	return store, nil
}

func disconnect(client *mongo.Client, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Warn("ошибка отключения от MongoDB", "err", err)
	}
}
