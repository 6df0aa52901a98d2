package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rajivgeraev/bookswap-api/internal/app"
	"github.com/rajivgeraev/bookswap-api/internal/config"
	"github.com/rajivgeraev/bookswap-api/internal/exchange"
	"github.com/rajivgeraev/bookswap-api/internal/server"
	"github.com/rajivgeraev/bookswap-api/internal/utils"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("ошибка загрузки конфигурации", "err", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("ошибка инициализации", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	// Чистильщик истёкших запросов работает рядом с HTTP-сервером
	sweeper := exchange.NewSweeper(deps.Engine, cfg.SweepInterval, logger)
	sweeperDone := sweeper.Start(ctx)

	srv := server.New(server.Deps{
		Engine:     deps.Engine,
		Catalog:    deps.Catalog,
		Feed:       deps.Feed,
		JWTService: utils.NewJWTService(cfg.JWTSecret),
		Logger:     logger,
		DevTokens:  cfg.IsDevelopment(),
		AccessLog:  true,

		RequestTimeout: cfg.RequestTimeout,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("ошибка остановки сервера", "err", err)
		}
	}()

	// Запускаем сервер
	logger.Info("BookSwap API запущен", "port", cfg.Port, "storage", cfg.Storage)
	if err := srv.Listen(":" + cfg.Port); err != nil {
		logger.Error("сервер остановлен с ошибкой", "err", err)
	}

	// Хранилища закрываются только после последнего прохода чистильщика
	stop()
	<-sweeperDone
}
