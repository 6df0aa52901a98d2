// Команда expire-requests выполняет один проход по истёкшим запросам на
// обмен. Предназначена для запуска по расписанию (cron).
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/rajivgeraev/bookswap-api/internal/app"
	"github.com/rajivgeraev/bookswap-api/internal/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("ошибка загрузки конфигурации", "err", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("ошибка инициализации", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	n, err := deps.Engine.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("проход завершён с ошибками", "expired", n, "err", err)
		deps.Close()
		os.Exit(1)
	}
	logger.Info("проход завершён", "expired", n)
}
