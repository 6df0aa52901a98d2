package exchange

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/bookswap-api/internal/apperr"
	"github.com/rajivgeraev/bookswap-api/internal/models"
)

// SweepExpired переводит в expired активные запросы с expires_at < now и
// освобождает их книги. Каждый запрос обрабатывается в своей транзакции;
// уже завершённые и занятые конкурентом запросы пропускаются, поэтому
// повторный запуск с тем же now ничего не меняет.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := e.store.ExpiredCandidates(ctx, now)
	if err != nil {
		e.logFailure("sweep_expired", uuid.Nil, err)
		return 0, err
	}

	var (
		expired int
		errs    []error
	)
	for _, id := range ids {
		ok, err := e.expireOne(ctx, id, now)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindConcurrentModification {
				e.logger.Warn("запрос занят, пропускаем до следующего прохода", "id", id)
				continue
			}
			e.logFailure("sweep_expired", id, err)
			errs = append(errs, err)
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, errors.Join(errs...)
}

func (e *Engine) expireOne(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	var out *Result
	err := e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.RequestForUpdate(ctx, id)
		if err != nil {
			return err
		}
		out = &Result{Request: r}
		if !r.Status.IsActive() || !r.ExpiresAt.Before(now) {
			return nil
		}

		r.Status = models.StatusExpired
		r.UpdatedAt = now.UTC()
		if err := e.ledger.Release(ctx, tx, r.BookIDs(), r.ID); err != nil {
			return err
		}
		out.notify(r.OwnerID, models.NotifyExpired, r, "Exchange request expired.")
		out.notify(r.RequesterID, models.NotifyExpired, r, "Exchange request expired.")
		return tx.UpdateRequest(ctx, r)
	})
	if err != nil {
		return false, err
	}
	if out == nil || len(out.notes) == 0 {
		return false, nil
	}
	e.deliver(ctx, out.notes)
	return true, nil
}

// Sweeper периодически запускает SweepExpired
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper создает новый экземпляр Sweeper
func NewSweeper(engine *Engine, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{engine: engine, interval: interval, logger: logger}
}

// Run выполняет проход сразу и затем по таймеру до отмены контекста
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// Start запускает Run в отдельной горутине. Возвращённый канал закрывается,
// когда Run завершился после отмены контекста.
func (s *Sweeper) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return done
}

// SweepOnce выполняет один проход
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	n, err := s.engine.SweepExpired(ctx, s.engine.now().UTC())
	if err != nil {
		s.logger.Error("ошибка при истечении запросов", "expired", n, "err", err)
	}
	if n > 0 {
		s.logger.Info("истёкшие запросы закрыты", "expired", n)
	}
	return n
}
