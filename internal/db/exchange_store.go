package db

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // диалект для goqu
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajivgeraev/bookswap-api/internal/exchange"
	"github.com/rajivgeraev/bookswap-api/internal/models"
)

const dialectPostgres = "postgres"

// ExchangeStore реализует exchange.Store поверх PostgreSQL
type ExchangeStore struct {
	pool *pgxpool.Pool
}

// NewExchangeStore создает новый экземпляр ExchangeStore
func NewExchangeStore(pool *pgxpool.Pool) *ExchangeStore {
	return &ExchangeStore{pool: pool}
}

var _ exchange.Store = (*ExchangeStore)(nil)

// InTx выполняет fn в транзакции READ COMMITTED
func (s *ExchangeStore) InTx(ctx context.Context, fn func(ctx context.Context, tx exchange.Tx) error) error {
	return inTx(ctx, s.pool, func(ctx context.Context, tx *pgTx) error { return fn(ctx, tx) })
}

// GetRequest возвращает запрос по id без блокировки
func (s *ExchangeStore) GetRequest(ctx context.Context, id uuid.UUID) (*models.ExchangeRequest, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM exchange_requests WHERE id = $1`, id)
	r, err := scanRequest(row)
	if err != nil {
		return nil, mapErr("чтение запроса", err)
	}
	return r, nil
}

// CountPending возвращает число pending-запросов владельца
func (s *ExchangeStore) CountPending(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM exchange_requests
		WHERE owner_id = $1 AND status = 'pending'`, ownerID).Scan(&n)
	if err != nil {
		return 0, mapErr("подсчёт запросов", err)
	}
	return n, nil
}

// ListRequests возвращает запросы по фильтру, новые первыми
func (s *ExchangeStore) ListRequests(ctx context.Context, f models.RequestFilter) ([]models.ExchangeRequest, error) {
	query, args, err := buildListRequestsQuery(f)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr("список запросов", err)
	}
	return collectRequests(rows)
}

// ExpiredCandidates возвращает активные запросы с истёкшим сроком
func (s *ExchangeStore) ExpiredCandidates(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM exchange_requests
		WHERE status IN ('pending', 'approved') AND expires_at < $1
		ORDER BY expires_at`, now)
	if err != nil {
		return nil, mapErr("поиск просроченных запросов", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, mapErr("чтение просроченных запросов", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr("поиск просроченных запросов", err)
	}
	return ids, nil
}

func buildListRequestsQuery(f models.RequestFilter) (string, []any, error) {
	where := make([]exp.Expression, 0, 5)
	if f.OwnerID != nil {
		where = append(where, goqu.C("owner_id").Eq(f.OwnerID.String()))
	}
	if f.RequesterID != nil {
		where = append(where, goqu.C("requester_id").Eq(f.RequesterID.String()))
	}
	if f.PartyID != nil {
		party := f.PartyID.String()
		where = append(where, goqu.Or(
			goqu.C("owner_id").Eq(party),
			goqu.C("requester_id").Eq(party),
		))
	}
	if f.BookID != nil {
		where = append(where, goqu.C("book_id").Eq(f.BookID.String()))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, goqu.C("status").In(statuses))
	}

	stmt := goqu.Dialect(dialectPostgres).
		From("exchange_requests").
		Select(goqu.L(requestColumns)).
		Where(where...).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc()).
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
