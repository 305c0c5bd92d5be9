package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/roastline/market-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hot-path store operations.
var preparedStatements = map[string]string{
	"insert_quote": `INSERT INTO quotes (id, ingredient_id, payload, price_valid_until, created_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, price_valid_until = EXCLUDED.price_valid_until`,
	"insert_order": `INSERT INTO orders (id, business_id, quote_id, status, payload, placed_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"get_order":    `SELECT payload FROM orders WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS quotes (
	id                TEXT PRIMARY KEY,
	ingredient_id     TEXT NOT NULL,
	payload           JSONB NOT NULL,
	price_valid_until TIMESTAMPTZ NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id          TEXT PRIMARY KEY,
	business_id TEXT,
	quote_id    TEXT,
	status      TEXT NOT NULL,
	payload     JSONB NOT NULL,
	placed_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quotes_ingredient ON quotes(ingredient_id);
CREATE INDEX IF NOT EXISTS idx_quotes_valid_until ON quotes(price_valid_until);
CREATE INDEX IF NOT EXISTS idx_orders_business ON orders(business_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveQuote(ctx context.Context, q model.Quote) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal quote")
	}
	_, err = s.pool.Exec(ctx,
		preparedStatements["insert_quote"],
		q.ID, q.IngredientID, payload, q.PriceValidTil.UTC(), q.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert quote %s", q.ID)
}

func (s *PostgresStore) SaveOrder(ctx context.Context, o model.Order) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal order")
	}
	_, err = s.pool.Exec(ctx,
		preparedStatements["insert_order"],
		o.ID, nullable(o.BusinessID), nullable(o.QuoteID), string(o.Status), payload, o.PlacedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert order %s", o.ID)
}

func (s *PostgresStore) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_order"], orderID)

	var payload []byte
	err := row.Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrOrderNotFound, "postgres: %s", orderID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get order %s", orderID)
	}
	var o model.Order
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal order")
	}
	return &o, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	query := `SELECT payload FROM orders WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.BusinessID != "" {
		query += ` AND business_id = ` + arg(filter.BusinessID)
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	query += ` ORDER BY placed_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list orders")
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan order")
		}
		var o model.Order
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal order")
		}
		orders = append(orders, o)
	}
	return orders, eris.Wrap(rows.Err(), "postgres: list orders iterate")
}
