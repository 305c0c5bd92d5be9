package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/roastline/market-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS quotes (
	id               TEXT PRIMARY KEY,
	ingredient_id    TEXT NOT NULL,
	payload          TEXT NOT NULL,
	price_valid_until DATETIME NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS orders (
	id          TEXT PRIMARY KEY,
	business_id TEXT,
	quote_id    TEXT,
	status      TEXT NOT NULL,
	payload     TEXT NOT NULL,
	placed_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quotes_ingredient ON quotes(ingredient_id);
CREATE INDEX IF NOT EXISTS idx_quotes_valid_until ON quotes(price_valid_until);
CREATE INDEX IF NOT EXISTS idx_orders_business ON orders(business_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveQuote(ctx context.Context, q model.Quote) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal quote")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO quotes (id, ingredient_id, payload, price_valid_until, created_at) VALUES (?, ?, ?, ?, ?)`,
		q.ID, q.IngredientID, string(payload), q.PriceValidTil.UTC(), q.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert quote %s", q.ID)
}

func (s *SQLiteStore) SaveOrder(ctx context.Context, o model.Order) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal order")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, business_id, quote_id, status, payload, placed_at) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, nullable(o.BusinessID), nullable(o.QuoteID), string(o.Status), string(payload), o.PlacedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert order %s", o.ID)
}

func (s *SQLiteStore) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM orders WHERE id = ?`, orderID,
	)
	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(model.ErrOrderNotFound, "sqlite: %s", orderID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get order %s", orderID)
	}
	var o model.Order
	if err := json.Unmarshal([]byte(payload), &o); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal order")
	}
	return &o, nil
}

func (s *SQLiteStore) ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	query := `SELECT payload FROM orders WHERE 1=1`
	var args []any

	if filter.BusinessID != "" {
		query += ` AND business_id = ?`
		args = append(args, filter.BusinessID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY placed_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list orders")
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan order")
		}
		var o model.Order
		if err := json.Unmarshal([]byte(payload), &o); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal order")
		}
		orders = append(orders, o)
	}
	return orders, eris.Wrap(rows.Err(), "sqlite: list orders iterate")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
