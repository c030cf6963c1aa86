package postgres

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/jackc/pgx/v5/stdlib"

	"papertrade/internal/application/port"
	"papertrade/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS snapshots (
  key TEXT PRIMARY KEY,
  payload BYTEA NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  position_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  quantity DOUBLE PRECISION NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  pnl DOUBLE PRECISION NOT NULL,
  ts TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_position ON transactions(position_id);
CREATE INDEX IF NOT EXISTS idx_transactions_ts ON transactions(ts);
`)
	return err
}

func (r *Repo) SaveSnapshot(ctx context.Context, key string, payload []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots(key, payload, updated_at) VALUES($1, $2, now())
		ON CONFLICT(key) DO UPDATE SET payload=excluded.payload, updated_at=now()
	`, key, payload)
	return err
}

func (r *Repo) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE key=$1`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (r *Repo) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions(id, type, position_id, symbol, quantity, price, pnl, ts)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
	`, tx.ID, string(tx.Type), tx.PositionID, tx.Symbol, tx.Quantity, tx.Price, tx.PnL, tx.Timestamp)
	return err
}

var _ port.Store = (*Repo)(nil)
