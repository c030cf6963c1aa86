package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"papertrade/internal/application/port"
	"papertrade/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

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
  payload BLOB NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  position_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  quantity REAL NOT NULL,
  price REAL NOT NULL,
  pnl REAL NOT NULL,
  ts_ms INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_position ON transactions(position_id);
CREATE INDEX IF NOT EXISTS idx_transactions_ts ON transactions(ts_ms);
`)
	return err
}

func (r *Repo) SaveSnapshot(ctx context.Context, key string, payload []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots(key, payload, updated_at)
		VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
		payload=excluded.payload, updated_at=excluded.updated_at
	`, key, payload, time.Now().UnixMilli())
	return err
}

func (r *Repo) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE key=?`, key).Scan(&payload)
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
		INSERT INTO transactions(id, type, position_id, symbol, quantity, price, pnl, ts_ms, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, string(tx.Type), tx.PositionID, tx.Symbol, tx.Quantity, tx.Price, tx.PnL,
		tx.Timestamp.UnixMilli(), time.Now().UnixMilli())
	return err
}

// ListTransactions reads the persisted audit trail in append order.
func (r *Repo) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, position_id, symbol, quantity, price, pnl, ts_ms
		FROM transactions ORDER BY ts_ms, created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var txType string
		var tsMs int64
		if err := rows.Scan(&tx.ID, &txType, &tx.PositionID, &tx.Symbol, &tx.Quantity, &tx.Price, &tx.PnL, &tsMs); err != nil {
			return nil, err
		}
		tx.Type = domain.TxType(txType)
		tx.Timestamp = time.UnixMilli(tsMs).UTC()
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}

var _ port.Store = (*Repo)(nil)
