package redis

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"papertrade/internal/application/port"
	"papertrade/internal/domain"
)

// Repo persists ledger state in Redis: the snapshot lives under a fixed
// string key, transactions go to a stream, and every transaction is also
// published on a channel so UI consumers can follow along.
type Repo struct {
	rdb       *redis.Client
	prefix    string
	txStream  string
	eventChan string
}

func New(rdb *redis.Client, prefix string) *Repo {
	if prefix == "" {
		prefix = "papertrade"
	}
	return &Repo{
		rdb:       rdb,
		prefix:    prefix,
		txStream:  prefix + ":transactions",
		eventChan: prefix + ":events",
	}
}

func (r *Repo) SaveSnapshot(ctx context.Context, key string, payload []byte) error {
	return r.rdb.Set(ctx, r.prefix+":"+key, payload, 0).Err()
}

func (r *Repo) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	payload, err := r.rdb.Get(ctx, r.prefix+":"+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (r *Repo) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	b, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	// Stream: XADD <stream> * id type symbol pnl payload
	if _, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.txStream,
		Values: map[string]any{
			"id":      tx.ID,
			"type":    string(tx.Type),
			"symbol":  tx.Symbol,
			"pnl":     tx.PnL,
			"payload": string(b),
		},
	}).Result(); err != nil {
		return err
	}

	// PubSub mirror for live consumers.
	return r.rdb.Publish(ctx, r.eventChan, string(b)).Err()
}

func (r *Repo) Close() error { return r.rdb.Close() }

var _ port.Store = (*Repo)(nil)
