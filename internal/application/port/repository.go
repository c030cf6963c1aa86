package port

import (
	"context"

	"papertrade/internal/domain"
)

// SnapshotStore persists the serialized ledger state under a fixed key.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, key string, payload []byte) error
	// LoadSnapshot returns the stored payload, or (nil, nil) when the key
	// has never been written so callers can fall back to an empty ledger.
	LoadSnapshot(ctx context.Context, key string) ([]byte, error)
}

// TransactionLog records the append-only audit trail.
type TransactionLog interface {
	AppendTransaction(ctx context.Context, tx *domain.Transaction) error
}

// Store is what the ledger persists through.
type Store interface {
	SnapshotStore
	TransactionLog
	Close() error
}
