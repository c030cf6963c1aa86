package storage

import (
	"context"
	"sync"

	"papertrade/internal/application/port"
	"papertrade/internal/domain"
)

// Memory is an in-process store used by tests and as the default backend
// when no persistent storage is configured.
type Memory struct {
	mu           sync.Mutex
	snapshots    map[string][]byte
	transactions []*domain.Transaction
}

func NewMemory() *Memory {
	return &Memory{snapshots: make(map[string][]byte)}
}

func (m *Memory) SaveSnapshot(ctx context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.snapshots[key] = cp
	return nil
}

func (m *Memory) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.snapshots[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return cp, nil
}

func (m *Memory) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *tx
	m.transactions = append(m.transactions, &cp)
	return nil
}

// Transactions returns the recorded log, for tests.
func (m *Memory) Transactions() []*domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Transaction, len(m.transactions))
	copy(out, m.transactions)
	return out
}

func (m *Memory) Close() error { return nil }

var _ port.Store = (*Memory)(nil)
