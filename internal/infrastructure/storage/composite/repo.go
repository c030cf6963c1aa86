package composite

import (
	"context"

	"papertrade/internal/application/port"
	"papertrade/internal/domain"
)

// Repo fans writes out to every child store. All children are attempted on
// every call; the first error is reported but never stops the remaining
// children, so one degraded backend cannot starve the others.
type Repo struct {
	stores []port.Store
}

func New(stores ...port.Store) *Repo {
	// nil stores are allowed; filter in constructor for safety
	out := make([]port.Store, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Repo{stores: out}
}

func (r *Repo) SaveSnapshot(ctx context.Context, key string, payload []byte) error {
	var firstErr error
	for _, s := range r.stores {
		if err := s.SaveSnapshot(ctx, key, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// LoadSnapshot returns the first non-empty payload found, in store order.
func (r *Repo) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	var firstErr error
	for _, s := range r.stores {
		payload, err := s.LoadSnapshot(ctx, key)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if payload != nil {
			return payload, nil
		}
	}
	return nil, firstErr
}

func (r *Repo) AppendTransaction(ctx context.Context, tx *domain.Transaction) error {
	var firstErr error
	for _, s := range r.stores {
		if err := s.AppendTransaction(ctx, tx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) Close() error {
	var firstErr error
	for _, s := range r.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.Store = (*Repo)(nil)
