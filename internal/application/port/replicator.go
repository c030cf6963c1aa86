package port

import "papertrade/internal/domain"

// Replicator ships transactions to a remote log. Enqueue must never block
// the caller; delivery is best-effort and failures stay on the replicator's
// side of the fence.
type Replicator interface {
	Enqueue(tx *domain.Transaction)
	Close() error
}
