package replicator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"papertrade/internal/application/port"
	"papertrade/internal/domain"
)

// HTTP ships transactions to POST {base}/api/transactions from a single
// worker goroutine behind a bounded queue. Enqueue never blocks: when the
// queue is full, or the replicator is already closed, the transaction is
// dropped and logged. Delivery retries with
// exponential backoff up to maxAttempts; the local ledger stays authoritative
// no matter what happens here.
type HTTP struct {
	baseURL     string
	client      *http.Client
	maxAttempts int

	mu     sync.Mutex
	closed bool
	queue  chan *domain.Transaction
	done   chan struct{}
}

func NewHTTP(baseURL string, timeout time.Duration, maxAttempts, queueSize int) *HTTP {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &HTTP{
		baseURL:     baseURL,
		client:      &http.Client{Timeout: timeout},
		maxAttempts: maxAttempts,
		queue:       make(chan *domain.Transaction, queueSize),
		done:        make(chan struct{}),
	}
	go r.worker()
	return r
}

func (r *HTTP) Enqueue(tx *domain.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		log.Warn().Str("tx", tx.ID).Msg("replicator closed, dropping transaction")
		return
	}
	select {
	case r.queue <- tx:
	default:
		log.Warn().Str("tx", tx.ID).Msg("replication queue full, dropping transaction")
	}
}

func (r *HTTP) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	return nil
}

func (r *HTTP) worker() {
	defer close(r.done)
	for tx := range r.queue {
		if err := r.deliver(tx); err != nil {
			log.Warn().Err(err).Str("tx", tx.ID).Msg("transaction replication failed")
		}
	}
}

func (r *HTTP) deliver(tx *domain.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return err
	}

	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = r.post(payload)
		if lastErr == nil {
			return nil
		}
		if attempt < r.maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return &domain.IOError{Op: "replicate transaction", Err: lastErr}
}

func (r *HTTP) post(payload []byte) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		r.baseURL+"/api/transactions", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("transactions api error: %d %s", resp.StatusCode, string(body))
	}
	return nil
}

var _ port.Replicator = (*HTTP)(nil)

// Noop discards every transaction. Used when replication is disabled.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (Noop) Enqueue(*domain.Transaction) {}
func (Noop) Close() error                { return nil }

var _ port.Replicator = Noop{}
