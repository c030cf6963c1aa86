package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"papertrade/internal/application/port"
)

// PriceRefresher periodically pulls a fresh price for every symbol with an
// open position and feeds it to the ledger. One symbol failing never aborts
// the rest of the sweep.
type PriceRefresher struct {
	ledger   *Ledger
	source   port.PriceSource
	interval time.Duration
}

func NewPriceRefresher(ledger *Ledger, source port.PriceSource, interval time.Duration) *PriceRefresher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &PriceRefresher{ledger: ledger, source: source, interval: interval}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (r *PriceRefresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refreshOnce(ctx)
		}
	}
}

func (r *PriceRefresher) refreshOnce(ctx context.Context) {
	for _, symbol := range r.ledger.OpenSymbols() {
		price, err := r.source.CurrentPrice(ctx, symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("price refresh failed")
			continue
		}
		r.ledger.UpdateSymbolPrice(ctx, symbol, price)
	}
}

// ConsumeFeed applies streamed ticks to the ledger until the channel closes
// or ctx is done. Ticks for symbols without open positions fall through the
// ledger's no-op path.
func (r *PriceRefresher) ConsumeFeed(ctx context.Context, ticks <-chan port.Tick) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			if tick.Price <= 0 {
				continue
			}
			r.ledger.UpdateSymbolPrice(ctx, tick.Symbol, tick.Price)
		}
	}
}
