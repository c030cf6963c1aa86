package port

import "context"

// PriceSource answers point-in-time price lookups.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// Tick is one streamed price update.
type Tick struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Ts     int64   `json:"ts"` // unix ms
}

// PriceFeed streams ticks until ctx is done.
type PriceFeed interface {
	Name() string
	Subscribe(ctx context.Context, symbols []string) (<-chan Tick, error)
}
