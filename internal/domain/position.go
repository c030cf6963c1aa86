package domain

import (
	"time"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Sign returns the P&L direction multiplier: +1 for long, -1 for short.
func (s Side) Sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Position is a single simulated trade. Derived P&L fields are owned by the
// ledger and recomputed on every price or lifecycle mutation; callers never
// set them directly.
type Position struct {
	ID           string    `json:"id"`
	Symbol       string    `json:"symbol"`
	Quantity     float64   `json:"quantity"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	ClosePrice   float64   `json:"close_price,omitempty"`
	Side         Side      `json:"side"`
	Status       Status    `json:"status"`
	OpenTime     time.Time `json:"open_time"`
	CloseTime    time.Time `json:"close_time,omitzero"`

	UnrealizedPnL float64 `json:"unrealized_pnl"`
	RealizedPnL   float64 `json:"realized_pnl"`
}

func (p *Position) IsOpen() bool { return p.Status == StatusOpen }

// Clone returns a copy safe to hand to read-only consumers.
func (p *Position) Clone() *Position {
	cp := *p
	return &cp
}

type TxType string

const (
	TxOpen  TxType = "open"
	TxClose TxType = "close"
)

// Transaction is an immutable audit record appended on every open and close.
type Transaction struct {
	ID         string    `json:"id"`
	Type       TxType    `json:"type"`
	PositionID string    `json:"position_id"`
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	PnL        float64   `json:"pnl"`
	Timestamp  time.Time `json:"timestamp"`
}

// Snapshot is a derived point-in-time aggregate over the ledger. It is
// recomputed on demand and never stored as-is.
type Snapshot struct {
	TotalValue         float64   `json:"total_value"`
	InitialCapital     float64   `json:"initial_capital"`
	TotalUnrealizedPnL float64   `json:"total_unrealized_pnl"`
	TotalRealizedPnL   float64   `json:"total_realized_pnl"`
	OpenPositions      int       `json:"open_positions"`
	ClosedPositions    int       `json:"closed_positions"`
	TotalReturn        float64   `json:"total_return"`
	TotalReturnPct     float64   `json:"total_return_pct"`
	DayChange          float64   `json:"day_change"`
	DayChangePct       float64   `json:"day_change_pct"`
	Timestamp          time.Time `json:"timestamp"`
}
