package service

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"papertrade/internal/application/port"
	"papertrade/internal/domain"
	"papertrade/internal/event"
)

// SnapshotKey is the fixed key ledger state is persisted under.
const SnapshotKey = "papertrade:ledger"

// Ledger is the single source of truth for positions and transactions.
// All mutations are serialized behind one mutex; events are published
// synchronously after each completed mutation. Storage and replication
// failures are logged and never roll back local state.
type Ledger struct {
	mu             sync.Mutex
	initialCapital float64
	positions      map[string]*domain.Position
	order          []string // position ids in insertion order
	transactions   []*domain.Transaction

	store      port.Store
	replicator port.Replicator
	bus        *event.Bus

	now func() time.Time
}

type LedgerOption func(*Ledger)

// WithClock overrides the ledger's time source.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(initialCapital float64, store port.Store, replicator port.Replicator, bus *event.Bus, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		initialCapital: initialCapital,
		positions:      make(map[string]*domain.Position),
		store:          store,
		replicator:     replicator,
		bus:            bus,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OpenPosition creates a new open position and returns its id.
func (l *Ledger) OpenPosition(ctx context.Context, symbol string, quantity, price float64, side domain.Side) (string, error) {
	if symbol == "" {
		return "", &domain.ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if quantity <= 0 {
		return "", &domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return "", &domain.ValidationError{Field: "price", Reason: "must be a positive finite number"}
	}
	if !side.Valid() {
		return "", &domain.ValidationError{Field: "side", Reason: "must be long or short"}
	}

	l.mu.Lock()
	now := l.now()
	pos := &domain.Position{
		ID:           uuid.NewString(),
		Symbol:       symbol,
		Quantity:     quantity,
		EntryPrice:   price,
		CurrentPrice: price,
		Side:         side,
		Status:       domain.StatusOpen,
		OpenTime:     now,
	}
	l.positions[pos.ID] = pos
	l.order = append(l.order, pos.ID)

	tx := &domain.Transaction{
		ID:         uuid.NewString(),
		Type:       domain.TxOpen,
		PositionID: pos.ID,
		Symbol:     symbol,
		Quantity:   quantity,
		Price:      price,
		Timestamp:  now,
	}
	l.transactions = append(l.transactions, tx)

	snap := l.snapshotLocked()
	l.appendTransaction(ctx, tx)
	l.persistLocked(ctx)
	posCopy := pos.Clone()
	l.mu.Unlock()

	l.replicate(tx)
	l.bus.Publish(event.Event{Type: event.PositionAdded, Position: posCopy, Transaction: tx})
	l.bus.Publish(event.Event{Type: event.PortfolioUpdated, Snapshot: &snap})
	return posCopy.ID, nil
}

// ClosePosition closes an open position at price and returns the closed copy.
func (l *Ledger) ClosePosition(ctx context.Context, id string, price float64) (*domain.Position, error) {
	if price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		return nil, &domain.ValidationError{Field: "price", Reason: "must be a positive finite number"}
	}

	l.mu.Lock()
	pos, ok := l.positions[id]
	if !ok {
		l.mu.Unlock()
		return nil, &domain.NotFoundError{ID: id}
	}
	if !pos.IsOpen() {
		l.mu.Unlock()
		return nil, &domain.InvalidStateError{ID: id, Status: pos.Status}
	}

	now := l.now()
	pos.ClosePrice = price
	pos.CloseTime = now
	pos.CurrentPrice = price
	pos.RealizedPnL = domain.RealizedPnL(pos.EntryPrice, price, pos.Quantity, pos.Side)
	pos.UnrealizedPnL = 0
	pos.Status = domain.StatusClosed

	tx := &domain.Transaction{
		ID:         uuid.NewString(),
		Type:       domain.TxClose,
		PositionID: pos.ID,
		Symbol:     pos.Symbol,
		Quantity:   pos.Quantity,
		Price:      price,
		PnL:        pos.RealizedPnL,
		Timestamp:  now,
	}
	l.transactions = append(l.transactions, tx)

	snap := l.snapshotLocked()
	l.appendTransaction(ctx, tx)
	l.persistLocked(ctx)
	posCopy := pos.Clone()
	l.mu.Unlock()

	l.replicate(tx)
	l.bus.Publish(event.Event{Type: event.PositionClosed, Position: posCopy, Transaction: tx})
	l.bus.Publish(event.Event{Type: event.PortfolioUpdated, Snapshot: &snap})
	return posCopy, nil
}

// UpdatePrice marks an open position to a new price. Unknown ids and closed
// positions are silently ignored: this is a monitoring update, not a
// lifecycle operation.
func (l *Ledger) UpdatePrice(ctx context.Context, id string, price float64) {
	l.mu.Lock()
	pos, ok := l.positions[id]
	if !ok || !pos.IsOpen() {
		l.mu.Unlock()
		return
	}
	pos.CurrentPrice = price
	pos.UnrealizedPnL = domain.UnrealizedPnL(pos)

	snap := l.snapshotLocked()
	l.persistLocked(ctx)
	posCopy := pos.Clone()
	l.mu.Unlock()

	l.bus.Publish(event.Event{Type: event.PositionUpdated, Position: posCopy})
	l.bus.Publish(event.Event{Type: event.PortfolioUpdated, Snapshot: &snap})
}

// UpdateSymbolPrice applies a price to every open position on symbol.
func (l *Ledger) UpdateSymbolPrice(ctx context.Context, symbol string, price float64) {
	l.mu.Lock()
	var updated []*domain.Position
	for _, id := range l.order {
		pos := l.positions[id]
		if pos.IsOpen() && pos.Symbol == symbol {
			pos.CurrentPrice = price
			pos.UnrealizedPnL = domain.UnrealizedPnL(pos)
			updated = append(updated, pos.Clone())
		}
	}
	if len(updated) == 0 {
		l.mu.Unlock()
		return
	}
	snap := l.snapshotLocked()
	l.persistLocked(ctx)
	l.mu.Unlock()

	for _, pos := range updated {
		l.bus.Publish(event.Event{Type: event.PositionUpdated, Position: pos})
	}
	l.bus.Publish(event.Event{Type: event.PortfolioUpdated, Snapshot: &snap})
}

// Position returns a copy of the position with the given id.
func (l *Ledger) Position(id string) (*domain.Position, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[id]
	if !ok {
		return nil, &domain.NotFoundError{ID: id}
	}
	return pos.Clone(), nil
}

// Positions returns copies of all positions in insertion order.
func (l *Ledger) Positions() []*domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positionsLocked()
}

// OpenSymbols returns the distinct symbols with at least one open position.
func (l *Ledger) OpenSymbols() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := make(map[string]struct{})
	var out []string
	for _, id := range l.order {
		pos := l.positions[id]
		if !pos.IsOpen() {
			continue
		}
		if _, ok := seen[pos.Symbol]; ok {
			continue
		}
		seen[pos.Symbol] = struct{}{}
		out = append(out, pos.Symbol)
	}
	return out
}

// Transactions returns copies of the transaction log in append order.
func (l *Ledger) Transactions() []*domain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*domain.Transaction, len(l.transactions))
	for i, tx := range l.transactions {
		cp := *tx
		out[i] = &cp
	}
	return out
}

// Snapshot computes the current portfolio aggregate.
func (l *Ledger) Snapshot() domain.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// InitialCapital returns the configured starting capital.
func (l *Ledger) InitialCapital() float64 {
	return l.initialCapital
}

func (l *Ledger) positionsLocked() []*domain.Position {
	out := make([]*domain.Position, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.positions[id].Clone())
	}
	return out
}

func (l *Ledger) snapshotLocked() domain.Snapshot {
	var unrealized, realized float64
	var open, closed int
	for _, id := range l.order {
		pos := l.positions[id]
		if pos.IsOpen() {
			unrealized += pos.UnrealizedPnL
			open++
		} else {
			realized += pos.RealizedPnL
			closed++
		}
	}
	totalReturn := realized + unrealized
	totalValue := l.initialCapital + totalReturn
	now := l.now()
	dayChange := domain.DayChange(l.transactions, now)

	return domain.Snapshot{
		TotalValue:         totalValue,
		InitialCapital:     l.initialCapital,
		TotalUnrealizedPnL: unrealized,
		TotalRealizedPnL:   realized,
		OpenPositions:      open,
		ClosedPositions:    closed,
		TotalReturn:        totalReturn,
		TotalReturnPct:     domain.TotalReturnPercent(totalReturn, l.initialCapital),
		DayChange:          dayChange,
		DayChangePct:       domain.DayChangePercent(dayChange, totalValue),
		Timestamp:          now,
	}
}

// persistedState is the on-disk shape of the ledger.
type persistedState struct {
	Positions      []*domain.Position    `json:"positions"`
	Transactions   []*domain.Transaction `json:"transactions"`
	PortfolioValue float64               `json:"portfolio_value"`
	InitialCapital float64               `json:"initial_capital"`
}

func (l *Ledger) persistLocked(ctx context.Context) {
	positions := l.positionsLocked()
	state := persistedState{
		Positions:      positions,
		Transactions:   l.transactions,
		PortfolioValue: l.initialCapital + domain.TotalRealizedPnL(positions) + domain.TotalUnrealizedPnL(positions),
		InitialCapital: l.initialCapital,
	}
	payload, err := json.Marshal(state)
	if err != nil {
		log.Error().Err(err).Msg("marshal ledger state")
		return
	}
	if err := l.store.SaveSnapshot(ctx, SnapshotKey, payload); err != nil {
		log.Warn().Err(err).Msg("save ledger snapshot")
	}
}

// Restore loads persisted state, if any. Absent or malformed payloads leave
// the ledger empty with its configured initial capital.
func (l *Ledger) Restore(ctx context.Context) error {
	payload, err := l.store.LoadSnapshot(ctx, SnapshotKey)
	if err != nil {
		return &domain.IOError{Op: "load ledger snapshot", Err: err}
	}
	if payload == nil {
		return nil
	}

	var state persistedState
	if err := json.Unmarshal(payload, &state); err != nil {
		log.Warn().Err(err).Msg("malformed ledger snapshot, starting empty")
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions = make(map[string]*domain.Position, len(state.Positions))
	l.order = l.order[:0]
	for _, pos := range state.Positions {
		if pos == nil || pos.ID == "" {
			log.Warn().Msg("skipping malformed position in ledger snapshot")
			continue
		}
		l.positions[pos.ID] = pos
		l.order = append(l.order, pos.ID)
	}
	l.transactions = make([]*domain.Transaction, 0, len(state.Transactions))
	for _, tx := range state.Transactions {
		if tx == nil {
			log.Warn().Msg("skipping malformed transaction in ledger snapshot")
			continue
		}
		l.transactions = append(l.transactions, tx)
	}
	if state.InitialCapital > 0 {
		l.initialCapital = state.InitialCapital
	}
	log.Info().
		Int("positions", len(l.order)).
		Int("transactions", len(l.transactions)).
		Msg("ledger state restored")
	return nil
}

func (l *Ledger) replicate(tx *domain.Transaction) {
	if l.replicator == nil {
		return
	}
	cp := *tx
	l.replicator.Enqueue(&cp)
}

func (l *Ledger) appendTransaction(ctx context.Context, tx *domain.Transaction) {
	if err := l.store.AppendTransaction(ctx, tx); err != nil {
		log.Warn().Err(err).Str("tx", tx.ID).Msg("append transaction")
	}
}
