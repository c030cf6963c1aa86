package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"papertrade/internal/domain"
	"papertrade/internal/event"
	"papertrade/internal/infrastructure/storage"
)

type captureReplicator struct {
	mu  sync.Mutex
	txs []*domain.Transaction
}

func (c *captureReplicator) Enqueue(tx *domain.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txs = append(c.txs, tx)
}

func (c *captureReplicator) Close() error { return nil }

func (c *captureReplicator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.txs)
}

func newTestLedger(capital float64) (*Ledger, *storage.Memory, *captureReplicator) {
	store := storage.NewMemory()
	repl := &captureReplicator{}
	clock := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	l := NewLedger(capital, store, repl, event.NewBus(), WithClock(func() time.Time { return clock }))
	return l, store, repl
}

func TestOpenPositionValidation(t *testing.T) {
	l, _, _ := newTestLedger(10000)
	ctx := context.Background()

	cases := []struct {
		name     string
		symbol   string
		quantity float64
		price    float64
		side     domain.Side
	}{
		{"empty symbol", "", 1, 100, domain.SideLong},
		{"zero quantity", "EURUSD", 0, 100, domain.SideLong},
		{"negative quantity", "EURUSD", -5, 100, domain.SideLong},
		{"zero price", "EURUSD", 1, 0, domain.SideLong},
		{"infinite price", "EURUSD", 1, math.Inf(1), domain.SideLong},
		{"nan price", "EURUSD", 1, math.NaN(), domain.SideLong},
		{"unknown side", "EURUSD", 1, 100, domain.Side("sideways")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.OpenPosition(ctx, tc.symbol, tc.quantity, tc.price, tc.side)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
	if len(l.Positions()) != 0 {
		t.Errorf("rejected opens must not create positions")
	}
}

func TestOpenPositionIDsUnique(t *testing.T) {
	l, _, _ := newTestLedger(10000)
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := l.OpenPosition(ctx, "EURUSD", 1, 1.08, domain.SideLong)
		if err != nil {
			t.Fatalf("open failed: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate position id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestUpdatePriceRecomputesUnrealized(t *testing.T) {
	l, _, _ := newTestLedger(10000)
	ctx := context.Background()

	// Scenario: long 10 EURUSD at 1.0800, price moves to 1.0850
	id, err := l.OpenPosition(ctx, "EURUSD", 10, 1.0800, domain.SideLong)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	l.UpdatePrice(ctx, id, 1.0850)

	pos, err := l.Position(id)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if math.Abs(pos.UnrealizedPnL-0.05) > 1e-9 {
		t.Errorf("expected unrealized pnl 0.05, got %v", pos.UnrealizedPnL)
	}

	snap := l.Snapshot()
	if math.Abs(snap.TotalUnrealizedPnL-0.05) > 1e-9 {
		t.Errorf("expected total unrealized 0.05, got %v", snap.TotalUnrealizedPnL)
	}
}

func TestCloseShortPosition(t *testing.T) {
	l, _, _ := newTestLedger(10000)
	ctx := context.Background()

	// Scenario: short 5 at 100, close at 90 -> realized 50
	id, err := l.OpenPosition(ctx, "XAUUSD", 5, 100, domain.SideShort)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	pos, err := l.ClosePosition(ctx, id, 90)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if pos.Status != domain.StatusClosed {
		t.Errorf("expected closed status, got %s", pos.Status)
	}
	if math.Abs(pos.RealizedPnL-50) > 1e-9 {
		t.Errorf("expected realized pnl 50, got %v", pos.RealizedPnL)
	}
	if pos.ClosePrice != 90 || pos.CloseTime.IsZero() {
		t.Errorf("close fields not set: %+v", pos)
	}

	snap := l.Snapshot()
	if math.Abs(snap.TotalValue-10050) > 1e-9 {
		t.Errorf("expected total value 10050, got %v", snap.TotalValue)
	}
}

func TestClosePositionErrors(t *testing.T) {
	l, _, _ := newTestLedger(10000)
	ctx := context.Background()

	_, err := l.ClosePosition(ctx, "missing", 100)
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}

	id, _ := l.OpenPosition(ctx, "EURUSD", 1, 1.08, domain.SideLong)
	if _, err := l.ClosePosition(ctx, id, 1.10); err != nil {
		t.Fatalf("first close failed: %v", err)
	}

	stateAfterFirst, _ := json.Marshal(l.Positions())
	txCountAfterFirst := len(l.Transactions())

	_, err = l.ClosePosition(ctx, id, 1.20)
	var inv *domain.InvalidStateError
	if !errors.As(err, &inv) {
		t.Errorf("expected InvalidStateError on double close, got %v", err)
	}

	stateAfterSecond, _ := json.Marshal(l.Positions())
	if !bytes.Equal(stateAfterFirst, stateAfterSecond) {
		t.Errorf("failed close mutated ledger state")
	}
	if len(l.Transactions()) != txCountAfterFirst {
		t.Errorf("failed close appended a transaction")
	}
}

func TestUpdatePriceIgnoresClosedAndUnknown(t *testing.T) {
	l, _, _ := newTestLedger(10000)
	ctx := context.Background()

	id, _ := l.OpenPosition(ctx, "EURUSD", 1, 1.08, domain.SideLong)
	l.ClosePosition(ctx, id, 1.10)

	l.UpdatePrice(ctx, id, 2.00)     // closed: ignored
	l.UpdatePrice(ctx, "ghost", 2.0) // unknown: ignored

	pos, _ := l.Position(id)
	if pos.CurrentPrice != 1.10 {
		t.Errorf("closed position price changed: %v", pos.CurrentPrice)
	}
}

func TestTotalUnrealizedExcludesClosed(t *testing.T) {
	l, _, _ := newTestLedger(10000)
	ctx := context.Background()

	a, _ := l.OpenPosition(ctx, "EURUSD", 10, 1.00, domain.SideLong)
	b, _ := l.OpenPosition(ctx, "GBPUSD", 10, 2.00, domain.SideLong)
	l.UpdatePrice(ctx, a, 1.50)
	l.UpdatePrice(ctx, b, 2.50)
	l.ClosePosition(ctx, b, 2.50)

	snap := l.Snapshot()
	if math.Abs(snap.TotalUnrealizedPnL-5) > 1e-9 {
		t.Errorf("expected total unrealized 5 (open only), got %v", snap.TotalUnrealizedPnL)
	}
	if math.Abs(snap.TotalRealizedPnL-5) > 1e-9 {
		t.Errorf("expected total realized 5, got %v", snap.TotalRealizedPnL)
	}
	if snap.OpenPositions != 1 || snap.ClosedPositions != 1 {
		t.Errorf("unexpected counts: %+v", snap)
	}
}

func TestUpdateSymbolPriceTouchesAllOpen(t *testing.T) {
	l, _, _ := newTestLedger(10000)
	ctx := context.Background()

	a, _ := l.OpenPosition(ctx, "EURUSD", 10, 1.00, domain.SideLong)
	b, _ := l.OpenPosition(ctx, "EURUSD", 5, 1.20, domain.SideShort)
	c, _ := l.OpenPosition(ctx, "GBPUSD", 1, 2.00, domain.SideLong)

	l.UpdateSymbolPrice(ctx, "EURUSD", 1.10)

	posA, _ := l.Position(a)
	posB, _ := l.Position(b)
	posC, _ := l.Position(c)
	if posA.CurrentPrice != 1.10 || posB.CurrentPrice != 1.10 {
		t.Errorf("EURUSD positions not updated: %v %v", posA.CurrentPrice, posB.CurrentPrice)
	}
	if posC.CurrentPrice != 2.00 {
		t.Errorf("GBPUSD position touched: %v", posC.CurrentPrice)
	}
	if math.Abs(posA.UnrealizedPnL-1) > 1e-9 {
		t.Errorf("expected long pnl 1, got %v", posA.UnrealizedPnL)
	}
	if math.Abs(posB.UnrealizedPnL-0.5) > 1e-9 {
		t.Errorf("expected short pnl 0.5, got %v", posB.UnrealizedPnL)
	}
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	l, store, _ := newTestLedger(10000)
	ctx := context.Background()

	a, _ := l.OpenPosition(ctx, "EURUSD", 10, 1.08, domain.SideLong)
	l.UpdatePrice(ctx, a, 1.10)
	b, _ := l.OpenPosition(ctx, "XAUUSD", 5, 100, domain.SideShort)
	l.ClosePosition(ctx, b, 90)

	wantPositions, _ := json.Marshal(l.Positions())
	wantTxs, _ := json.Marshal(l.Transactions())
	wantValue := l.Snapshot().TotalValue

	// simulated restart: fresh ledger over the same store
	restored := NewLedger(10000, store, &captureReplicator{}, event.NewBus(),
		WithClock(func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }))
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	gotPositions, _ := json.Marshal(restored.Positions())
	gotTxs, _ := json.Marshal(restored.Transactions())
	if !bytes.Equal(wantPositions, gotPositions) {
		t.Errorf("positions differ after restore:\nwant %s\ngot  %s", wantPositions, gotPositions)
	}
	if !bytes.Equal(wantTxs, gotTxs) {
		t.Errorf("transactions differ after restore:\nwant %s\ngot  %s", wantTxs, gotTxs)
	}
	if got := restored.Snapshot().TotalValue; math.Abs(got-wantValue) > 1e-9 {
		t.Errorf("portfolio value differs after restore: want %v got %v", wantValue, got)
	}
}

func TestRestoreMalformedSnapshotStartsEmpty(t *testing.T) {
	store := storage.NewMemory()
	store.SaveSnapshot(context.Background(), SnapshotKey, []byte("{not json"))

	l := NewLedger(10000, store, &captureReplicator{}, event.NewBus())
	if err := l.Restore(context.Background()); err != nil {
		t.Fatalf("restore should tolerate malformed payloads, got %v", err)
	}
	if len(l.Positions()) != 0 {
		t.Errorf("expected empty ledger after malformed restore")
	}
	if l.InitialCapital() != 10000 {
		t.Errorf("expected configured capital, got %v", l.InitialCapital())
	}
}

func TestRestoreSkipsNilSnapshotEntries(t *testing.T) {
	store := storage.NewMemory()
	payload := []byte(`{
		"positions": [null, {"id": "", "symbol": "EURUSD"}, {"id": "p-1", "symbol": "EURUSD", "quantity": 1, "entry_price": 1.08, "current_price": 1.08, "side": "long", "status": "open"}],
		"transactions": [null, {"id": "t-1", "type": "open", "position_id": "p-1", "symbol": "EURUSD", "quantity": 1, "price": 1.08}],
		"portfolio_value": 10000,
		"initial_capital": 10000
	}`)
	store.SaveSnapshot(context.Background(), SnapshotKey, payload)

	l := NewLedger(10000, store, &captureReplicator{}, event.NewBus())
	if err := l.Restore(context.Background()); err != nil {
		t.Fatalf("restore should tolerate nil entries, got %v", err)
	}

	positions := l.Positions()
	if len(positions) != 1 || positions[0].ID != "p-1" {
		t.Errorf("expected only the valid position restored, got %v", positions)
	}
	txs := l.Transactions()
	if len(txs) != 1 || txs[0].ID != "t-1" {
		t.Errorf("expected only the valid transaction restored, got %v", txs)
	}
	// the restored ledger must still be usable
	if _, err := l.ClosePosition(context.Background(), "p-1", 1.10); err != nil {
		t.Errorf("close after restore failed: %v", err)
	}
}

func TestLifecycleEventsAndReplication(t *testing.T) {
	store := storage.NewMemory()
	repl := &captureReplicator{}
	bus := event.NewBus()
	l := NewLedger(10000, store, repl, bus)
	ctx := context.Background()

	var got []event.Type
	for _, et := range []event.Type{event.PositionAdded, event.PositionClosed, event.PositionUpdated, event.PortfolioUpdated} {
		et := et
		bus.Subscribe(et, func(event.Event) { got = append(got, et) })
	}

	id, _ := l.OpenPosition(ctx, "EURUSD", 1, 1.08, domain.SideLong)
	l.UpdatePrice(ctx, id, 1.09)
	l.ClosePosition(ctx, id, 1.10)

	want := []event.Type{
		event.PositionAdded, event.PortfolioUpdated,
		event.PositionUpdated, event.PortfolioUpdated,
		event.PositionClosed, event.PortfolioUpdated,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: want %s got %s", i, want[i], got[i])
		}
	}

	// open + close transactions replicated; price updates are not
	if repl.count() != 2 {
		t.Errorf("expected 2 replicated transactions, got %d", repl.count())
	}
	if txs := store.Transactions(); len(txs) != 2 {
		t.Errorf("expected 2 transactions in store log, got %d", len(txs))
	}
}

func TestOpenSymbols(t *testing.T) {
	l, _, _ := newTestLedger(10000)
	ctx := context.Background()

	l.OpenPosition(ctx, "EURUSD", 1, 1.08, domain.SideLong)
	l.OpenPosition(ctx, "EURUSD", 2, 1.09, domain.SideShort)
	id, _ := l.OpenPosition(ctx, "GBPUSD", 1, 2.00, domain.SideLong)
	l.ClosePosition(ctx, id, 2.10)

	symbols := l.OpenSymbols()
	if len(symbols) != 1 || symbols[0] != "EURUSD" {
		t.Errorf("expected [EURUSD], got %v", symbols)
	}
}
