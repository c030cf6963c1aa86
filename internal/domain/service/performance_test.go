package service

import (
	"math"
	"testing"
	"time"

	"papertrade/internal/domain"
)

func closedPos(id string, pnl float64) *domain.Position {
	return &domain.Position{ID: id, Status: domain.StatusClosed, RealizedPnL: pnl}
}

func TestTradingStatsScenario(t *testing.T) {
	pa := NewPerformanceAnalyzer()
	positions := []*domain.Position{
		closedPos("a", 10),
		closedPos("b", -5),
		closedPos("c", 20),
	}
	stats := pa.TradingStats(positions)

	if stats.TotalTrades != 3 || stats.WinningTrades != 2 || stats.LosingTrades != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if math.Abs(stats.WinRate-66.66666666666667) > 1e-9 {
		t.Errorf("expected win rate ~66.67, got %v", stats.WinRate)
	}
	if math.Abs(stats.AvgWin-15) > 1e-9 {
		t.Errorf("expected avg win 15, got %v", stats.AvgWin)
	}
	if math.Abs(stats.AvgLoss-(-5)) > 1e-9 {
		t.Errorf("expected avg loss -5, got %v", stats.AvgLoss)
	}
	if math.Abs(stats.ProfitFactor-6) > 1e-9 {
		t.Errorf("expected profit factor 6, got %v", stats.ProfitFactor)
	}
}

func TestTradingStatsEmpty(t *testing.T) {
	pa := NewPerformanceAnalyzer()
	stats := pa.TradingStats(nil)
	if stats.TotalTrades != 0 || stats.WinRate != 0 || stats.AvgWin != 0 || stats.AvgLoss != 0 || stats.ProfitFactor != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestTradingStatsNoLosses(t *testing.T) {
	pa := NewPerformanceAnalyzer()
	stats := pa.TradingStats([]*domain.Position{closedPos("a", 10)})
	if stats.ProfitFactor != 0 {
		t.Errorf("expected profit factor 0 without losses, got %v", stats.ProfitFactor)
	}
}

func TestTopAndWorstPerformers(t *testing.T) {
	pa := NewPerformanceAnalyzer()
	positions := []*domain.Position{
		closedPos("a", 10),
		{ID: "open", Status: domain.StatusOpen, UnrealizedPnL: 1000},
		closedPos("b", -5),
		closedPos("c", 20),
	}

	top := pa.TopPerformers(positions, 2)
	if len(top) != 2 || top[0].ID != "c" || top[1].ID != "a" {
		t.Errorf("unexpected top performers: %v", ids(top))
	}

	worst := pa.WorstPerformers(positions, 2)
	if len(worst) != 2 || worst[0].ID != "b" || worst[1].ID != "a" {
		t.Errorf("unexpected worst performers: %v", ids(worst))
	}
}

func TestMonthlyReturns(t *testing.T) {
	pa := NewPerformanceAnalyzer()
	txs := []*domain.Transaction{
		{Type: domain.TxClose, PnL: 10, Timestamp: time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)},
		{Type: domain.TxClose, PnL: 5, Timestamp: time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)},
		{Type: domain.TxClose, PnL: -3, Timestamp: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		{Type: domain.TxOpen, PnL: 0, Timestamp: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	returns := pa.MonthlyReturns(txs)
	if len(returns) != 2 {
		t.Fatalf("expected 2 months, got %v", returns)
	}
	if math.Abs(returns["2025-05"]-15) > 1e-9 {
		t.Errorf("expected 2025-05 return 15, got %v", returns["2025-05"])
	}
	if math.Abs(returns["2025-06"]-(-3)) > 1e-9 {
		t.Errorf("expected 2025-06 return -3, got %v", returns["2025-06"])
	}
}

func ids(positions []*domain.Position) []string {
	out := make([]string, len(positions))
	for i, p := range positions {
		out[i] = p.ID
	}
	return out
}
