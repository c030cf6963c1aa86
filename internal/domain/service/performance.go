package service

import (
	"sort"

	"papertrade/internal/domain"
)

// PerformanceAnalyzer aggregates closed-trade history into report figures.
// Read-only; it never mutates ledger state and never errors.
type PerformanceAnalyzer struct{}

func NewPerformanceAnalyzer() *PerformanceAnalyzer {
	return &PerformanceAnalyzer{}
}

// TradingStats summarizes closed trades.
type TradingStats struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
}

// TopPerformers returns the n closed positions with the highest realized P&L.
func (pa *PerformanceAnalyzer) TopPerformers(positions []*domain.Position, n int) []*domain.Position {
	closed := closedPositions(positions)
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].RealizedPnL > closed[j].RealizedPnL
	})
	return truncate(closed, n)
}

// WorstPerformers returns the n closed positions with the lowest realized P&L.
func (pa *PerformanceAnalyzer) WorstPerformers(positions []*domain.Position, n int) []*domain.Position {
	closed := closedPositions(positions)
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].RealizedPnL < closed[j].RealizedPnL
	})
	return truncate(closed, n)
}

// MonthlyReturns maps "YYYY-MM" (UTC) to the summed pnl of close transactions
// in that month.
func (pa *PerformanceAnalyzer) MonthlyReturns(txs []*domain.Transaction) map[string]float64 {
	out := make(map[string]float64)
	for _, tx := range txs {
		if tx.Type != domain.TxClose {
			continue
		}
		month := tx.Timestamp.UTC().Format("2006-01")
		out[month] += tx.PnL
	}
	return out
}

// TradingStats computes win/loss counts and ratios over closed positions.
// ProfitFactor is 0 when there are no losing trades.
func (pa *PerformanceAnalyzer) TradingStats(positions []*domain.Position) TradingStats {
	var stats TradingStats
	var grossWin, grossLoss float64
	for _, p := range positions {
		if p.IsOpen() {
			continue
		}
		stats.TotalTrades++
		switch {
		case p.RealizedPnL > 0:
			stats.WinningTrades++
			grossWin += p.RealizedPnL
		case p.RealizedPnL < 0:
			stats.LosingTrades++
			grossLoss += p.RealizedPnL
		}
	}
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.WinningTrades) / float64(stats.TotalTrades) * 100
	}
	if stats.WinningTrades > 0 {
		stats.AvgWin = grossWin / float64(stats.WinningTrades)
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = grossLoss / float64(stats.LosingTrades)
	}
	if grossLoss < 0 {
		stats.ProfitFactor = grossWin / -grossLoss
	}
	return stats
}

func closedPositions(positions []*domain.Position) []*domain.Position {
	out := make([]*domain.Position, 0, len(positions))
	for _, p := range positions {
		if !p.IsOpen() {
			out = append(out, p)
		}
	}
	return out
}

func truncate(positions []*domain.Position, n int) []*domain.Position {
	if n <= 0 {
		n = 5
	}
	if len(positions) > n {
		return positions[:n]
	}
	return positions
}
