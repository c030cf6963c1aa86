package domain

import "time"

// UnrealizedPnL marks an open position to its current price.
func UnrealizedPnL(p *Position) float64 {
	return (p.CurrentPrice - p.EntryPrice) * p.Quantity * p.Side.Sign()
}

// RealizedPnL is the P&L locked in by closing at closePrice.
func RealizedPnL(entryPrice, closePrice, quantity float64, side Side) float64 {
	return (closePrice - entryPrice) * quantity * side.Sign()
}

// TotalUnrealizedPnL sums unrealized P&L over open positions only.
func TotalUnrealizedPnL(positions []*Position) float64 {
	var total float64
	for _, p := range positions {
		if p.IsOpen() {
			total += p.UnrealizedPnL
		}
	}
	return total
}

// TotalRealizedPnL sums realized P&L over closed positions only.
func TotalRealizedPnL(positions []*Position) float64 {
	var total float64
	for _, p := range positions {
		if !p.IsOpen() {
			total += p.RealizedPnL
		}
	}
	return total
}

// DayChange sums the pnl of transactions that fall on the same UTC calendar
// day as now. Open transactions carry zero pnl, so only closes contribute.
func DayChange(txs []*Transaction, now time.Time) float64 {
	y, m, d := now.UTC().Date()
	var total float64
	for _, tx := range txs {
		ty, tm, td := tx.Timestamp.UTC().Date()
		if ty == y && tm == m && td == d {
			total += tx.PnL
		}
	}
	return total
}

// DayChangePercent relates the day's change to the portfolio value at the
// start of the day. Returns 0 when the reference value is 0.
func DayChangePercent(dayChange, totalValue float64) float64 {
	base := totalValue - dayChange
	if base == 0 {
		return 0
	}
	return dayChange / base * 100
}

// TotalReturnPercent relates total return to initial capital.
func TotalReturnPercent(totalReturn, initialCapital float64) float64 {
	if initialCapital == 0 {
		return 0
	}
	return totalReturn / initialCapital * 100
}
