package service

import (
	"math"
	"sort"

	"papertrade/internal/domain"
)

// RiskCalculator derives risk metrics from a ledger snapshot. Every method
// degrades to zero on empty or insufficient data instead of erroring, so a
// sparse ledger never breaks a dashboard render.
type RiskCalculator struct{}

func NewRiskCalculator() *RiskCalculator {
	return &RiskCalculator{}
}

// RiskMetrics bundles the derived analytics for one snapshot.
type RiskMetrics struct {
	TotalExposure float64 `json:"total_exposure"`
	MaxDrawdown   float64 `json:"max_drawdown"`
	Volatility    float64 `json:"volatility"`
	VaR95         float64 `json:"var_95"`
}

func (rc *RiskCalculator) Calculate(positions []*domain.Position) RiskMetrics {
	return RiskMetrics{
		TotalExposure: rc.TotalExposure(positions),
		MaxDrawdown:   rc.MaxDrawdown(positions),
		Volatility:    rc.Volatility(positions),
		VaR95:         rc.VaRAtConfidence(positions, 0.95),
	}
}

// TotalExposure is the notional value of all open positions at current prices.
func (rc *RiskCalculator) TotalExposure(positions []*domain.Position) float64 {
	var total float64
	for _, p := range positions {
		if p.IsOpen() {
			total += p.Quantity * p.CurrentPrice
		}
	}
	return total
}

// MaxDrawdown runs a peak-tracking pass over the cumulative P&L series built
// in the given position order: unrealized for open positions, realized for
// closed ones. The result depends on that order, so callers must pass the
// ledger's insertion-ordered view for reproducible numbers. Returned as a
// percentage of the peak.
func (rc *RiskCalculator) MaxDrawdown(positions []*domain.Position) float64 {
	var cum, peak, maxDD float64
	for _, p := range positions {
		if p.IsOpen() {
			cum += p.UnrealizedPnL
		} else {
			cum += p.RealizedPnL
		}
		if cum > peak {
			peak = cum
		}
		if peak > 0 {
			if dd := (peak - cum) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD * 100
}

// Volatility is the population standard deviation of per-position return
// ratios (current-entry)/entry, as a percentage. Zero with fewer than two
// usable samples.
func (rc *RiskCalculator) Volatility(positions []*domain.Position) float64 {
	var returns []float64
	for _, p := range positions {
		if p.EntryPrice > 0 && p.CurrentPrice > 0 {
			returns = append(returns, (p.CurrentPrice-p.EntryPrice)/p.EntryPrice)
		}
	}
	n := float64(len(returns))
	if n < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / n
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= n
	return math.Sqrt(variance) * 100
}

// VaR95 is VaRAtConfidence at the conventional 95% level.
func (rc *RiskCalculator) VaR95(positions []*domain.Position) float64 {
	return rc.VaRAtConfidence(positions, 0.95)
}

// VaRAtConfidence sorts per-position unrealized P&L ascending and reads the
// loss at the (1-confidence) tail index.
func (rc *RiskCalculator) VaRAtConfidence(positions []*domain.Position, confidence float64) float64 {
	if len(positions) == 0 {
		return 0
	}
	pnls := make([]float64, 0, len(positions))
	for _, p := range positions {
		pnls = append(pnls, p.UnrealizedPnL)
	}
	sort.Float64s(pnls)
	idx := int(math.Floor((1 - confidence) * float64(len(pnls))))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(pnls) {
		idx = len(pnls) - 1
	}
	return math.Abs(pnls[idx])
}
