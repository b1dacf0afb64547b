package backtest

import "math"

// tradingDaysPerYear is the conventional annualization factor.
// Note: the Sharpe ratio here annualizes per-trade returns, not a daily time
// series; trades are not evenly spaced, so this is an approximation kept for
// compatibility with the established reporting.
const tradingDaysPerYear = 252

// Aggregate reduces a list of per-trade percentage returns into summary
// metrics. Empty input yields all-zero metrics rather than an error.
func Aggregate(returns []float64) Metrics {
	m := Metrics{TotalTrades: len(returns)}
	if len(returns) == 0 {
		return m
	}

	var sum float64
	for _, r := range returns {
		sum += r
		if r > 0 {
			m.WinningTrades++
		}
	}
	m.LosingTrades = m.TotalTrades - m.WinningTrades
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	m.TotalReturn = sum // additive, not compounded
	m.AvgReturn = sum / float64(len(returns))
	m.SharpeRatio = sharpeRatio(returns)
	m.MaxDrawdown = maxDrawdown(returns)

	return m
}

// AggregateTrades is Aggregate over the trades' return percentages
func AggregateTrades(trades []SimulatedTrade) Metrics {
	returns := make([]float64, len(trades))
	for i, trade := range trades {
		returns[i] = trade.ReturnPct
	}
	return Aggregate(returns)
}

// sharpeRatio is mean/stddev annualized by sqrt(252). A single return has no
// dispersion, so anything under two samples yields zero.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)
	stdDev := math.Sqrt(variance)

	if stdDev == 0 {
		return 0
	}

	return mean / stdDev * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown walks the additive cumulative return series in trade order and
// returns the largest peak-to-trough decline as a percentage of the peak.
// Zero when fewer than two trades or the running peak never goes positive.
func maxDrawdown(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var cumulative, peak, maxDD float64
	for _, r := range returns {
		cumulative += r
		if cumulative > peak {
			peak = cumulative
		}
		if peak > 0 {
			dd := (peak - cumulative) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}
