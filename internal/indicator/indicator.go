package indicator

import (
	"math"

	"qeval/internal/market"
)

// Bundle is the technical signal set computed from a trailing bar window.
// Every value is derived from bars dated at or before the as-of date; the
// window itself is selected by the point-in-time layer.
type Bundle struct {
	Close         float64 `json:"close"`
	SMA20         float64 `json:"sma_20"`
	SMA50         float64 `json:"sma_50"`
	EMA12         float64 `json:"ema_12"`
	EMA26         float64 `json:"ema_26"`
	RSI14         float64 `json:"rsi_14"`
	Momentum20Pct float64 `json:"momentum_20_pct"`
	Volatility20  float64 `json:"volatility_20"`
	AvgVolume20   float64 `json:"avg_volume_20"`
}

// Compute derives a Bundle from a trailing window of daily bars ordered by
// date ascending. Returns false when the window is too short for the slowest
// indicator (50 bars).
func Compute(bars []market.Bar) (Bundle, bool) {
	if len(bars) < 50 {
		return Bundle{}, false
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = float64(b.Volume)
	}

	last := len(closes) - 1
	bundle := Bundle{
		Close:        closes[last],
		SMA20:        sma(closes, 20),
		SMA50:        sma(closes, 50),
		EMA12:        ema(closes, 12),
		EMA26:        ema(closes, 26),
		RSI14:        rsi(closes, 14),
		Volatility20: volatility(closes, 20),
		AvgVolume20:  sma(volumes, 20),
	}

	anchor := closes[last-20]
	if anchor != 0 {
		bundle.Momentum20Pct = (closes[last] - anchor) / anchor * 100
	}

	return bundle, true
}

// sma is the simple moving average of the last p values
func sma(x []float64, p int) float64 {
	if p <= 0 || len(x) < p {
		return 0
	}
	var sum float64
	for _, v := range x[len(x)-p:] {
		sum += v
	}
	return sum / float64(p)
}

// ema seeds with SMA(p) and applies the standard 2/(p+1) smoothing
func ema(x []float64, p int) float64 {
	if p <= 0 || len(x) < p {
		return 0
	}
	k := 2.0 / float64(p+1)

	var seed float64
	for _, v := range x[:p] {
		seed += v
	}
	seed /= float64(p)

	out := seed
	for _, v := range x[p:] {
		out = (v-out)*k + out
	}
	return out
}

// rsi is Wilder's relative strength index over the last p deltas
func rsi(x []float64, p int) float64 {
	if p <= 0 || len(x) < p+1 {
		return 0
	}

	var gains, losses float64
	deltas := x[len(x)-p-1:]
	for i := 1; i < len(deltas); i++ {
		diff := deltas[i] - deltas[i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}

	if losses == 0 {
		if gains == 0 {
			return 50
		}
		return 100
	}

	rs := gains / losses
	return 100 - 100/(1+rs)
}

// volatility is the population standard deviation of daily percentage
// returns over the last p bars
func volatility(x []float64, p int) float64 {
	if p <= 1 || len(x) < p+1 {
		return 0
	}

	window := x[len(x)-p-1:]
	returns := make([]float64, 0, p)
	for i := 1; i < len(window); i++ {
		if window[i-1] == 0 {
			continue
		}
		returns = append(returns, (window[i]-window[i-1])/window[i-1]*100)
	}
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
	variance /= float64(len(returns))

	return math.Sqrt(variance)
}
