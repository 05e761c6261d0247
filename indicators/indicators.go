// Package indicators computes the technical-indicator overlay (component C)
// on top of a raw candle series. The smoothing formulas (EMA via recursive
// application, ATR via Wilder's method) are grounded in the teacher's
// app/regime_detector.go and app/exit_strategy.go, which compute the same
// EMA/ATR/stddev by hand rather than reaching for a TA library — no example
// repo in the pack imports one, so this stays on hand-rolled math.
package indicators

import (
	"errors"
	"math"

	"haka-futures-engine/market"
)

// ErrInsufficientData mirrors market.ErrInsufficientData for callers that
// only import this package.
var ErrInsufficientData = errors.New("insufficient candle history for indicators")

// Version identifies the schema of IndicatorFrame produced by this package.
// Any change to the formulas below must bump this and invalidate frames
// persisted under the previous version (§4.C).
const Version = 1

// IndicatorFrame extends a candle series with the standard overlay set.
// Row i of every slice corresponds to row i of Candles; the first
// market.WarmupRows entries hold NaN.
type IndicatorFrame struct {
	Version   int
	Candles   []market.Candle
	SMA20     []float64
	SMA50     []float64
	EMA12     []float64
	EMA26     []float64
	MACD      []float64
	MACDSig   []float64
	MACDHist  []float64
	RSI14     []float64
	ATR14     []float64
	BollUpper []float64
	BollMid   []float64
	BollLower []float64
	OBV       []float64
	VolRatio  []float64
	VWAP      []float64
	ADX14     []float64
}

// Len returns the number of rows in the frame.
func (f *IndicatorFrame) Len() int { return len(f.Candles) }

// StableRow returns the index of the last non-warmup row, or -1 if the
// frame has no stable rows.
func (f *IndicatorFrame) StableRow() int {
	if len(f.Candles) <= market.WarmupRows {
		return -1
	}
	return len(f.Candles) - 1
}

// IndicatorProcessor is component C: a pure function of its candle input.
type IndicatorProcessor struct{}

// NewIndicatorProcessor constructs a processor. It carries no state; every
// call to Process is independent, which is what lets the same processor
// serve both the live pipeline and historical replay without lookahead.
func NewIndicatorProcessor() *IndicatorProcessor {
	return &IndicatorProcessor{}
}

// Process computes the full indicator overlay for a candle series. It
// rejects series shorter than market.MinSeriesLength and marks the first
// market.WarmupRows rows of every derived column as NaN.
func (p *IndicatorProcessor) Process(raw []market.Candle) (*IndicatorFrame, error) {
	if len(raw) < market.MinSeriesLength {
		return nil, ErrInsufficientData
	}

	n := len(raw)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range raw {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	frame := &IndicatorFrame{Version: Version, Candles: append([]market.Candle(nil), raw...)}

	frame.SMA20 = sma(closes, 20)
	frame.SMA50 = sma(closes, 50)
	frame.EMA12 = ema(closes, 12)
	frame.EMA26 = ema(closes, 26)

	frame.MACD = make([]float64, n)
	for i := range frame.MACD {
		frame.MACD[i] = subOrNaN(frame.EMA12[i], frame.EMA26[i])
	}
	frame.MACDSig = ema(frame.MACD, 9)
	frame.MACDHist = make([]float64, n)
	for i := range frame.MACDHist {
		frame.MACDHist[i] = subOrNaN(frame.MACD[i], frame.MACDSig[i])
	}

	frame.RSI14 = rsi(closes, 14)
	frame.ATR14 = atrWilder(highs, lows, closes, 14)
	frame.ADX14 = adxWilder(highs, lows, closes, 14)

	upper, mid, lower := bollinger(closes, 20, 2.0)
	frame.BollUpper, frame.BollMid, frame.BollLower = upper, mid, lower

	frame.OBV = obv(closes, volumes)
	frame.VolRatio = volumeRatio(volumes, 20)
	frame.VWAP = vwap(highs, lows, closes, volumes)

	// Enforce the warmup mask on every derived column: even where a
	// formula happens to be numerically defined earlier (e.g. SMA20 at
	// row 20), the spec treats anything before row WarmupRows as unstable
	// and consumers must not read it.
	maskWarmup(frame)

	return frame, nil
}

func maskWarmup(f *IndicatorFrame) {
	w := market.WarmupRows
	if w > f.Len() {
		w = f.Len()
	}
	cols := [][]float64{
		f.SMA20, f.SMA50, f.EMA12, f.EMA26, f.MACD, f.MACDSig, f.MACDHist,
		f.RSI14, f.ATR14, f.BollUpper, f.BollMid, f.BollLower, f.OBV,
		f.VolRatio, f.VWAP, f.ADX14,
	}
	for _, col := range cols {
		for i := 0; i < w && i < len(col); i++ {
			col[i] = math.NaN()
		}
	}
}

func subOrNaN(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return a - b
}

func sma(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}

func ema(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	k := 2.0 / float64(period+1)
	var prev float64
	seeded := false
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		if !seeded {
			if i < period-1 {
				out[i] = math.NaN()
				continue
			}
			// Seed with the SMA of the first `period` values.
			sum := 0.0
			for j := i - period + 1; j <= i; j++ {
				sum += values[j]
			}
			prev = sum / float64(period)
			out[i] = prev
			seeded = true
			continue
		}
		prev = v*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

func rsi(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	out[0] = math.NaN()
	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		if i < period {
			avgGain += gain
			avgLoss += loss
			out[i] = math.NaN()
			if i == period-1 {
				avgGain /= float64(period)
				avgLoss /= float64(period)
			}
			continue
		}
		if i == period {
			// avgGain/avgLoss already the simple average from the loop above.
		} else {
			avgGain = (avgGain*float64(period-1) + gain) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		}
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - (100 / (1 + rs))
	}
	return out
}

// atrWilder computes Average True Range using Wilder's smoothing, the same
// recursive form as app/exit_strategy.go's CalculateATR.
func atrWilder(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	out[0] = math.NaN()
	trueRanges := make([]float64, n)
	trueRanges[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - closes[i-1])
		tr3 := math.Abs(lows[i] - closes[i-1])
		trueRanges[i] = math.Max(tr1, math.Max(tr2, tr3))
	}

	var atr float64
	for i := 1; i < n; i++ {
		if i < period {
			out[i] = math.NaN()
			continue
		}
		if i == period {
			sum := 0.0
			for j := 1; j <= period; j++ {
				sum += trueRanges[j]
			}
			atr = sum / float64(period)
			out[i] = atr
			continue
		}
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
		out[i] = atr
	}
	return out
}

// adxWilder computes the Average Directional Index using Wilder's smoothed
// +DM/-DM/TR, the standard closed-form ADX derivation.
func adxWilder(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n < period*2 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		tr1 := highs[i] - lows[i]
		tr2 := math.Abs(highs[i] - closes[i-1])
		tr3 := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(tr1, math.Max(tr2, tr3))
	}

	smoothedTR := wilderSmooth(tr, period)
	smoothedPlusDM := wilderSmooth(plusDM, period)
	smoothedMinusDM := wilderSmooth(minusDM, period)

	dx := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	for i := period; i < n; i++ {
		if math.IsNaN(smoothedTR[i]) || smoothedTR[i] == 0 {
			continue
		}
		plusDI := 100 * smoothedPlusDM[i] / smoothedTR[i]
		minusDI := 100 * smoothedMinusDM[i] / smoothedTR[i]
		sum := plusDI + minusDI
		if sum == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / sum
	}

	adx := wilderSmooth(dx, period)
	for i := period * 2; i < n; i++ {
		out[i] = adx[i]
	}
	return out
}

func wilderSmooth(values []float64, period int) []float64 {
	n := len(values)
	out := make([]float64, n)
	var acc float64
	for i := range out {
		out[i] = math.NaN()
	}
	for i := 1; i <= period && i < n; i++ {
		acc += values[i]
	}
	if period >= n {
		return out
	}
	smoothed := acc
	out[period] = smoothed
	for i := period + 1; i < n; i++ {
		smoothed = smoothed - smoothed/float64(period) + values[i]
		out[i] = smoothed
	}
	return out
}

func bollinger(closes []float64, period int, numStdDev float64) (upper, mid, lower []float64) {
	n := len(closes)
	upper = make([]float64, n)
	mid = make([]float64, n)
	lower = make([]float64, n)
	midSMA := sma(closes, period)
	for i := 0; i < n; i++ {
		if i < period-1 || math.IsNaN(midSMA[i]) {
			upper[i], mid[i], lower[i] = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - midSMA[i]
			sum += d * d
		}
		std := math.Sqrt(sum / float64(period))
		mid[i] = midSMA[i]
		upper[i] = midSMA[i] + numStdDev*std
		lower[i] = midSMA[i] - numStdDev*std
	}
	return
}

func obv(closes, volumes []float64) []float64 {
	n := len(closes)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	out[0] = 0
	for i := 1; i < n; i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volumes[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volumes[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

func volumeRatio(volumes []float64, period int) []float64 {
	avg := sma(volumes, period)
	out := make([]float64, len(volumes))
	for i, v := range volumes {
		if math.IsNaN(avg[i]) || avg[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = v / avg[i]
	}
	return out
}

func vwap(highs, lows, closes, volumes []float64) []float64 {
	n := len(closes)
	out := make([]float64, n)
	var cumPV, cumV float64
	for i := 0; i < n; i++ {
		typical := (highs[i] + lows[i] + closes[i]) / 3
		cumPV += typical * volumes[i]
		cumV += volumes[i]
		if cumV == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = cumPV / cumV
	}
	return out
}
