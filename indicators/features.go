package indicators

import (
	"math"

	"haka-futures-engine/market"
)

// FeatureSnapshot is the one-row summary an IndicatorFrame reduces to (§3).
// It is built from the frame's last stable row only — never from a warmup
// row or the live-view candle. The pipeline does not read it: PredictAgent
// and the Predictor interface take the composite quant score instead.
type FeatureSnapshot struct {
	PriceChange1  float64
	PriceChange3  float64
	PriceChange5  float64
	PriceChange10 float64
	PriceChange20 float64

	EMACrossBullish bool
	EMACrossBearish bool
	MACDCrossUp     bool
	MACDCrossDown   bool

	RSIBucket string // "overbought", "oversold", "neutral"

	ATRToPrice float64

	VolumeRatioZScore float64

	DistanceToRecentHigh float64
	DistanceToRecentLow  float64
}

// ExtractFeatures builds a FeatureSnapshot from the last stable row of an
// IndicatorFrame. Returns false if the frame has no stable row yet.
func ExtractFeatures(f *IndicatorFrame) (FeatureSnapshot, bool) {
	row := f.StableRow()
	if row < 0 {
		return FeatureSnapshot{}, false
	}

	closes := make([]float64, f.Len())
	for i, c := range f.Candles {
		closes[i] = c.Close
	}

	var fs FeatureSnapshot
	fs.PriceChange1 = pctChange(closes, row, 1)
	fs.PriceChange3 = pctChange(closes, row, 3)
	fs.PriceChange5 = pctChange(closes, row, 5)
	fs.PriceChange10 = pctChange(closes, row, 10)
	fs.PriceChange20 = pctChange(closes, row, 20)

	if row > 0 {
		fs.EMACrossBullish = crossedUp(f.EMA12, f.EMA26, row)
		fs.EMACrossBearish = crossedDown(f.EMA12, f.EMA26, row)
		fs.MACDCrossUp = crossedUp(f.MACD, f.MACDSig, row)
		fs.MACDCrossDown = crossedDown(f.MACD, f.MACDSig, row)
	}

	rsi := f.RSI14[row]
	switch {
	case rsi >= 70:
		fs.RSIBucket = "overbought"
	case rsi <= 30:
		fs.RSIBucket = "oversold"
	default:
		fs.RSIBucket = "neutral"
	}

	price := f.Candles[row].Close
	if price != 0 && !math.IsNaN(f.ATR14[row]) {
		fs.ATRToPrice = f.ATR14[row] / price
	}

	fs.VolumeRatioZScore = zScore(volumesSince(f, row, 50), f.Candles[row].Volume)

	lookback := 20
	start := row - lookback
	if start < market.WarmupRows {
		start = market.WarmupRows
	}
	highWatermark, lowWatermark := f.Candles[row].High, f.Candles[row].Low
	for i := start; i <= row; i++ {
		if f.Candles[i].High > highWatermark {
			highWatermark = f.Candles[i].High
		}
		if f.Candles[i].Low < lowWatermark {
			lowWatermark = f.Candles[i].Low
		}
	}
	if highWatermark != 0 {
		fs.DistanceToRecentHigh = (highWatermark - price) / highWatermark
	}
	if lowWatermark != 0 {
		fs.DistanceToRecentLow = (price - lowWatermark) / lowWatermark
	}

	return fs, true
}

func pctChange(closes []float64, row, back int) float64 {
	idx := row - back
	if idx < 0 || closes[idx] == 0 {
		return 0
	}
	return (closes[row] - closes[idx]) / closes[idx] * 100
}

func crossedUp(fast, slow []float64, row int) bool {
	if row < 1 {
		return false
	}
	a, b := fast[row-1], slow[row-1]
	c, d := fast[row], slow[row]
	if math.IsNaN(a) || math.IsNaN(b) || math.IsNaN(c) || math.IsNaN(d) {
		return false
	}
	return a <= b && c > d
}

func crossedDown(fast, slow []float64, row int) bool {
	if row < 1 {
		return false
	}
	a, b := fast[row-1], slow[row-1]
	c, d := fast[row], slow[row]
	if math.IsNaN(a) || math.IsNaN(b) || math.IsNaN(c) || math.IsNaN(d) {
		return false
	}
	return a >= b && c < d
}

func volumesSince(f *IndicatorFrame, row, lookback int) []float64 {
	start := row - lookback
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, row-start)
	for i := start; i < row; i++ {
		out = append(out, f.Candles[i].Volume)
	}
	return out
}

func zScore(sample []float64, value float64) float64 {
	if len(sample) < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range sample {
		mean += v
	}
	mean /= float64(len(sample))
	var variance float64
	for _, v := range sample {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(sample))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return (value - mean) / std
}
