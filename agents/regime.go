package agents

import (
	"math"

	"haka-futures-engine/market"
	"haka-futures-engine/snapshot"
)

// Regime labels the market context RegimeDetector (component J) assigns to
// the 1h stable view.
type Regime string

const (
	RegimeTrending Regime = "trending"
	RegimeChoppy   Regime = "choppy"
	RegimeVolatile Regime = "volatile"
	RegimeUnknown  Regime = "unknown"
)

// adxTrendingThreshold and adxChoppyThreshold are frozen per the resolved
// Open Question on ADX bands: trending at >=25, choppy at <20.
const (
	adxTrendingThreshold = 25.0
	adxChoppyThreshold   = 20.0
	emaFlatBandPct       = 0.3 // percent, for the choppy |close-SMA20|/close check (the frame carries no EMA20)
)

// RegimeDetector is component J: reads the 1h stable view's ADX and its
// EMA12/EMA26/SMA50 stack to classify the prevailing regime.
type RegimeDetector struct {
	volatileATRPct float64
}

func NewRegimeDetector(volatileATRPct float64) *RegimeDetector {
	return &RegimeDetector{volatileATRPct: volatileATRPct}
}

// Detect classifies the 1h stable view. Volatility is checked first since an
// ATR spike can coexist with either a trending or choppy ADX reading and the
// spec treats "volatile" as the dominant label when it fires.
func (d *RegimeDetector) Detect(snap *snapshot.MarketSnapshot) Regime {
	view, ok := snap.Views[market.TF1h]
	if !ok || view.StableView == nil {
		return RegimeUnknown
	}
	f := view.StableView
	row := f.StableRow()
	if row < 0 {
		return RegimeUnknown
	}

	close := f.Candles[row].Close
	if close == 0 {
		return RegimeUnknown
	}

	atr := f.ATR14[row]
	if !math.IsNaN(atr) && atr/close*100 > d.volatileATRPct {
		return RegimeVolatile
	}

	adx := f.ADX14[row]
	if math.IsNaN(adx) {
		return RegimeUnknown
	}

	ema12, ema26, sma50 := f.EMA12[row], f.EMA26[row], f.SMA50[row]
	if adx >= adxTrendingThreshold && !math.IsNaN(ema12) && !math.IsNaN(ema26) && !math.IsNaN(sma50) {
		if (ema12 > ema26 && ema26 > sma50) || (ema12 < ema26 && ema26 < sma50) {
			return RegimeTrending
		}
	}

	sma20 := f.SMA20[row]
	if adx < adxChoppyThreshold && !math.IsNaN(sma20) {
		if math.Abs(close-sma20)/close*100 < emaFlatBandPct {
			return RegimeChoppy
		}
	}

	return RegimeUnknown
}
