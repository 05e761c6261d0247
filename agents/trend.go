package agents

import (
	"math"

	"haka-futures-engine/indicators"
	"haka-futures-engine/market"
	"haka-futures-engine/snapshot"
)

// TrendSubAgent is component E. The core spec names its four contributing
// checks against fixed timeframes (1h EMA cross, 15m MACD expansion, 5m
// breakout); since DecisionCoreAgent's weight table needs a distinct
// trend_5m/trend_15m/trend_1h score, this generalizes the same four checks
// to run against each timeframe's own stable view — the tf-scoped template
// the fixed-timeframe wording implies. Recorded as an implementation
// decision in the design ledger.
type TrendSubAgent struct{}

func NewTrendSubAgent() *TrendSubAgent { return &TrendSubAgent{} }

// Score computes trend_{5m,15m,1h} from a snapshot. A timeframe missing its
// stable view yields a Missing score rather than an imputed zero.
func (a *TrendSubAgent) Score(snap *snapshot.MarketSnapshot) PerTimeframe {
	return PerTimeframe{
		M5:  a.scoreTimeframe(snap.Views[market.TF5m]),
		M15: a.scoreTimeframe(snap.Views[market.TF15m]),
		H1:  a.scoreTimeframe(snap.Views[market.TF1h]),
	}
}

func (a *TrendSubAgent) scoreTimeframe(view snapshot.TimeframeView) Score {
	f := view.StableView
	if f == nil {
		return Score{Missing: true}
	}
	row := f.StableRow()
	if row < 2 {
		return Score{Missing: true}
	}

	total := 0.0
	details := ""

	if crossSign := emaCrossSign(f, row); crossSign != 0 {
		total += float64(crossSign) * 40
		details += "ema-cross "
	}

	if histSign := macdExpansionSign(f, row); histSign != 0 {
		total += float64(histSign) * 30
		details += "macd-expansion "
	}

	if breakSign := breakoutSign(f, row, 20); breakSign != 0 {
		total += float64(breakSign) * 30
		details += "breakout "
	}

	if liveSign := liveCorrectionSign(f, row, view.LiveView); liveSign != 0 {
		total += float64(liveSign) * 20
		details += "live-correction "
	}

	return Score{Value: clip(total), Detail: details}
}

func emaCrossSign(f *indicators.IndicatorFrame, row int) int {
	start := row - 2
	if start < 1 {
		start = 1
	}
	for i := start; i <= row; i++ {
		prevDiff := f.EMA12[i-1] - f.EMA26[i-1]
		currDiff := f.EMA12[i] - f.EMA26[i]
		if math.IsNaN(prevDiff) || math.IsNaN(currDiff) {
			continue
		}
		if prevDiff <= 0 && currDiff > 0 {
			return 1
		}
		if prevDiff >= 0 && currDiff < 0 {
			return -1
		}
	}
	return 0
}

func macdExpansionSign(f *indicators.IndicatorFrame, row int) int {
	if row < 2 {
		return 0
	}
	h0, h1, h2 := f.MACDHist[row-2], f.MACDHist[row-1], f.MACDHist[row]
	if math.IsNaN(h0) || math.IsNaN(h1) || math.IsNaN(h2) {
		return 0
	}
	if h2 > h1 && h1 > h0 && h2 > 0 {
		return 1
	}
	if h2 < h1 && h1 < h0 && h2 < 0 {
		return -1
	}
	return 0
}

func breakoutSign(f *indicators.IndicatorFrame, row, lookback int) int {
	start := row - lookback
	if start < 0 {
		start = 0
	}
	priorHigh, priorLow := math.Inf(-1), math.Inf(1)
	for i := start; i < row; i++ {
		if f.Candles[i].High > priorHigh {
			priorHigh = f.Candles[i].High
		}
		if f.Candles[i].Low < priorLow {
			priorLow = f.Candles[i].Low
		}
	}
	close := f.Candles[row].Close
	if close > priorHigh {
		return 1
	}
	if close < priorLow {
		return -1
	}
	return 0
}

func liveCorrectionSign(f *indicators.IndicatorFrame, row int, live market.Candle) int {
	lastStableClose := f.Candles[row].Close
	if live.Close > lastStableClose {
		return 1
	}
	if live.Close < lastStableClose {
		return -1
	}
	return 0
}
