package agents

import (
	"haka-futures-engine/market"
	"haka-futures-engine/snapshot"
)

// OscillatorSubAgent is component F: RSI(14) per timeframe mapped through a
// bucketed scale, then blended 30/30/40 across 5m/15m/1h into a single
// composite. Both the per-timeframe scores and the blended composite are
// exposed since DecisionCoreAgent's weight table keys on the per-timeframe
// values (osc_5m/osc_15m/osc_1h).
type OscillatorSubAgent struct{}

func NewOscillatorSubAgent() *OscillatorSubAgent { return &OscillatorSubAgent{} }

// Score computes osc_{5m,15m,1h} from a snapshot's RSI(14) reading.
func (a *OscillatorSubAgent) Score(snap *snapshot.MarketSnapshot) PerTimeframe {
	return PerTimeframe{
		M5:  rsiScore(snap.Views[market.TF5m]),
		M15: rsiScore(snap.Views[market.TF15m]),
		H1:  rsiScore(snap.Views[market.TF1h]),
	}
}

// Composite blends the per-timeframe oscillator scores 30/30/40 (5m/15m/1h)
// as the core spec's §4.E/F text specifies for OscillatorSubAgent's own
// internal roll-up, distinct from DecisionCoreAgent's outer weighted vote.
func Composite(pt PerTimeframe) Score {
	weights := []struct {
		s Score
		w float64
	}{
		{pt.M5, 0.30},
		{pt.M15, 0.30},
		{pt.H1, 0.40},
	}
	var sum, totalWeight float64
	for _, item := range weights {
		if item.s.Missing {
			continue
		}
		sum += item.s.Value * item.w
		totalWeight += item.w
	}
	if totalWeight == 0 {
		return Score{Missing: true}
	}
	return Score{Value: clip(sum / totalWeight)}
}

func rsiScore(view snapshot.TimeframeView) Score {
	f := view.StableView
	if f == nil {
		return Score{Missing: true}
	}
	row := f.StableRow()
	if row < 0 {
		return Score{Missing: true}
	}
	rsi := f.RSI14[row]

	switch {
	case rsi >= 75:
		return Score{Value: -80, Detail: "rsi>=75"}
	case rsi <= 25:
		return Score{Value: 80, Detail: "rsi<=25"}
	case rsi >= 70:
		return Score{Value: linearBetween(rsi, 70, 75, -40, -80), Detail: "rsi 70-75"}
	case rsi <= 30:
		return Score{Value: linearBetween(rsi, 25, 30, 80, 40), Detail: "rsi 25-30"}
	default:
		return Score{Value: 0}
	}
}

// linearBetween linearly interpolates y for x between (x0,y0) and (x1,y1).
func linearBetween(x, x0, x1, y0, y1 float64) float64 {
	if x1 == x0 {
		return y0
	}
	t := (x - x0) / (x1 - x0)
	return y0 + t*(y1-y0)
}
