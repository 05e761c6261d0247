// Package agents implements the layered signal analyzers (components E–G,
// J, K) and their composition into a single quant read (component H).
// Every sub-agent is a pure function over a MarketSnapshot: no I/O, no
// suspension, matching §5's "all compute is non-suspending" rule.
package agents

import "haka-futures-engine/market"

// Score is a signed sub-agent output in [-100, +100], with a Missing flag
// so DecisionCoreAgent can renormalize weights (§4.L) instead of treating a
// genuinely-absent input as a confident zero.
type Score struct {
	Value   float64
	Missing bool
	Detail  string
}

func clip(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < -100 {
		return -100
	}
	return v
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// PerTimeframe bundles a score for each of the three configured timeframes.
type PerTimeframe struct {
	M5  Score
	M15 Score
	H1  Score
}

var allTimeframes = []market.Timeframe{market.TF5m, market.TF15m, market.TF1h}
