package agents

import (
	"math"

	"haka-futures-engine/market"
	"haka-futures-engine/snapshot"
)

// PositionLocation labels where the current close sits within its recent
// range (component K).
type PositionLocation string

const (
	PositionBottom PositionLocation = "bottom"
	PositionMiddle PositionLocation = "middle"
	PositionTop    PositionLocation = "top"
)

// positionLookback is the window (in 1h candles) PositionAnalyzer measures
// range position over: N=96, i.e. the last four days.
const positionLookback = 96

// PositionAssessment is component K's output.
type PositionAssessment struct {
	Percentile float64
	Location   PositionLocation
	AllowLong  bool
	AllowShort bool
	Missing    bool
}

// PositionAnalyzer is component K: computes where price sits within its
// recent 1h range and gates which trade directions the range justifies.
type PositionAnalyzer struct {
	bottomPercentile float64
	topPercentile    float64
}

func NewPositionAnalyzer(bottomPercentile, topPercentile float64) *PositionAnalyzer {
	return &PositionAnalyzer{bottomPercentile: bottomPercentile, topPercentile: topPercentile}
}

// Analyze computes pct = (close-min)/(max-min)*100 over the last
// positionLookback 1h candles, and derives location and direction gates.
func (p *PositionAnalyzer) Analyze(snap *snapshot.MarketSnapshot) PositionAssessment {
	view, ok := snap.Views[market.TF1h]
	if !ok || view.StableView == nil {
		return PositionAssessment{Missing: true}
	}
	f := view.StableView
	row := f.StableRow()
	if row < 0 {
		return PositionAssessment{Missing: true}
	}

	start := row - positionLookback + 1
	if start < 0 {
		start = 0
	}

	high, low := math.Inf(-1), math.Inf(1)
	for i := start; i <= row; i++ {
		c := f.Candles[i]
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}

	close := f.Candles[row].Close
	if high == low {
		return PositionAssessment{Percentile: 50, Location: PositionMiddle, AllowLong: true, AllowShort: true}
	}

	pct := (close - low) / (high - low) * 100

	location := PositionMiddle
	switch {
	case pct < p.bottomPercentile:
		location = PositionBottom
	case pct > p.topPercentile:
		location = PositionTop
	}

	return PositionAssessment{
		Percentile: pct,
		Location:   location,
		AllowLong:  pct < p.topPercentile,
		AllowShort: pct > p.bottomPercentile,
	}
}
