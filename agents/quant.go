package agents

import "haka-futures-engine/snapshot"

// QuantAnalysis is component H's output (§3): the per-timeframe trend and
// oscillator scores plus sentiment, and the blended composite/label used
// for a quick read independent of the full weighted vote in DecisionCore.
type QuantAnalysis struct {
	Trend      PerTimeframe
	Oscillator PerTimeframe
	Sentiment  Score

	Composite float64
	Label     string // "buy", "sell", "neutral"
}

// QuantAnalystAgent is component H: composes E/F/G into one read.
type QuantAnalystAgent struct {
	trend      *TrendSubAgent
	oscillator *OscillatorSubAgent
	sentiment  *SentimentSubAgent
}

func NewQuantAnalystAgent() *QuantAnalystAgent {
	return &QuantAnalystAgent{
		trend:      NewTrendSubAgent(),
		oscillator: NewOscillatorSubAgent(),
		sentiment:  NewSentimentSubAgent(),
	}
}

// Analyze runs E, F, G and composes the result: composite =
// 0.4*avg(trend) + 0.3*avg(osc) + 0.3*sentiment; label thresholds at ±30.
func (a *QuantAnalystAgent) Analyze(snap *snapshot.MarketSnapshot) QuantAnalysis {
	trend := a.trend.Score(snap)
	osc := a.oscillator.Score(snap)
	sentiment := a.sentiment.Score(snap)

	avgTrend, trendOK := average(trend)
	avgOsc, oscOK := average(osc)

	composite := 0.0
	if trendOK {
		composite += 0.4 * avgTrend
	}
	if oscOK {
		composite += 0.3 * avgOsc
	}
	if !sentiment.Missing {
		composite += 0.3 * sentiment.Value
	}

	label := "neutral"
	switch {
	case composite > 30:
		label = "buy"
	case composite < -30:
		label = "sell"
	}

	return QuantAnalysis{
		Trend:      trend,
		Oscillator: osc,
		Sentiment:  sentiment,
		Composite:  composite,
		Label:      label,
	}
}

func average(pt PerTimeframe) (float64, bool) {
	sum, count := 0.0, 0
	for _, s := range []Score{pt.M5, pt.M15, pt.H1} {
		if s.Missing {
			continue
		}
		sum += s.Value
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
