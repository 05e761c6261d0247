package agents

import (
	"math"

	"haka-futures-engine/market"
	"haka-futures-engine/snapshot"
)

// SentimentSubAgent is component G: reads funding rate, open-interest
// change, and institutional netflow off the snapshot's auxiliary metrics.
// The DataSyncAgent drops all three metrics when any one of them fails to
// fetch (AuxDataOK=false), and the score is then reported Missing; inputs
// are not zeroed one by one. An open-interest reading without a 24h-ago
// value contributes 0, not an imputed value.
type SentimentSubAgent struct{}

func NewSentimentSubAgent() *SentimentSubAgent { return &SentimentSubAgent{} }

const (
	fundingCrowdedThreshold = 0.03 // percent
	oiDeltaThreshold        = 10.0 // percent
)

// Score computes the sentiment score for a snapshot. It reports Missing
// when the snapshot's auxiliary metrics are unavailable (AuxDataOK=false);
// otherwise the aggregate is a valid (if possibly uninformative) reading.
func (a *SentimentSubAgent) Score(snap *snapshot.MarketSnapshot) Score {
	if !snap.AuxDataOK {
		return Score{Missing: true}
	}

	total := 0.0
	details := ""

	switch {
	case snap.InstitutionalNetflow1h > 0:
		total += 30
		details += "netflow+ "
	case snap.InstitutionalNetflow1h < 0:
		total -= 30
		details += "netflow- "
	}

	fundingPct := snap.FundingRate * 100
	switch {
	case fundingPct > fundingCrowdedThreshold:
		total -= 30
		details += "funding-crowded-long "
	case fundingPct < -fundingCrowdedThreshold:
		total += 30
		details += "funding-crowded-short "
	}

	if snap.OpenInterest.Ago24h != 0 {
		oiDeltaPct := (snap.OpenInterest.Current - snap.OpenInterest.Ago24h) / snap.OpenInterest.Ago24h * 100
		if math.Abs(oiDeltaPct) > oiDeltaThreshold {
			priceDirection := priceDirection1h(snap)
			if priceDirection != 0 && sign(oiDeltaPct) == priceDirection {
				total += 10 * float64(priceDirection)
				details += "oi-aligned "
			}
		}
	}

	return Score{Value: clip(total), Detail: details}
}

func priceDirection1h(snap *snapshot.MarketSnapshot) int {
	view, ok := snap.Views[market.TF1h]
	if !ok || view.StableView == nil {
		return 0
	}
	row := view.StableView.StableRow()
	if row < 1 {
		return 0
	}
	curr := view.StableView.Candles[row].Close
	prev := view.StableView.Candles[row-1].Close
	if curr > prev {
		return 1
	}
	if curr < prev {
		return -1
	}
	return 0
}
