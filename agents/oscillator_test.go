package agents

import (
	"testing"

	"haka-futures-engine/market"
	"haka-futures-engine/snapshot"
)

func rsiSnapshot(rsi float64) *snapshot.MarketSnapshot {
	f := stableFrame([]market.Candle{{High: 100, Low: 100, Close: 100, Open: 100}})
	f.RSI14[f.StableRow()] = rsi
	return snapshotWith1h(f)
}

func TestOscillatorSubAgentRSIBuckets(t *testing.T) {
	tests := []struct {
		name string
		rsi  float64
		want float64
	}{
		{"deep overbought clips at -80", 80, -80},
		{"deep oversold clips at 80", 15, 80},
		{"neutral zone is zero", 50, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := rsiSnapshot(tt.rsi)
			got := rsiScore(snap.Views[market.TF1h])
			if got.Value != tt.want {
				t.Fatalf("Value = %v, want %v", got.Value, tt.want)
			}
		})
	}
}

func TestOscillatorSubAgentMissingWithoutView(t *testing.T) {
	a := NewOscillatorSubAgent()
	got := a.Score(&snapshot.MarketSnapshot{Views: map[market.Timeframe]snapshot.TimeframeView{}})
	if !got.M5.Missing || !got.M15.Missing || !got.H1.Missing {
		t.Fatal("expected every timeframe to report Missing when no views are present")
	}
}

func TestCompositeSkipsMissingAndRenormalizes(t *testing.T) {
	pt := PerTimeframe{
		M5:  Score{Value: 100},
		M15: Score{Missing: true},
		H1:  Score{Value: -100},
	}
	got := Composite(pt)
	// weights 0.30/0.30/0.40 with M15 dropped: (100*0.30 + -100*0.40) / (0.30+0.40)
	want := (100*0.30 + -100*0.40) / 0.70
	if got.Value < want-1e-9 || got.Value > want+1e-9 {
		t.Fatalf("Composite().Value = %v, want %v", got.Value, want)
	}
}

func TestCompositeAllMissingReportsMissing(t *testing.T) {
	got := Composite(PerTimeframe{M5: Score{Missing: true}, M15: Score{Missing: true}, H1: Score{Missing: true}})
	if !got.Missing {
		t.Fatal("expected Composite to report Missing when every input is missing")
	}
}
