package agents

import (
	"math"
	"testing"

	"haka-futures-engine/indicators"
	"haka-futures-engine/market"
	"haka-futures-engine/snapshot"
)

// stableFrame builds a minimal IndicatorFrame long enough to have a stable
// row, with every candle's high/low/close controlled by the caller.
func stableFrame(candles []market.Candle) *indicators.IndicatorFrame {
	n := market.WarmupRows + len(candles)
	full := make([]market.Candle, n)
	for i := 0; i < market.WarmupRows; i++ {
		full[i] = market.Candle{High: 100, Low: 100, Close: 100, Open: 100}
	}
	copy(full[market.WarmupRows:], candles)

	f := &indicators.IndicatorFrame{Candles: full}
	fillNaN := func() []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	f.SMA20, f.SMA50 = fillNaN(), fillNaN()
	f.EMA12, f.EMA26 = fillNaN(), fillNaN()
	f.MACD, f.MACDSig, f.MACDHist = fillNaN(), fillNaN(), fillNaN()
	f.RSI14, f.ATR14, f.ADX14 = fillNaN(), fillNaN(), fillNaN()
	f.BollUpper, f.BollMid, f.BollLower = fillNaN(), fillNaN(), fillNaN()
	f.OBV, f.VolRatio, f.VWAP = fillNaN(), fillNaN(), fillNaN()
	return f
}

func snapshotWith1h(f *indicators.IndicatorFrame) *snapshot.MarketSnapshot {
	return &snapshot.MarketSnapshot{
		Views: map[market.Timeframe]snapshot.TimeframeView{
			market.TF1h: {StableView: f},
		},
	}
}

func TestPositionAnalyzerMissingWithoutView(t *testing.T) {
	p := NewPositionAnalyzer(20, 80)
	got := p.Analyze(&snapshot.MarketSnapshot{Views: map[market.Timeframe]snapshot.TimeframeView{}})
	if !got.Missing {
		t.Fatal("expected Missing=true when the 1h view is absent")
	}
}

func TestPositionAnalyzerLocations(t *testing.T) {
	p := NewPositionAnalyzer(20, 80)

	tests := []struct {
		name         string
		closes       []float64
		wantLocation PositionLocation
		wantLong     bool
		wantShort    bool
	}{
		{"bottom of range", []float64{100, 90, 80, 70, 60}, PositionBottom, true, false},
		{"top of range", []float64{60, 70, 80, 90, 100}, PositionTop, false, true},
		{"middle of range", []float64{60, 100, 80, 90, 70}, PositionMiddle, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candles := make([]market.Candle, len(tt.closes))
			for i, c := range tt.closes {
				candles[i] = market.Candle{High: c, Low: c, Close: c, Open: c}
			}
			snap := snapshotWith1h(stableFrame(candles))
			got := p.Analyze(snap)
			if got.Location != tt.wantLocation {
				t.Fatalf("Location = %s, want %s (percentile %.1f)", got.Location, tt.wantLocation, got.Percentile)
			}
			if got.AllowLong != tt.wantLong {
				t.Fatalf("AllowLong = %v, want %v", got.AllowLong, tt.wantLong)
			}
			if got.AllowShort != tt.wantShort {
				t.Fatalf("AllowShort = %v, want %v", got.AllowShort, tt.wantShort)
			}
		})
	}
}

func TestPositionAnalyzerFlatRangeDefaultsToMiddle(t *testing.T) {
	p := NewPositionAnalyzer(20, 80)
	candles := make([]market.Candle, positionLookback)
	for i := range candles {
		candles[i] = market.Candle{High: 50, Low: 50, Close: 50, Open: 50}
	}
	snap := snapshotWith1h(stableFrame(candles))
	got := p.Analyze(snap)
	if got.Location != PositionMiddle || got.Percentile != 50 {
		t.Fatalf("flat range should default to middle/50, got %s/%v", got.Location, got.Percentile)
	}
	if !got.AllowLong || !got.AllowShort {
		t.Fatal("flat range should allow both directions")
	}
}
