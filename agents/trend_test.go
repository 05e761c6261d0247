package agents

import (
	"testing"

	"haka-futures-engine/indicators"
	"haka-futures-engine/market"
	"haka-futures-engine/snapshot"
)

func TestTrendSubAgentMissingWithoutStableView(t *testing.T) {
	a := NewTrendSubAgent()
	got := a.Score(&snapshot.MarketSnapshot{Views: map[market.Timeframe]snapshot.TimeframeView{}})
	if !got.M5.Missing || !got.M15.Missing || !got.H1.Missing {
		t.Fatal("expected Missing=true for every timeframe with no stable view")
	}
}

func TestEMACrossSignDetectsBullishCross(t *testing.T) {
	f := stableFrame([]market.Candle{
		{High: 100, Low: 100, Close: 100, Open: 100},
		{High: 100, Low: 100, Close: 100, Open: 100},
		{High: 100, Low: 100, Close: 100, Open: 100},
	})
	row := f.StableRow()
	f.EMA12[row-2], f.EMA26[row-2] = 9, 10
	f.EMA12[row-1], f.EMA26[row-1] = 9.5, 10
	f.EMA12[row], f.EMA26[row] = 11, 10

	if got := emaCrossSign(f, row); got != 1 {
		t.Fatalf("emaCrossSign() = %d, want 1 on a bullish crossover", got)
	}
}

func TestMACDExpansionSign(t *testing.T) {
	f := stableFrame([]market.Candle{
		{High: 100, Low: 100, Close: 100, Open: 100},
		{High: 100, Low: 100, Close: 100, Open: 100},
		{High: 100, Low: 100, Close: 100, Open: 100},
	})
	row := f.StableRow()
	f.MACDHist[row-2], f.MACDHist[row-1], f.MACDHist[row] = 0.1, 0.3, 0.6

	if got := macdExpansionSign(f, row); got != 1 {
		t.Fatalf("macdExpansionSign() = %d, want 1 on an expanding positive histogram", got)
	}
}

func TestBreakoutSign(t *testing.T) {
	candles := make([]market.Candle, 21)
	for i := 0; i < 20; i++ {
		candles[i] = market.Candle{High: 105, Low: 95, Close: 100, Open: 100}
	}
	candles[20] = market.Candle{High: 120, Low: 110, Close: 115, Open: 110} // breaks above prior high
	f := stableFrame(candles)
	row := f.StableRow()

	if got := breakoutSign(f, row, 20); got != 1 {
		t.Fatalf("breakoutSign() = %d, want 1 on an upside breakout", got)
	}
}

func TestLiveCorrectionSign(t *testing.T) {
	f := stableFrame([]market.Candle{{High: 100, Low: 100, Close: 100, Open: 100}})
	row := f.StableRow()

	if got := liveCorrectionSign(f, row, market.Candle{Close: 105}); got != 1 {
		t.Fatalf("liveCorrectionSign() = %d, want 1 when the live candle closes above the stable close", got)
	}
	if got := liveCorrectionSign(f, row, market.Candle{Close: 95}); got != -1 {
		t.Fatalf("liveCorrectionSign() = %d, want -1 when the live candle closes below the stable close", got)
	}
}

func TestTrendSubAgentScoreTimeframeNoStableRowIsMissing(t *testing.T) {
	f := &indicators.IndicatorFrame{Candles: make([]market.Candle, market.WarmupRows)}
	a := NewTrendSubAgent()
	got := a.scoreTimeframe(snapshot.TimeframeView{StableView: f})
	if !got.Missing {
		t.Fatal("expected Missing=true when the frame has no stable row yet")
	}
}
