package indicators

import (
	"math"
	"testing"
	"time"

	"haka-futures-engine/market"
)

func buildCandles(n int, base float64, step float64) []market.Candle {
	candles := make([]market.Candle, n)
	start := time.Now().Add(-time.Duration(n) * 5 * time.Minute)
	price := base
	for i := 0; i < n; i++ {
		price += step
		candles[i] = market.Candle{
			OpenTime:  start.Add(time.Duration(i) * 5 * time.Minute),
			CloseTime: start.Add(time.Duration(i+1) * 5 * time.Minute),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000 + float64(i),
		}
	}
	return candles
}

func TestProcessRejectsShortSeries(t *testing.T) {
	p := NewIndicatorProcessor()
	_, err := p.Process(buildCandles(market.MinSeriesLength-1, 100, 0.1))
	if err != ErrInsufficientData {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestProcessMasksWarmupRows(t *testing.T) {
	p := NewIndicatorProcessor()
	frame, err := p.Process(buildCandles(market.MinSeriesLength, 100, 0.1))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if frame.Version != Version {
		t.Fatalf("Version = %d, want %d", frame.Version, Version)
	}
	if frame.Len() != market.MinSeriesLength {
		t.Fatalf("Len() = %d, want %d", frame.Len(), market.MinSeriesLength)
	}

	cols := map[string][]float64{
		"SMA20": frame.SMA20, "EMA12": frame.EMA12, "RSI14": frame.RSI14,
		"ATR14": frame.ATR14, "ADX14": frame.ADX14, "VWAP": frame.VWAP,
	}
	for name, col := range cols {
		for i := 0; i < market.WarmupRows; i++ {
			if !math.IsNaN(col[i]) {
				t.Fatalf("%s[%d] = %v, want NaN within warmup window", name, i, col[i])
			}
		}
	}
}

func TestProcessStableRowIsNumeric(t *testing.T) {
	p := NewIndicatorProcessor()
	frame, err := p.Process(buildCandles(market.MinSeriesLength, 100, 0.1))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	row := frame.StableRow()
	if row < 0 {
		t.Fatal("expected a stable row for a full-length series")
	}
	if math.IsNaN(frame.SMA20[row]) || math.IsNaN(frame.RSI14[row]) || math.IsNaN(frame.ATR14[row]) {
		t.Fatal("expected the stable row to carry numeric indicator values")
	}
	if frame.RSI14[row] < 0 || frame.RSI14[row] > 100 {
		t.Fatalf("RSI14[stable] = %v, want within [0, 100]", frame.RSI14[row])
	}
}

func TestStableRowOnShortFrame(t *testing.T) {
	f := &IndicatorFrame{Candles: make([]market.Candle, market.WarmupRows)}
	if row := f.StableRow(); row != -1 {
		t.Fatalf("StableRow() = %d, want -1 for a frame no longer than WarmupRows", row)
	}
}

func TestRSIBoundedAndSteadyUptrendIsOverbought(t *testing.T) {
	p := NewIndicatorProcessor()
	// A strictly rising series with no down-moves should push RSI to 100.
	frame, err := p.Process(buildCandles(market.MinSeriesLength, 100, 1.0))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	row := frame.StableRow()
	if frame.RSI14[row] != 100 {
		t.Fatalf("RSI14[stable] = %v, want 100 for a monotonic uptrend with no losses", frame.RSI14[row])
	}
}

func TestEMAConvergesTowardConstantSeries(t *testing.T) {
	p := NewIndicatorProcessor()
	frame, err := p.Process(buildCandles(market.MinSeriesLength, 100, 0))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	row := frame.StableRow()
	if math.Abs(frame.EMA12[row]-100) > 1e-6 {
		t.Fatalf("EMA12[stable] = %v, want ~100 on a flat price series", frame.EMA12[row])
	}
}
