package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"haka-futures-engine/config"
	"haka-futures-engine/decision"
	"haka-futures-engine/market"
	"haka-futures-engine/risk"
	"haka-futures-engine/snapshot"
)

// flatSource serves a flat, unchanging price across every timeframe: enough
// history to pass validation, with zero ATR/ADX and price pinned to its own
// moving average, which RegimeDetector reads as choppy and DecisionCoreAgent
// vetoes into a hold regardless of what the weighted vote computes.
type flatSource struct {
	candlesPerCall int
}

func (s *flatSource) GetKlines(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	n := s.candlesPerCall
	if n == 0 {
		n = limit
	}
	out := make([]market.Candle, n)
	end := time.Now()
	period := tf.Period()
	for i := 0; i < n; i++ {
		ts := end.Add(-period * time.Duration(n-i))
		out[i] = market.Candle{
			OpenTime: ts, CloseTime: ts.Add(period),
			Open: 100, High: 100, Low: 100, Close: 100, Volume: 10,
		}
	}
	return out, nil
}

func (s *flatSource) GetFundingRate(ctx context.Context, symbol string) (float64, error) { return 0, nil }
func (s *flatSource) GetOpenInterest(ctx context.Context, symbol string) (market.OpenInterest, error) {
	return market.OpenInterest{}, nil
}
func (s *flatSource) GetInstitutionalNetflow(ctx context.Context, symbol string, window time.Duration) (float64, error) {
	return 0, nil
}

// tinySource always returns too few candles, forcing a data-sync failure.
type tinySource struct{ flatSource }

func (s *tinySource) GetKlines(ctx context.Context, symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	return s.flatSource.GetKlines(ctx, symbol, tf, 5)
}

type recordingSink struct {
	mu    sync.Mutex
	calls int
}

func (r *recordingSink) Submit(ctx context.Context, symbol string, action decision.Action, check risk.RiskCheckResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type stubAccount struct{ err error }

func (a stubAccount) AccountState(ctx context.Context, symbol string, decisionResult decision.DecisionResult) (risk.AccountState, error) {
	return risk.AccountState{}, a.err
}

func testConfig(symbols ...string) *config.Config {
	return &config.Config{
		Symbols: symbols,
		Risk: config.RiskConfig{
			MaxLeverage: 10, MinStopLossPct: 0.5, MaxStopLossPct: 5,
			MaxPositionPct: 30, MaxTotalRiskPct: 2, MarginUtilizationCap: 95,
			StopTradingDrawdownPct: 10, MaxConsecutiveLosses: 5,
			RegimeVolatileATRPct: 1.5, PositionBottomPercentile: 30, PositionTopPercentile: 70,
		},
		Timeouts: config.TimeoutConfig{
			KlinesSeconds: 5, AuxMetricsSeconds: 3, OrderSubmitSeconds: 5,
		},
		CycleIntervalSeconds: 60,
	}
}

func TestRunSymbolHoldsOnFlatMarketAndNeverSubmits(t *testing.T) {
	cfg := testConfig("BTCUSDT")
	dataSync := snapshot.NewDataSyncAgent(&flatSource{}, 5*time.Second, 3*time.Second)
	sink := &recordingSink{}
	o := New(cfg, dataSync, nil, nil, stubAccount{}, sink)

	var mu sync.Mutex
	var got CycleResult
	o.OnCycle(func(r CycleResult) {
		mu.Lock()
		got = r
		mu.Unlock()
	})

	o.runSymbol(context.Background(), "BTCUSDT")

	mu.Lock()
	defer mu.Unlock()
	if got.Err != nil {
		t.Fatalf("unexpected CycleResult.Err: %v", got.Err)
	}
	if got.Decision.Action != decision.ActionHold {
		t.Fatalf("Action = %s, want hold on a perfectly flat market", got.Decision.Action)
	}
	if !got.Decision.RegimeVetoed {
		t.Fatal("expected a flat market to be regime-vetoed as choppy")
	}
	if sink.count() != 0 {
		t.Fatalf("OrderSink.Submit called %d times, want 0 on a hold", sink.count())
	}
	if got.RiskCheck != nil {
		t.Fatal("expected no risk audit to run when the decision is a hold")
	}
}

func TestRunSymbolRecordsDataSyncFailure(t *testing.T) {
	cfg := testConfig("BTCUSDT")
	dataSync := snapshot.NewDataSyncAgent(&tinySource{}, 5*time.Second, 3*time.Second)
	sink := &recordingSink{}
	o := New(cfg, dataSync, nil, nil, stubAccount{}, sink)

	var got CycleResult
	o.OnCycle(func(r CycleResult) { got = r })

	o.runSymbol(context.Background(), "BTCUSDT")

	if got.Err == nil {
		t.Fatal("expected CycleResult.Err to be set when the data source returns too few candles")
	}
	if sink.count() != 0 {
		t.Fatalf("OrderSink.Submit called %d times, want 0 on a data-sync failure", sink.count())
	}
}

func TestRunCycleIsolatesPerSymbolFailures(t *testing.T) {
	cfg := testConfig("BTCUSDT", "ETHUSDT")
	dataSync := snapshot.NewDataSyncAgent(&flatSource{}, 5*time.Second, 3*time.Second)
	sink := &recordingSink{}
	o := New(cfg, dataSync, nil, nil, stubAccount{}, sink)

	var mu sync.Mutex
	results := map[string]CycleResult{}
	o.OnCycle(func(r CycleResult) {
		mu.Lock()
		results[r.Symbol] = r
		mu.Unlock()
	})

	o.runCycle(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 2 {
		t.Fatalf("got %d cycle results, want 2 (one per symbol)", len(results))
	}
	for _, sym := range cfg.Symbols {
		if _, ok := results[sym]; !ok {
			t.Fatalf("missing CycleResult for %s", sym)
		}
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	cfg := testConfig("BTCUSDT")
	cfg.CycleIntervalSeconds = 3600
	dataSync := snapshot.NewDataSyncAgent(&flatSource{}, 5*time.Second, 3*time.Second)
	o := New(cfg, dataSync, nil, nil, stubAccount{}, &recordingSink{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}
