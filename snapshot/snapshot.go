// Package snapshot implements component D, the DataSyncAgent: it fans out
// concurrent requests across timeframes and auxiliary metrics, splits each
// series into stable/live views, and checks the cross-timeframe alignment
// invariants (§3, §4.D), marking a snapshot that fails them with
// AlignmentOK=false; the orchestrator forces such a cycle's decision to hold.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"haka-futures-engine/indicators"
	"haka-futures-engine/market"
)

var (
	// ErrFetchFailed wraps a failure to retrieve a required series or
	// metric (§7 FetchError).
	ErrFetchFailed = errors.New("market data fetch failed")
	// ErrAlignment is returned when the resulting snapshot cannot satisfy
	// the §3 alignment invariants (§7 AlignmentError).
	ErrAlignment = errors.New("snapshot alignment invariant violated")
)

// TimeframeView holds the stable/live split for one timeframe.
type TimeframeView struct {
	StableView *indicators.IndicatorFrame
	LiveView   market.Candle
	// LiveIsStale is true when the exchange has not yet emitted a fresh
	// in-progress candle and LiveView is really the last closed one,
	// per the §4.D split rule.
	LiveIsStale bool
}

// MarketSnapshot is the pipeline's atomic unit (§3): a synchronized,
// immutable, replay-safe view across all configured timeframes plus
// auxiliary sentiment metrics.
type MarketSnapshot struct {
	SnapshotID string
	Symbol     string
	Timestamp  time.Time

	Views map[market.Timeframe]TimeframeView

	FundingRate            float64
	OpenInterest           market.OpenInterest
	InstitutionalNetflow1h float64
	AuxDataOK              bool

	AlignmentOK bool
	Warnings    []string
}

// Stable returns the stable IndicatorFrame for a timeframe, or nil if the
// timeframe was not part of this snapshot.
func (s *MarketSnapshot) Stable(tf market.Timeframe) *indicators.IndicatorFrame {
	v, ok := s.Views[tf]
	if !ok {
		return nil
	}
	return v.StableView
}

// DataSyncAgent is component D.
type DataSyncAgent struct {
	source     market.MarketDataSource
	validator  *market.KlineValidator
	processor  *indicators.IndicatorProcessor
	timeframes []market.Timeframe
	limit      int
	klinesTimeout, auxTimeout time.Duration
}

// NewDataSyncAgent constructs a DataSyncAgent over the given MarketDataSource.
func NewDataSyncAgent(source market.MarketDataSource, klinesTimeout, auxTimeout time.Duration) *DataSyncAgent {
	return &DataSyncAgent{
		source:        source,
		validator:     market.NewKlineValidator(),
		processor:     indicators.NewIndicatorProcessor(),
		timeframes:    []market.Timeframe{market.TF5m, market.TF15m, market.TF1h},
		limit:         market.MinSeriesLength + 5,
		klinesTimeout: klinesTimeout,
		auxTimeout:    auxTimeout,
	}
}

type fetchResult struct {
	tf     market.Timeframe
	frame  *indicators.IndicatorFrame
	live   market.Candle
	stale  bool
	err    error
}

// Fetch produces a MarketSnapshot for a symbol: concurrent kline fetches per
// timeframe plus auxiliary metrics, joined, split into stable/live views,
// and checked for alignment (§4.D).
func (a *DataSyncAgent) Fetch(ctx context.Context, symbol string) (*MarketSnapshot, error) {
	now := time.Now()
	snap := &MarketSnapshot{
		SnapshotID: symbol + "-" + strconv.FormatInt(now.UnixNano(), 10),
		Symbol:     symbol,
		Timestamp:  now,
		Views:      make(map[market.Timeframe]TimeframeView, len(a.timeframes)),
	}

	results := make(chan fetchResult, len(a.timeframes))
	var wg sync.WaitGroup
	for _, tf := range a.timeframes {
		wg.Add(1)
		go func(tf market.Timeframe) {
			defer wg.Done()
			results <- a.fetchTimeframe(ctx, symbol, tf)
		}(tf)
	}

	var fundingRate float64
	var oi market.OpenInterest
	var netflow float64
	var auxErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		fundingRate, oi, netflow, auxErr = a.fetchAux(ctx, symbol)
	}()

	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("%w: timeframe %s: %v", ErrFetchFailed, r.tf, r.err)
		}
		snap.Views[r.tf] = TimeframeView{StableView: r.frame, LiveView: r.live, LiveIsStale: r.stale}
		if r.stale {
			snap.Warnings = append(snap.Warnings, fmt.Sprintf("live candle stale for %s", r.tf))
		}
	}

	if auxErr != nil {
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("auxiliary metrics degraded: %v", auxErr))
		snap.AuxDataOK = false
	} else {
		snap.FundingRate = fundingRate
		snap.OpenInterest = oi
		snap.InstitutionalNetflow1h = netflow
		snap.AuxDataOK = true
	}

	if err := a.checkAlignment(snap); err != nil {
		snap.AlignmentOK = false
		snap.Warnings = append(snap.Warnings, err.Error())
		return snap, fmt.Errorf("%w: %v", ErrAlignment, err)
	}
	snap.AlignmentOK = true

	return snap, nil
}

func (a *DataSyncAgent) fetchTimeframe(ctx context.Context, symbol string, tf market.Timeframe) fetchResult {
	fetchCtx, cancel := context.WithTimeout(ctx, a.klinesTimeout)
	defer cancel()

	raw, err := a.source.GetKlines(fetchCtx, symbol, tf, a.limit)
	if err != nil {
		return fetchResult{tf: tf, err: err}
	}

	cleaned, _ := a.validator.Clean(raw)
	if len(cleaned) < market.MinSeriesLength+1 {
		return fetchResult{tf: tf, err: market.ErrInsufficientData}
	}

	// Split rule (§4.D): drop the last row into live_view, the remainder
	// becomes stable_view.
	live := cleaned[len(cleaned)-1]
	stableRaw := cleaned[:len(cleaned)-1]

	frame, err := a.processor.Process(stableRaw)
	if err != nil {
		return fetchResult{tf: tf, err: err}
	}

	stale := time.Since(live.OpenTime) > tf.Period()

	return fetchResult{tf: tf, frame: frame, live: live, stale: stale}
}

func (a *DataSyncAgent) fetchAux(ctx context.Context, symbol string) (funding float64, oi market.OpenInterest, netflow float64, err error) {
	auxCtx, cancel := context.WithTimeout(ctx, a.auxTimeout)
	defer cancel()

	funding, fErr := a.source.GetFundingRate(auxCtx, symbol)
	oi, oErr := a.source.GetOpenInterest(auxCtx, symbol)
	netflow, nErr := a.source.GetInstitutionalNetflow(auxCtx, symbol, time.Hour)

	if fErr != nil {
		return 0, market.OpenInterest{}, 0, fErr
	}
	if oErr != nil {
		return 0, market.OpenInterest{}, 0, oErr
	}
	if nErr != nil {
		return 0, market.OpenInterest{}, 0, nErr
	}
	return funding, oi, netflow, nil
}

// checkAlignment enforces the §3/§4.D alignment rule: the 5m stable view
// must be recent, and the 15m/1h stable views must not lag the 5m close by
// more than their own period.
func (a *DataSyncAgent) checkAlignment(snap *MarketSnapshot) error {
	v5, ok5 := snap.Views[market.TF5m]
	if !ok5 || v5.StableView == nil {
		return fmt.Errorf("missing 5m stable view")
	}
	last5, ok := v5.StableView.Candles[len(v5.StableView.Candles)-1], true
	if !ok {
		return fmt.Errorf("empty 5m stable view")
	}
	ts := last5.CloseTime

	if ts.Before(snap.Timestamp.Add(-10 * time.Minute)) {
		return fmt.Errorf("5m stable view too old: close_time=%s", ts)
	}

	if v15, ok := snap.Views[market.TF15m]; ok && v15.StableView != nil {
		last15 := v15.StableView.Candles[len(v15.StableView.Candles)-1]
		if last15.CloseTime.Before(ts.Add(-15 * time.Minute)) {
			return fmt.Errorf("15m stable view not aligned with 5m: %s vs %s", last15.CloseTime, ts)
		}
	}

	if v1h, ok := snap.Views[market.TF1h]; ok && v1h.StableView != nil {
		last1h := v1h.StableView.Candles[len(v1h.StableView.Candles)-1]
		if last1h.CloseTime.Before(ts.Add(-60 * time.Minute)) {
			return fmt.Errorf("1h stable view not aligned with 5m: %s vs %s", last1h.CloseTime, ts)
		}
	}

	return nil
}
