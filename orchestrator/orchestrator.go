// Package orchestrator implements component N: the cycle driver that wires
// D through M together for every configured symbol, isolates per-symbol
// failures, and hands cleared decisions to an OrderSink.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"haka-futures-engine/agents"
	"haka-futures-engine/config"
	"haka-futures-engine/decision"
	"haka-futures-engine/llmadvisor"
	"haka-futures-engine/predictor"
	"haka-futures-engine/risk"
	"haka-futures-engine/snapshot"
)

// OrderSink is the component N consumes for execution. Concrete
// implementations live in the exchange package.
type OrderSink interface {
	Submit(ctx context.Context, symbol string, action decision.Action, check risk.RiskCheckResult) error
}

// AccountStateProvider supplies the live account context RiskAuditAgent
// needs, decoupling the orchestrator from any one persistence layer.
type AccountStateProvider interface {
	AccountState(ctx context.Context, symbol string, decisionResult decision.DecisionResult) (risk.AccountState, error)
}

// CycleResult captures one symbol's outcome for one cycle, for logging and
// persistence.
type CycleResult struct {
	Symbol    string
	Snapshot  *snapshot.MarketSnapshot
	Quant     agents.QuantAnalysis
	Predict   predictor.PredictResult
	Regime    agents.Regime
	Position  agents.PositionAssessment
	Decision  decision.DecisionResult
	RiskCheck *risk.RiskCheckResult
	Err       error
}

var (
	cycleLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "haka_cycle_latency_seconds",
		Help:    "Per-symbol decision-cycle latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"symbol"})

	decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "haka_decisions_total",
		Help: "Decisions emitted by action.",
	}, []string{"symbol", "action"})

	riskBlocksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "haka_risk_blocks_total",
		Help: "Trades blocked by the risk audit, by symbol.",
	}, []string{"symbol"})
)

// RegisterMetrics registers component N's Prometheus collectors. Safe to
// call once per process.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(cycleLatency, decisionsTotal, riskBlocksTotal)
}

// Orchestrator is component N.
type Orchestrator struct {
	symbols []string
	cfg     *config.Config

	dataSync *snapshot.DataSyncAgent
	quant    *agents.QuantAnalystAgent
	predict  *predictor.PredictAgent
	regime   *agents.RegimeDetector
	position *agents.PositionAnalyzer
	core     *decision.DecisionCoreAgent
	audit    *risk.RiskAuditAgent
	advisor  *llmadvisor.Advisor

	account AccountStateProvider
	sink    OrderSink

	onCycle func(CycleResult)
}

// New wires components D through M, with the symbols and thresholds taken
// from cfg. advisor may be nil to skip the LLM review step entirely.
func New(
	cfg *config.Config,
	dataSync *snapshot.DataSyncAgent,
	predictModel predictor.Predictor,
	advisor *llmadvisor.Advisor,
	account AccountStateProvider,
	sink OrderSink,
) *Orchestrator {
	return &Orchestrator{
		symbols:  cfg.Symbols,
		cfg:      cfg,
		dataSync: dataSync,
		quant:    agents.NewQuantAnalystAgent(),
		predict:  predictor.NewPredictAgent(predictModel),
		regime:   agents.NewRegimeDetector(cfg.Risk.RegimeVolatileATRPct),
		position: agents.NewPositionAnalyzer(cfg.Risk.PositionBottomPercentile, cfg.Risk.PositionTopPercentile),
		core:     decision.NewDecisionCoreAgent(),
		audit:    risk.NewRiskAuditAgent(cfg.Risk, risk.DefaultLinearSpec()),
		advisor:  advisor,
		account:  account,
		sink:     sink,
	}
}

// OnCycle registers a callback invoked with every symbol's CycleResult,
// used by the persistence and API layers to record history.
func (o *Orchestrator) OnCycle(fn func(CycleResult)) { o.onCycle = fn }

// Run drives the cycle loop until ctx is cancelled, running one pass over
// every configured symbol every CycleIntervalSeconds.
func (o *Orchestrator) Run(ctx context.Context) error {
	interval := time.Duration(o.cfg.CycleIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 orchestrator stopping: context cancelled")
			return ctx.Err()
		case <-ticker.C:
			o.runCycle(ctx)
		}
	}
}

// runCycle processes every symbol concurrently; a panic or error in one
// symbol's pipeline never blocks the others (§7 per-symbol isolation).
func (o *Orchestrator) runCycle(ctx context.Context) {
	var wg sync.WaitGroup
	for _, symbol := range o.symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("❌ %s: pipeline panic recovered: %v", symbol, r)
				}
			}()
			o.runSymbol(ctx, symbol)
		}(symbol)
	}
	wg.Wait()
}

// runSymbol runs D -> (E,F,G via H) || I || J || K -> L -> M -> OrderSink for
// one symbol, waiting for the OrderSink's ack before returning so the next
// cycle for this symbol cannot race its own order.
func (o *Orchestrator) runSymbol(ctx context.Context, symbol string) {
	start := time.Now()
	result := CycleResult{Symbol: symbol}
	defer func() {
		cycleLatency.WithLabelValues(symbol).Observe(time.Since(start).Seconds())
		if o.onCycle != nil {
			o.onCycle(result)
		}
	}()

	snap, err := o.dataSync.Fetch(ctx, symbol)
	if err != nil && snap == nil {
		result.Err = fmt.Errorf("data sync failed: %w", err)
		log.Printf("❌ %s: %v", symbol, result.Err)
		return
	}
	if err != nil {
		log.Printf("⚠️  %s: %v; decision forced to hold", symbol, err)
	}
	result.Snapshot = snap

	quant := o.quant.Analyze(snap)
	result.Quant = quant

	predictResult := o.predict.Predict(ctx, quant.Composite)
	result.Predict = predictResult

	result.Regime = o.regime.Detect(snap)
	result.Position = o.position.Analyze(snap)

	decisionResult := o.core.Decide(decision.Input{
		Quant:    quant,
		Predict:  predictResult,
		Regime:   result.Regime,
		Position: result.Position,
		Snapshot: snap,
	})
	if !snap.AlignmentOK {
		decisionResult.Action = decision.ActionHold
		decisionResult.VetoReason = "ALIGNMENT: snapshot timeframes not aligned"
	}
	result.Decision = decisionResult
	decisionsTotal.WithLabelValues(symbol, string(decisionResult.Action)).Inc()

	if decisionResult.Action == decision.ActionHold {
		return
	}

	if o.advisor != nil {
		envelope := o.advisor.Review(ctx, symbol, decisionResult)
		llmadvisor.Apply(&decisionResult, envelope)
		result.Decision = decisionResult
	}

	accountState, err := o.account.AccountState(ctx, symbol, decisionResult)
	if err != nil {
		result.Err = fmt.Errorf("account state unavailable: %w", err)
		log.Printf("❌ %s: %v", symbol, result.Err)
		return
	}

	riskResult := o.audit.Audit(decisionResult, accountState)
	result.RiskCheck = &riskResult
	if !riskResult.Passed {
		riskBlocksTotal.WithLabelValues(symbol).Inc()
		log.Printf("🛡️ %s: risk audit blocked %s: %s", symbol, decisionResult.Action, riskResult.BlockedBy)
		return
	}

	submitCtx, cancel := context.WithTimeout(ctx, time.Duration(o.cfg.Timeouts.OrderSubmitSeconds)*time.Second)
	defer cancel()

	if err := o.sink.Submit(submitCtx, symbol, decisionResult.Action, riskResult); err != nil {
		result.Err = fmt.Errorf("order submit failed: %w", err)
		log.Printf("❌ %s: %v", symbol, result.Err)
		return
	}

	log.Printf("✅ %s: %s submitted (confidence=%.1f)", symbol, decisionResult.Action, decisionResult.Confidence)
}
