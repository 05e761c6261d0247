// Package risk implements component M, RiskAuditAgent: the guardian that
// runs an ordered battery of checks over DecisionCoreAgent's call and either
// clears it, corrects it, or vetoes it outright. Financial math uses
// shopspring/decimal throughout so leverage, margin, and liquidation-price
// arithmetic never drifts on floating point rounding.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"haka-futures-engine/config"
	"haka-futures-engine/decision"
)

// ContractType distinguishes USDT-margined (linear) from coin-margined
// (inverse) contracts for liquidation-price math.
type ContractType string

const (
	ContractLinear  ContractType = "linear"
	ContractInverse ContractType = "inverse"
)

// ContractSpec describes the exchange's contract terms for a symbol.
type ContractSpec struct {
	Type                  ContractType
	ContractSize          decimal.Decimal
	TickSize              decimal.Decimal
	MinQty                decimal.Decimal
	MaintenanceMarginRate decimal.Decimal
}

// DefaultLinearSpec returns the USDT-margined contract defaults (e.g.
// Binance BTCUSDT perpetual).
func DefaultLinearSpec() ContractSpec {
	return ContractSpec{
		Type:                  ContractLinear,
		ContractSize:          decimal.NewFromInt(1),
		TickSize:              decimal.NewFromFloat(0.1),
		MinQty:                decimal.NewFromFloat(0.001),
		MaintenanceMarginRate: decimal.NewFromFloat(0.004),
	}
}

// AccountState is the portfolio context RiskAuditAgent checks the proposed
// trade against.
type AccountState struct {
	EquityUSD             decimal.Decimal
	OpenPositionUSD        decimal.Decimal
	TotalExposureUSD       decimal.Decimal
	DrawdownPct            decimal.Decimal
	ConsecutiveLosses      int
	ProposedEntryPrice     decimal.Decimal
	ProposedStopLossPrice  decimal.Decimal
	ProposedLeverage       decimal.Decimal
	ProposedNotionalUSD    decimal.Decimal
}

// RiskCheckResult is component M's output (§3).
type RiskCheckResult struct {
	Passed       bool
	RiskLevel    string // "low", "high" (liquidation warning), or "blocked"
	BlockedBy    string
	Corrections  map[string]decimal.Decimal
	Warnings     []string
	Liquidation  decimal.Decimal
}

// check is one ordered audit step. It may mutate state (to apply a
// correction) and either blocks (returns a reason) or passes.
type check func(action decision.Action, state *AccountState, cfg config.RiskConfig, spec ContractSpec, result *RiskCheckResult) (blocked bool, reason string)

// RiskAuditAgent is component M.
type RiskAuditAgent struct {
	cfg   config.RiskConfig
	spec  ContractSpec
	checks []check
}

func NewRiskAuditAgent(cfg config.RiskConfig, spec ContractSpec) *RiskAuditAgent {
	return &RiskAuditAgent{
		cfg:  cfg,
		spec: spec,
		checks: []check{
			checkStopLossDirection,
			checkStopLossMagnitude,
			checkLeverageCap,
			checkMarginFeasibility,
			checkPositionConcentration,
			checkTotalRiskExposure,
			checkDrawdownGate,
			checkConsecutiveLossGate,
		},
	}
}

// Audit runs all eight ordered checks against a non-hold DecisionResult. The
// first blocking check halts evaluation and sets BlockedBy; checks that ran
// clean before it may still have applied corrections.
func (r *RiskAuditAgent) Audit(decisionResult decision.DecisionResult, state AccountState) RiskCheckResult {
	result := RiskCheckResult{
		Passed:      true,
		RiskLevel:   "low",
		Corrections: make(map[string]decimal.Decimal),
	}

	if decisionResult.Action == decision.ActionHold {
		return result
	}

	for _, c := range r.checks {
		blocked, reason := c(decisionResult.Action, &state, r.cfg, r.spec, &result)
		if blocked {
			result.Passed = false
			result.RiskLevel = "blocked"
			result.BlockedBy = reason
			return result
		}
	}

	result.Liquidation = liquidationPrice(state.ProposedEntryPrice, state.ProposedLeverage, decisionResult.Action == decision.ActionLong, r.spec)
	if liquidationTooClose(state, result.Liquidation, decisionResult.Action) {
		result.Warnings = append(result.Warnings, "liquidation price within stop-loss buffer")
		result.RiskLevel = "high"
	}

	return result
}

// checkStopLossDirection (§4.M check 1): a stop-loss on the wrong side of
// entry is flipped symmetrically around entry when its distance is
// plausible, since the direction is unambiguous once the action is known.
// A zero stop (none proposed) or an absurd distance (>50% of entry) cannot
// be corrected and blocks outright.
func checkStopLossDirection(action decision.Action, state *AccountState, _ config.RiskConfig, _ ContractSpec, result *RiskCheckResult) (bool, string) {
	entry := state.ProposedEntryPrice
	sl := state.ProposedStopLossPrice
	wrongSide := (action == decision.ActionLong && sl.GreaterThanOrEqual(entry)) ||
		(action == decision.ActionShort && sl.LessThanOrEqual(entry))
	if !wrongSide {
		return false, ""
	}

	if sl.IsZero() {
		return true, "FATAL_SL: no stop-loss proposed"
	}
	distance := sl.Sub(entry).Abs()
	maxPlausible := entry.Mul(decimal.NewFromFloat(0.5))
	if distance.GreaterThan(maxPlausible) {
		return true, "FATAL_SL: stop-loss distance implausible, cannot correct"
	}

	corrected := flipStopLoss(entry, distance, action)
	state.ProposedStopLossPrice = corrected
	result.Corrections["stop_loss_price"] = corrected
	result.Warnings = append(result.Warnings, "stop-loss was on the wrong side of entry, flipped symmetrically")
	return false, ""
}

func flipStopLoss(entry, distance decimal.Decimal, action decision.Action) decimal.Decimal {
	if action == decision.ActionLong {
		return entry.Sub(distance)
	}
	return entry.Add(distance)
}

// checkStopLossMagnitude (§4.M check 2): the stop must sit within the
// configured min/max distance from entry.
func checkStopLossMagnitude(action decision.Action, state *AccountState, cfg config.RiskConfig, _ ContractSpec, result *RiskCheckResult) (bool, string) {
	entry := state.ProposedEntryPrice
	if entry.IsZero() {
		return true, "entry price is zero"
	}
	dist := state.ProposedStopLossPrice.Sub(entry).Abs().Div(entry).Mul(decimal.NewFromInt(100))

	minPct := decimal.NewFromFloat(cfg.MinStopLossPct)
	maxPct := decimal.NewFromFloat(cfg.MaxStopLossPct)

	if dist.LessThan(minPct) {
		corrected := stopAtDistance(entry, minPct, action)
		state.ProposedStopLossPrice = corrected
		result.Corrections["stop_loss_price"] = corrected
		result.Warnings = append(result.Warnings, "stop-loss tighter than minimum, widened")
		return false, ""
	}
	if dist.GreaterThan(maxPct) {
		corrected := stopAtDistance(entry, maxPct, action)
		state.ProposedStopLossPrice = corrected
		result.Corrections["stop_loss_price"] = corrected
		result.Warnings = append(result.Warnings, "stop-loss wider than maximum, tightened")
		return false, ""
	}
	return false, ""
}

func stopAtDistance(entry, pct decimal.Decimal, action decision.Action) decimal.Decimal {
	frac := pct.Div(decimal.NewFromInt(100))
	if action == decision.ActionLong {
		return entry.Mul(decimal.NewFromInt(1).Sub(frac))
	}
	return entry.Mul(decimal.NewFromInt(1).Add(frac))
}

// checkLeverageCap (§4.M check 3): blocks outright, leverage is not
// something to silently correct.
func checkLeverageCap(_ decision.Action, state *AccountState, cfg config.RiskConfig, _ ContractSpec, _ *RiskCheckResult) (bool, string) {
	maxLev := decimal.NewFromFloat(cfg.MaxLeverage)
	if state.ProposedLeverage.GreaterThan(maxLev) {
		return true, fmt.Sprintf("leverage %s exceeds max %s", state.ProposedLeverage, maxLev)
	}
	return false, ""
}

// checkMarginFeasibility (§4.M check 4): the position's required margin
// must not exceed the configured utilization cap against equity.
func checkMarginFeasibility(_ decision.Action, state *AccountState, cfg config.RiskConfig, _ ContractSpec, _ *RiskCheckResult) (bool, string) {
	if state.ProposedLeverage.IsZero() || state.EquityUSD.IsZero() {
		return true, "cannot evaluate margin with zero leverage or equity"
	}
	requiredMargin := state.ProposedNotionalUSD.Div(state.ProposedLeverage)
	utilization := requiredMargin.Div(state.EquityUSD).Mul(decimal.NewFromInt(100))
	cap := decimal.NewFromFloat(cfg.MarginUtilizationCap)
	if utilization.GreaterThan(cap) {
		return true, fmt.Sprintf("required margin utilization %s%% exceeds cap %s%%", utilization.StringFixed(1), cap.StringFixed(1))
	}
	return false, ""
}

// checkPositionConcentration (§4.M check 5): a single position must not
// dominate the portfolio.
func checkPositionConcentration(_ decision.Action, state *AccountState, cfg config.RiskConfig, _ ContractSpec, _ *RiskCheckResult) (bool, string) {
	if state.EquityUSD.IsZero() {
		return true, "cannot evaluate concentration with zero equity"
	}
	positionPct := state.ProposedNotionalUSD.Div(state.EquityUSD).Mul(decimal.NewFromInt(100))
	maxPct := decimal.NewFromFloat(cfg.MaxPositionPct)
	if positionPct.GreaterThan(maxPct) {
		return true, fmt.Sprintf("position size %s%% of equity exceeds max %s%%", positionPct.StringFixed(1), maxPct.StringFixed(1))
	}
	return false, ""
}

// checkTotalRiskExposure (§4.M check 6): the capital actually at risk (the
// stop-loss distance times notional) must stay under the configured ceiling.
func checkTotalRiskExposure(action decision.Action, state *AccountState, cfg config.RiskConfig, _ ContractSpec, _ *RiskCheckResult) (bool, string) {
	if state.EquityUSD.IsZero() || state.ProposedEntryPrice.IsZero() {
		return true, "cannot evaluate risk exposure with zero equity or entry price"
	}
	stopDistPct := state.ProposedStopLossPrice.Sub(state.ProposedEntryPrice).Abs().Div(state.ProposedEntryPrice)
	riskUSD := state.ProposedNotionalUSD.Mul(stopDistPct)
	riskPct := riskUSD.Div(state.EquityUSD).Mul(decimal.NewFromInt(100))
	maxRiskPct := decimal.NewFromFloat(cfg.MaxTotalRiskPct)
	if riskPct.GreaterThan(maxRiskPct) {
		return true, fmt.Sprintf("trade risk %s%% of equity exceeds max %s%%", riskPct.StringFixed(2), maxRiskPct.StringFixed(2))
	}
	return false, ""
}

// checkDrawdownGate (§4.M check 7): new entries halt once account drawdown
// breaches the configured stop-trading threshold.
func checkDrawdownGate(_ decision.Action, state *AccountState, cfg config.RiskConfig, _ ContractSpec, _ *RiskCheckResult) (bool, string) {
	threshold := decimal.NewFromFloat(cfg.StopTradingDrawdownPct)
	if state.DrawdownPct.GreaterThanOrEqual(threshold) {
		return true, fmt.Sprintf("drawdown %s%% at or beyond stop-trading threshold %s%%", state.DrawdownPct.StringFixed(1), threshold.StringFixed(1))
	}
	return false, ""
}

// checkConsecutiveLossGate (§4.M check 8): a cooldown after repeated losses.
func checkConsecutiveLossGate(_ decision.Action, state *AccountState, cfg config.RiskConfig, _ ContractSpec, _ *RiskCheckResult) (bool, string) {
	if state.ConsecutiveLosses >= cfg.MaxConsecutiveLosses {
		return true, fmt.Sprintf("consecutive losses %d at or beyond max %d", state.ConsecutiveLosses, cfg.MaxConsecutiveLosses)
	}
	return false, ""
}

// liquidationPrice computes the strike at which the position is force
// closed, per the linear-contract formula: long liquidates below entry,
// short liquidates above it.
func liquidationPrice(entry, leverage decimal.Decimal, isLong bool, spec ContractSpec) decimal.Decimal {
	if leverage.IsZero() {
		return decimal.Zero
	}
	one := decimal.NewFromInt(1)
	invLev := one.Div(leverage)
	if isLong {
		return entry.Mul(one.Sub(invLev).Add(spec.MaintenanceMarginRate))
	}
	return entry.Mul(one.Add(invLev).Sub(spec.MaintenanceMarginRate))
}

// liquidationTooClose warns when the liquidation strike sits closer to
// entry than the stop-loss: the stop would never fire before liquidation.
func liquidationTooClose(state AccountState, liq decimal.Decimal, action decision.Action) bool {
	sl := state.ProposedStopLossPrice
	if action == decision.ActionLong {
		return liq.GreaterThan(sl)
	}
	return liq.LessThan(sl)
}
