// Package decision implements component L, DecisionCoreAgent: the weighted
// vote that fuses every upstream signal into a single directional call,
// "the critic" that weighs everyone else's opinions before the guardian
// (RiskAuditAgent) ever sees the result.
package decision

import (
	"haka-futures-engine/agents"
	"haka-futures-engine/predictor"
	"haka-futures-engine/snapshot"
)

// Alignment describes how well the three trend timeframes agree.
type Alignment string

const (
	AlignmentFull    Alignment = "fully_aligned"
	AlignmentPartial Alignment = "partially_aligned"
	AlignmentNone    Alignment = "divergent"
)

// Action is the directional call DecisionCoreAgent emits.
type Action string

const (
	ActionLong  Action = "long"
	ActionShort Action = "short"
	ActionHold  Action = "hold"
)

// weight table (§4.L): named signal -> base weight. Sums to 1.0.
var baseWeights = map[string]float64{
	"trend_5m":  0.10,
	"trend_15m": 0.15,
	"trend_1h":  0.20,
	"osc_5m":    0.05,
	"osc_15m":   0.07,
	"osc_1h":    0.08,
	"prophet":   0.15,
	"sentiment": 0.20,
}

// Vote is the result of one named signal's contribution to the weighted
// score, after renormalization.
type Vote struct {
	Name            string
	Value           float64
	EffectiveWeight float64
	Missing         bool
}

// DecisionResult is component L's output (§3).
type DecisionResult struct {
	Action          Action
	WeightedScore   float64
	Confidence      float64
	Alignment       Alignment
	Votes           []Vote
	RegimeVetoed    bool
	PositionVetoed  bool
	VetoReason      string
	AdversarialNote string
}

// DecisionCoreAgent is component L.
type DecisionCoreAgent struct{}

func NewDecisionCoreAgent() *DecisionCoreAgent { return &DecisionCoreAgent{} }

// Input bundles everything DecisionCoreAgent needs from E-K for one symbol.
type Input struct {
	Quant    agents.QuantAnalysis
	Predict  predictor.PredictResult
	Regime   agents.Regime
	Position agents.PositionAssessment
	Snapshot *snapshot.MarketSnapshot
}

// Decide runs the weighted vote, applies multi-timeframe alignment, maps
// the result to an action, then applies the regime/position gates and the
// adversarial netflow audit.
func (d *DecisionCoreAgent) Decide(in Input) DecisionResult {
	votes := d.buildVotes(in)
	weightedScore := renormalizeAndSum(votes)

	alignment := alignmentOf(in.Quant.Trend)
	action, confidence := mapAction(weightedScore, alignment)

	result := DecisionResult{
		Action:        action,
		WeightedScore: weightedScore,
		Confidence:    confidence,
		Alignment:     alignment,
		Votes:         votes,
	}

	// Both gates are always evaluated, never short-circuited, so that a
	// reported veto always reflects the full picture.
	regimeVetoed, regimeReason := d.regimeGate(in.Regime, in.Position)
	positionVetoed, positionReason := d.positionGate(action, in.Position)

	result.RegimeVetoed = regimeVetoed
	result.PositionVetoed = positionVetoed

	switch {
	case regimeVetoed:
		result.VetoReason = regimeReason
		result.Action = ActionHold
	case positionVetoed:
		result.VetoReason = positionReason
		result.Action = ActionHold
	}

	if result.Action != ActionHold {
		d.adversarialAudit(&result, in)
	}

	return result
}

func (d *DecisionCoreAgent) buildVotes(in Input) []Vote {
	votes := make([]Vote, 0, len(baseWeights))

	votes = append(votes, voteFromScore("trend_5m", in.Quant.Trend.M5))
	votes = append(votes, voteFromScore("trend_15m", in.Quant.Trend.M15))
	votes = append(votes, voteFromScore("trend_1h", in.Quant.Trend.H1))
	votes = append(votes, voteFromScore("osc_5m", in.Quant.Oscillator.M5))
	votes = append(votes, voteFromScore("osc_15m", in.Quant.Oscillator.M15))
	votes = append(votes, voteFromScore("osc_1h", in.Quant.Oscillator.H1))
	votes = append(votes, voteFromScore("sentiment", in.Quant.Sentiment))

	prophetValue := (in.Predict.PUp - 0.5) * 200
	votes = append(votes, Vote{Name: "prophet", Value: prophetValue})

	return votes
}

func voteFromScore(name string, s agents.Score) Vote {
	return Vote{Name: name, Value: s.Value, Missing: s.Missing}
}

// renormalizeAndSum drops missing votes and renormalizes the remaining base
// weights so they sum to 1.0 within 1e-9 (I3), then computes the weighted
// score in place on the votes slice.
func renormalizeAndSum(votes []Vote) float64 {
	var presentWeight float64
	for i := range votes {
		if !votes[i].Missing {
			presentWeight += baseWeights[votes[i].Name]
		}
	}
	if presentWeight == 0 {
		return 0
	}

	var weightedScore float64
	for i := range votes {
		if votes[i].Missing {
			votes[i].EffectiveWeight = 0
			continue
		}
		eff := baseWeights[votes[i].Name] / presentWeight
		votes[i].EffectiveWeight = eff
		weightedScore += votes[i].Value * eff
	}
	return weightedScore
}

func alignmentOf(trend agents.PerTimeframe) Alignment {
	s5, s15, s1h := signOf(trend.M5), signOf(trend.M15), signOf(trend.H1)

	if s1h != 0 && s1h == s15 && s15 == s5 {
		return AlignmentFull
	}
	if s1h != 0 && s1h == s15 {
		return AlignmentPartial
	}
	return AlignmentNone
}

func signOf(s agents.Score) int {
	if s.Missing {
		return 0
	}
	switch {
	case s.Value > 0:
		return 1
	case s.Value < 0:
		return -1
	default:
		return 0
	}
}

// mapAction maps weighted_score and alignment to an action and confidence
// per §4.L's literal table:
//
//	weighted_score | alignment | action | confidence
//	> +50          | fully     | long   | 85
//	> +30          | any       | long   | 60-75 (linear in score)
//	< -50          | fully     | short  | 85
//	< -30          | any       | short  | 60-75 (linear in score)
//	otherwise      | -         | hold   | f(|score|)
func mapAction(weightedScore float64, alignment Alignment) (Action, float64) {
	magnitude := weightedScore
	if magnitude < 0 {
		magnitude = -magnitude
	}

	switch {
	case weightedScore > 50 && alignment == AlignmentFull:
		return ActionLong, 85
	case weightedScore > 30:
		return ActionLong, linearConfidence(magnitude)
	case weightedScore < -50 && alignment == AlignmentFull:
		return ActionShort, 85
	case weightedScore < -30:
		return ActionShort, linearConfidence(magnitude)
	default:
		return ActionHold, magnitude
	}
}

// linearConfidence maps a score magnitude in (30,50] onto the 60-75
// confidence band, saturating at 75 for anything stronger that didn't
// qualify for the fully-aligned 85 tier.
func linearConfidence(magnitude float64) float64 {
	t := (magnitude - 30) / 20
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return 60 + t*15
}

// regimeGate vetoes only the specific conjunction §4.L names: a choppy
// regime with price sitting in the middle of its recent range. A choppy
// read with price at the top or bottom of the range still has a position
// gate to answer to, but it is not itself grounds for a regime veto.
func (d *DecisionCoreAgent) regimeGate(regime agents.Regime, pos agents.PositionAssessment) (bool, string) {
	if regime == agents.RegimeChoppy && !pos.Missing && pos.Location == agents.PositionMiddle {
		return true, "CHOPPY-MIDDLE: market has no legible trend and price sits mid-range"
	}
	return false, ""
}

// positionGate vetoes a directional call the recent price range does not
// support: a long into the top of the range, or a short into the bottom.
func (d *DecisionCoreAgent) positionGate(action Action, pos agents.PositionAssessment) (bool, string) {
	if pos.Missing {
		return false, ""
	}
	if action == ActionLong && !pos.AllowLong {
		return true, "position-gate: price near top of recent range"
	}
	if action == ActionShort && !pos.AllowShort {
		return true, "position-gate: price near bottom of recent range"
	}
	return false, ""
}

// adversarialAudit decays confidence when institutional netflow points
// against the chosen direction. The audit never flips the action by
// itself, but a floor of confidence >= 30 after decay is required to
// remain non-hold; falling below it downgrades the decision to hold.
func (d *DecisionCoreAgent) adversarialAudit(result *DecisionResult, in Input) {
	if in.Snapshot == nil || !in.Snapshot.AuxDataOK {
		return
	}

	netflow := in.Snapshot.InstitutionalNetflow1h
	conflicts := (result.Action == ActionLong && netflow < 0) || (result.Action == ActionShort && netflow > 0)
	if !conflicts {
		return
	}

	result.Confidence *= 0.5
	result.AdversarialNote = "institutional netflow conflicts with chosen direction, confidence decayed"

	if result.Confidence < 30 {
		result.Action = ActionHold
	}
}
