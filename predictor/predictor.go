// Package predictor implements component I, PredictAgent: a thin wrapper
// around whatever directional-probability model is configured, with a
// deterministic rule-based fallback so the pipeline never blocks on an
// external model being unavailable.
package predictor

import (
	"context"
	"math"
)

// PredictResult is component I's output (§3).
type PredictResult struct {
	PUp        float64
	Label      string // "up", "down", "flat"
	Confidence float64
	Source     string
}

// Predictor is the interface PredictAgent wraps. A concrete implementation
// might call out to an external model server; none ships here.
type Predictor interface {
	Predict(ctx context.Context, compositeQuantScore float64) (PredictResult, error)
}

// PredictAgent is component I.
type PredictAgent struct {
	model Predictor // nil uses the rule-based fallback exclusively
}

// NewPredictAgent constructs a PredictAgent. Pass a nil model to always use
// the rule-based fallback.
func NewPredictAgent(model Predictor) *PredictAgent {
	return &PredictAgent{model: model}
}

// Predict returns a directional probability for the given composite quant
// score. If no model is configured, or the model call fails, it falls back
// to a deterministic rule: p_up = sigmoid(0.02 * compositeQuantScore), with
// confidence capped at 50 and source="rule-fallback".
func (a *PredictAgent) Predict(ctx context.Context, compositeQuantScore float64) PredictResult {
	if a.model != nil {
		result, err := a.model.Predict(ctx, compositeQuantScore)
		if err == nil {
			return result
		}
	}
	return ruleFallback(compositeQuantScore)
}

func ruleFallback(compositeQuantScore float64) PredictResult {
	pUp := sigmoid(0.02 * compositeQuantScore)

	label := "flat"
	switch {
	case pUp > 0.55:
		label = "up"
	case pUp < 0.45:
		label = "down"
	}

	confidence := math.Abs(pUp-0.5) * 200 // 0..100
	if confidence > 50 {
		confidence = 50
	}

	return PredictResult{
		PUp:        pUp,
		Label:      label,
		Confidence: confidence,
		Source:     "rule-fallback",
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
