package pipeline

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// Default ensemble weights. When a model is absent its weight is
// redistributed proportionally among the models that answered.
var defaultWeights = map[string]float64{
	models.ModelGBM: 0.40,
	models.ModelNN:  0.30,
	models.ModelLLM: 0.30,
}

// singleCandidateConfidence is the confidence assigned when only one model
// produced a candidate: agreement cannot be measured.
const singleCandidateConfidence = 50.0

// highDemandThreshold and lowDemandThreshold bound the wording of
// synthesized explanations.
const (
	highDemandThreshold = 70.0
	lowDemandThreshold  = 30.0
)

// Ensembler combines per-model candidates into one recommendation per
// (property, date). It knows models only by identifier.
type Ensembler struct {
	weights map[string]float64
}

// NewEnsembler creates an ensembler with the default weights.
func NewEnsembler() *Ensembler {
	return &Ensembler{weights: defaultWeights}
}

// Combine produces one recommendation from the candidates of a single
// (property, date). ctx holds the feature row and forecast used for
// explanation synthesis when no LLM reason is available. Returns nil when
// there are no candidates.
func (e *Ensembler) Combine(candidates []models.PriceCandidate, ctx ExplanationContext) *models.Recommendation {
	if len(candidates) == 0 {
		return nil
	}

	var weightSum, priceSum float64
	prices := make([]float64, 0, len(candidates))
	llmReason := ""
	for _, c := range candidates {
		w, ok := e.weights[c.Model]
		if !ok {
			continue
		}
		p := floatFromDecimal(c.Price)
		prices = append(prices, p)
		weightSum += w
		priceSum += w * p
		if c.Model == models.ModelLLM && strings.TrimSpace(c.Reason) != "" {
			llmReason = strings.TrimSpace(c.Reason)
		}
	}
	if weightSum == 0 || len(prices) == 0 {
		return nil
	}

	price := priceSum / weightSum

	confidence := singleCandidateConfidence
	if len(prices) > 1 {
		mean := 0.0
		for _, p := range prices {
			mean += p
		}
		mean /= float64(len(prices))
		dispersion := math.Min(1, stddev(prices)/math.Max(mean, 1))
		confidence = 100 * (1 - dispersion)
	}

	explanation := llmReason
	if explanation == "" {
		explanation = synthesizeExplanation(ctx)
	}

	first := candidates[0]
	return &models.Recommendation{
		PropertyID:  first.PropertyID,
		Date:        first.Date,
		Price:       decimal.NewFromFloat(price),
		Confidence:  confidence,
		Explanation: explanation,
	}
}

// ExplanationContext carries the day's features and forecast for
// explanation synthesis.
type ExplanationContext struct {
	Features *models.FeatureRow
	Forecast *models.DemandForecast
}

// synthesizeExplanation builds a short human string from the strongest
// day-level signals, used when the LLM gave no reason.
func synthesizeExplanation(ctx ExplanationContext) string {
	var parts []string
	if ctx.Features != nil {
		if ctx.Features.IsHoliday {
			parts = append(parts, "Holiday")
		}
		if ctx.Features.IsWeekend {
			parts = append(parts, "Weekend")
		}
		if ctx.Features.IsSchoolBreak && !ctx.Features.IsHoliday {
			parts = append(parts, "School break")
		}
	}
	if ctx.Forecast != nil {
		switch {
		case ctx.Forecast.Score >= highDemandThreshold:
			parts = append(parts, "high forecast demand")
		case ctx.Forecast.Score <= lowDemandThreshold:
			parts = append(parts, "low forecast demand")
		}
	}
	if len(parts) == 0 {
		return "Seasonal baseline"
	}
	return strings.Join(parts, " + ")
}
