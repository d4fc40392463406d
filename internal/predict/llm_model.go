package predict

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hostfolio/pricing-engine/internal/llm"
	"github.com/hostfolio/pricing-engine/internal/models"
)

// Completer is the slice of the LLM client the price model needs.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error)
}

// LLMModel proposes prices by prompting a large language model with the
// property's policy and the demand forecast for the window. It is the only
// model that attaches a per-day reason to its candidates.
type LLMModel struct {
	client Completer
}

// NewLLMModel wraps a completions client as a PriceModel.
func NewLLMModel(client Completer) *LLMModel {
	return &LLMModel{client: client}
}

// Name implements PriceModel
func (m *LLMModel) Name() string { return models.ModelLLM }

// Version implements PriceModel; the version is the prompt template hash.
func (m *LLMModel) Version() string { return llm.TemplateVersion() }

// Predict implements PriceModel. One completion covers the whole window;
// entries the validator rejects are dropped silently, so the result may be
// sparse.
func (m *LLMModel) Predict(ctx context.Context, property *models.Property, days []DayInput) ([]models.PriceCandidate, error) {
	if len(days) == 0 {
		return nil, nil
	}

	promptDays := make([]llm.PromptDay, 0, len(days))
	var windowStart, windowEnd time.Time
	for _, d := range days {
		if d.Features == nil {
			continue
		}
		pd := llm.PromptDay{
			Date:          d.Features.Date,
			IsWeekend:     d.Features.IsWeekend,
			IsHoliday:     d.Features.IsHoliday,
			IsSchoolBreak: d.Features.IsSchoolBreak,
		}
		if d.Forecast != nil {
			score := d.Forecast.Score
			pd.DemandScore = &score
		}
		promptDays = append(promptDays, pd)
		if windowStart.IsZero() || pd.Date.Before(windowStart) {
			windowStart = pd.Date
		}
		if pd.Date.After(windowEnd) {
			windowEnd = pd.Date
		}
	}
	if len(promptDays) == 0 {
		return nil, nil
	}

	raw, err := m.client.Complete(ctx, llm.SystemPrompt(), llm.BuildUserPrompt(property, promptDays), true)
	if err != nil {
		return nil, fmt.Errorf("llm completion failed: %w", err)
	}

	resp, err := llm.ParsePricingResponse(raw, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModelOutput, err)
	}

	candidates := make([]models.PriceCandidate, 0, len(resp.DailyPrices))
	for _, dp := range resp.DailyPrices {
		date, _ := time.Parse("2006-01-02", dp.Date)
		candidates = append(candidates, models.PriceCandidate{
			PropertyID: property.ID,
			Date:       date,
			Model:      models.ModelLLM,
			Price:      decimal.NewFromFloat(dp.Price).Round(2),
			Reason:     dp.Reason,
		})
	}
	return candidates, nil
}
