package predict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostfolio/pricing-engine/internal/models"
)

type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, userPrompt string, _ bool) (string, error) {
	f.prompts = append(f.prompts, userPrompt)
	return f.response, f.err
}

func llmTestProperty() *models.Property {
	return &models.Property{
		ID:         3,
		Name:       "Harbour Flat",
		City:       "Lisbon",
		Country:    "PT",
		BasePrice:  decimal.NewFromInt(100),
		FloorPrice: decimal.NewFromInt(50),
		Strategy:   models.StrategyPrudent,
	}
}

func TestLLMModelPredict(t *testing.T) {
	completer := &fakeCompleter{
		response: `{"strategy_summary": "fill the week", "daily_prices": [
			{"date": "2025-01-06", "price": 95, "reason": "soft Monday"},
			{"date": "2025-01-07", "price": 0, "reason": "invalid, dropped"},
			{"date": "2025-01-08", "price": 110, "reason": "midweek demand"}
		]}`,
	}
	model := NewLLMModel(completer)
	assert.Equal(t, models.ModelLLM, model.Name())

	days := make([]DayInput, 3)
	for i := range days {
		days[i] = DayInput{Features: featureRow(time.Date(2025, 1, 6+i, 0, 0, 0, 0, time.UTC), 100)}
	}

	candidates, err := model.Predict(context.Background(), llmTestProperty(), days)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, "95", candidates[0].Price.String())
	assert.Equal(t, "soft Monday", candidates[0].Reason)
	assert.Equal(t, "110", candidates[1].Price.String())
	require.Len(t, completer.prompts, 1, "one completion per property window")
	assert.Contains(t, completer.prompts[0], "Harbour Flat")
}

func TestLLMModelPropagatesFailure(t *testing.T) {
	model := NewLLMModel(&fakeCompleter{err: errors.New("overloaded")})
	days := []DayInput{{Features: featureRow(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), 100)}}

	_, err := model.Predict(context.Background(), llmTestProperty(), days)
	assert.Error(t, err, "the model must not invent candidates on failure")
}

func TestLLMModelNoDaysNoCall(t *testing.T) {
	completer := &fakeCompleter{}
	model := NewLLMModel(completer)

	candidates, err := model.Predict(context.Background(), llmTestProperty(), nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Empty(t, completer.prompts)
}
