package llm

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostfolio/pricing-engine/internal/models"
)

var (
	windowStart = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)
)

func TestParsePricingResponseValid(t *testing.T) {
	raw := `{
		"strategy_summary": "steady week",
		"daily_prices": [
			{"date": "2025-01-06", "price": 100, "reason": "low demand Monday"},
			{"date": "2025-01-10", "price": 120.5, "reason": "weekend demand"}
		]
	}`
	resp, err := ParsePricingResponse(raw, windowStart, windowEnd)
	require.NoError(t, err)
	assert.Equal(t, "steady week", resp.StrategySummary)
	require.Len(t, resp.DailyPrices, 2)
	assert.Equal(t, 120.5, resp.DailyPrices[1].Price)
}

func TestParsePricingResponseDropsInvalidEntries(t *testing.T) {
	raw := `{
		"strategy_summary": "mixed",
		"daily_prices": [
			{"date": "2025-01-06", "price": 100, "reason": "ok"},
			{"date": "2025-01-05", "price": 100, "reason": "before window"},
			{"date": "2025-01-13", "price": 100, "reason": "after window"},
			{"date": "06/01/2025", "price": 100, "reason": "bad date format"},
			{"date": "2025-01-07", "price": 0, "reason": "zero price"},
			{"date": "2025-01-08", "price": -40, "reason": "negative price"},
			{"date": "2025-01-06", "price": 200, "reason": "duplicate date"}
		]
	}`
	resp, err := ParsePricingResponse(raw, windowStart, windowEnd)
	require.NoError(t, err)
	require.Len(t, resp.DailyPrices, 1)
	assert.Equal(t, "2025-01-06", resp.DailyPrices[0].Date)
	assert.Equal(t, 100.0, resp.DailyPrices[0].Price)
}

func TestParsePricingResponseRejectsMalformed(t *testing.T) {
	_, err := ParsePricingResponse(`not json at all`, windowStart, windowEnd)
	assert.Error(t, err)

	_, err = ParsePricingResponse(`{"strategy_summary": "empty", "daily_prices": []}`, windowStart, windowEnd)
	assert.Error(t, err)

	// All entries invalid is as useless as none
	_, err = ParsePricingResponse(
		`{"strategy_summary": "x", "daily_prices": [{"date": "2030-01-01", "price": 10, "reason": ""}]}`,
		windowStart, windowEnd,
	)
	assert.Error(t, err)
}

func TestTemplateVersionStable(t *testing.T) {
	v1 := TemplateVersion()
	v2 := TemplateVersion()
	assert.Equal(t, v1, v2)
	assert.Regexp(t, `^tpl-[0-9a-f]{12}$`, v1)
}

func TestBuildUserPromptMentionsPolicy(t *testing.T) {
	ceiling := decimal.NewFromInt(200)
	markup := 20.0
	p := &models.Property{
		Name:         "Loft du Port",
		City:         "Marseille",
		Country:      "FR",
		PropertyType: models.PropertyTypeApartment,
		Capacity:     4,
		SurfaceM2:    62,
		BasePrice:    decimal.NewFromInt(100),
		FloorPrice:   decimal.NewFromInt(50),
		CeilingPrice: &ceiling,
		MinStay:      2,
		Strategy:     models.StrategyBalanced,
		WeekendMarkupPercent: &markup,
	}
	demand := 72.0
	prompt := BuildUserPrompt(p, []PromptDay{
		{Date: windowStart, DemandScore: &demand},
		{Date: windowStart.AddDate(0, 0, 4), IsWeekend: true},
	})

	assert.Contains(t, prompt, "Loft du Port")
	assert.Contains(t, prompt, "Strategy: balanced")
	assert.Contains(t, prompt, "Floor price: 50")
	assert.Contains(t, prompt, "Ceiling price: 200")
	assert.Contains(t, prompt, "applied downstream")
	assert.Contains(t, prompt, "2025-01-06 Mon demand=72")
	assert.Contains(t, prompt, "2025-01-10 Fri demand=unknown weekend")
}
