package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// PricingResponse is the validated shape the model must return.
type PricingResponse struct {
	StrategySummary string       `json:"strategy_summary"`
	DailyPrices     []DailyPrice `json:"daily_prices"`
}

// DailyPrice is one proposed day inside a PricingResponse.
type DailyPrice struct {
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
	Reason string  `json:"reason"`
}

// ParsePricingResponse validates raw model output against the contract.
// Entries are dropped, not repaired, when their date is malformed or outside
// [windowStart, windowEnd], or their price is not a finite positive number.
// A response that does not unmarshal, or yields zero usable entries, is an
// error: there is no salvage heuristic.
func ParsePricingResponse(raw string, windowStart, windowEnd time.Time) (*PricingResponse, error) {
	var resp PricingResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("malformed pricing response: %w", err)
	}
	if len(resp.DailyPrices) == 0 {
		return nil, fmt.Errorf("pricing response contains no daily prices")
	}

	start := models.DateOnly(windowStart)
	end := models.DateOnly(windowEnd)

	valid := make([]DailyPrice, 0, len(resp.DailyPrices))
	seen := make(map[string]bool, len(resp.DailyPrices))
	for _, dp := range resp.DailyPrices {
		d, err := time.Parse("2006-01-02", dp.Date)
		if err != nil {
			continue
		}
		if d.Before(start) || d.After(end) {
			continue
		}
		if math.IsNaN(dp.Price) || math.IsInf(dp.Price, 0) || dp.Price <= 0 {
			continue
		}
		if seen[dp.Date] {
			continue
		}
		seen[dp.Date] = true
		valid = append(valid, dp)
	}

	if len(valid) == 0 {
		return nil, fmt.Errorf("pricing response contains no valid daily prices")
	}
	resp.DailyPrices = valid
	return &resp, nil
}
