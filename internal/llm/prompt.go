package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// systemPromptTemplate is versioned by content hash: any edit changes
// TemplateVersion(), which the orchestrator records in the run log.
const systemPromptTemplate = `You are a revenue manager for short-term rental properties.
You receive one property with its pricing policy and a day-by-day demand
forecast, and you propose one nightly price per day.

Rules:
- Every price must be a finite positive number in the property's currency.
- Stay within [floor, ceiling] when a ceiling is given, otherwise at or above floor.
- The floor, base and ceiling prices you receive are pre-markup nominal
  prices. Do NOT add weekend premiums yourself; weekend markup is applied
  downstream by the pricing engine.
- Give a short factual reason per day (demand level, season, day of week).

Strategy guidance:
- prudent: maximize occupancy. Weigh occupancy > seasonality > market trend.
  Price toward the lower half of the allowed range on soft-demand days.
- balanced: weigh seasonality > occupancy > market trend.
- aggressive: maximize average daily rate. Weigh market trend > seasonality >
  occupancy. Price toward the upper half of the allowed range on
  high-demand days.

Respond with a single JSON object, no prose, of the exact shape:
{"strategy_summary": "...", "daily_prices": [{"date": "YYYY-MM-DD", "price": 123, "reason": "..."}]}
Include one daily_prices entry for every requested date.`

// TemplateVersion returns a short content hash of the system prompt, stored
// in RunLog.model_versions["llm"].
func TemplateVersion() string {
	sum := sha256.Sum256([]byte(systemPromptTemplate))
	return "tpl-" + hex.EncodeToString(sum[:6])
}

// SystemPrompt returns the versioned system prompt.
func SystemPrompt() string {
	return systemPromptTemplate
}

// PromptDay is one day of context handed to the model.
type PromptDay struct {
	Date          time.Time
	DemandScore   *float64
	IsWeekend     bool
	IsHoliday     bool
	IsSchoolBreak bool
}

// BuildUserPrompt renders the per-property user prompt: identity, policy,
// strategy and the forward window with demand markers.
func BuildUserPrompt(p *models.Property, days []PromptDay) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Property: %q, %s (%s), type %s, capacity %d, %.0f m2\n",
		p.Name, p.City, p.Country, p.PropertyType, p.Capacity, p.SurfaceM2)
	fmt.Fprintf(&b, "Strategy: %s\n", p.Strategy)
	fmt.Fprintf(&b, "Floor price: %s\nBase price: %s\n", p.FloorPrice.String(), p.BasePrice.String())
	if p.CeilingPrice != nil {
		fmt.Fprintf(&b, "Ceiling price: %s\n", p.CeilingPrice.String())
	} else {
		b.WriteString("Ceiling price: none\n")
	}
	fmt.Fprintf(&b, "Min stay: %d nights\n", p.MinStay)
	if p.MaxStay != nil {
		fmt.Fprintf(&b, "Max stay: %d nights\n", *p.MaxStay)
	}
	if p.WeeklyDiscountPercent != nil {
		fmt.Fprintf(&b, "Weekly discount: %.1f%%\n", *p.WeeklyDiscountPercent)
	}
	if p.MonthlyDiscountPercent != nil {
		fmt.Fprintf(&b, "Monthly discount: %.1f%%\n", *p.MonthlyDiscountPercent)
	}
	if p.WeekendMarkupPercent != nil {
		fmt.Fprintf(&b, "Weekend markup (applied downstream, not by you): %.1f%%\n", *p.WeekendMarkupPercent)
	}

	b.WriteString("\nDays to price (date, weekday, demand 0-100, markers):\n")
	for _, d := range days {
		fmt.Fprintf(&b, "%s %s", d.Date.Format("2006-01-02"), d.Date.Weekday().String()[:3])
		if d.DemandScore != nil {
			fmt.Fprintf(&b, " demand=%.0f", *d.DemandScore)
		} else {
			b.WriteString(" demand=unknown")
		}
		if d.IsWeekend {
			b.WriteString(" weekend")
		}
		if d.IsHoliday {
			b.WriteString(" holiday")
		}
		if d.IsSchoolBreak {
			b.WriteString(" school-break")
		}
		b.WriteString("\n")
	}

	return b.String()
}
