package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// PolicyEnforcer clamps ensembled prices into the property's business rules.
// Weekend markup is applied here and only here: every upstream price is
// nominal. Weekly and monthly discounts are stay-length rules surfaced to
// the reservation system, not per-day price changes, so they never appear
// here.
type PolicyEnforcer struct{}

// NewPolicyEnforcer creates the enforcement phase.
func NewPolicyEnforcer() *PolicyEnforcer {
	return &PolicyEnforcer{}
}

// Enforce applies, in order: weekend markup (Friday and Saturday nights),
// the floor clamp, the ceiling clamp when set, and rounding to integer
// currency units. The second return is false when the date is locked by a
// manual override, in which case the recommendation must be dropped without
// a write.
func (pe *PolicyEnforcer) Enforce(property *models.Property, rec *models.Recommendation, locked bool) (decimal.Decimal, bool) {
	if locked {
		return decimal.Zero, false
	}

	price := rec.Price
	if property.WeekendMarkupPercent != nil && isWeekendNight(rec.Date) {
		markup := decimal.NewFromFloat(1 + *property.WeekendMarkupPercent/100)
		price = price.Mul(markup)
	}

	if price.LessThan(property.FloorPrice) {
		price = property.FloorPrice
	}
	if property.CeilingPrice != nil && price.GreaterThan(*property.CeilingPrice) {
		price = *property.CeilingPrice
	}

	return price.Round(0), true
}
