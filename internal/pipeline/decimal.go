package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/hostfolio/pricing-engine/internal/models"
)

func floatFromDecimal(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func basePriceFloat(p *models.Property) float64 {
	return floatFromDecimal(p.BasePrice)
}
