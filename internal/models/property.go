package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pricing strategy constants
const (
	StrategyPrudent    = "prudent"
	StrategyBalanced   = "balanced"
	StrategyAggressive = "aggressive"
)

// Property type constants
const (
	PropertyTypeApartment = "apartment"
	PropertyTypeHouse     = "house"
	PropertyTypeVilla     = "villa"
	PropertyTypeStudio    = "studio"
	PropertyTypeRoom      = "room"
)

// Property represents a short-term rental unit with its pricing policy.
// Properties are owned by the account service; the pipeline reads them
// and never writes them.
type Property struct {
	ID                     int64            `json:"id"`
	OwnerID                int64            `json:"owner_id"`
	TeamID                 int64            `json:"team_id"`
	Name                   string           `json:"name"`
	City                   string           `json:"city"`
	Country                string           `json:"country"`
	PropertyType           string           `json:"property_type"`
	Capacity               int              `json:"capacity"`
	SurfaceM2              float64          `json:"surface_m2"`
	Amenities              []string         `json:"amenities,omitempty"`
	BasePrice              decimal.Decimal  `json:"base_price"`
	FloorPrice             decimal.Decimal  `json:"floor_price"`
	CeilingPrice           *decimal.Decimal `json:"ceiling_price,omitempty"`
	MinStay                int              `json:"min_stay"`
	MaxStay                *int             `json:"max_stay,omitempty"`
	WeeklyDiscountPercent  *float64         `json:"weekly_discount_percent,omitempty"`
	MonthlyDiscountPercent *float64         `json:"monthly_discount_percent,omitempty"`
	WeekendMarkupPercent   *float64         `json:"weekend_markup_percent,omitempty"`
	Strategy               string           `json:"strategy"`
	PMSType                *string          `json:"pms_type,omitempty"`
	PMSID                  *string          `json:"pms_id,omitempty"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// HasPMSBinding reports whether the property is connected to an external
// reservation system.
func (p *Property) HasPMSBinding() bool {
	return p.PMSType != nil && *p.PMSType != "" && p.PMSID != nil && *p.PMSID != ""
}

// PropertyTypeID maps the property type string to a stable numeric code used
// in feature vectors. Unknown types map to 0.
func (p *Property) PropertyTypeID() int {
	switch p.PropertyType {
	case PropertyTypeApartment:
		return 1
	case PropertyTypeHouse:
		return 2
	case PropertyTypeVilla:
		return 3
	case PropertyTypeStudio:
		return 4
	case PropertyTypeRoom:
		return 5
	default:
		return 0
	}
}
