package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price source constants for calendar days
const (
	PriceSourceBase     = "base"
	PriceSourceOverride = "override"
	PriceSourceBooking  = "booking"
)

// CalendarDay is the normalized per-(property, date) calendar row.
// It is regenerated wholesale by the ingestion phase each run.
type CalendarDay struct {
	PropertyID     int64           `json:"property_id"`
	Date           time.Time       `json:"date"`
	Occupied       bool            `json:"occupied"`
	BookingID      *int64          `json:"booking_id,omitempty"`
	PublishedPrice decimal.Decimal `json:"published_price"`
	PriceSource    string          `json:"price_source"`
}
