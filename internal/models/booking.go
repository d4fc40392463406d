package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking status constants
const (
	BookingStatusConfirmed = "confirmed"
	BookingStatusPending   = "pending"
	BookingStatusCancelled = "cancelled"
)

// Pricing method constants
const (
	PricingMethodManual = "manual"
	PricingMethodIA     = "ia"
)

// Booking represents a reservation. StartDate is inclusive, EndDate is
// exclusive: a booking occupies the nights [StartDate, EndDate).
type Booking struct {
	ID            int64           `json:"id"`
	PropertyID    int64           `json:"property_id"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	Nights        int             `json:"nights"`
	PricePerNight decimal.Decimal `json:"price_per_night"`
	Channel       string          `json:"channel,omitempty"`
	Status        string          `json:"status"`
	PricingMethod string          `json:"pricing_method"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Covers reports whether the booking occupies the night of the given date.
func (b *Booking) Covers(date time.Time) bool {
	d := DateOnly(date)
	return !d.Before(DateOnly(b.StartDate)) && d.Before(DateOnly(b.EndDate))
}

// DateOnly truncates a timestamp to midnight UTC. All per-day keys in the
// pipeline use this normal form.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
