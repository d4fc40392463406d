package models

import (
	"time"
)

// FeatureRow is the fixed-schema feature vector for one (property, date).
// Rolling-window and city-level statistics are nil when there is not enough
// history; models receive an explicit missingness mask derived from the nil
// pointers.
type FeatureRow struct {
	PropertyID int64     `json:"property_id"`
	Date       time.Time `json:"date"`

	// Calendar features
	DayOfWeek     int  `json:"day_of_week"` // 0 = Sunday ... 6 = Saturday
	IsWeekend     bool `json:"is_weekend"`  // Friday or Saturday night
	IsHoliday     bool `json:"is_holiday"`
	Month         int  `json:"month"`
	WeekOfYear    int  `json:"week_of_year"`
	DaysUntilStay int  `json:"days_until_stay"`
	IsSchoolBreak bool `json:"is_school_break"`

	// Property snapshot
	Capacity       int     `json:"capacity"`
	SurfaceM2      float64 `json:"surface_m2"`
	PropertyTypeID int     `json:"property_type_id"`
	AmenityCount   int     `json:"amenity_count"`
	FloorPrice     float64 `json:"floor_price"`
	BasePrice      float64 `json:"base_price"`
	CeilingPrice   *float64 `json:"ceiling_price,omitempty"`

	// Rolling windows over the property's own history
	OccupancyRate30d      *float64 `json:"occupancy_rate_30d,omitempty"`
	OccupancyRate90d      *float64 `json:"occupancy_rate_90d,omitempty"`
	ADR30d                *float64 `json:"adr_30d,omitempty"`
	ADR90d                *float64 `json:"adr_90d,omitempty"`
	BookingLeadTimeMedian *float64 `json:"booking_lead_time_median,omitempty"`
	DemandScore30d        *float64 `json:"demand_score_30d,omitempty"`

	// City-level aggregates over properties of the same type
	OccupancyRateCity30d *float64 `json:"occupancy_rate_city_30d,omitempty"`
	DemandScoreCity30d   *float64 `json:"demand_score_city_30d,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// DailyDemand is one point of the historical per-(city, property type)
// demand series consumed by the forecaster.
type DailyDemand struct {
	Date  time.Time `json:"date"`
	Score float64   `json:"score"`
}
