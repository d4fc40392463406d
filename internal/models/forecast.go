package models

import (
	"time"
)

// DemandForecast is one forecasted demand point for a (city, property type,
// date) key. Score, Lower and Upper are on a 0-100 scale with
// Lower <= Score <= Upper. Rows are overwritten wholesale each run so
// readers always see a single model version per (city, type).
type DemandForecast struct {
	City         string    `json:"city"`
	PropertyType string    `json:"property_type"`
	ForecastDate time.Time `json:"forecast_date"`
	Score        float64   `json:"score"`
	Lower        float64   `json:"lower"`
	Upper        float64   `json:"upper"`
	ModelVersion string    `json:"model_version"`
	CreatedAt    time.Time `json:"created_at"`
}
