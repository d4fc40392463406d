// Package pipeline implements the daily pricing pipeline: calendar
// ingestion, feature building, demand forecasting, model ensembling, policy
// enforcement, override persistence and publication, coordinated by the
// Orchestrator.
package pipeline

import (
	"context"
	"time"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// PropertyStore lists the properties a run covers.
type PropertyStore interface {
	ListPropertiesByTeam(teamID int64) ([]*models.Property, error)
	ListPropertiesByOwner(ownerID int64) ([]*models.Property, error)
}

// BookingStore reads bookings overlapping a window.
type BookingStore interface {
	GetBookingsInRange(propertyID int64, from, to time.Time) ([]*models.Booking, error)
}

// CalendarStore owns the materialized per-day calendar.
type CalendarStore interface {
	ReplaceCalendarDays(propertyID int64, from, to time.Time, days []*models.CalendarDay) error
	GetCalendarDays(propertyID int64, from, to time.Time) ([]*models.CalendarDay, error)
	GetCityDemandHistory(city, propertyType string, from, to time.Time) ([]models.DailyDemand, error)
	GetCityOccupancyRate(city, propertyType string, from, to time.Time) (*float64, error)
}

// FeatureStore owns the per-(property, date) feature vectors.
type FeatureStore interface {
	UpsertFeatureRows(rows []*models.FeatureRow) error
	GetFeatureRows(propertyID int64, from, to time.Time) ([]*models.FeatureRow, error)
}

// ForecastStore owns the per-(city, property type) demand forecasts.
type ForecastStore interface {
	ReplaceDemandForecasts(city, propertyType string, forecasts []*models.DemandForecast) error
	GetDemandForecasts(city, propertyType string, from, to time.Time) ([]*models.DemandForecast, error)
}

// OverrideStore owns the persisted price recommendations. UpsertOverrideBatch
// must never modify a row whose is_locked flag is set.
type OverrideStore interface {
	GetOverridesInRange(propertyID int64, from, to time.Time) ([]*models.PriceOverride, error)
	UpsertOverrideBatch(propertyID int64, overrides []*models.PriceOverride) error
}

// RunStore persists run logs.
type RunStore interface {
	AppendPipelineRun(run *models.PipelineRun) error
}

// Store aggregates everything the orchestrator touches. *database.DB
// satisfies it.
type Store interface {
	PropertyStore
	BookingStore
	CalendarStore
	FeatureStore
	ForecastStore
	OverrideStore
	RunStore
}

// RatePublisher pushes accepted prices to the property's external
// reservation system, when one is bound.
type RatePublisher interface {
	PublishRates(ctx context.Context, property *models.Property, overrides []*models.PriceOverride) error
}

// EventSink receives best-effort run lifecycle notifications. Failures are
// logged by implementations and never affect the run.
type EventSink interface {
	RunStarted(ctx context.Context, run *models.PipelineRun)
	RunCompleted(ctx context.Context, run *models.PipelineRun)
	RecommendationsWritten(ctx context.Context, propertyID int64, count int, from, to time.Time)
}

// ForecastCache is an optional read-through cache in front of the forecast
// store. The Redis implementation lives in internal/cache.
type ForecastCache interface {
	GetForecasts(ctx context.Context, city, propertyType string) ([]*models.DemandForecast, bool)
	SetForecasts(ctx context.Context, city, propertyType string, forecasts []*models.DemandForecast)
}
