// Package predict contains the three heterogeneous price models behind a
// single interface: a gradient-boosted tree ensemble and a feed-forward
// network loaded from pre-trained artefacts, and an LLM-backed proposer.
// The ensembler distinguishes them only by Name().
package predict

import (
	"context"
	"errors"
	"math"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// ErrInvalidModelOutput marks a model failure caused by output that failed
// validation rather than by the upstream service. The orchestrator classifies
// it as invalid data, not as an external failure.
var ErrInvalidModelOutput = errors.New("invalid model output")

// DayInput is the per-date input shared by all price models: the feature
// vector plus the city demand forecast for that date (nil when the
// forecaster had no coverage).
type DayInput struct {
	Features *models.FeatureRow
	Forecast *models.DemandForecast
}

// PriceModel proposes per-day nightly prices for one property. A model
// returns candidates only for the days it can price; days it cannot price
// are simply absent from the result, never invented. A returned error means
// the model failed as a whole for this property.
type PriceModel interface {
	Name() string
	Version() string
	Predict(ctx context.Context, property *models.Property, days []DayInput) ([]models.PriceCandidate, error)
}

// FeatureNames is the canonical feature order shared by the GBM and NN
// artefacts. Artefacts are trained against this exact schema; loaders reject
// artefacts declaring a different feature count.
var FeatureNames = []string{
	"day_of_week",
	"is_weekend",
	"is_holiday",
	"month",
	"week_of_year",
	"days_until_stay",
	"is_school_break",
	"capacity",
	"surface_m2",
	"property_type_id",
	"amenity_count",
	"floor_price",
	"base_price",
	"ceiling_price",
	"occupancy_rate_30d",
	"occupancy_rate_90d",
	"adr_30d",
	"adr_90d",
	"booking_lead_time_median",
	"demand_score_30d",
	"occupancy_rate_city_30d",
	"demand_score_city_30d",
	"demand_forecast",
}

// Vectorize flattens a DayInput into the canonical feature vector plus a
// missingness mask (1 = present, 0 = missing). Missing slots hold NaN.
func Vectorize(in DayInput) (values, mask []float64) {
	f := in.Features
	values = make([]float64, len(FeatureNames))
	mask = make([]float64, len(FeatureNames))

	set := func(i int, v float64) {
		values[i] = v
		mask[i] = 1
	}
	miss := func(i int) {
		values[i] = math.NaN()
	}
	setBool := func(i int, b bool) {
		if b {
			set(i, 1)
		} else {
			set(i, 0)
		}
	}
	setPtr := func(i int, p *float64) {
		if p != nil {
			set(i, *p)
		} else {
			miss(i)
		}
	}

	set(0, float64(f.DayOfWeek))
	setBool(1, f.IsWeekend)
	setBool(2, f.IsHoliday)
	set(3, float64(f.Month))
	set(4, float64(f.WeekOfYear))
	set(5, float64(f.DaysUntilStay))
	setBool(6, f.IsSchoolBreak)
	set(7, float64(f.Capacity))
	set(8, f.SurfaceM2)
	set(9, float64(f.PropertyTypeID))
	set(10, float64(f.AmenityCount))
	set(11, f.FloorPrice)
	set(12, f.BasePrice)
	setPtr(13, f.CeilingPrice)
	setPtr(14, f.OccupancyRate30d)
	setPtr(15, f.OccupancyRate90d)
	setPtr(16, f.ADR30d)
	setPtr(17, f.ADR90d)
	setPtr(18, f.BookingLeadTimeMedian)
	setPtr(19, f.DemandScore30d)
	setPtr(20, f.OccupancyRateCity30d)
	setPtr(21, f.DemandScoreCity30d)
	if in.Forecast != nil {
		set(22, in.Forecast.Score)
	} else {
		miss(22)
	}

	return values, mask
}
