package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// ForecasterVersion is recorded on every forecast row and in the run log.
const ForecasterVersion = "tsd-v1"

// minForecastHistory is the number of historical days below which the
// forecaster falls back to a constant forecast.
const minForecastHistory = 7

// fallbackDemand is the constant forecast used when a city has no history.
const fallbackDemand = 50.0

// DemandForecaster produces a forward demand score per (city, property
// type) by decomposing the historical series into trend and weekly
// seasonality. Forecast rows are overwritten wholesale each run; an optional
// cache fronts reads within and across runs.
type DemandForecaster struct {
	calendar  CalendarStore
	forecasts ForecastStore
	cache     ForecastCache
}

// NewDemandForecaster wires the forecast phase. cache may be nil.
func NewDemandForecaster(calendar CalendarStore, forecasts ForecastStore, cache ForecastCache) *DemandForecaster {
	return &DemandForecaster{calendar: calendar, forecasts: forecasts, cache: cache}
}

// Run computes and persists forecasts for one (city, property type) pair
// from the lookback history, covering [horizonStart, horizonEnd].
func (df *DemandForecaster) Run(ctx context.Context, city, propertyType string, lookbackStart, horizonStart, horizonEnd time.Time) ([]*models.DemandForecast, error) {
	history, err := df.calendar.GetCityDemandHistory(city, propertyType, lookbackStart, horizonStart.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("failed to load demand history: %w", err)
	}

	forecasts := Forecast(city, propertyType, history, horizonStart, horizonEnd)
	if err := df.forecasts.ReplaceDemandForecasts(city, propertyType, forecasts); err != nil {
		return nil, fmt.Errorf("failed to persist forecasts: %w", err)
	}
	if df.cache != nil {
		df.cache.SetForecasts(ctx, city, propertyType, forecasts)
	}
	return forecasts, nil
}

// Load returns previously computed forecasts, preferring the cache.
func (df *DemandForecaster) Load(ctx context.Context, city, propertyType string, from, to time.Time) ([]*models.DemandForecast, error) {
	if df.cache != nil {
		if cached, ok := df.cache.GetForecasts(ctx, city, propertyType); ok {
			return filterForecastWindow(cached, from, to), nil
		}
	}
	rows, err := df.forecasts.GetDemandForecasts(city, propertyType, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load forecasts: %w", err)
	}
	return rows, nil
}

func filterForecastWindow(rows []*models.DemandForecast, from, to time.Time) []*models.DemandForecast {
	out := make([]*models.DemandForecast, 0, len(rows))
	for _, r := range rows {
		if r.ForecastDate.Before(from) || r.ForecastDate.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Forecast is the pure forecasting function:
//  1. fewer than 7 historical points: constant forecast at the historical
//     mean (50 with no history at all) with a +-30% band;
//  2. otherwise: centered-moving-average trend of window min(14, n/3),
//     per-weekday seasonality of the detrended residuals, linear regression
//     over the trend, and a 1.96-sigma confidence band. Everything is
//     clipped to [0, 100] with Lower <= Score <= Upper.
func Forecast(city, propertyType string, history []models.DailyDemand, horizonStart, horizonEnd time.Time) []*models.DemandForecast {
	horizonStart = models.DateOnly(horizonStart)
	horizonEnd = models.DateOnly(horizonEnd)
	horizon := int(horizonEnd.Sub(horizonStart).Hours()/24) + 1
	if horizon <= 0 {
		return nil
	}

	out := make([]*models.DemandForecast, 0, horizon)
	emit := func(date time.Time, score, lower, upper float64) {
		score = clip100(score)
		lower = clip100(math.Min(lower, score))
		upper = clip100(math.Max(upper, score))
		out = append(out, &models.DemandForecast{
			City:         city,
			PropertyType: propertyType,
			ForecastDate: date,
			Score:        score,
			Lower:        lower,
			Upper:        upper,
			ModelVersion: ForecasterVersion,
		})
	}

	if len(history) < minForecastHistory {
		mean := fallbackDemand
		if len(history) > 0 {
			mean = seriesMean(history)
		}
		for d := horizonStart; !d.After(horizonEnd); d = d.AddDate(0, 0, 1) {
			emit(d, mean, mean*0.7, mean*1.3)
		}
		return out
	}

	n := len(history)
	values := make([]float64, n)
	for i, h := range history {
		values[i] = h.Score
	}

	w := 14
	if n/3 < w {
		w = n / 3
	}
	if w < 1 {
		w = 1
	}
	trend := centeredMovingAverage(values, w)

	// Per-weekday mean of the detrended residuals
	var residualSum [7]float64
	var residualCount [7]int
	for i, t := range trend {
		if math.IsNaN(t) {
			continue
		}
		wd := int(history[i].Date.Weekday())
		residualSum[wd] += values[i] - t
		residualCount[wd]++
	}
	var seasonality [7]float64
	for wd := range seasonality {
		if residualCount[wd] > 0 {
			seasonality[wd] = residualSum[wd] / float64(residualCount[wd])
		}
	}

	slope, intercept := linearRegression(trend)
	sigma := stddev(values)
	band := 1.96 * sigma

	lastDate := models.DateOnly(history[n-1].Date)
	for d := horizonStart; !d.After(horizonEnd); d = d.AddDate(0, 0, 1) {
		idx := n - 1 + int(d.Sub(lastDate).Hours()/24)
		score := intercept + slope*float64(idx) + seasonality[int(d.Weekday())]
		emit(d, score, score-band, score+band)
	}
	return out
}

// centeredMovingAverage returns the centered MA of half-window w; positions
// where the full window does not fit are NaN.
func centeredMovingAverage(values []float64, w int) []float64 {
	n := len(values)
	out := make([]float64, n)
	for i := range out {
		if i < w || i >= n-w {
			out[i] = math.NaN()
			continue
		}
		sum := 0.0
		for j := i - w; j <= i+w; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(2*w+1)
	}
	return out
}

// linearRegression fits y = intercept + slope*x over the non-NaN (index,
// value) pairs.
func linearRegression(values []float64) (slope, intercept float64) {
	var sumX, sumY, sumXY, sumXX float64
	var count float64
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
		count++
	}
	if count < 2 {
		if count == 1 {
			return 0, sumY
		}
		return 0, fallbackDemand
	}
	denom := count*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / count
	}
	slope = (count*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / count
	return slope, intercept
}

func seriesMean(history []models.DailyDemand) float64 {
	sum := 0.0
	for _, h := range history {
		sum += h.Score
	}
	return sum / float64(len(history))
}

func stddev(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= n
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / n)
}

func clip100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
