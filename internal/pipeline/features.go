package pipeline

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hostfolio/pricing-engine/internal/holidays"
	"github.com/hostfolio/pricing-engine/internal/models"
)

// minHistoryDays is the smallest calendar coverage a rolling window needs
// before its statistics are considered meaningful. Shorter histories are
// encoded as NULL and surface in the missingness mask.
const minHistoryDays = 7

// FeatureBuilder produces the fixed-schema feature vector per (property,
// date) for the forward window. Given the same inputs the output is
// byte-identical: no randomness, no clock reads.
type FeatureBuilder struct {
	calendar CalendarStore
	bookings BookingStore
	features FeatureStore
}

// NewFeatureBuilder wires the feature phase.
func NewFeatureBuilder(calendar CalendarStore, bookings BookingStore, features FeatureStore) *FeatureBuilder {
	return &FeatureBuilder{calendar: calendar, bookings: bookings, features: features}
}

// rollingStats holds the property-level statistics computed once per run;
// they describe the state as of today and are shared by every forward date.
type rollingStats struct {
	occupancy30d     *float64
	occupancy90d     *float64
	adr30d           *float64
	adr90d           *float64
	leadTimeMedian   *float64
	demandScore30d   *float64
	cityOccupancy30d *float64
	cityDemand30d    *float64
}

// Build computes and persists feature rows for every date in [start, end].
func (fb *FeatureBuilder) Build(property *models.Property, today, start, end time.Time) error {
	today = models.DateOnly(today)
	stats, err := fb.computeRollingStats(property, today)
	if err != nil {
		return err
	}

	start = models.DateOnly(start)
	end = models.DateOnly(end)
	rows := make([]*models.FeatureRow, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		rows = append(rows, buildFeatureRow(property, d, today, stats))
	}

	if err := fb.features.UpsertFeatureRows(rows); err != nil {
		return fmt.Errorf("failed to persist feature rows: %w", err)
	}
	return nil
}

func (fb *FeatureBuilder) computeRollingStats(property *models.Property, today time.Time) (*rollingStats, error) {
	yesterday := today.AddDate(0, 0, -1)
	from90 := today.AddDate(0, 0, -90)
	from30 := today.AddDate(0, 0, -30)

	calendar, err := fb.calendar.GetCalendarDays(property.ID, from90, yesterday)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar history: %w", err)
	}
	bookings, err := fb.bookings.GetBookingsInRange(property.ID, from90, yesterday)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking history: %w", err)
	}

	stats := &rollingStats{}
	stats.occupancy30d, stats.adr30d = windowStats(calendar, from30, yesterday)
	stats.occupancy90d, stats.adr90d = windowStats(calendar, from90, yesterday)
	stats.leadTimeMedian = leadTimeMedian(bookings)
	stats.demandScore30d = demandScore(stats.occupancy30d, stats.adr30d, basePriceFloat(property))

	cityOcc, err := fb.calendar.GetCityOccupancyRate(property.City, property.PropertyType, from30, yesterday)
	if err != nil {
		return nil, fmt.Errorf("failed to load city occupancy: %w", err)
	}
	stats.cityOccupancy30d = cityOcc

	cityDemand, err := fb.calendar.GetCityDemandHistory(property.City, property.PropertyType, from30, yesterday)
	if err != nil {
		return nil, fmt.Errorf("failed to load city demand history: %w", err)
	}
	if len(cityDemand) >= minHistoryDays {
		sum := 0.0
		for _, d := range cityDemand {
			sum += d.Score
		}
		mean := sum / float64(len(cityDemand))
		stats.cityDemand30d = &mean
	}

	return stats, nil
}

func buildFeatureRow(property *models.Property, date, today time.Time, stats *rollingStats) *models.FeatureRow {
	_, week := date.ISOWeek()
	row := &models.FeatureRow{
		PropertyID:    property.ID,
		Date:          date,
		DayOfWeek:     int(date.Weekday()),
		IsWeekend:     isWeekendNight(date),
		IsHoliday:     holidays.IsHoliday(property.Country, date),
		Month:         int(date.Month()),
		WeekOfYear:    week,
		DaysUntilStay: int(date.Sub(today).Hours() / 24),
		IsSchoolBreak: holidays.IsSchoolBreak(property.Country, date),

		Capacity:       property.Capacity,
		SurfaceM2:      property.SurfaceM2,
		PropertyTypeID: property.PropertyTypeID(),
		AmenityCount:   len(property.Amenities),
		FloorPrice:     floatFromDecimal(property.FloorPrice),
		BasePrice:      basePriceFloat(property),

		OccupancyRate30d:      stats.occupancy30d,
		OccupancyRate90d:      stats.occupancy90d,
		ADR30d:                stats.adr30d,
		ADR90d:                stats.adr90d,
		BookingLeadTimeMedian: stats.leadTimeMedian,
		DemandScore30d:        stats.demandScore30d,
		OccupancyRateCity30d:  stats.cityOccupancy30d,
		DemandScoreCity30d:    stats.cityDemand30d,
	}
	if property.CeilingPrice != nil {
		c := floatFromDecimal(*property.CeilingPrice)
		row.CeilingPrice = &c
	}
	return row
}

// isWeekendNight marks Friday and Saturday nights, the nights weekend markup
// applies to.
func isWeekendNight(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Friday || wd == time.Saturday
}

// windowStats computes occupancy rate (0..1) and ADR over the calendar days
// inside [from, to]. Both are nil when coverage is below minHistoryDays; ADR
// is nil when no night was booked.
func windowStats(calendar []*models.CalendarDay, from, to time.Time) (occupancy, adr *float64) {
	var total, occupied int
	var revenue float64
	for _, day := range calendar {
		if day.Date.Before(from) || day.Date.After(to) {
			continue
		}
		total++
		if day.Occupied {
			occupied++
			revenue += floatFromDecimal(day.PublishedPrice)
		}
	}
	if total < minHistoryDays {
		return nil, nil
	}
	rate := float64(occupied) / float64(total)
	occupancy = &rate
	if occupied > 0 {
		a := revenue / float64(occupied)
		adr = &a
	}
	return occupancy, adr
}

// leadTimeMedian computes the median days between booking creation and stay
// start over confirmed bookings. Nil when there are none.
func leadTimeMedian(bookings []*models.Booking) *float64 {
	var leads []float64
	for _, b := range bookings {
		if b.Status != models.BookingStatusConfirmed || b.CreatedAt.IsZero() {
			continue
		}
		lead := models.DateOnly(b.StartDate).Sub(models.DateOnly(b.CreatedAt)).Hours() / 24
		if lead < 0 {
			lead = 0
		}
		leads = append(leads, lead)
	}
	if len(leads) == 0 {
		return nil
	}
	sort.Float64s(leads)
	n := len(leads)
	if n%2 == 1 {
		return &leads[n/2]
	}
	m := (leads[n/2-1] + leads[n/2]) / 2
	return &m
}

// demandScore combines occupancy and price positioning into the 0-100
// composite: 100 * occupancy * (1 + ADR/base) / 2, clipped. ADR defaults to
// the base price when the property had no booked night.
func demandScore(occupancy, adr *float64, basePrice float64) *float64 {
	if occupancy == nil || basePrice <= 0 {
		return nil
	}
	ratio := 1.0
	if adr != nil {
		ratio = *adr / basePrice
	}
	score := 100 * *occupancy * (1 + ratio) / 2
	score = math.Max(0, math.Min(100, score))
	return &score
}
