package pipeline

import (
	"fmt"
	"time"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// CalendarIngestor materializes one normalized calendar row per (property,
// date) by folding confirmed bookings and existing price overrides over the
// window. Days with neither inherit the property's base price.
type CalendarIngestor struct {
	bookings  BookingStore
	calendar  CalendarStore
	overrides OverrideStore
}

// NewCalendarIngestor wires the ingestion phase.
func NewCalendarIngestor(bookings BookingStore, calendar CalendarStore, overrides OverrideStore) *CalendarIngestor {
	return &CalendarIngestor{bookings: bookings, calendar: calendar, overrides: overrides}
}

// Ingest rebuilds the property's calendar for [from, to] and persists it.
func (ci *CalendarIngestor) Ingest(property *models.Property, from, to time.Time) error {
	bookings, err := ci.bookings.GetBookingsInRange(property.ID, from, to)
	if err != nil {
		return fmt.Errorf("failed to load bookings: %w", err)
	}
	overrides, err := ci.overrides.GetOverridesInRange(property.ID, from, to)
	if err != nil {
		return fmt.Errorf("failed to load overrides: %w", err)
	}

	days := BuildCalendarDays(property, bookings, overrides, from, to)
	if err := ci.calendar.ReplaceCalendarDays(property.ID, from, to, days); err != nil {
		return fmt.Errorf("failed to persist calendar: %w", err)
	}
	return nil
}

// BuildCalendarDays folds bookings and overrides into per-day rows, strictly
// ascending by date. Precedence per day: confirmed booking night (occupied,
// booking price) over price override over base price.
func BuildCalendarDays(property *models.Property, bookings []*models.Booking, overrides []*models.PriceOverride, from, to time.Time) []*models.CalendarDay {
	byDate := make(map[time.Time]*models.Booking)
	for _, b := range bookings {
		if b.Status != models.BookingStatusConfirmed {
			continue
		}
		for d := models.DateOnly(b.StartDate); d.Before(models.DateOnly(b.EndDate)); d = d.AddDate(0, 0, 1) {
			byDate[d] = b
		}
	}

	overrideByDate := make(map[time.Time]*models.PriceOverride, len(overrides))
	for _, o := range overrides {
		overrideByDate[models.DateOnly(o.Date)] = o
	}

	start := models.DateOnly(from)
	end := models.DateOnly(to)
	days := make([]*models.CalendarDay, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := &models.CalendarDay{
			PropertyID:     property.ID,
			Date:           d,
			PublishedPrice: property.BasePrice,
			PriceSource:    models.PriceSourceBase,
		}
		if b, ok := byDate[d]; ok {
			id := b.ID
			day.Occupied = true
			day.BookingID = &id
			day.PublishedPrice = b.PricePerNight
			day.PriceSource = models.PriceSourceBooking
		} else if o, ok := overrideByDate[d]; ok {
			day.PublishedPrice = o.Price
			day.PriceSource = models.PriceSourceOverride
		}
		days = append(days, day)
	}
	return days
}
