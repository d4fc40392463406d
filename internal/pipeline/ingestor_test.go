package pipeline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostfolio/pricing-engine/internal/models"
)

func TestBuildCalendarDaysPrecedence(t *testing.T) {
	property := &models.Property{ID: 1, BasePrice: decimal.NewFromInt(100)}
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC)

	bookings := []*models.Booking{
		{
			ID:            7,
			PropertyID:    1,
			StartDate:     time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
			EndDate:       time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
			PricePerNight: decimal.NewFromInt(90),
			Status:        models.BookingStatusConfirmed,
		},
		{
			ID:            8,
			PropertyID:    1,
			StartDate:     time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			EndDate:       time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC),
			PricePerNight: decimal.NewFromInt(95),
			Status:        models.BookingStatusCancelled,
		},
	}
	overrides := []*models.PriceOverride{
		// same date as a confirmed booking night: the booking wins
		{PropertyID: 1, Date: time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC), Price: decimal.NewFromInt(130)},
		{PropertyID: 1, Date: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), Price: decimal.NewFromInt(140)},
	}

	days := BuildCalendarDays(property, bookings, overrides, from, to)
	require.Len(t, days, 7)

	byDate := make(map[string]*models.CalendarDay)
	for i, d := range days {
		byDate[d.Date.Format("2006-01-02")] = d
		if i > 0 {
			assert.True(t, days[i-1].Date.Before(d.Date), "dates must be strictly ascending")
		}
	}

	assert.Equal(t, models.PriceSourceBase, byDate["2025-01-01"].PriceSource)
	assert.Equal(t, "100", byDate["2025-01-01"].PublishedPrice.String())
	assert.False(t, byDate["2025-01-01"].Occupied)

	// booking nights: start inclusive, end exclusive
	assert.Equal(t, models.PriceSourceBooking, byDate["2025-01-03"].PriceSource)
	assert.True(t, byDate["2025-01-03"].Occupied)
	require.NotNil(t, byDate["2025-01-03"].BookingID)
	assert.Equal(t, int64(7), *byDate["2025-01-03"].BookingID)

	assert.Equal(t, models.PriceSourceBooking, byDate["2025-01-04"].PriceSource)
	assert.Equal(t, "90", byDate["2025-01-04"].PublishedPrice.String())

	assert.Equal(t, models.PriceSourceBase, byDate["2025-01-05"].PriceSource)
	assert.False(t, byDate["2025-01-05"].Occupied)

	// cancelled booking does not occupy; the override shows through
	assert.Equal(t, models.PriceSourceOverride, byDate["2025-01-06"].PriceSource)
	assert.Equal(t, "140", byDate["2025-01-06"].PublishedPrice.String())
	assert.False(t, byDate["2025-01-06"].Occupied)
}

func TestBuildCalendarDaysEmptyInputs(t *testing.T) {
	property := &models.Property{ID: 1, BasePrice: decimal.NewFromInt(80)}
	from := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	days := BuildCalendarDays(property, nil, nil, from, from.AddDate(0, 0, 2))

	require.Len(t, days, 3)
	for _, d := range days {
		assert.Equal(t, models.PriceSourceBase, d.PriceSource)
		assert.Equal(t, "80", d.PublishedPrice.String())
		assert.False(t, d.Occupied)
		assert.Nil(t, d.BookingID)
	}
}

func TestBuildCalendarDaysSingleDay(t *testing.T) {
	property := &models.Property{ID: 1, BasePrice: decimal.NewFromInt(100)}
	day := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	days := BuildCalendarDays(property, nil, nil, day, day)
	require.Len(t, days, 1)
	assert.Equal(t, day, days[0].Date)
}
