package database

import (
	"fmt"
	"time"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// CreateBooking inserts a new booking record
func (db *DB) CreateBooking(b *models.Booking) error {
	query := `
		INSERT INTO bookings (
			property_id, start_date, end_date, nights, price_per_night,
			channel, status, pricing_method, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRow(query,
		b.PropertyID, b.StartDate, b.EndDate, b.Nights, b.PricePerNight,
		b.Channel, b.Status, b.PricingMethod, now,
	).Scan(&b.ID)

	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	b.CreatedAt = now
	return nil
}

// GetBookingsInRange retrieves bookings for a property that overlap the
// [from, to] window, ordered by start date. A booking overlaps when it has
// at least one night inside the window (end_date is exclusive).
func (db *DB) GetBookingsInRange(propertyID int64, from, to time.Time) ([]*models.Booking, error) {
	query := `
		SELECT id, property_id, start_date, end_date, nights, price_per_night,
		       channel, status, pricing_method, created_at
		FROM bookings
		WHERE property_id = $1 AND start_date <= $3 AND end_date > $2
		ORDER BY start_date ASC
	`
	rows, err := db.conn.Query(query, propertyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		var b models.Booking
		err := rows.Scan(
			&b.ID, &b.PropertyID, &b.StartDate, &b.EndDate, &b.Nights, &b.PricePerNight,
			&b.Channel, &b.Status, &b.PricingMethod, &b.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, &b)
	}
	return bookings, rows.Err()
}
