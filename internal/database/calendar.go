package database

import (
	"fmt"
	"time"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// ReplaceCalendarDays replaces all calendar rows for a property inside the
// [from, to] window with the given rows, in one transaction. The calendar is
// derived state, regenerated by the ingestion phase each run, so a wholesale
// replace keeps it consistent with its inputs.
func (db *DB) ReplaceCalendarDays(propertyID int64, from, to time.Time, days []*models.CalendarDay) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`DELETE FROM calendar_days WHERE property_id = $1 AND date >= $2 AND date <= $3`,
		propertyID, from, to,
	)
	if err != nil {
		return fmt.Errorf("failed to clear calendar window: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO calendar_days (property_id, date, occupied, booking_id, published_price, price_source)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range days {
		_, err := stmt.Exec(d.PropertyID, d.Date, d.Occupied, d.BookingID, d.PublishedPrice, d.PriceSource)
		if err != nil {
			return fmt.Errorf("failed to insert calendar day %s: %w", d.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetCalendarDays retrieves calendar rows for a property within a date
// range, ordered by date ascending
func (db *DB) GetCalendarDays(propertyID int64, from, to time.Time) ([]*models.CalendarDay, error) {
	query := `
		SELECT property_id, date, occupied, booking_id, published_price, price_source
		FROM calendar_days
		WHERE property_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	rows, err := db.conn.Query(query, propertyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar days: %w", err)
	}
	defer rows.Close()

	var days []*models.CalendarDay
	for rows.Next() {
		var d models.CalendarDay
		err := rows.Scan(&d.PropertyID, &d.Date, &d.Occupied, &d.BookingID, &d.PublishedPrice, &d.PriceSource)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calendar day: %w", err)
		}
		days = append(days, &d)
	}
	return days, rows.Err()
}

// GetCityOccupancyRate computes the mean occupancy rate (0..1) across all
// properties of a type in a city over a window. Returns nil when the city
// has no calendar coverage in the window.
func (db *DB) GetCityOccupancyRate(city, propertyType string, from, to time.Time) (*float64, error) {
	query := `
		SELECT AVG(CASE WHEN c.occupied THEN 1.0 ELSE 0.0 END)
		FROM calendar_days c
		JOIN properties p ON p.id = c.property_id
		WHERE p.city = $1 AND p.property_type = $2
		  AND c.date >= $3 AND c.date <= $4
	`
	var rate *float64
	if err := db.conn.QueryRow(query, city, propertyType, from, to).Scan(&rate); err != nil {
		return nil, fmt.Errorf("failed to query city occupancy rate: %w", err)
	}
	return rate, nil
}

// GetCityDemandHistory computes the historical per-day demand series for a
// (city, property type) pair from the materialized calendars: for each date,
// occupancy rate across matching properties scaled with the average
// price-to-base ratio, clipped to [0, 100]. This is the series the demand
// forecaster consumes.
func (db *DB) GetCityDemandHistory(city, propertyType string, from, to time.Time) ([]models.DailyDemand, error) {
	query := `
		SELECT c.date,
		       LEAST(100, GREATEST(0,
		           100.0 * AVG(CASE WHEN c.occupied THEN 1.0 ELSE 0.0 END)
		           * (1 + AVG(c.published_price / NULLIF(p.base_price, 0))) / 2
		       )) AS score
		FROM calendar_days c
		JOIN properties p ON p.id = c.property_id
		WHERE p.city = $1 AND p.property_type = $2
		  AND c.date >= $3 AND c.date <= $4
		GROUP BY c.date
		ORDER BY c.date ASC
	`
	rows, err := db.conn.Query(query, city, propertyType, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query city demand history: %w", err)
	}
	defer rows.Close()

	var series []models.DailyDemand
	for rows.Next() {
		var d models.DailyDemand
		if err := rows.Scan(&d.Date, &d.Score); err != nil {
			return nil, fmt.Errorf("failed to scan demand point: %w", err)
		}
		series = append(series, d)
	}
	return series, rows.Err()
}
