package database

import (
	"fmt"
	"time"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// ReplaceDemandForecasts overwrites the forecast rows for a (city, property
// type) pair wholesale, in one transaction, so readers always see a single
// model version per key.
func (db *DB) ReplaceDemandForecasts(city, propertyType string, forecasts []*models.DemandForecast) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`DELETE FROM demand_forecasts WHERE city = $1 AND property_type = $2`,
		city, propertyType,
	)
	if err != nil {
		return fmt.Errorf("failed to clear demand forecasts: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO demand_forecasts (city, property_type, forecast_date, score, lower_bound, upper_bound, model_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, f := range forecasts {
		_, err := stmt.Exec(f.City, f.PropertyType, f.ForecastDate, f.Score, f.Lower, f.Upper, f.ModelVersion, now)
		if err != nil {
			return fmt.Errorf("failed to insert forecast for %s: %w", f.ForecastDate.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetDemandForecasts retrieves forecast rows for a (city, property type)
// pair within a date range, ordered by date ascending
func (db *DB) GetDemandForecasts(city, propertyType string, from, to time.Time) ([]*models.DemandForecast, error) {
	query := `
		SELECT city, property_type, forecast_date, score, lower_bound, upper_bound, model_version, created_at
		FROM demand_forecasts
		WHERE city = $1 AND property_type = $2 AND forecast_date >= $3 AND forecast_date <= $4
		ORDER BY forecast_date ASC
	`
	rows, err := db.conn.Query(query, city, propertyType, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query demand forecasts: %w", err)
	}
	defer rows.Close()

	var forecasts []*models.DemandForecast
	for rows.Next() {
		var f models.DemandForecast
		err := rows.Scan(&f.City, &f.PropertyType, &f.ForecastDate, &f.Score, &f.Lower, &f.Upper, &f.ModelVersion, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan demand forecast: %w", err)
		}
		forecasts = append(forecasts, &f)
	}
	return forecasts, rows.Err()
}
