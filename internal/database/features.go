package database

import (
	"fmt"
	"time"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// UpsertFeatureRows upserts feature vectors for a property in one
// transaction, keyed on (property_id, date)
func (db *DB) UpsertFeatureRows(rows []*models.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO feature_rows (
			property_id, date, day_of_week, is_weekend, is_holiday, month,
			week_of_year, days_until_stay, is_school_break, capacity, surface_m2,
			property_type_id, amenity_count, floor_price, base_price, ceiling_price,
			occupancy_rate_30d, occupancy_rate_90d, adr_30d, adr_90d,
			booking_lead_time_median, demand_score_30d,
			occupancy_rate_city_30d, demand_score_city_30d, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		          $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
		ON CONFLICT (property_id, date) DO UPDATE SET
			day_of_week = EXCLUDED.day_of_week,
			is_weekend = EXCLUDED.is_weekend,
			is_holiday = EXCLUDED.is_holiday,
			month = EXCLUDED.month,
			week_of_year = EXCLUDED.week_of_year,
			days_until_stay = EXCLUDED.days_until_stay,
			is_school_break = EXCLUDED.is_school_break,
			capacity = EXCLUDED.capacity,
			surface_m2 = EXCLUDED.surface_m2,
			property_type_id = EXCLUDED.property_type_id,
			amenity_count = EXCLUDED.amenity_count,
			floor_price = EXCLUDED.floor_price,
			base_price = EXCLUDED.base_price,
			ceiling_price = EXCLUDED.ceiling_price,
			occupancy_rate_30d = EXCLUDED.occupancy_rate_30d,
			occupancy_rate_90d = EXCLUDED.occupancy_rate_90d,
			adr_30d = EXCLUDED.adr_30d,
			adr_90d = EXCLUDED.adr_90d,
			booking_lead_time_median = EXCLUDED.booking_lead_time_median,
			demand_score_30d = EXCLUDED.demand_score_30d,
			occupancy_rate_city_30d = EXCLUDED.occupancy_rate_city_30d,
			demand_score_city_30d = EXCLUDED.demand_score_city_30d
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, f := range rows {
		_, err := stmt.Exec(
			f.PropertyID, f.Date, f.DayOfWeek, f.IsWeekend, f.IsHoliday, f.Month,
			f.WeekOfYear, f.DaysUntilStay, f.IsSchoolBreak, f.Capacity, f.SurfaceM2,
			f.PropertyTypeID, f.AmenityCount, f.FloorPrice, f.BasePrice, f.CeilingPrice,
			f.OccupancyRate30d, f.OccupancyRate90d, f.ADR30d, f.ADR90d,
			f.BookingLeadTimeMedian, f.DemandScore30d,
			f.OccupancyRateCity30d, f.DemandScoreCity30d, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert feature row for %s: %w", f.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetFeatureRows retrieves feature vectors for a property within a date
// range, ordered by date ascending
func (db *DB) GetFeatureRows(propertyID int64, from, to time.Time) ([]*models.FeatureRow, error) {
	query := `
		SELECT property_id, date, day_of_week, is_weekend, is_holiday, month,
		       week_of_year, days_until_stay, is_school_break, capacity, surface_m2,
		       property_type_id, amenity_count, floor_price, base_price, ceiling_price,
		       occupancy_rate_30d, occupancy_rate_90d, adr_30d, adr_90d,
		       booking_lead_time_median, demand_score_30d,
		       occupancy_rate_city_30d, demand_score_city_30d, created_at
		FROM feature_rows
		WHERE property_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	rows, err := db.conn.Query(query, propertyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature rows: %w", err)
	}
	defer rows.Close()

	var features []*models.FeatureRow
	for rows.Next() {
		var f models.FeatureRow
		err := rows.Scan(
			&f.PropertyID, &f.Date, &f.DayOfWeek, &f.IsWeekend, &f.IsHoliday, &f.Month,
			&f.WeekOfYear, &f.DaysUntilStay, &f.IsSchoolBreak, &f.Capacity, &f.SurfaceM2,
			&f.PropertyTypeID, &f.AmenityCount, &f.FloorPrice, &f.BasePrice, &f.CeilingPrice,
			&f.OccupancyRate30d, &f.OccupancyRate90d, &f.ADR30d, &f.ADR90d,
			&f.BookingLeadTimeMedian, &f.DemandScore30d,
			&f.OccupancyRateCity30d, &f.DemandScoreCity30d, &f.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feature row: %w", err)
		}
		features = append(features, &f)
	}
	return features, rows.Err()
}
