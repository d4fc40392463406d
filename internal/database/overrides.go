package database

import (
	"fmt"
	"time"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// GetOverridesInRange retrieves price overrides for a property within a date
// range, ordered by date ascending
func (db *DB) GetOverridesInRange(propertyID int64, from, to time.Time) ([]*models.PriceOverride, error) {
	query := `
		SELECT property_id, date, price, reason, is_locked, updated_by, updated_at
		FROM price_overrides
		WHERE property_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC
	`
	rows, err := db.conn.Query(query, propertyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query price overrides: %w", err)
	}
	defer rows.Close()

	var overrides []*models.PriceOverride
	for rows.Next() {
		var o models.PriceOverride
		err := rows.Scan(&o.PropertyID, &o.Date, &o.Price, &o.Reason, &o.IsLocked, &o.UpdatedBy, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price override: %w", err)
		}
		overrides = append(overrides, &o)
	}
	return overrides, rows.Err()
}

// UpsertOverrideBatch upserts price overrides for a property in one
// transaction. Rows whose existing record has is_locked = true are left
// untouched: the lock veto is enforced in the conflict clause itself, so no
// read-modify-write cycle can race a concurrent manual lock.
func (db *DB) UpsertOverrideBatch(propertyID int64, overrides []*models.PriceOverride) error {
	if len(overrides) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO price_overrides (property_id, date, price, reason, is_locked, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (property_id, date) DO UPDATE SET
			price = EXCLUDED.price,
			reason = EXCLUDED.reason,
			is_locked = EXCLUDED.is_locked,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
		WHERE price_overrides.is_locked = false
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, o := range overrides {
		updatedAt := o.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}
		_, err := stmt.Exec(propertyID, o.Date, o.Price, o.Reason, o.IsLocked, o.UpdatedBy, updatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert override for %s: %w", o.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
