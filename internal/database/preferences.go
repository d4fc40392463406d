package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// UpsertAutoPricingPreference creates or updates a user's auto-pricing
// preference. Called by the preferences service; tests use it to seed state.
func (db *DB) UpsertAutoPricingPreference(p *models.AutoPricingPreference) error {
	query := `
		INSERT INTO auto_pricing_preferences (user_id, enabled, timezone, last_run, enabled_at, disabled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			timezone = EXCLUDED.timezone,
			last_run = EXCLUDED.last_run,
			enabled_at = EXCLUDED.enabled_at,
			disabled_at = EXCLUDED.disabled_at
	`
	_, err := db.conn.Exec(query, p.UserID, p.Enabled, p.Timezone, p.LastRun, p.EnabledAt, p.DisabledAt)
	if err != nil {
		return fmt.Errorf("failed to upsert auto-pricing preference: %w", err)
	}
	return nil
}

// GetAutoPricingPreference retrieves a user's preference, or nil when the
// user has never configured auto-pricing
func (db *DB) GetAutoPricingPreference(userID int64) (*models.AutoPricingPreference, error) {
	query := `
		SELECT user_id, enabled, timezone, last_run, enabled_at, disabled_at
		FROM auto_pricing_preferences
		WHERE user_id = $1
	`
	var p models.AutoPricingPreference
	err := db.conn.QueryRow(query, userID).Scan(
		&p.UserID, &p.Enabled, &p.Timezone, &p.LastRun, &p.EnabledAt, &p.DisabledAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auto-pricing preference: %w", err)
	}
	return &p, nil
}

// ListEnabledAutoPricingPreferences retrieves all enabled preferences,
// ordered by user ID for stable scheduler iteration
func (db *DB) ListEnabledAutoPricingPreferences() ([]*models.AutoPricingPreference, error) {
	query := `
		SELECT user_id, enabled, timezone, last_run, enabled_at, disabled_at
		FROM auto_pricing_preferences
		WHERE enabled = true
		ORDER BY user_id
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query auto-pricing preferences: %w", err)
	}
	defer rows.Close()

	var prefs []*models.AutoPricingPreference
	for rows.Next() {
		var p models.AutoPricingPreference
		err := rows.Scan(&p.UserID, &p.Enabled, &p.Timezone, &p.LastRun, &p.EnabledAt, &p.DisabledAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan auto-pricing preference: %w", err)
		}
		prefs = append(prefs, &p)
	}
	return prefs, rows.Err()
}

// MarkAutoPricingLastRun records the timestamp of a user's last completed
// scheduled run
func (db *DB) MarkAutoPricingLastRun(userID int64, ts time.Time) error {
	query := `UPDATE auto_pricing_preferences SET last_run = $2 WHERE user_id = $1`
	result, err := db.conn.Exec(query, userID, ts)
	if err != nil {
		return fmt.Errorf("failed to mark last run: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("auto-pricing preference not found: %d", userID)
	}
	return nil
}
