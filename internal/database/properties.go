package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// CreateProperty inserts a new property. The pipeline never calls this; it
// exists for provisioning scripts and tests.
func (db *DB) CreateProperty(p *models.Property) error {
	query := `
		INSERT INTO properties (
			owner_id, team_id, name, city, country, property_type, capacity,
			surface_m2, amenities, base_price, floor_price, ceiling_price,
			min_stay, max_stay, weekly_discount_percent, monthly_discount_percent,
			weekend_markup_percent, strategy, pms_type, pms_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRow(query,
		p.OwnerID, p.TeamID, p.Name, p.City, p.Country, p.PropertyType, p.Capacity,
		p.SurfaceM2, pq.Array(p.Amenities), p.BasePrice, p.FloorPrice, decimalPtr(p.CeilingPrice),
		p.MinStay, p.MaxStay, p.WeeklyDiscountPercent, p.MonthlyDiscountPercent,
		p.WeekendMarkupPercent, p.Strategy, p.PMSType, p.PMSID, now, now,
	).Scan(&p.ID)

	if err != nil {
		return fmt.Errorf("failed to create property: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetProperty retrieves a property by ID
func (db *DB) GetProperty(id int64) (*models.Property, error) {
	query := selectPropertyColumns + ` WHERE id = $1`
	p, err := scanProperty(db.conn.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("property not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return p, nil
}

// ListPropertiesByTeam retrieves all properties belonging to a team,
// ordered by ID for stable pipeline iteration
func (db *DB) ListPropertiesByTeam(teamID int64) ([]*models.Property, error) {
	query := selectPropertyColumns + ` WHERE team_id = $1 ORDER BY id`
	return db.queryProperties(query, teamID)
}

// ListPropertiesByOwner retrieves all properties belonging to a user,
// ordered by ID for stable pipeline iteration
func (db *DB) ListPropertiesByOwner(ownerID int64) ([]*models.Property, error) {
	query := selectPropertyColumns + ` WHERE owner_id = $1 ORDER BY id`
	return db.queryProperties(query, ownerID)
}

// ListCityPropertyIDs retrieves the IDs of all properties of a given type in
// a city, used for city-level aggregates
func (db *DB) ListCityPropertyIDs(city, propertyType string) ([]int64, error) {
	query := `SELECT id FROM properties WHERE city = $1 AND property_type = $2 ORDER BY id`
	rows, err := db.conn.Query(query, city, propertyType)
	if err != nil {
		return nil, fmt.Errorf("failed to list city properties: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan property id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const selectPropertyColumns = `
	SELECT id, owner_id, team_id, name, city, country, property_type, capacity,
	       surface_m2, amenities, base_price, floor_price, ceiling_price,
	       min_stay, max_stay, weekly_discount_percent, monthly_discount_percent,
	       weekend_markup_percent, strategy, pms_type, pms_id, created_at, updated_at
	FROM properties`

func (db *DB) queryProperties(query string, args ...interface{}) ([]*models.Property, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}
	defer rows.Close()

	var properties []*models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property: %w", err)
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProperty(row rowScanner) (*models.Property, error) {
	var p models.Property
	var ceiling sql.NullString
	var maxStay sql.NullInt64
	var weeklyDiscount, monthlyDiscount, weekendMarkup sql.NullFloat64
	var pmsType, pmsID sql.NullString

	err := row.Scan(
		&p.ID, &p.OwnerID, &p.TeamID, &p.Name, &p.City, &p.Country, &p.PropertyType, &p.Capacity,
		&p.SurfaceM2, pq.Array(&p.Amenities), &p.BasePrice, &p.FloorPrice, &ceiling,
		&p.MinStay, &maxStay, &weeklyDiscount, &monthlyDiscount,
		&weekendMarkup, &p.Strategy, &pmsType, &pmsID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if ceiling.Valid {
		c, _ := decimal.NewFromString(ceiling.String)
		p.CeilingPrice = &c
	}
	if maxStay.Valid {
		m := int(maxStay.Int64)
		p.MaxStay = &m
	}
	if weeklyDiscount.Valid {
		p.WeeklyDiscountPercent = &weeklyDiscount.Float64
	}
	if monthlyDiscount.Valid {
		p.MonthlyDiscountPercent = &monthlyDiscount.Float64
	}
	if weekendMarkup.Valid {
		p.WeekendMarkupPercent = &weekendMarkup.Float64
	}
	if pmsType.Valid {
		p.PMSType = &pmsType.String
	}
	if pmsID.Valid {
		p.PMSID = &pmsID.String
	}
	return &p, nil
}

func decimalPtr(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return *d
}
