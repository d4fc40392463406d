package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Updater identity recorded on pipeline-written overrides
const UpdatedByPipeline = "pipeline"

// PriceOverride is the persisted per-(property, date) published price.
// Rows with IsLocked = true were pinned by a human and are never modified
// by the pipeline; every automated write carries IsLocked = false and
// UpdatedBy = "pipeline".
type PriceOverride struct {
	PropertyID int64           `json:"property_id"`
	Date       time.Time       `json:"date"`
	Price      decimal.Decimal `json:"price"`
	Reason     string          `json:"reason"`
	IsLocked   bool            `json:"is_locked"`
	UpdatedBy  string          `json:"updated_by"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
