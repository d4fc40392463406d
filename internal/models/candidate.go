package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price model identifiers
const (
	ModelGBM = "gbm"
	ModelNN  = "nn"
	ModelLLM = "llm"
)

// PriceCandidate is a single model's proposed nightly price for one
// (property, date). Candidates are transient; only the ensembled
// recommendation is persisted. Reason is set by the LLM model only.
type PriceCandidate struct {
	PropertyID int64           `json:"property_id"`
	Date       time.Time       `json:"date"`
	Model      string          `json:"model"`
	Price      decimal.Decimal `json:"price"`
	Reason     string          `json:"reason,omitempty"`
}

// Recommendation is the ensembled output for one (property, date) before
// policy enforcement: a price, a 0-100 confidence score reflecting model
// agreement, and a human-readable explanation.
type Recommendation struct {
	PropertyID  int64           `json:"property_id"`
	Date        time.Time       `json:"date"`
	Price       decimal.Decimal `json:"price"`
	Confidence  float64         `json:"confidence"`
	Explanation string          `json:"explanation"`
}
