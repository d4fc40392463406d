package models

import (
	"time"
)

// AutoPricingPreference is the per-user opt-in for scheduled nightly runs.
// Timezone holds an IANA zone name; the scheduler runs the user's pipeline
// when local time crosses midnight in that zone.
type AutoPricingPreference struct {
	UserID     int64      `json:"user_id"`
	Enabled    bool       `json:"enabled"`
	Timezone   string     `json:"timezone"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	EnabledAt  *time.Time `json:"enabled_at,omitempty"`
	DisabledAt *time.Time `json:"disabled_at,omitempty"`
}
