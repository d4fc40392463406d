package pipeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// OverrideWriter commits enforced recommendations to the price-override
// store in one batch per property. Writes are idempotent upserts keyed on
// (property_id, date); the store itself vetoes locked rows, so a lock taken
// between read and write is still honoured.
type OverrideWriter struct {
	overrides OverrideStore
	now       func() time.Time
}

// NewOverrideWriter wires the persistence phase. now is injectable for
// tests and defaults to time.Now.
func NewOverrideWriter(overrides OverrideStore, now func() time.Time) *OverrideWriter {
	if now == nil {
		now = time.Now
	}
	return &OverrideWriter{overrides: overrides, now: now}
}

// Write persists the accepted (date, price, reason) rows for a property and
// returns them ordered by date. Rows carry updated_by = "pipeline" and a
// single updated_at timestamp per batch, keeping updated_at monotonic over
// the dates touched in one run.
func (ow *OverrideWriter) Write(propertyID int64, accepted []*models.PriceOverride) ([]*models.PriceOverride, error) {
	if len(accepted) == 0 {
		return nil, nil
	}

	now := ow.now()
	for _, o := range accepted {
		o.PropertyID = propertyID
		o.IsLocked = false
		o.UpdatedBy = models.UpdatedByPipeline
		o.UpdatedAt = now
	}
	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Date.Before(accepted[j].Date) })

	if err := ow.overrides.UpsertOverrideBatch(propertyID, accepted); err != nil {
		return nil, fmt.Errorf("failed to write overrides: %w", err)
	}
	return accepted, nil
}
