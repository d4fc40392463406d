package pms

import (
	"context"
	"log"
)

// NoopAdapter accepts every push and writes nothing anywhere. It is the
// default binding for environments without a real vendor connection.
type NoopAdapter struct{}

// NewNoopAdapter creates the no-op adapter.
func NewNoopAdapter() *NoopAdapter { return &NoopAdapter{} }

// Type implements Adapter
func (a *NoopAdapter) Type() string { return "noop" }

// UpdateBatchRates implements Adapter
func (a *NoopAdapter) UpdateBatchRates(ctx context.Context, externalID string, rates []DayRate) error {
	log.Printf("pms noop: would push %d rates to %s", len(rates), externalID)
	return nil
}

// UpdatePropertySettings implements Adapter
func (a *NoopAdapter) UpdatePropertySettings(ctx context.Context, externalID string, settings Settings) error {
	log.Printf("pms noop: would push settings to %s", externalID)
	return nil
}
