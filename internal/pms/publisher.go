package pms

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// publishRetries bounds the retry loop around one vendor call.
const publishRetries = 3

// Publisher pushes accepted prices and stay rules to the vendor a property
// is bound to. It implements the pipeline's RatePublisher.
type Publisher struct {
	registry *Registry
	backoff  time.Duration
}

// NewPublisher creates a publisher over the given adapter registry.
func NewPublisher(registry *Registry) *Publisher {
	return &Publisher{registry: registry, backoff: time.Second}
}

// PublishRates pushes one property's override batch followed by its current
// stay rules. Transient vendor failures are retried with exponential
// backoff; the settings push is skipped when the rate push failed.
func (p *Publisher) PublishRates(ctx context.Context, property *models.Property, overrides []*models.PriceOverride) error {
	if !property.HasPMSBinding() {
		return nil
	}
	adapter, err := p.registry.Get(*property.PMSType)
	if err != nil {
		return fmt.Errorf("property %d: %w", property.ID, err)
	}

	rates := make([]DayRate, 0, len(overrides))
	for _, o := range overrides {
		rates = append(rates, DayRate{Date: o.Date, Price: o.Price})
	}

	externalID := *property.PMSID
	if err := p.withRetry(ctx, func() error {
		return adapter.UpdateBatchRates(ctx, externalID, rates)
	}); err != nil {
		return fmt.Errorf("failed to push rates for property %d: %w", property.ID, err)
	}

	settings := Settings{
		MinStay:                property.MinStay,
		MaxStay:                property.MaxStay,
		WeeklyDiscountPercent:  property.WeeklyDiscountPercent,
		MonthlyDiscountPercent: property.MonthlyDiscountPercent,
	}
	if err := p.withRetry(ctx, func() error {
		return adapter.UpdatePropertySettings(ctx, externalID, settings)
	}); err != nil {
		return fmt.Errorf("failed to push settings for property %d: %w", property.ID, err)
	}
	return nil
}

func (p *Publisher) withRetry(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt < publishRetries; attempt++ {
		if attempt > 0 {
			wait := p.backoff * (1 << (attempt - 1))
			log.Printf("pms: retrying in %s after: %v", wait, lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func isTransient(err error) bool {
	var t interface{ Transient() bool }
	return errors.As(err, &t) && t.Transient()
}
