// Package pms integrates external property-management systems: adapters
// translate published prices and stay rules into each vendor's API, and the
// Publisher drives them from the pipeline's publication phase.
package pms

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DayRate is one published nightly rate.
type DayRate struct {
	Date  time.Time       `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// Settings carries the stay rules pushed alongside rates. Discounts are
// stay-length rules the reservation system applies itself; they are never
// folded into the nightly rate.
type Settings struct {
	MinStay                int      `json:"min_stay"`
	MaxStay                *int     `json:"max_stay,omitempty"`
	WeeklyDiscountPercent  *float64 `json:"weekly_discount_percent,omitempty"`
	MonthlyDiscountPercent *float64 `json:"monthly_discount_percent,omitempty"`
}

// Adapter is one vendor integration. Implementations must be safe for
// concurrent use; the publisher may push several properties at once.
type Adapter interface {
	Type() string
	UpdateBatchRates(ctx context.Context, externalID string, rates []DayRate) error
	UpdatePropertySettings(ctx context.Context, externalID string, settings Settings) error
}

// Error is a vendor call failure. Retryable errors (timeouts, 5xx, rate
// limits) may be retried by the publisher; the rest fail the publication.
type Error struct {
	Vendor    string
	Op        string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pms %s: %s: %v", e.Vendor, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether a retry could succeed.
func (e *Error) Transient() bool { return e.Retryable }

// Registry maps pms_type values to adapters. A property bound to a type
// with no registered adapter is a configuration error, never a retry.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its Type, lowercased. Registering the same
// type twice replaces the earlier adapter.
func (r *Registry) Register(a Adapter) {
	r.adapters[strings.ToLower(a.Type())] = a
}

// Get resolves a pms_type to its adapter. Lookup is case-insensitive; stored
// pms_type values are not trusted to be lowercase.
func (r *Registry) Get(pmsType string) (Adapter, error) {
	a, ok := r.adapters[strings.ToLower(pmsType)]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for pms type %q", pmsType)
	}
	return a, nil
}

// Types lists the registered adapter types, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.adapters))
	for t := range r.adapters {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
