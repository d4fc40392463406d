package pms

import (
	"context"
	"sync"
)

// MockAdapter records every push and can be programmed to fail. It backs
// the publisher tests and local development against no real vendor.
type MockAdapter struct {
	mu sync.Mutex

	RateErr     error
	SettingsErr error
	FailFirst   int // fail this many rate calls before succeeding

	RateCalls     []RateCall
	SettingsCalls []SettingsCall
}

// RateCall is one recorded UpdateBatchRates invocation.
type RateCall struct {
	ExternalID string
	Rates      []DayRate
}

// SettingsCall is one recorded UpdatePropertySettings invocation.
type SettingsCall struct {
	ExternalID string
	Settings   Settings
}

// NewMockAdapter creates an empty recording adapter.
func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

// Type implements Adapter
func (a *MockAdapter) Type() string { return "mock" }

// UpdateBatchRates implements Adapter
func (a *MockAdapter) UpdateBatchRates(ctx context.Context, externalID string, rates []DayRate) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailFirst > 0 {
		a.FailFirst--
		return &Error{Vendor: "mock", Op: "update_batch_rates", Retryable: true, Err: context.DeadlineExceeded}
	}
	if a.RateErr != nil {
		return a.RateErr
	}
	a.RateCalls = append(a.RateCalls, RateCall{ExternalID: externalID, Rates: rates})
	return nil
}

// UpdatePropertySettings implements Adapter
func (a *MockAdapter) UpdatePropertySettings(ctx context.Context, externalID string, settings Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SettingsErr != nil {
		return a.SettingsErr
	}
	a.SettingsCalls = append(a.SettingsCalls, SettingsCall{ExternalID: externalID, Settings: settings})
	return nil
}
