package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostfolio/pricing-engine/internal/models"
	"github.com/hostfolio/pricing-engine/internal/predict"
)

// memStore is an in-memory Store with the same contract as the Postgres
// layer, including the lock veto on override upserts.
type memStore struct {
	mu         sync.Mutex
	properties []*models.Property
	bookings   map[int64][]*models.Booking
	calendar   map[int64][]*models.CalendarDay
	features   map[int64][]*models.FeatureRow
	forecasts  map[string][]*models.DemandForecast
	overrides  map[int64]map[time.Time]*models.PriceOverride
	runs       []*models.PipelineRun
	cityDemand map[string][]models.DailyDemand
}

func newMemStore(properties ...*models.Property) *memStore {
	return &memStore{
		properties: properties,
		bookings:   make(map[int64][]*models.Booking),
		calendar:   make(map[int64][]*models.CalendarDay),
		features:   make(map[int64][]*models.FeatureRow),
		forecasts:  make(map[string][]*models.DemandForecast),
		overrides:  make(map[int64]map[time.Time]*models.PriceOverride),
		cityDemand: make(map[string][]models.DailyDemand),
	}
}

func (s *memStore) ListPropertiesByTeam(teamID int64) ([]*models.Property, error) {
	var out []*models.Property
	for _, p := range s.properties {
		if p.TeamID == teamID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) ListPropertiesByOwner(ownerID int64) ([]*models.Property, error) {
	var out []*models.Property
	for _, p := range s.properties {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) GetBookingsInRange(propertyID int64, from, to time.Time) ([]*models.Booking, error) {
	var out []*models.Booking
	for _, b := range s.bookings[propertyID] {
		if !b.StartDate.After(to) && b.EndDate.After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) ReplaceCalendarDays(propertyID int64, from, to time.Time, days []*models.CalendarDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*models.CalendarDay
	for _, d := range s.calendar[propertyID] {
		if d.Date.Before(from) || d.Date.After(to) {
			kept = append(kept, d)
		}
	}
	s.calendar[propertyID] = append(kept, days...)
	return nil
}

func (s *memStore) GetCalendarDays(propertyID int64, from, to time.Time) ([]*models.CalendarDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CalendarDay
	for _, d := range s.calendar[propertyID] {
		if !d.Date.Before(from) && !d.Date.After(to) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *memStore) GetCityDemandHistory(city, propertyType string, from, to time.Time) ([]models.DailyDemand, error) {
	var out []models.DailyDemand
	for _, d := range s.cityDemand[city+"|"+propertyType] {
		if !d.Date.Before(from) && !d.Date.After(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memStore) GetCityOccupancyRate(city, propertyType string, from, to time.Time) (*float64, error) {
	return nil, nil
}

func (s *memStore) UpsertFeatureRows(rows []*models.FeatureRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		replaced := false
		for i, existing := range s.features[r.PropertyID] {
			if existing.Date.Equal(r.Date) {
				s.features[r.PropertyID][i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			s.features[r.PropertyID] = append(s.features[r.PropertyID], r)
		}
	}
	return nil
}

func (s *memStore) GetFeatureRows(propertyID int64, from, to time.Time) ([]*models.FeatureRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.FeatureRow
	for _, r := range s.features[propertyID] {
		if !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *memStore) ReplaceDemandForecasts(city, propertyType string, forecasts []*models.DemandForecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecasts[city+"|"+propertyType] = forecasts
	return nil
}

func (s *memStore) GetDemandForecasts(city, propertyType string, from, to time.Time) ([]*models.DemandForecast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DemandForecast
	for _, f := range s.forecasts[city+"|"+propertyType] {
		if !f.ForecastDate.Before(from) && !f.ForecastDate.After(to) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *memStore) GetOverridesInRange(propertyID int64, from, to time.Time) ([]*models.PriceOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PriceOverride
	for _, o := range s.overrides[propertyID] {
		if !o.Date.Before(from) && !o.Date.After(to) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *memStore) UpsertOverrideBatch(propertyID int64, overrides []*models.PriceOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overrides[propertyID] == nil {
		s.overrides[propertyID] = make(map[time.Time]*models.PriceOverride)
	}
	for _, o := range overrides {
		d := models.DateOnly(o.Date)
		if existing, ok := s.overrides[propertyID][d]; ok && existing.IsLocked {
			continue
		}
		clone := *o
		s.overrides[propertyID][d] = &clone
	}
	return nil
}

func (s *memStore) AppendPipelineRun(run *models.PipelineRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *memStore) seedLockedOverride(propertyID int64, date time.Time, price float64) {
	if s.overrides[propertyID] == nil {
		s.overrides[propertyID] = make(map[time.Time]*models.PriceOverride)
	}
	s.overrides[propertyID][models.DateOnly(date)] = &models.PriceOverride{
		PropertyID: propertyID,
		Date:       models.DateOnly(date),
		Price:      decimal.NewFromFloat(price),
		IsLocked:   true,
		UpdatedBy:  "user:9",
	}
}

// stubModel prices every day it is given at a constant, or fails outright.
type stubModel struct {
	name    string
	price   float64
	err     error
	reason  string
	calls   int
}

func (m *stubModel) Name() string    { return m.name }
func (m *stubModel) Version() string { return m.name + "-test" }

func (m *stubModel) Predict(ctx context.Context, property *models.Property, days []predict.DayInput) ([]models.PriceCandidate, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.PriceCandidate, 0, len(days))
	for _, d := range days {
		out = append(out, models.PriceCandidate{
			PropertyID: property.ID,
			Date:       d.Features.Date,
			Model:      m.name,
			Price:      decimal.NewFromFloat(m.price),
			Reason:     m.reason,
		})
	}
	return out, nil
}

type capturingPublisher struct {
	err   error
	calls int
}

func (p *capturingPublisher) PublishRates(ctx context.Context, property *models.Property, overrides []*models.PriceOverride) error {
	p.calls++
	return p.err
}

func orchestratorProperty() *models.Property {
	markup := 20.0
	return &models.Property{
		ID:                   1,
		OwnerID:              10,
		TeamID:               5,
		Name:                 "Canal View Apartment",
		City:                 "Paris",
		Country:              "FR",
		PropertyType:         models.PropertyTypeApartment,
		Capacity:             4,
		BasePrice:            decimal.NewFromInt(100),
		FloorPrice:           decimal.NewFromInt(50),
		WeekendMarkupPercent: &markup,
		Strategy:             models.StrategyBalanced,
	}
}

func newTestOrchestrator(store *memStore, priceModels []predict.PriceModel, publisher RatePublisher) *Orchestrator {
	return NewOrchestrator(Options{
		Store:     store,
		Models:    priceModels,
		Publisher: publisher,
		Now:       func() time.Time { return time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC) },
	})
}

func weekRequest() RunRequest {
	owner := int64(10)
	return RunRequest{
		RunType: models.RunTypeCLI,
		UserID:  &owner,
		Start:   time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
	}
}

func writtenPrices(t *testing.T, store *memStore, propertyID int64) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for d, o := range store.overrides[propertyID] {
		out[d.Format("2006-01-02")] = o.Price.String()
	}
	return out
}

func TestRunWeekendMarkupAppliedOnce(t *testing.T) {
	store := newMemStore(orchestratorProperty())
	priceModels := []predict.PriceModel{
		&stubModel{name: models.ModelGBM, price: 100},
		&stubModel{name: models.ModelNN, price: 100},
		&stubModel{name: models.ModelLLM, price: 100},
	}
	o := newTestOrchestrator(store, priceModels, nil)

	run, err := o.Run(context.Background(), weekRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, run.ErrorsCount)
	assert.Equal(t, 1, run.PropertiesProcessed)
	assert.Equal(t, 7, run.RecommendationsGenerated)

	prices := writtenPrices(t, store, 1)
	assert.Equal(t, map[string]string{
		"2025-01-06": "100",
		"2025-01-07": "100",
		"2025-01-08": "100",
		"2025-01-09": "100",
		"2025-01-10": "120",
		"2025-01-11": "120",
		"2025-01-12": "100",
	}, prices)

	for _, o := range store.overrides[1] {
		assert.False(t, o.IsLocked)
		assert.Equal(t, models.UpdatedByPipeline, o.UpdatedBy)
	}
}

func TestRunFloorClamp(t *testing.T) {
	p := orchestratorProperty()
	p.WeekendMarkupPercent = nil
	store := newMemStore(p)
	priceModels := []predict.PriceModel{
		&stubModel{name: models.ModelGBM, price: 40},
		&stubModel{name: models.ModelNN, price: 40},
		&stubModel{name: models.ModelLLM, price: 40},
	}
	o := newTestOrchestrator(store, priceModels, nil)

	run, err := o.Run(context.Background(), weekRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, run.ErrorsCount)

	for date, price := range writtenPrices(t, store, 1) {
		assert.Equal(t, "50", price, date)
	}
}

func TestRunLockedDateNeverTouched(t *testing.T) {
	p := orchestratorProperty()
	p.WeekendMarkupPercent = nil
	store := newMemStore(p)
	locked := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	store.seedLockedOverride(1, locked, 175)

	priceModels := []predict.PriceModel{
		&stubModel{name: models.ModelGBM, price: 100},
		&stubModel{name: models.ModelNN, price: 100},
		&stubModel{name: models.ModelLLM, price: 100},
	}
	o := newTestOrchestrator(store, priceModels, nil)

	run, err := o.Run(context.Background(), weekRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, run.ErrorsCount, "a locked date is a skip, not an error")
	assert.Equal(t, 6, run.RecommendationsGenerated)

	row := store.overrides[1][locked]
	require.NotNil(t, row)
	assert.Equal(t, "175", row.Price.String())
	assert.True(t, row.IsLocked)
	assert.Equal(t, "user:9", row.UpdatedBy)

	assert.Equal(t, "100", store.overrides[1][locked.AddDate(0, 0, 1)].Price.String())
}

func TestRunMissingModelRedistributesWeight(t *testing.T) {
	p := orchestratorProperty()
	p.WeekendMarkupPercent = nil
	store := newMemStore(p)
	priceModels := []predict.PriceModel{
		&stubModel{name: models.ModelGBM, price: 100},
		&stubModel{name: models.ModelNN, err: errors.New("artefact missing")},
		&stubModel{name: models.ModelLLM, price: 120},
	}
	o := newTestOrchestrator(store, priceModels, nil)

	run, err := o.Run(context.Background(), weekRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, run.ErrorsCount)
	require.Len(t, run.Errors, 1)
	assert.Equal(t, models.PhasePredict, run.Errors[0].Phase)
	assert.Equal(t, 7, run.RecommendationsGenerated)

	// 100*(0.40/0.70) + 120*(0.30/0.70) = 108.57, rounded to 109
	for date, price := range writtenPrices(t, store, 1) {
		assert.Equal(t, "109", price, date)
	}
}

func TestRunPublishFailureKeepsOverrides(t *testing.T) {
	p := orchestratorProperty()
	pms := "mock"
	ext := "ext-42"
	p.PMSType = &pms
	p.PMSID = &ext
	store := newMemStore(p)
	publisher := &capturingPublisher{err: errors.New("pms gateway timeout")}

	priceModels := []predict.PriceModel{
		&stubModel{name: models.ModelGBM, price: 100},
		&stubModel{name: models.ModelNN, price: 100},
		&stubModel{name: models.ModelLLM, price: 100},
	}
	o := newTestOrchestrator(store, priceModels, publisher)

	run, err := o.Run(context.Background(), weekRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, publisher.calls)
	assert.Equal(t, 1, run.ErrorsCount)
	require.Len(t, run.Errors, 1)
	assert.Equal(t, models.PhasePublish, run.Errors[0].Phase)

	// local overrides stay committed despite the failed publication
	assert.Len(t, writtenPrices(t, store, 1), 7)
}

func TestRunNoPublishWithoutBinding(t *testing.T) {
	store := newMemStore(orchestratorProperty())
	publisher := &capturingPublisher{}
	priceModels := []predict.PriceModel{&stubModel{name: models.ModelGBM, price: 100}}
	o := newTestOrchestrator(store, priceModels, publisher)

	_, err := o.Run(context.Background(), weekRequest())
	require.NoError(t, err)
	assert.Equal(t, 0, publisher.calls)
}

func TestRunIdempotent(t *testing.T) {
	store := newMemStore(orchestratorProperty())
	priceModels := []predict.PriceModel{
		&stubModel{name: models.ModelGBM, price: 100},
		&stubModel{name: models.ModelNN, price: 100},
		&stubModel{name: models.ModelLLM, price: 100},
	}
	o := newTestOrchestrator(store, priceModels, nil)

	first, err := o.Run(context.Background(), weekRequest())
	require.NoError(t, err)
	firstPrices := writtenPrices(t, store, 1)

	second, err := o.Run(context.Background(), weekRequest())
	require.NoError(t, err)

	assert.Equal(t, firstPrices, writtenPrices(t, store, 1))
	assert.Equal(t, first.RecommendationsGenerated, second.RecommendationsGenerated)
	assert.NotEqual(t, first.ID, second.ID)
	require.Len(t, store.runs, 2)
}

func TestRunAllModelsFailSkipsProperty(t *testing.T) {
	store := newMemStore(orchestratorProperty())
	priceModels := []predict.PriceModel{
		&stubModel{name: models.ModelGBM, err: errors.New("artefact missing")},
		&stubModel{name: models.ModelNN, err: errors.New("artefact missing")},
	}
	o := newTestOrchestrator(store, priceModels, nil)

	run, err := o.Run(context.Background(), weekRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, run.ErrorsCount)
	assert.Equal(t, 0, run.RecommendationsGenerated)
	assert.Equal(t, 1, run.PropertiesSkipped)
	assert.Empty(t, writtenPrices(t, store, 1))
}

func TestRunFailureIsolatedPerProperty(t *testing.T) {
	healthy := orchestratorProperty()
	healthy.WeekendMarkupPercent = nil
	broken := orchestratorProperty()
	broken.ID = 2
	broken.City = "Lyon"
	store := newMemStore(healthy, broken)

	// the model fails only for the broken property
	model := &propertyAwareModel{failFor: 2, price: 100}
	o := newTestOrchestrator(store, []predict.PriceModel{model}, nil)

	run, err := o.Run(context.Background(), weekRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, run.PropertiesProcessed)
	assert.Equal(t, 1, run.ErrorsCount)
	assert.Len(t, writtenPrices(t, store, 1), 7)
	assert.Empty(t, writtenPrices(t, store, 2))
}

type propertyAwareModel struct {
	failFor int64
	price   float64
}

func (m *propertyAwareModel) Name() string    { return models.ModelGBM }
func (m *propertyAwareModel) Version() string { return "gbm-test" }

func (m *propertyAwareModel) Predict(ctx context.Context, property *models.Property, days []predict.DayInput) ([]models.PriceCandidate, error) {
	if property.ID == m.failFor {
		return nil, errors.New("scoring failed")
	}
	out := make([]models.PriceCandidate, 0, len(days))
	for _, d := range days {
		out = append(out, models.PriceCandidate{
			PropertyID: property.ID,
			Date:       d.Features.Date,
			Model:      models.ModelGBM,
			Price:      decimal.NewFromFloat(m.price),
		})
	}
	return out, nil
}

func TestRunLogAlwaysWritten(t *testing.T) {
	store := newMemStore(orchestratorProperty())
	o := newTestOrchestrator(store, nil, nil)

	// neither user nor team selected: orchestration-fatal
	run, err := o.Run(context.Background(), RunRequest{
		RunType: models.RunTypeManual,
		Start:   time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 1, run.ErrorsCount)
	require.Len(t, store.runs, 1)
	assert.Equal(t, models.ErrKindOrchestration, store.runs[0].Errors[0].Kind)
}

func TestRunRecordsModelVersions(t *testing.T) {
	store := newMemStore(orchestratorProperty())
	priceModels := []predict.PriceModel{&stubModel{name: models.ModelGBM, price: 100}}
	o := newTestOrchestrator(store, priceModels, nil)

	run, err := o.Run(context.Background(), weekRequest())
	require.NoError(t, err)
	assert.Equal(t, "gbm-test", run.ModelVersions[models.ModelGBM])
	assert.Equal(t, ForecasterVersion, run.ModelVersions["forecaster"])
	assert.NotEmpty(t, run.ModelVersions["llm"])
}
