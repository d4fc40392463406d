package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/hostfolio/pricing-engine/internal/llm"
	"github.com/hostfolio/pricing-engine/internal/models"
	"github.com/hostfolio/pricing-engine/internal/predict"
)

// Orchestrator coordinates one pipeline run: window selection, per-property
// fan-out through the seven phases, error accounting, and the terminal run
// log write. A per-property failure never aborts the run; each phase's
// writes are idempotent so retrying a whole run is safe.
type Orchestrator struct {
	store      Store
	models     []predict.PriceModel
	publisher  RatePublisher
	events     EventSink
	ingestor   *CalendarIngestor
	features   *FeatureBuilder
	forecaster *DemandForecaster
	ensembler  *Ensembler
	policy     *PolicyEnforcer
	writer     *OverrideWriter

	lookbackMonths int
	now            func() time.Time
}

// Options configures an Orchestrator. Publisher, Events and ForecastCache
// may be nil; Now defaults to time.Now; LookbackMonths defaults to 12.
type Options struct {
	Store          Store
	Models         []predict.PriceModel
	Publisher      RatePublisher
	Events         EventSink
	ForecastCache  ForecastCache
	LookbackMonths int
	Now            func() time.Time
}

// NewOrchestrator wires the pipeline.
func NewOrchestrator(opts Options) *Orchestrator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	lookback := opts.LookbackMonths
	if lookback <= 0 {
		lookback = 12
	}
	return &Orchestrator{
		store:          opts.Store,
		models:         opts.Models,
		publisher:      opts.Publisher,
		events:         opts.Events,
		ingestor:       NewCalendarIngestor(opts.Store, opts.Store, opts.Store),
		features:       NewFeatureBuilder(opts.Store, opts.Store, opts.Store),
		forecaster:     NewDemandForecaster(opts.Store, opts.Store, opts.ForecastCache),
		ensembler:      NewEnsembler(),
		policy:         NewPolicyEnforcer(),
		writer:         NewOverrideWriter(opts.Store, now),
		lookbackMonths: lookback,
		now:            now,
	}
}

// RunRequest selects the scope and window of one run. Exactly one of UserID
// and TeamID must be set. Start and End bound the forward recommendation
// window, inclusive.
type RunRequest struct {
	RunType string
	UserID  *int64
	TeamID  *int64
	Start   time.Time
	End     time.Time
}

// propertyState tracks one property across phases. A property that errors
// in a phase is terminal for the rest of the run but never stops the others.
type propertyState struct {
	property        *models.Property
	failed          bool
	days            []predict.DayInput
	byDate          map[time.Time][]models.PriceCandidate
	recommendations []*models.Recommendation
	locked          map[time.Time]bool
	written         []*models.PriceOverride
}

// Run executes the pipeline end-to-end and always writes exactly one run
// log, even when it fails before touching any property. The returned error
// is non-nil only for orchestration-fatal failures.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*models.PipelineRun, error) {
	started := o.now()
	run := &models.PipelineRun{
		ID:        uuid.NewString(),
		RunDate:   models.DateOnly(started),
		RunType:   req.RunType,
		UserID:    req.UserID,
		StartedAt: started,
		ModelVersions: map[string]string{
			"forecaster": ForecasterVersion,
			"llm":        llm.TemplateVersion(),
		},
	}
	for _, m := range o.models {
		run.ModelVersions[m.Name()] = m.Version()
	}
	if o.events != nil {
		o.events.RunStarted(ctx, run)
	}

	start := models.DateOnly(req.Start)
	end := models.DateOnly(req.End)
	today := models.DateOnly(started)
	lookback := start.AddDate(0, -o.lookbackMonths, 0)

	properties, err := o.resolveProperties(req)
	if err != nil {
		run.AddError(models.RunError{
			Phase:      models.PhaseIngest,
			Kind:       models.ErrKindOrchestration,
			Message:    err.Error(),
			OccurredAt: o.now(),
		})
		o.finish(ctx, run)
		return run, fmt.Errorf("failed to resolve properties: %w", err)
	}

	states := make([]*propertyState, 0, len(properties))
	for _, p := range properties {
		states = append(states, &propertyState{property: p})
	}
	log.Printf("pipeline run %s: %d properties, window %s..%s",
		run.ID, len(states), start.Format("2006-01-02"), end.Format("2006-01-02"))

	// Phase 1: calendar ingestion over lookback + forward window
	for _, st := range states {
		if err := o.ingestor.Ingest(st.property, lookback, end); err != nil {
			o.failProperty(run, st, models.PhaseIngest, err)
		}
	}

	// Phase 2: feature building over the forward window
	for _, st := range states {
		if st.failed {
			continue
		}
		if err := o.features.Build(st.property, today, start, end); err != nil {
			o.failProperty(run, st, models.PhaseFeatures, err)
		}
	}

	// Phase 3: one demand forecast per distinct (city, property type)
	forecastFailed := o.runForecasts(ctx, run, states, lookback, start, end)

	// Phase 4: per-model candidate prediction
	for _, st := range states {
		if st.failed {
			continue
		}
		o.predictProperty(ctx, run, st, forecastFailed, start, end)
	}

	// Phase 5: ensembling
	for _, st := range states {
		if st.failed {
			continue
		}
		o.ensembleProperty(st)
	}

	// Phase 6: policy enforcement and persistence
	for _, st := range states {
		if st.failed {
			continue
		}
		o.persistProperty(ctx, run, st, start, end)
	}

	// Phase 7: publication to bound reservation systems
	for _, st := range states {
		if st.failed || len(st.written) == 0 {
			continue
		}
		o.publishProperty(ctx, run, st)
	}

	for _, st := range states {
		run.PropertiesProcessed++
		if !st.failed && len(st.written) == 0 {
			run.PropertiesSkipped++
		}
	}

	o.finish(ctx, run)
	log.Printf("pipeline run %s finished: %d properties, %d recommendations, %d errors in %.1fs",
		run.ID, run.PropertiesProcessed, run.RecommendationsGenerated, run.ErrorsCount, run.ExecutionTimeSeconds)
	return run, nil
}

func (o *Orchestrator) resolveProperties(req RunRequest) ([]*models.Property, error) {
	switch {
	case req.UserID != nil:
		return o.store.ListPropertiesByOwner(*req.UserID)
	case req.TeamID != nil:
		return o.store.ListPropertiesByTeam(*req.TeamID)
	default:
		return nil, fmt.Errorf("run request selects neither user nor team")
	}
}

// runForecasts runs the forecaster once per distinct (city, type) and
// returns the set of keys that failed, so prediction can proceed without a
// forecast for those cities.
func (o *Orchestrator) runForecasts(ctx context.Context, run *models.PipelineRun, states []*propertyState, lookback, start, end time.Time) map[string]bool {
	type cityKey struct{ city, ptype string }
	seen := make(map[cityKey]bool)
	failed := make(map[string]bool)

	for _, st := range states {
		if st.failed {
			continue
		}
		key := cityKey{st.property.City, st.property.PropertyType}
		if seen[key] {
			continue
		}
		seen[key] = true

		if _, err := o.forecaster.Run(ctx, key.city, key.ptype, lookback, start, end); err != nil {
			failed[key.city+"|"+key.ptype] = true
			run.AddError(models.RunError{
				Phase:      models.PhaseForecast,
				Kind:       classifyError(err),
				Message:    fmt.Sprintf("%s/%s: %v", key.city, key.ptype, err),
				OccurredAt: o.now(),
			})
		}
	}
	return failed
}

func (o *Orchestrator) predictProperty(ctx context.Context, run *models.PipelineRun, st *propertyState, forecastFailed map[string]bool, start, end time.Time) {
	p := st.property
	features, err := o.store.GetFeatureRows(p.ID, start, end)
	if err != nil {
		o.failProperty(run, st, models.PhasePredict, err)
		return
	}

	var forecastByDate map[time.Time]*models.DemandForecast
	if !forecastFailed[p.City+"|"+p.PropertyType] {
		forecasts, err := o.forecaster.Load(ctx, p.City, p.PropertyType, start, end)
		if err != nil {
			run.AddError(models.RunError{
				PropertyID: p.ID,
				Phase:      models.PhasePredict,
				Kind:       classifyError(err),
				Message:    err.Error(),
				OccurredAt: o.now(),
			})
		} else {
			forecastByDate = make(map[time.Time]*models.DemandForecast, len(forecasts))
			for _, f := range forecasts {
				forecastByDate[models.DateOnly(f.ForecastDate)] = f
			}
		}
	}

	st.days = make([]predict.DayInput, 0, len(features))
	for _, f := range features {
		st.days = append(st.days, predict.DayInput{
			Features: f,
			Forecast: forecastByDate[models.DateOnly(f.Date)],
		})
	}

	st.byDate = make(map[time.Time][]models.PriceCandidate)
	for _, model := range o.models {
		candidates, err := model.Predict(ctx, p, st.days)
		if err != nil {
			// A missing model leaves the other candidates standing
			run.AddError(models.RunError{
				PropertyID: p.ID,
				Phase:      models.PhasePredict,
				Kind:       classifyError(err),
				Message:    fmt.Sprintf("model %s: %v", model.Name(), err),
				OccurredAt: o.now(),
			})
			continue
		}
		for _, c := range candidates {
			d := models.DateOnly(c.Date)
			st.byDate[d] = append(st.byDate[d], c)
		}
	}
}

// ensembleProperty combines per-model candidates into one recommendation
// per date. Dates with no candidate are silently absent; enforcement runs
// later, once locks are known.
func (o *Orchestrator) ensembleProperty(st *propertyState) {
	st.recommendations = st.recommendations[:0]
	for _, day := range st.days {
		d := models.DateOnly(day.Features.Date)
		rec := o.ensembler.Combine(st.byDate[d], ExplanationContext{
			Features: day.Features,
			Forecast: day.Forecast,
		})
		if rec == nil {
			continue
		}
		st.recommendations = append(st.recommendations, rec)
	}
}

func (o *Orchestrator) persistProperty(ctx context.Context, run *models.PipelineRun, st *propertyState, start, end time.Time) {
	p := st.property

	existing, err := o.store.GetOverridesInRange(p.ID, start, end)
	if err != nil {
		o.failProperty(run, st, models.PhasePersist, err)
		return
	}
	st.locked = make(map[time.Time]bool)
	for _, ov := range existing {
		if ov.IsLocked {
			st.locked[models.DateOnly(ov.Date)] = true
		}
	}

	accepted := make([]*models.PriceOverride, 0, len(st.recommendations))
	for _, rec := range st.recommendations {
		price, ok := o.policy.Enforce(p, rec, st.locked[models.DateOnly(rec.Date)])
		if !ok {
			continue // locked date: dropped entirely, counted as a skip not an error
		}
		accepted = append(accepted, &models.PriceOverride{
			Date:   models.DateOnly(rec.Date),
			Price:  price,
			Reason: rec.Explanation,
		})
	}

	written, err := o.writer.Write(p.ID, accepted)
	if err != nil {
		o.failProperty(run, st, models.PhasePersist, err)
		return
	}
	st.written = written
	run.RecommendationsGenerated += len(written)

	if o.events != nil && len(written) > 0 {
		o.events.RecommendationsWritten(ctx, p.ID, len(written), written[0].Date, written[len(written)-1].Date)
	}
}

func (o *Orchestrator) publishProperty(ctx context.Context, run *models.PipelineRun, st *propertyState) {
	p := st.property
	if !p.HasPMSBinding() || o.publisher == nil {
		return
	}
	if err := o.publisher.PublishRates(ctx, p, st.written); err != nil {
		// Local overrides stay committed: a later republish reconciles
		run.AddError(models.RunError{
			PropertyID: p.ID,
			Phase:      models.PhasePublish,
			Kind:       classifyError(err),
			Message:    err.Error(),
			OccurredAt: o.now(),
		})
	}
}

func (o *Orchestrator) failProperty(run *models.PipelineRun, st *propertyState, phase string, err error) {
	st.failed = true
	run.AddError(models.RunError{
		PropertyID: st.property.ID,
		Phase:      phase,
		Kind:       classifyError(err),
		Message:    err.Error(),
		OccurredAt: o.now(),
	})
	log.Printf("pipeline: property %d failed in %s phase: %v", st.property.ID, phase, err)
}

func (o *Orchestrator) finish(ctx context.Context, run *models.PipelineRun) {
	run.FinishedAt = o.now()
	run.ExecutionTimeSeconds = run.FinishedAt.Sub(run.StartedAt).Seconds()
	if err := o.store.AppendPipelineRun(run); err != nil {
		log.Printf("pipeline: failed to write run log %s: %v", run.ID, err)
	}
	if o.events != nil {
		o.events.RunCompleted(ctx, run)
	}
}

// classifyError maps an error to the run-log taxonomy by effect.
func classifyError(err error) string {
	if errors.Is(err, predict.ErrInvalidModelOutput) {
		return models.ErrKindDataInvalid
	}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Transient():
			return models.ErrKindTransient
		case apiErr.Class == llm.ClassMalformed || apiErr.Class == llm.ClassUnsafeContent:
			return models.ErrKindDataInvalid
		default:
			return models.ErrKindFatalExternal
		}
	}
	var transient interface{ Transient() bool }
	if errors.As(err, &transient) && transient.Transient() {
		return models.ErrKindTransient
	}
	return models.ErrKindFatalExternal
}
