// Package scheduler triggers each opted-in user's pipeline run once per
// local day, at the tick where the user's timezone crosses midnight. The
// cron fires hourly; a shared run guard keeps the run exactly-once across
// scheduler instances.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hostfolio/pricing-engine/internal/models"
)

// cronSpec fires on the hour, every hour. Local midnight in any whole-hour
// timezone falls on one of these ticks.
const cronSpec = "0 * * * *"

// PreferenceStore lists the opted-in users and records completions.
type PreferenceStore interface {
	ListEnabledAutoPricingPreferences() ([]*models.AutoPricingPreference, error)
	MarkAutoPricingLastRun(userID int64, ts time.Time) error
}

// RunGuard claims the (user, local day) slot. The Redis implementation in
// internal/cache makes the claim atomic across instances.
type RunGuard interface {
	AcquireDailyRun(ctx context.Context, userID int64, localDate string) (bool, error)
}

// Runner executes one user's scheduled pipeline run.
type Runner interface {
	RunForUser(ctx context.Context, userID int64) error
}

// Scheduler owns the hourly cron loop.
type Scheduler struct {
	prefs  PreferenceStore
	guard  RunGuard
	runner Runner
	cron   *cron.Cron
	now    func() time.Time
}

// New creates a scheduler. now is injectable for tests and defaults to
// time.Now.
func New(prefs PreferenceStore, guard RunGuard, runner Runner, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		prefs:  prefs,
		guard:  guard,
		runner: runner,
		cron:   cron.New(),
		now:    now,
	}
}

// Start registers the hourly tick and launches the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(cronSpec, func() {
		s.Tick(ctx, s.now())
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	log.Println("scheduler: started, ticking hourly")
	return nil
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("scheduler: stopped")
}

// Tick evaluates one cron firing. For each enabled user whose local time is
// exactly midnight, it claims the day slot and runs the pipeline. Users run
// sequentially; one user's failure never blocks the next.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	prefs, err := s.prefs.ListEnabledAutoPricingPreferences()
	if err != nil {
		log.Printf("scheduler: failed to list preferences: %v", err)
		return
	}

	for _, pref := range prefs {
		zone, err := time.LoadLocation(pref.Timezone)
		if err != nil {
			log.Printf("scheduler: user %d has invalid timezone %q, skipping", pref.UserID, pref.Timezone)
			continue
		}
		local := now.In(zone)
		if local.Hour() != 0 || local.Minute() != 0 {
			continue
		}

		localDate := local.Format("2006-01-02")
		acquired, err := s.guard.AcquireDailyRun(ctx, pref.UserID, localDate)
		if err != nil {
			// Guard unavailable: fall back to the durable last_run record
			log.Printf("scheduler: run guard failed for user %d, falling back to last_run: %v", pref.UserID, err)
			acquired = pref.LastRun == nil || pref.LastRun.In(zone).Format("2006-01-02") != localDate
		}
		if !acquired {
			continue
		}

		log.Printf("scheduler: local midnight for user %d (%s), starting run", pref.UserID, pref.Timezone)
		if err := s.runner.RunForUser(ctx, pref.UserID); err != nil {
			log.Printf("scheduler: run failed for user %d: %v", pref.UserID, err)
			continue
		}
		if err := s.prefs.MarkAutoPricingLastRun(pref.UserID, s.now()); err != nil {
			log.Printf("scheduler: failed to record last run for user %d: %v", pref.UserID, err)
		}
	}
}
