package profile

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const recomputeWorkers = 4

// Profiler owns every participant profile, keyed by snowflake ID in a
// concurrent map. Each profile has one logical writer (the event that
// recorded the activity); readers never block writers of other keys.
type Profiler struct {
	profiles *xsync.MapOf[snowflake.ID, *Profile]
	now      func() time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		profiles: xsync.NewMapOf[snowflake.ID, *Profile](),
		now:      time.Now,
	}
}

func (pr *Profiler) get(id snowflake.ID) *Profile {
	if p, ok := pr.profiles.Load(id); ok {
		return p
	}
	p, _ := pr.profiles.LoadOrStore(id, newProfile(id, pr.now()))
	return p
}

// RecordTransaction lazily creates the profile on first sight and
// folds the transaction in.
func (pr *Profiler) RecordTransaction(id snowflake.ID, amount float64, category string) {
	pr.get(id).recordTransaction(amount, category)
}

// RecordSavings adjusts the tracked savings total (fed by the savings
// subsystem; negative delta on withdrawal).
func (pr *Profiler) RecordSavings(id snowflake.ID, delta float64) {
	pr.get(id).recordSavings(delta)
}

func (pr *Profiler) RecordInterest(id snowflake.ID, amount float64) {
	pr.get(id).recordInterest(amount)
}

func (pr *Profiler) RecordLoan(id snowflake.ID) {
	pr.get(id).recordLoan()
}

// Get returns a read-only view of the participant's profile; ok is
// false when no transaction has ever been recorded for the ID.
func (pr *Profiler) Get(id snowflake.ID) (View, bool) {
	p, ok := pr.profiles.Load(id)
	if !ok {
		return View{}, false
	}
	return p.View(), true
}

func (pr *Profiler) Count() int { return pr.profiles.Size() }

// RecomputeAll reruns classification and scoring for every profile,
// bounded to a small worker pool so a large population does not stall
// the scheduler.
func (pr *Profiler) RecomputeAll(ctx context.Context) error {
	started := time.Now()

	var all []*Profile
	pr.profiles.Range(func(_ snowflake.ID, p *Profile) bool {
		all = append(all, p)
		return true
	})

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(recomputeWorkers)
	now := pr.now()

	for _, p := range all {
		p := p
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			p.recompute(now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Debug("profile recompute pass finished",
		slog.Int("profiles", len(all)),
		slog.Duration("took", time.Since(started)))
	return nil
}
