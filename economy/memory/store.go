// Package memory keeps the bounded recent history of the economy
// (snapshots, cycle transitions and interventions) and derives trends,
// anomalies, forecasts and transition patterns from it.
package memory

import (
	"fmt"
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/duskhaven/economy/economy/models"
)

// Retention targets. Snapshot capacity is 288: 24 hours of 5-minute
// samples. (An earlier revision of this engine sized the buffer at
// 2,880 while documenting it as a day of history; 288 is the figure
// that matches the documentation and the forecast confidence scale.)
const (
	SnapshotCapacity     = 288
	TransitionCapacity   = 100
	InterventionCapacity = 200

	trendRecomputeEvery = 15 * time.Minute
	trendWindow         = 24 // newest snapshots considered
	trendMinSamples     = 12

	predictionCacheSize = 128
)

// Store is the bounded analytics memory. A single producer (the
// heartbeat) appends; queries may come from any goroutine.
type Store struct {
	mu            sync.RWMutex
	snapshots     *ring[models.Snapshot]
	transitions   *ring[models.CycleTransition]
	interventions *ring[models.Intervention]

	trends      models.Trends
	forecast    models.Forecast
	hasForecast bool

	// Memoized next-cycle predictions, keyed by the exact query
	// conditions. Purged whenever the transition history changes.
	predictions *lru.Cache
}

func NewStore() *Store {
	return NewStoreWithCapacity(SnapshotCapacity, TransitionCapacity, InterventionCapacity)
}

// NewStoreWithCapacity exists for tuning and tests; production code
// uses NewStore.
func NewStoreWithCapacity(snapshots, transitions, interventions int) *Store {
	cache, _ := lru.New(predictionCacheSize)
	return &Store{
		snapshots:     newRing[models.Snapshot](snapshots),
		transitions:   newRing[models.CycleTransition](transitions),
		interventions: newRing[models.Intervention](interventions),
		predictions:   cache,
	}
}

// RecordSnapshot appends a snapshot, evicting the oldest on overflow,
// and invalidates the cached trends.
func (s *Store) RecordSnapshot(snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots.push(snap)
	s.trends.UpdatedAt = time.Time{}
}

// RecordCycleChange appends a committed transition and drops memoized
// predictions derived from the old history.
func (s *Store) RecordCycleChange(tr models.CycleTransition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions.push(tr)
	s.predictions.Purge()
}

// RecordIntervention appends an applied intervention record.
func (s *Store) RecordIntervention(iv models.Intervention) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interventions.push(iv)
}

func (s *Store) SnapshotCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots.len()
}

func (s *Store) Snapshots() []models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots.items()
}

func (s *Store) Transitions() []models.CycleTransition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transitions.items()
}

func (s *Store) Interventions() []models.Intervention {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interventions.items()
}

func (s *Store) LatestSnapshot() (models.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshots.latest()
}

// Trends returns the cached endpoint-difference trend estimates,
// recomputing when the cache was invalidated by new data or has aged
// past the recompute interval. With fewer than trendMinSamples
// snapshots all trends are zero.
func (s *Store) Trends(now time.Time) models.Trends {
	s.mu.RLock()
	cached := s.trends
	s.mu.RUnlock()
	if !cached.UpdatedAt.IsZero() && now.Sub(cached.UpdatedAt) < trendRecomputeEvery {
		return cached
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.trends.UpdatedAt.IsZero() && now.Sub(s.trends.UpdatedAt) < trendRecomputeEvery {
		return s.trends
	}

	s.trends = models.Trends{UpdatedAt: now}
	if s.snapshots.len() >= trendMinSamples {
		window := s.snapshots.tail(trendWindow)
		earliest, latest := window[0], window[len(window)-1]
		s.trends.Health = endpointTrend(earliest.Health, latest.Health)
		s.trends.Inflation = endpointTrend(earliest.InflationRate, latest.InflationRate)
		s.trends.Activity = endpointTrend(earliest.MarketActivity, latest.MarketActivity)
	}
	return s.trends
}

// endpointTrend is a deliberately cheap estimator: relative change
// between the window endpoints, not a regression.
func endpointTrend(earliest, latest float64) float64 {
	return models.Clamp((latest-earliest)/math.Max(0.1, math.Abs(earliest)), -1, 1)
}

// DetectAnomalies evaluates the fixed threshold rules against the
// given snapshot and the cached trends. Several anomalies can co-occur.
func (s *Store) DetectAnomalies(snap models.Snapshot, now time.Time) []models.Anomaly {
	trends := s.Trends(now)

	var out []models.Anomaly
	if math.Abs(trends.Health) > 0.5 {
		out = append(out, models.Anomaly{
			Type:        models.AnomalyRapidHealthChange,
			Description: fmt.Sprintf("health trend %.2f over the trend window", trends.Health),
			Severity:    0.7,
		})
	}
	if math.Abs(snap.InflationRate) > 0.10 {
		out = append(out, models.Anomaly{
			Type:        models.AnomalyExtremeInflation,
			Description: fmt.Sprintf("inflation rate at %.1f%%", snap.InflationRate*100),
			Severity:    0.9,
		})
	}
	if snap.MarketVolatility > 0.8 {
		out = append(out, models.Anomaly{
			Type:        models.AnomalyHighVolatility,
			Description: fmt.Sprintf("market volatility at %.2f", snap.MarketVolatility),
			Severity:    0.6,
		})
	}
	if snap.GiniCoefficient > 0.8 {
		out = append(out, models.Anomaly{
			Type:        models.AnomalyWealthInequality,
			Description: fmt.Sprintf("gini coefficient at %.2f", snap.GiniCoefficient),
			Severity:    0.5,
		})
	}
	return out
}

// Forecast returns the cached one-hour projection, recomputing it when
// absent or stale. Confidence scales with how full the snapshot buffer
// is, capped at 0.8.
func (s *Store) Forecast(snap models.Snapshot, now time.Time) models.Forecast {
	s.mu.RLock()
	cached, ok := s.forecast, s.hasForecast
	s.mu.RUnlock()
	if ok && !cached.Stale(now) {
		return cached
	}

	trends := s.Trends(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasForecast && !s.forecast.Stale(now) {
		return s.forecast
	}
	s.forecast = models.Forecast{
		GeneratedAt:        now,
		PredictedHealth:    models.Clamp(snap.Health+trends.Health*0.1, 0, 1),
		PredictedInflation: snap.InflationRate + trends.Inflation*0.01,
		PredictedActivity:  models.Clamp(snap.MarketActivity+trends.Activity*0.1, 0, 1),
		Confidence:         math.Min(1, float64(s.snapshots.len())/float64(SnapshotCapacity)) * 0.8,
	}
	s.hasForecast = true
	return s.forecast
}

// predictionKey carries the exact query conditions. Quantizing them
// would let one cached answer serve a nearby snapshot with a different
// match set, so only repeat-identical queries hit the memo.
type predictionKey struct {
	from      models.Cycle
	health    float64
	inflation float64
}

// PredictNextCycle searches the transition history for entries whose
// conditions resemble the given snapshot (health within 0.2, inflation
// within 0.02) and returns the most frequently observed successor for
// the same origin phase. Without a match the current phase is returned.
func (s *Store) PredictNextCycle(snap models.Snapshot) models.Cycle {
	key := predictionKey{
		from:      snap.Cycle,
		health:    snap.Health,
		inflation: snap.InflationRate,
	}
	if v, ok := s.predictions.Get(key); ok {
		return v.(models.Cycle)
	}

	s.mu.RLock()
	transitions := s.transitions.items()
	s.mu.RUnlock()

	counts := make(map[models.Cycle]int)
	for _, tr := range transitions {
		if tr.From != snap.Cycle {
			continue
		}
		if math.Abs(tr.Health-snap.Health) >= 0.2 || math.Abs(tr.Inflation-snap.InflationRate) >= 0.02 {
			continue
		}
		counts[tr.To]++
	}

	predicted := snap.Cycle
	best := 0
	for to, n := range counts {
		if n > best || (n == best && to < predicted) {
			predicted, best = to, n
		}
	}
	if best > 0 {
		s.predictions.Add(key, predicted)
	}
	return predicted
}

// TransitionPatterns aggregates the transition history per origin
// phase: dominant successor plus average conditions at transition time.
func (s *Store) TransitionPatterns() []models.Pattern {
	s.mu.RLock()
	transitions := s.transitions.items()
	s.mu.RUnlock()

	type agg struct {
		counts       map[models.Cycle]int
		total        int
		sumHealth    float64
		sumInflation float64
	}
	byFrom := make(map[models.Cycle]*agg)
	for _, tr := range transitions {
		a := byFrom[tr.From]
		if a == nil {
			a = &agg{counts: make(map[models.Cycle]int)}
			byFrom[tr.From] = a
		}
		a.counts[tr.To]++
		a.total++
		a.sumHealth += tr.Health
		a.sumInflation += tr.Inflation
	}

	out := make([]models.Pattern, 0, len(byFrom))
	for from := models.CycleDepression; from <= models.CycleBubble; from++ {
		a, ok := byFrom[from]
		if !ok {
			continue
		}
		p := models.Pattern{
			From:         from,
			Occurrences:  a.total,
			AvgHealth:    a.sumHealth / float64(a.total),
			AvgInflation: a.sumInflation / float64(a.total),
		}
		best := 0
		for to, n := range a.counts {
			if n > best || (n == best && to < p.MostLikely) {
				p.MostLikely, best = to, n
			}
		}
		out = append(out, p)
	}
	return out
}

// InterventionEffectiveness averages the recorded effectiveness for a
// type, skipping unmeasured entries. Defaults to 0.5 when nothing has
// been measured.
func (s *Store) InterventionEffectiveness(typ models.InterventionType) float64 {
	s.mu.RLock()
	interventions := s.interventions.items()
	s.mu.RUnlock()

	var sum float64
	var n int
	for _, iv := range interventions {
		if iv.Type != typ || iv.Effectiveness == models.EffectivenessUnmeasured {
			continue
		}
		sum += iv.Effectiveness
		n++
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}
