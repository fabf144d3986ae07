package memory

import (
	"math"
	"testing"
	"time"

	"github.com/duskhaven/economy/economy/models"
)

var storeEpoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func snapAt(t time.Time, health, inflation, activity float64) models.Snapshot {
	return models.Capture(t, models.CaptureInput{
		TotalMoney:         1_000_000,
		AverageBalance:     1_000,
		ActiveParticipants: 1_000,
		MarketActivity:     activity,
		Health:             health,
		InflationRate:      inflation,
		Cycle:              models.CycleStable,
	})
}

func TestStore_SnapshotEviction(t *testing.T) {
	s := NewStoreWithCapacity(3, 10, 10)
	for i := 0; i < 5; i++ {
		s.RecordSnapshot(snapAt(storeEpoch.Add(time.Duration(i)*time.Minute), 0.5, 0, 0.5))
	}
	if got := s.SnapshotCount(); got != 3 {
		t.Fatalf("SnapshotCount() = %d, want 3", got)
	}
	snaps := s.Snapshots()
	if !snaps[0].Timestamp.Equal(storeEpoch.Add(2 * time.Minute)) {
		t.Errorf("oldest retained = %v, want the third pushed", snaps[0].Timestamp)
	}
	latest, ok := s.LatestSnapshot()
	if !ok || !latest.Timestamp.Equal(storeEpoch.Add(4*time.Minute)) {
		t.Errorf("LatestSnapshot() = %v, %v", latest.Timestamp, ok)
	}
}

func TestStore_TrendsNeedMinimumSamples(t *testing.T) {
	s := NewStore()
	for i := 0; i < 11; i++ {
		s.RecordSnapshot(snapAt(storeEpoch.Add(time.Duration(i)*5*time.Minute), 0.5+float64(i)*0.02, 0, 0.5))
	}
	tr := s.Trends(storeEpoch.Add(time.Hour))
	if tr.Health != 0 || tr.Inflation != 0 || tr.Activity != 0 {
		t.Errorf("Trends with 11 samples = %+v, want zeros", tr)
	}

	s.RecordSnapshot(snapAt(storeEpoch.Add(time.Hour), 0.72, 0, 0.5))
	tr = s.Trends(storeEpoch.Add(time.Hour + time.Minute))
	if tr.Health <= 0 {
		t.Errorf("Trends.Health = %v, want positive with 12 samples", tr.Health)
	}
}

func TestStore_TrendEndpointMath(t *testing.T) {
	s := NewStore()
	// Twelve snapshots climbing from health 0.50 to 0.72.
	for i := 0; i < 12; i++ {
		s.RecordSnapshot(snapAt(storeEpoch.Add(time.Duration(i)*5*time.Minute), 0.5+float64(i)*0.02, 0.01, 0.5))
	}
	tr := s.Trends(storeEpoch.Add(time.Hour))
	want := (0.72 - 0.50) / 0.50
	if math.Abs(tr.Health-want) > 1e-9 {
		t.Errorf("Trends.Health = %v, want %v", tr.Health, want)
	}
}

func TestStore_TrendsCachedBetweenRecomputes(t *testing.T) {
	s := NewStore()
	for i := 0; i < 12; i++ {
		s.RecordSnapshot(snapAt(storeEpoch.Add(time.Duration(i)*5*time.Minute), 0.6, 0, 0.5))
	}
	now := storeEpoch.Add(time.Hour)
	first := s.Trends(now)

	// Aged less than the recompute interval and without new data the
	// cached value comes back unchanged.
	second := s.Trends(now.Add(10 * time.Minute))
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Errorf("trends recomputed early: %v vs %v", second.UpdatedAt, first.UpdatedAt)
	}

	// A new snapshot invalidates the cache immediately.
	s.RecordSnapshot(snapAt(now, 0.9, 0, 0.5))
	third := s.Trends(now.Add(11 * time.Minute))
	if third.UpdatedAt.Equal(first.UpdatedAt) {
		t.Error("trends not recomputed after new snapshot")
	}
}

func TestStore_DetectAnomalies(t *testing.T) {
	tests := []struct {
		name string
		snap models.Snapshot
		want []models.AnomalyType
	}{
		{
			name: "calm economy",
			snap: snapAt(storeEpoch, 0.7, 0.02, 0.5),
			want: nil,
		},
		{
			name: "extreme inflation",
			snap: snapAt(storeEpoch, 0.7, 0.12, 0.5),
			want: []models.AnomalyType{models.AnomalyExtremeInflation},
		},
		{
			name: "deflation counts too",
			snap: snapAt(storeEpoch, 0.7, -0.11, 0.5),
			want: []models.AnomalyType{models.AnomalyExtremeInflation},
		},
		{
			name: "borderline inflation passes",
			snap: snapAt(storeEpoch, 0.7, 0.10, 0.5),
			want: nil,
		},
		{
			name: "volatile market",
			snap: snapAt(storeEpoch, 0.7, 0.02, 0.95),
			want: []models.AnomalyType{models.AnomalyHighVolatility},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			got := s.DetectAnomalies(tt.snap, storeEpoch)
			if len(got) != len(tt.want) {
				t.Fatalf("anomalies = %+v, want types %v", got, tt.want)
			}
			for i, a := range got {
				if a.Type != tt.want[i] {
					t.Errorf("anomaly[%d].Type = %v, want %v", i, a.Type, tt.want[i])
				}
			}
		})
	}
}

func TestStore_DetectAnomalies_WealthInequality(t *testing.T) {
	// gini = totalMoney / (N * avg * 2); 0.85 here.
	snap := models.Capture(storeEpoch, models.CaptureInput{
		TotalMoney:         1_700_000,
		AverageBalance:     1_000,
		ActiveParticipants: 1_000,
		MarketActivity:     0.5,
		Health:             0.7,
	})
	s := NewStore()
	got := s.DetectAnomalies(snap, storeEpoch)
	if len(got) != 1 || got[0].Type != models.AnomalyWealthInequality {
		t.Fatalf("anomalies = %+v, want one WEALTH_INEQUALITY", got)
	}
	if got[0].Severity != 0.5 {
		t.Errorf("Severity = %v, want 0.5", got[0].Severity)
	}
}

func TestStore_ForecastCachingAndConfidence(t *testing.T) {
	s := NewStore()
	for i := 0; i < 144; i++ {
		s.RecordSnapshot(snapAt(storeEpoch.Add(time.Duration(i)*5*time.Minute), 0.6, 0.01, 0.5))
	}
	now := storeEpoch.Add(13 * time.Hour)
	snap := snapAt(now, 0.6, 0.01, 0.5)

	f := s.Forecast(snap, now)
	wantConfidence := (144.0 / 288.0) * 0.8
	if math.Abs(f.Confidence-wantConfidence) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", f.Confidence, wantConfidence)
	}

	// Within the hour the cached forecast is returned as-is.
	again := s.Forecast(snapAt(now, 0.9, 0.05, 0.9), now.Add(30*time.Minute))
	if !again.GeneratedAt.Equal(f.GeneratedAt) {
		t.Error("forecast recomputed before going stale")
	}

	// Past the hour it is rebuilt.
	later := s.Forecast(snap, now.Add(61*time.Minute))
	if later.GeneratedAt.Equal(f.GeneratedAt) {
		t.Error("stale forecast not recomputed")
	}
}

func TestForecast_Stale(t *testing.T) {
	f := models.Forecast{GeneratedAt: storeEpoch}
	if f.Stale(storeEpoch.Add(59 * time.Minute)) {
		t.Error("fresh forecast reported stale")
	}
	if !f.Stale(storeEpoch.Add(61 * time.Minute)) {
		t.Error("hour-old forecast reported fresh")
	}
}

func TestStore_PredictNextCycle(t *testing.T) {
	s := NewStore()
	grow := models.CycleTransition{From: models.CycleStable, To: models.CycleGrowth, Health: 0.7, Inflation: 0.01}
	shrink := models.CycleTransition{From: models.CycleStable, To: models.CycleRecession, Health: 0.7, Inflation: 0.01}
	s.RecordCycleChange(grow)
	s.RecordCycleChange(grow)
	s.RecordCycleChange(shrink)
	// Similar conditions but a different origin phase; must be ignored.
	s.RecordCycleChange(models.CycleTransition{From: models.CycleBoom, To: models.CycleBubble, Health: 0.7, Inflation: 0.01})

	snap := snapAt(storeEpoch, 0.72, 0.015, 0.5)
	if got := s.PredictNextCycle(snap); got != models.CycleGrowth {
		t.Errorf("PredictNextCycle() = %v, want GROWTH", got)
	}

	// Dissimilar conditions fall back to the current phase.
	far := snapAt(storeEpoch, 0.2, 0.015, 0.5)
	far.Cycle = models.CycleStable
	if got := s.PredictNextCycle(far); got != models.CycleStable {
		t.Errorf("PredictNextCycle(dissimilar) = %v, want current phase", got)
	}
}

func TestStore_PredictNextCycleMemoIsExact(t *testing.T) {
	s := NewStore()
	s.RecordCycleChange(models.CycleTransition{From: models.CycleStable, To: models.CycleGrowth, Health: 0.705, Inflation: 0.01})

	near := snapAt(storeEpoch, 0.549, 0.01, 0.5)
	if got := s.PredictNextCycle(near); got != models.CycleGrowth {
		t.Fatalf("PredictNextCycle(0.549) = %v, want GROWTH", got)
	}

	// 0.50 sits 0.205 away from the transition, outside the match
	// window. The memoized answer for 0.549 must not apply to it.
	edge := snapAt(storeEpoch, 0.50, 0.01, 0.5)
	if got := s.PredictNextCycle(edge); got != models.CycleStable {
		t.Errorf("PredictNextCycle(0.50) = %v, want current phase", got)
	}

	// Repeating the exact matching query still serves the memo.
	if got := s.PredictNextCycle(near); got != models.CycleGrowth {
		t.Errorf("PredictNextCycle(0.549) repeat = %v, want GROWTH", got)
	}
}

func TestStore_TransitionPatterns(t *testing.T) {
	s := NewStore()
	s.RecordCycleChange(models.CycleTransition{From: models.CycleStable, To: models.CycleGrowth, Health: 0.6, Inflation: 0.01})
	s.RecordCycleChange(models.CycleTransition{From: models.CycleStable, To: models.CycleGrowth, Health: 0.8, Inflation: 0.03})
	s.RecordCycleChange(models.CycleTransition{From: models.CycleStable, To: models.CycleRecession, Health: 0.4, Inflation: -0.01})
	s.RecordCycleChange(models.CycleTransition{From: models.CycleBoom, To: models.CycleBubble, Health: 0.9, Inflation: 0.05})

	patterns := s.TransitionPatterns()
	if len(patterns) != 2 {
		t.Fatalf("got %d patterns, want 2", len(patterns))
	}

	stable := patterns[0] // ordered by origin phase
	if stable.From != models.CycleStable {
		t.Fatalf("patterns[0].From = %v, want STABLE", stable.From)
	}
	if stable.MostLikely != models.CycleGrowth {
		t.Errorf("MostLikely = %v, want GROWTH", stable.MostLikely)
	}
	if stable.Occurrences != 3 {
		t.Errorf("Occurrences = %d, want 3", stable.Occurrences)
	}
	wantAvg := (0.6 + 0.8 + 0.4) / 3
	if math.Abs(stable.AvgHealth-wantAvg) > 1e-9 {
		t.Errorf("AvgHealth = %v, want %v", stable.AvgHealth, wantAvg)
	}
}

func TestStore_InterventionEffectiveness(t *testing.T) {
	s := NewStore()

	// No measurements at all: neutral default.
	if got := s.InterventionEffectiveness(models.InterventionEmergencyStimulus); got != 0.5 {
		t.Errorf("default effectiveness = %v, want 0.5", got)
	}

	iv1 := models.NewIntervention(storeEpoch, models.InterventionEmergencyStimulus, 1, "a")
	iv1.Effectiveness = 0.8
	iv2 := models.NewIntervention(storeEpoch, models.InterventionEmergencyStimulus, 1, "b")
	iv2.Effectiveness = 0.4
	unmeasured := models.NewIntervention(storeEpoch, models.InterventionEmergencyStimulus, 1, "c")
	other := models.NewIntervention(storeEpoch, models.InterventionMarketStimulation, 1, "d")
	other.Effectiveness = 0.1

	s.RecordIntervention(iv1)
	s.RecordIntervention(iv2)
	s.RecordIntervention(unmeasured)
	s.RecordIntervention(other)

	if got := s.InterventionEffectiveness(models.InterventionEmergencyStimulus); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("effectiveness = %v, want 0.6", got)
	}
	if got := s.InterventionEffectiveness(models.InterventionMarketStimulation); math.Abs(got-0.1) > 1e-9 {
		t.Errorf("effectiveness = %v, want 0.1", got)
	}
}
