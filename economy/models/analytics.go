package models

import "time"

// AnomalyType tags a flagged deviation on a specific indicator.
type AnomalyType string

const (
	AnomalyRapidHealthChange AnomalyType = "RAPID_HEALTH_CHANGE"
	AnomalyExtremeInflation  AnomalyType = "EXTREME_INFLATION"
	AnomalyHighVolatility    AnomalyType = "HIGH_VOLATILITY"
	AnomalyWealthInequality  AnomalyType = "WEALTH_INEQUALITY"
)

// Anomaly is a threshold breach detected against the current snapshot
// and cached trends. Severity is a fixed per-type weight in [0,1].
type Anomaly struct {
	Type        AnomalyType
	Description string
	Severity    float64
}

// Forecast is a one-hour-ahead projection of the headline indicators.
// A forecast older than an hour is discarded and recomputed.
type Forecast struct {
	GeneratedAt        time.Time
	PredictedHealth    float64
	PredictedInflation float64
	PredictedActivity  float64
	Confidence         float64
}

// Stale reports whether the forecast has outlived its horizon.
func (f Forecast) Stale(now time.Time) bool {
	return now.Sub(f.GeneratedAt) > time.Hour
}

// Pattern summarizes recurring transition behavior observed in the
// transition history for one origin phase.
type Pattern struct {
	From         Cycle
	MostLikely   Cycle
	Occurrences  int
	AvgHealth    float64
	AvgInflation float64
}

// Trends holds the cached endpoint-difference trend estimates.
type Trends struct {
	Health    float64
	Inflation float64
	Activity  float64
	UpdatedAt time.Time
}
