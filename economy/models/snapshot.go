package models

import (
	"math"
	"time"
)

// Snapshot is an immutable point-in-time measurement of the economy.
// The derived indices are computed once at capture from the sampled
// fields and never recomputed afterwards.
type Snapshot struct {
	Timestamp          time.Time
	TotalMoney         float64
	AverageBalance     float64
	MedianBalance      float64
	ActiveParticipants int
	TransactionVolume  float64
	MarketActivity     float64
	Cycle              Cycle
	Health             float64
	InflationRate      float64
	VelocityOfMoney    float64

	// Derived at capture.
	GiniCoefficient     float64
	EconomicMomentum    float64
	MarketVolatility    float64
	EconomicStress      float64
	OpportunityIndex    float64
	WealthConcentration float64
}

// CaptureInput carries the sampled values for one snapshot.
type CaptureInput struct {
	TotalMoney         float64
	AverageBalance     float64
	MedianBalance      float64
	ActiveParticipants int
	TransactionVolume  float64
	MarketActivity     float64
	Cycle              Cycle
	Health             float64
	InflationRate      float64
	VelocityOfMoney    float64

	// Optional: wealthy-participant share from the ledger scan.
	WealthConcentration float64
}

// Capture builds a snapshot and computes its derived indices.
func Capture(at time.Time, in CaptureInput) Snapshot {
	s := Snapshot{
		Timestamp:           at,
		TotalMoney:          math.Max(0, in.TotalMoney),
		AverageBalance:      in.AverageBalance,
		MedianBalance:       in.MedianBalance,
		ActiveParticipants:  max(0, in.ActiveParticipants),
		TransactionVolume:   math.Max(0, in.TransactionVolume),
		MarketActivity:      Clamp(in.MarketActivity, 0, 1),
		Cycle:               in.Cycle.clamped(),
		Health:              Clamp(in.Health, 0, 1),
		InflationRate:       in.InflationRate,
		VelocityOfMoney:     math.Max(0, in.VelocityOfMoney),
		WealthConcentration: Clamp(in.WealthConcentration, 0, 1),
	}

	// Inequality proxy from supply vs. mean balance. A degenerate
	// ledger (no participants or non-positive mean) reads as neutral.
	if s.AverageBalance <= 0 || s.ActiveParticipants == 0 {
		s.GiniCoefficient = 0.5
	} else {
		s.GiniCoefficient = Clamp(s.TotalMoney/(float64(s.ActiveParticipants)*s.AverageBalance*2), 0, 1)
	}

	s.EconomicMomentum = (s.TransactionVolume / 100_000) * s.MarketActivity
	s.MarketVolatility = math.Abs(s.MarketActivity-0.5) * 2
	s.EconomicStress = 0.5*(1-s.Health) + 0.3*s.GiniCoefficient + 0.2*s.MarketVolatility
	s.OpportunityIndex = 0.4*s.Health + 0.4*s.MarketActivity + 0.2*math.Min(1, s.EconomicMomentum)
	return s
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
