package models

import "time"

// Cycle is the qualitative phase of the economy. The six phases are
// ordered from hardest contraction to hardest overheating; transitions
// only ever move one position at a time.
type Cycle int

const (
	CycleDepression Cycle = iota
	CycleRecession
	CycleStable
	CycleGrowth
	CycleBoom
	CycleBubble
)

// Step directions for AdjacentCycle.
const (
	TowardDepression = -1
	TowardBubble     = +1
)

type cycleInfo struct {
	name               string
	activityMultiplier float64
	baseInflationRate  float64
}

var cycleTable = [...]cycleInfo{
	CycleDepression: {"DEPRESSION", 0.50, -0.030},
	CycleRecession:  {"RECESSION", 0.75, -0.015},
	CycleStable:     {"STABLE", 1.00, 0.005},
	CycleGrowth:     {"GROWTH", 1.25, 0.020},
	CycleBoom:       {"BOOM", 1.50, 0.035},
	CycleBubble:     {"BUBBLE", 2.00, 0.060},
}

func (c Cycle) String() string {
	if c < CycleDepression || c > CycleBubble {
		return "UNKNOWN"
	}
	return cycleTable[c].name
}

// ActivityMultiplier scales expected market throughput for the phase.
func (c Cycle) ActivityMultiplier() float64 {
	return cycleTable[c.clamped()].activityMultiplier
}

// BaseInflationRate is the phase's intrinsic price drift before the
// transaction-volume component is added on top.
func (c Cycle) BaseInflationRate() float64 {
	return cycleTable[c.clamped()].baseInflationRate
}

func (c Cycle) clamped() Cycle {
	if c < CycleDepression {
		return CycleDepression
	}
	if c > CycleBubble {
		return CycleBubble
	}
	return c
}

// AdjacentCycle steps one position in the given direction, saturating
// at DEPRESSION and BUBBLE.
func AdjacentCycle(c Cycle, direction int) Cycle {
	switch {
	case direction > 0:
		return (c + 1).clamped()
	case direction < 0:
		return (c - 1).clamped()
	default:
		return c.clamped()
	}
}

// CycleFromName resolves a phase by its display name. Used by the admin
// surface and the legacy importer; returns STABLE for unknown names.
func CycleFromName(name string) Cycle {
	for i, info := range cycleTable {
		if info.name == name {
			return Cycle(i)
		}
	}
	return CycleStable
}

// CycleTransition records one committed phase change.
type CycleTransition struct {
	Timestamp    time.Time
	From         Cycle
	To           Cycle
	Health       float64
	Inflation    float64
	PrevDuration time.Duration
}
