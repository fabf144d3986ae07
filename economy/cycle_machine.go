package economy

import (
	"sync/atomic"
	"time"

	"github.com/duskhaven/economy/economy/models"
)

// naturalDriftDwell is the minimum time the economy must sit in a phase
// before ordinary drift may move it. Overheating and crisis rules apply
// regardless of dwell time.
const naturalDriftDwell = 3600 * time.Second

type cycleState struct {
	cycle          models.Cycle
	health         float64
	inflation      float64
	velocity       float64
	lastTransition time.Time
}

// CycleMachine holds the committed cycle/health/inflation/velocity
// state. All mutation happens on the heartbeat goroutine; readers load
// the latest committed state without taking a lock.
type CycleMachine struct {
	state atomic.Pointer[cycleState]
}

func NewCycleMachine(start models.Cycle, health float64, now time.Time) *CycleMachine {
	m := &CycleMachine{}
	m.state.Store(&cycleState{
		cycle:          start,
		health:         models.Clamp(health, 0, 1),
		inflation:      start.BaseInflationRate(),
		lastTransition: now,
	})
	return m
}

func (m *CycleMachine) load() *cycleState { return m.state.Load() }

func (m *CycleMachine) Cycle() models.Cycle      { return m.load().cycle }
func (m *CycleMachine) Health() float64          { return m.load().health }
func (m *CycleMachine) InflationRate() float64   { return m.load().inflation }
func (m *CycleMachine) VelocityOfMoney() float64 { return m.load().velocity }
func (m *CycleMachine) LastTransition() time.Time {
	return m.load().lastTransition
}

// commit publishes a modified copy of the current state. Only the
// heartbeat calls the mutating methods, so load-copy-store is safe.
func (m *CycleMachine) commit(mutate func(*cycleState)) {
	next := *m.load()
	mutate(&next)
	m.state.Store(&next)
}

// SmoothHealth folds a freshly measured health score into the running
// one: 70% previous, 30% new. The fresh score must be recomputed from
// current snapshot inputs every tick, never carried over.
func (m *CycleMachine) SmoothHealth(fresh float64) {
	fresh = models.Clamp(fresh, 0, 1)
	m.commit(func(s *cycleState) {
		s.health = models.Clamp(0.7*s.health+0.3*fresh, 0, 1)
	})
}

// UpdateInflation recomputes inflation from the phase's base rate plus
// the transaction-volume component.
func (m *CycleMachine) UpdateInflation(volumeFactor float64) {
	m.commit(func(s *cycleState) {
		s.inflation = s.cycle.BaseInflationRate() + volumeFactor*0.01
	})
}

func (m *CycleMachine) SetVelocity(v float64) {
	m.commit(func(s *cycleState) { s.velocity = v })
}

// Evaluate runs the transition rules once, in priority order:
//
//  1. overheating (health > 0.9, inflation > 4%) cools one step toward
//     DEPRESSION regardless of dwell time;
//  2. crisis (health < 0.5, deflation past -2%) steps one position
//     toward BUBBLE, the stimulus direction, so a collapsing economy is
//     pushed toward growth rather than deeper contraction;
//  3. otherwise, after the dwell period, drift toward BUBBLE when both
//     health and activity trends are positive, else toward DEPRESSION.
//
// Returns the committed transition when the phase actually changed.
func (m *CycleMachine) Evaluate(now time.Time, healthTrend, activityTrend float64) (models.CycleTransition, bool) {
	s := m.load()

	direction := 0
	switch {
	case s.health > 0.9 && s.inflation > 0.04:
		direction = models.TowardDepression
	case s.health < 0.5 && s.inflation < -0.02:
		direction = models.TowardBubble
	case now.Sub(s.lastTransition) >= naturalDriftDwell:
		if healthTrend > 0 && activityTrend > 0 {
			direction = models.TowardBubble
		} else {
			direction = models.TowardDepression
		}
	default:
		return models.CycleTransition{}, false
	}

	next := models.AdjacentCycle(s.cycle, direction)
	if next == s.cycle {
		// Already at the floor or ceiling.
		return models.CycleTransition{}, false
	}

	tr := models.CycleTransition{
		Timestamp:    now,
		From:         s.cycle,
		To:           next,
		Health:       s.health,
		Inflation:    s.inflation,
		PrevDuration: now.Sub(s.lastTransition),
	}
	m.commit(func(st *cycleState) {
		st.cycle = next
		st.lastTransition = now
	})
	return tr, true
}

// ForceCycle pins the machine to a phase. Admin path only.
func (m *CycleMachine) ForceCycle(c models.Cycle, now time.Time) {
	m.commit(func(s *cycleState) {
		s.cycle = c
		s.lastTransition = now
	})
}
