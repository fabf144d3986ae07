package models

import "time"

// InterventionType enumerates the corrective actions the policy engine
// can take.
type InterventionType string

const (
	InterventionNone                 InterventionType = "none"
	InterventionEmergencyStimulus    InterventionType = "emergency_stimulus"
	InterventionMonetaryEasing       InterventionType = "monetary_easing"
	InterventionMonetaryTightening   InterventionType = "monetary_tightening"
	InterventionMarketStimulation    InterventionType = "market_stimulation"
	InterventionWealthRedistribution InterventionType = "wealth_redistribution"
)

// EffectivenessUnmeasured marks an intervention whose outcome has not
// been scored. Nothing scores interventions yet; effectiveness queries
// skip these entries and fall back to a neutral 0.5.
const EffectivenessUnmeasured = -1

// Intervention records one applied corrective action.
type Intervention struct {
	Timestamp     time.Time
	Type          InterventionType
	Magnitude     float64
	Details       string
	Effectiveness float64
}

// NewIntervention stamps a record with the unmeasured effectiveness
// sentinel.
func NewIntervention(at time.Time, typ InterventionType, magnitude float64, details string) Intervention {
	return Intervention{
		Timestamp:     at,
		Type:          typ,
		Magnitude:     magnitude,
		Details:       details,
		Effectiveness: EffectivenessUnmeasured,
	}
}

// ParseInterventionType resolves an admin-supplied name; the bool
// reports whether the name was recognized.
func ParseInterventionType(name string) (InterventionType, bool) {
	switch InterventionType(name) {
	case InterventionNone, InterventionEmergencyStimulus, InterventionMonetaryEasing,
		InterventionMonetaryTightening, InterventionMarketStimulation, InterventionWealthRedistribution:
		return InterventionType(name), true
	}
	return InterventionNone, false
}
