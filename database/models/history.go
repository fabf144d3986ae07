package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SnapshotRow archives one economy snapshot. The bounded in-memory
// buffer stays authoritative for analytics; these rows exist for
// offline inspection and survive restarts.
type SnapshotRow struct {
	bun.BaseModel `bun:"table:economy_snapshots,alias:es"`

	ID                  int64     `bun:"id,pk,autoincrement"`
	Timestamp           time.Time `bun:"timestamp,notnull"`
	TotalMoney          float64   `bun:"total_money,notnull"`
	AverageBalance      float64   `bun:"average_balance,notnull"`
	MedianBalance       float64   `bun:"median_balance,notnull"`
	ActiveParticipants  int       `bun:"active_participants,notnull"`
	TransactionVolume   float64   `bun:"transaction_volume,notnull"`
	MarketActivity      float64   `bun:"market_activity,notnull"`
	Cycle               string    `bun:"cycle,notnull"`
	Health              float64   `bun:"health,notnull"`
	InflationRate       float64   `bun:"inflation_rate,notnull"`
	VelocityOfMoney     float64   `bun:"velocity_of_money,notnull"`
	GiniCoefficient     float64   `bun:"gini_coefficient,notnull"`
	EconomicMomentum    float64   `bun:"economic_momentum,notnull"`
	MarketVolatility    float64   `bun:"market_volatility,notnull"`
	EconomicStress      float64   `bun:"economic_stress,notnull"`
	OpportunityIndex    float64   `bun:"opportunity_index,notnull"`
	WealthConcentration float64   `bun:"wealth_concentration,notnull"`
}

// TransitionRow archives one cycle transition.
type TransitionRow struct {
	bun.BaseModel `bun:"table:cycle_transitions,alias:ct"`

	ID           int64         `bun:"id,pk,autoincrement"`
	Timestamp    time.Time     `bun:"timestamp,notnull"`
	FromCycle    string        `bun:"from_cycle,notnull"`
	ToCycle      string        `bun:"to_cycle,notnull"`
	Health       float64       `bun:"health,notnull"`
	Inflation    float64       `bun:"inflation,notnull"`
	PrevDuration time.Duration `bun:"prev_duration,notnull"`
}

// InterventionRow archives one applied intervention.
type InterventionRow struct {
	bun.BaseModel `bun:"table:interventions,alias:iv"`

	ID            int64     `bun:"id,pk,autoincrement"`
	Timestamp     time.Time `bun:"timestamp,notnull"`
	Type          string    `bun:"type,notnull"`
	Magnitude     float64   `bun:"magnitude,notnull"`
	Details       string    `bun:"details"`
	Effectiveness float64   `bun:"effectiveness,notnull,default:-1"`
}
