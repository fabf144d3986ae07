package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	dbmodels "github.com/duskhaven/economy/database/models"
	"github.com/duskhaven/economy/economy/models"
)

// HistoryRepository archives snapshots, transitions and interventions
// to Postgres. It satisfies the director's Archiver contract.
type HistoryRepository struct {
	db *bun.DB
}

func NewHistoryRepository(db *bun.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) ArchiveSnapshot(ctx context.Context, snap models.Snapshot) error {
	row := &dbmodels.SnapshotRow{
		Timestamp:           snap.Timestamp,
		TotalMoney:          snap.TotalMoney,
		AverageBalance:      snap.AverageBalance,
		MedianBalance:       snap.MedianBalance,
		ActiveParticipants:  snap.ActiveParticipants,
		TransactionVolume:   snap.TransactionVolume,
		MarketActivity:      snap.MarketActivity,
		Cycle:               snap.Cycle.String(),
		Health:              snap.Health,
		InflationRate:       snap.InflationRate,
		VelocityOfMoney:     snap.VelocityOfMoney,
		GiniCoefficient:     snap.GiniCoefficient,
		EconomicMomentum:    snap.EconomicMomentum,
		MarketVolatility:    snap.MarketVolatility,
		EconomicStress:      snap.EconomicStress,
		OpportunityIndex:    snap.OpportunityIndex,
		WealthConcentration: snap.WealthConcentration,
	}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to archive snapshot: %w", err)
	}
	return nil
}

func (r *HistoryRepository) ArchiveTransition(ctx context.Context, tr models.CycleTransition) error {
	row := &dbmodels.TransitionRow{
		Timestamp:    tr.Timestamp,
		FromCycle:    tr.From.String(),
		ToCycle:      tr.To.String(),
		Health:       tr.Health,
		Inflation:    tr.Inflation,
		PrevDuration: tr.PrevDuration,
	}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to archive transition: %w", err)
	}
	return nil
}

func (r *HistoryRepository) ArchiveIntervention(ctx context.Context, iv models.Intervention) error {
	row := &dbmodels.InterventionRow{
		Timestamp:     iv.Timestamp,
		Type:          string(iv.Type),
		Magnitude:     iv.Magnitude,
		Details:       iv.Details,
		Effectiveness: iv.Effectiveness,
	}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to archive intervention: %w", err)
	}
	return nil
}

// SnapshotsBetween reads archived snapshots for offline analysis and
// the S3 export job.
func (r *HistoryRepository) SnapshotsBetween(ctx context.Context, start, end time.Time) ([]dbmodels.SnapshotRow, error) {
	var rows []dbmodels.SnapshotRow
	err := r.db.NewSelect().
		Model(&rows).
		Where("timestamp BETWEEN ? AND ?", start, end).
		Order("timestamp ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read archived snapshots: %w", err)
	}
	return rows, nil
}
