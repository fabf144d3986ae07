package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"

	"github.com/duskhaven/economy/database/models"
	"github.com/duskhaven/economy/economy/interfaces"
)

// activeWindow bounds who counts as an active participant for taxes,
// stimulus and population statistics.
const activeWindow = 30 * 24 * time.Hour

// LedgerRepository is the Postgres implementation of the ledger
// collaborator.
type LedgerRepository struct {
	db *bun.DB
}

func NewLedgerRepository(db *bun.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

var _ interfaces.Ledger = (*LedgerRepository)(nil)

func (r *LedgerRepository) BalanceOf(ctx context.Context, id snowflake.ID) (float64, error) {
	participant := new(models.Participant)
	err := r.db.NewSelect().
		Model(participant).
		Where("id = ?", int64(id)).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance for %s: %w", id, err)
	}
	return participant.Balance, nil
}

func (r *LedgerRepository) Credit(ctx context.Context, id snowflake.ID, amount float64, reason string) error {
	if amount < 0 {
		return fmt.Errorf("credit amount must be non-negative, got %f", amount)
	}
	_, err := r.creditQuery(id, amount).Exec(ctx)
	if err != nil {
		return fmt.Errorf("credit %s (%s): %w", id, reason, err)
	}
	return nil
}

// creditQuery upserts a balance increment. The conflict branch also
// refreshes last_active so a payout keeps a dormant participant
// inside the activity window.
func (r *LedgerRepository) creditQuery(id snowflake.ID, amount float64) *bun.InsertQuery {
	return r.db.NewInsert().
		Model(&models.Participant{
			ID:         int64(id),
			Balance:    amount,
			LastActive: time.Now(),
		}).
		On("CONFLICT (id) DO UPDATE").
		Set("balance = p.balance + EXCLUDED.balance").
		Set("last_active = EXCLUDED.last_active")
}

func (r *LedgerRepository) Debit(ctx context.Context, id snowflake.ID, amount float64, reason string) error {
	if amount < 0 {
		return fmt.Errorf("debit amount must be non-negative, got %f", amount)
	}
	res, err := r.db.NewUpdate().
		Model((*models.Participant)(nil)).
		Set("balance = balance - ?", amount).
		Where("id = ?", int64(id)).
		Where("balance >= ?", amount).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("debit %s (%s): %w", id, reason, err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("debit %s (%s): insufficient balance", id, reason)
	}
	return nil
}

// TotalMoneySupply is a real aggregate over the ledger, not the
// estimate earlier revisions used.
func (r *LedgerRepository) TotalMoneySupply(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	err := r.db.NewSelect().
		Model((*models.Participant)(nil)).
		ColumnExpr("COALESCE(SUM(balance), 0)").
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum money supply: %w", err)
	}
	return total.Float64, nil
}

func (r *LedgerRepository) ActiveParticipants(ctx context.Context) ([]interfaces.ParticipantBalance, error) {
	var rows []models.Participant
	err := r.db.NewSelect().
		Model(&rows).
		Where("last_active > ?", time.Now().Add(-activeWindow)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active participants: %w", err)
	}

	out := make([]interfaces.ParticipantBalance, len(rows))
	for i, row := range rows {
		out[i] = interfaces.ParticipantBalance{
			ID:      snowflake.ID(row.ID),
			Balance: row.Balance,
		}
	}
	return out, nil
}

// Touch refreshes a participant's activity timestamp, creating the
// account on first contact.
func (r *LedgerRepository) Touch(ctx context.Context, id snowflake.ID) error {
	_, err := r.db.NewInsert().
		Model(&models.Participant{
			ID:         int64(id),
			LastActive: time.Now(),
		}).
		On("CONFLICT (id) DO UPDATE").
		Set("last_active = EXCLUDED.last_active").
		Exec(ctx)
	return err
}
