package economy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/duskhaven/economy/economy/interfaces"
	"github.com/duskhaven/economy/economy/models"
)

const (
	tickTimeout = 30 * time.Second

	// Market activity below this is considered dormant and triggers
	// stimulation.
	lowActivityThreshold = 0.3
)

// tick is one heartbeat: measure, smooth, evaluate transitions, apply
// corrections, record. It runs only on the scheduler's heartbeat
// goroutine; the in-flight guard downgrades an overlapping invocation
// to a skipped tick rather than a second writer.
func (d *Director) tick(ctx context.Context) error {
	if !d.tickInFlight.CompareAndSwap(false, true) {
		slog.Warn("heartbeat still in flight, skipping tick")
		return nil
	}
	defer d.tickInFlight.Store(false)

	d.policy.AdvanceTick()

	tickCtx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	now := time.Now()

	// Measure. A collaborator failure aborts this tick's effects; the
	// next heartbeat re-evaluates from scratch.
	participants, err := d.ledger.ActiveParticipants(tickCtx)
	if err != nil {
		return fmt.Errorf("sampling ledger: %w", err)
	}
	activity, err := d.market.CurrentActivityLevel(tickCtx)
	if err != nil {
		return fmt.Errorf("sampling market activity: %w", err)
	}

	balances := make([]float64, len(participants))
	for i, p := range participants {
		balances[i] = p.Balance
	}
	st := computeLedgerStats(balances)

	totalMoney, err := d.ledger.TotalMoneySupply(tickCtx)
	if err != nil {
		slog.Warn("money supply query failed, using balance sum", slog.Any("error", err))
		totalMoney = st.total
	}

	volume, txCount := d.drainTickVolume()

	// Smooth the engine state from fresh measurements.
	d.machine.SmoothHealth(freshHealth(st, txCount, activity))
	d.machine.UpdateInflation(math.Min(1, volume/100_000))
	d.machine.SetVelocity(volume / math.Max(1, totalMoney))

	// Capture and record the snapshot.
	snap := models.Capture(now, models.CaptureInput{
		TotalMoney:          totalMoney,
		AverageBalance:      st.average,
		MedianBalance:       st.median,
		ActiveParticipants:  st.activeCount,
		TransactionVolume:   volume,
		MarketActivity:      activity,
		Cycle:               d.machine.Cycle(),
		Health:              d.machine.Health(),
		InflationRate:       d.machine.InflationRate(),
		VelocityOfMoney:     d.machine.VelocityOfMoney(),
		WealthConcentration: st.wealthConcentration,
	})
	d.store.RecordSnapshot(snap)
	d.lastSnapshot.Store(&snap)
	d.archive(func(ctx context.Context, a Archiver) error {
		return a.ArchiveSnapshot(ctx, snap)
	})

	// Evaluate cycle transitions against the cached trends.
	trends := d.store.Trends(now)
	if tr, changed := d.machine.Evaluate(now, trends.Health, trends.Activity); changed {
		d.onCycleChange(tickCtx, tr, st)
	}

	// Corrective interventions.
	d.applyCorrections(tickCtx, snap, st)

	for _, anomaly := range d.store.DetectAnomalies(snap, now) {
		slog.Warn("economic anomaly detected",
			slog.String("type", string(anomaly.Type)),
			slog.Float64("severity", anomaly.Severity),
			slog.String("description", anomaly.Description))
	}

	slog.Debug("heartbeat completed",
		slog.String("cycle", d.machine.Cycle().String()),
		slog.Float64("health", d.machine.Health()),
		slog.Float64("inflation", d.machine.InflationRate()),
		slog.Int("participants", st.activeCount))
	return nil
}

// onCycleChange records the transition, announces it, and runs the
// relief payout when the economy bottoms out.
func (d *Director) onCycleChange(ctx context.Context, tr models.CycleTransition, st ledgerStats) {
	d.store.RecordCycleChange(tr)
	d.archive(func(ctx context.Context, a Archiver) error {
		return a.ArchiveTransition(ctx, tr)
	})

	slog.Info("economic cycle changed",
		slog.String("from", tr.From.String()),
		slog.String("to", tr.To.String()),
		slog.Duration("previous_dwell", tr.PrevDuration))

	d.notify(func(ctx context.Context, n interfaces.Notifier) {
		n.Broadcast(ctx, fmt.Sprintf("The economy has shifted from %s to %s", tr.From, tr.To))
		n.Emit(ctx, interfaces.Event{
			Kind: "cycle_change",
			At:   tr.Timestamp,
			Payload: map[string]any{
				"from":      tr.From.String(),
				"to":        tr.To.String(),
				"health":    tr.Health,
				"inflation": tr.Inflation,
			},
		})
	})

	// Depression relief: the cycle engine's own stimulus path. It uses
	// a different formula from the admin-forced stimulus (a share of
	// the average balance per head rather than a flat per-head amount);
	// both are kept as independent paths on purpose.
	if tr.To == models.CycleDepression {
		d.depressionRelief(ctx, st)
	}
}

func (d *Director) depressionRelief(ctx context.Context, st ledgerStats) {
	perHead := st.average * d.policy.Params().StimulusFactor()
	if perHead <= 0 {
		return
	}

	participants, err := d.ledger.ActiveParticipants(ctx)
	if err != nil {
		slog.Warn("depression relief skipped", slog.Any("error", err))
		return
	}
	var credited int
	for _, p := range participants {
		if err := d.ledger.Credit(ctx, p.ID, perHead, "depression relief"); err != nil {
			slog.Warn("relief credit failed",
				slog.String("participant", p.ID.String()),
				slog.Any("error", err))
			continue
		}
		credited++
	}

	iv := models.NewIntervention(time.Now(), models.InterventionEmergencyStimulus, perHead,
		fmt.Sprintf("depression relief %.2f per participant, %d credited", perHead, credited))
	d.recordIntervention(iv)
}

// applyCorrections runs the automatic policy reactions for this tick.
func (d *Director) applyCorrections(ctx context.Context, snap models.Snapshot, st ledgerStats) {
	health := d.machine.Health()
	inflation := d.machine.InflationRate()

	if health > 0.9 && inflation > 0.04 {
		iv, err := d.policy.ReduceLiquidity(ctx, st.average)
		if err != nil {
			slog.Error("liquidity reduction failed", slog.Any("error", err))
		} else {
			d.recordIntervention(iv)
		}
	}

	if snap.MarketActivity < lowActivityThreshold {
		iv, err := d.policy.StimulateMarket(ctx)
		if err != nil {
			slog.Error("market stimulation failed", slog.Any("error", err))
		} else {
			d.recordIntervention(iv)
		}
	}

	if err := d.policy.ContinuousBias(ctx, health, inflation); err != nil {
		slog.Warn("continuous price bias failed", slog.Any("error", err))
	}
}

// notify dispatches notifications off the heartbeat goroutine so a
// slow sink cannot stall subsequent ticks.
func (d *Director) notify(send func(ctx context.Context, n interfaces.Notifier)) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		send(ctx, d.notifier)
	}()
}
