// Package policy decides and executes corrective interventions:
// wealth taxation, timed and continuous price bias, stimulus payouts.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/duskhaven/economy/economy/interfaces"
	"github.com/duskhaven/economy/economy/models"
)

// Engine applies interventions through the ledger and market
// collaborators. It owns the pending revert timer for timed price
// bias: scheduling a new timed bias cancels any revert still in
// flight, so the revert to neutral factors runs exactly once.
type Engine struct {
	params   *Params
	ledger   interfaces.Ledger
	market   interfaces.Market
	notifier interfaces.Notifier

	mu            sync.Mutex
	pendingRevert *time.Timer
	tickSeq       uint64
	taxedSeq      uint64
	taxedOnce     bool

	// Swapped in tests to control timing.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

func NewEngine(params *Params, ledger interfaces.Ledger, market interfaces.Market, notifier interfaces.Notifier) *Engine {
	return &Engine{
		params:    params,
		ledger:    ledger,
		market:    market,
		notifier:  notifier,
		afterFunc: time.AfterFunc,
	}
}

// Params exposes the live parameter set for the admin surface.
func (e *Engine) Params() *Params { return e.params }

// AdvanceTick opens a new application window. The wealth tax applies
// at most once per window, so repeated calls between heartbeats cannot
// compound.
func (e *Engine) AdvanceTick() {
	e.mu.Lock()
	e.tickSeq++
	e.mu.Unlock()
}

// ReduceLiquidity cools an overheating economy: a flat-rate wealth tax
// on every balance above averageBalance × threshold multiplier, plus an
// unfavorable timed price bias. Each balance is taxed exactly once per
// application window; a repeat call before the next AdvanceTick is a
// recorded no-op.
func (e *Engine) ReduceLiquidity(ctx context.Context, averageBalance float64) (models.Intervention, error) {
	e.mu.Lock()
	if e.taxedOnce && e.taxedSeq == e.tickSeq {
		e.mu.Unlock()
		slog.Info("wealth tax already applied this window, skipping")
		return models.NewIntervention(time.Now(), models.InterventionMonetaryTightening, 0,
			"wealth tax skipped, already applied this window"), nil
	}
	e.taxedOnce = true
	e.taxedSeq = e.tickSeq
	e.mu.Unlock()

	rate := e.params.WealthTaxRate()
	threshold := averageBalance * e.params.WealthTaxThreshold()

	participants, err := e.ledger.ActiveParticipants(ctx)
	if err != nil {
		return models.Intervention{}, fmt.Errorf("wealth tax: listing participants: %w", err)
	}

	var taxed int
	var collected float64
	for _, p := range participants {
		if p.Balance <= threshold {
			continue
		}
		tax := p.Balance * rate
		if err := e.ledger.Debit(ctx, p.ID, tax, "wealth tax"); err != nil {
			slog.Warn("wealth tax debit failed",
				slog.String("participant", p.ID.String()),
				slog.Any("error", err))
			continue
		}
		taxed++
		collected += tax
	}

	cooldown := e.params.CooldownFactor()
	if err := e.applyTimedBias(ctx, 1+cooldown, 1-cooldown); err != nil {
		slog.Warn("cooldown bias failed", slog.Any("error", err))
	}

	e.notifier.Emit(ctx, interfaces.Event{
		Kind: "tax_applied",
		At:   time.Now(),
		Payload: map[string]any{
			"rate":      rate,
			"threshold": threshold,
			"taxed":     taxed,
			"collected": collected,
		},
	})

	return models.NewIntervention(time.Now(), models.InterventionMonetaryTightening, collected,
		fmt.Sprintf("wealth tax %.2f%% above %.0f on %d participants", rate*100, threshold, taxed)), nil
}

// StimulateMarket applies a favorable timed price bias when market
// activity has gone quiet.
func (e *Engine) StimulateMarket(ctx context.Context) (models.Intervention, error) {
	stimulus := e.params.StimulusFactor()
	if err := e.applyTimedBias(ctx, 1-stimulus, 1+stimulus); err != nil {
		return models.Intervention{}, fmt.Errorf("stimulus bias: %w", err)
	}
	return models.NewIntervention(time.Now(), models.InterventionMarketStimulation, stimulus,
		fmt.Sprintf("favorable price bias %.1f%% for %d minutes", stimulus*100, e.params.InterventionMinutes())), nil
}

// applyTimedBias multiplies the venue's current factors and schedules
// a revert to neutral. A pending revert is cancelled first so only the
// newest schedule ever fires.
func (e *Engine) applyTimedBias(ctx context.Context, buyMul, sellMul float64) error {
	buy, sell, err := e.market.GetGlobalPriceFactors(ctx)
	if err != nil {
		return err
	}
	if err := e.market.SetGlobalPriceFactors(ctx, buy*buyMul, sell*sellMul); err != nil {
		return err
	}

	duration := time.Duration(e.params.InterventionMinutes()) * time.Minute

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pendingRevert != nil {
		e.pendingRevert.Stop()
	}
	e.pendingRevert = e.afterFunc(duration, func() {
		revertCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.market.SetGlobalPriceFactors(revertCtx, 1.0, 1.0); err != nil {
			slog.Error("price bias revert failed", slog.Any("error", err))
		}
	})
	return nil
}

// RecommendedInterestRate derives the advisory rate from current
// health. Nothing consumes this yet; the savings subsystem is expected
// to poll it eventually.
func (e *Engine) RecommendedInterestRate(health float64) float64 {
	return models.Clamp(0.01+(0.5-health)*0.02, 0, 0.05)
}

// ContinuousBias applies the small per-tick price bias derived from
// inflation and health.
func (e *Engine) ContinuousBias(ctx context.Context, health, inflation float64) error {
	biasMax := e.params.BiasMax()
	buy := 1 + models.Clamp(inflation*0.5-(health-0.5)*0.02, -biasMax, biasMax)
	sell := 1 + models.Clamp(-inflation*0.5+(health-0.5)*0.02, -biasMax, biasMax)
	return e.market.SetGlobalPriceFactors(ctx, buy, sell)
}

// EmergencyStimulus credits magnitude × 1000 to every active
// participant (the administrative formula: magnitude × N × 1000 in
// total, spread evenly).
func (e *Engine) EmergencyStimulus(ctx context.Context, magnitude float64) (models.Intervention, error) {
	participants, err := e.ledger.ActiveParticipants(ctx)
	if err != nil {
		return models.Intervention{}, fmt.Errorf("emergency stimulus: listing participants: %w", err)
	}
	perParticipant := magnitude * 1000
	var credited int
	for _, p := range participants {
		if err := e.ledger.Credit(ctx, p.ID, perParticipant, "emergency stimulus"); err != nil {
			slog.Warn("stimulus credit failed",
				slog.String("participant", p.ID.String()),
				slog.Any("error", err))
			continue
		}
		credited++
	}
	e.notifier.Broadcast(ctx, fmt.Sprintf("Emergency stimulus: %.0f paid to %d participants", perParticipant, credited))
	return models.NewIntervention(time.Now(), models.InterventionEmergencyStimulus, magnitude,
		fmt.Sprintf("%.0f per participant, %d credited", perParticipant, credited)), nil
}

// Declared interventions with no numeric effect yet. They are recorded
// with logged intent so the history and effectiveness queries see them,
// but no balances or factors move until a concrete policy is specified.
func (e *Engine) MonetaryEasing(ctx context.Context, magnitude float64) (models.Intervention, error) {
	slog.Info("monetary easing requested, no concrete policy defined", slog.Float64("magnitude", magnitude))
	return models.NewIntervention(time.Now(), models.InterventionMonetaryEasing, magnitude, "declared only, no effect"), nil
}

func (e *Engine) MonetaryTightening(ctx context.Context, magnitude float64) (models.Intervention, error) {
	slog.Info("monetary tightening requested, no concrete policy defined", slog.Float64("magnitude", magnitude))
	return models.NewIntervention(time.Now(), models.InterventionMonetaryTightening, magnitude, "declared only, no effect"), nil
}

func (e *Engine) WealthRedistribution(ctx context.Context, magnitude float64) (models.Intervention, error) {
	slog.Info("wealth redistribution requested, no concrete policy defined", slog.Float64("magnitude", magnitude))
	return models.NewIntervention(time.Now(), models.InterventionWealthRedistribution, magnitude, "declared only, no effect"), nil
}

// Close cancels any pending bias revert.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pendingRevert != nil {
		e.pendingRevert.Stop()
		e.pendingRevert = nil
	}
}
