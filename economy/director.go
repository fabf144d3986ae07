// Package economy hosts the economy director: the closed-loop
// controller that samples the shared economy, classifies its cycle,
// detects anomalies, forecasts near-term conditions, profiles
// participants and applies corrective interventions.
package economy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/duskhaven/economy/economy/interfaces"
	"github.com/duskhaven/economy/economy/memory"
	"github.com/duskhaven/economy/economy/models"
	"github.com/duskhaven/economy/economy/policy"
	"github.com/duskhaven/economy/economy/profile"
)

// Archiver is an optional durable sink for history records. The
// director runs fully in memory when it is nil; bounded buffers are
// then the only history, which is a known limitation.
type Archiver interface {
	ArchiveSnapshot(ctx context.Context, snap models.Snapshot) error
	ArchiveTransition(ctx context.Context, tr models.CycleTransition) error
	ArchiveIntervention(ctx context.Context, iv models.Intervention) error
}

// SnapshotExporter mirrors the in-memory snapshot window to object
// storage for offline analysis.
type SnapshotExporter interface {
	ExportSnapshots(ctx context.Context, snapshots []models.Snapshot) error
}

// Deps bundles the external collaborators the director drives.
type Deps struct {
	Ledger   interfaces.Ledger
	Market   interfaces.Market
	Notifier interfaces.Notifier
	Archiver Archiver
}

// Director wires the cycle machine, memory store, policy engine and
// profiler together, owns the periodic loops and exposes the
// administrative API.
type Director struct {
	cfg        Config
	configPath string
	cfgMu      sync.Mutex

	machine  *CycleMachine
	store    *memory.Store
	policy   *policy.Engine
	profiler *profile.Profiler

	ledger   interfaces.Ledger
	market   interfaces.Market
	notifier interfaces.Notifier
	archiver Archiver
	exporter SnapshotExporter

	sched        *scheduler
	active       atomic.Bool
	tickInFlight atomic.Bool

	// Transaction volume accumulated since the last heartbeat.
	tickMu     sync.Mutex
	tickVolume float64
	tickCount  int

	lastSnapshot atomic.Pointer[models.Snapshot]
}

func NewDirector(cfg Config, configPath string, deps Deps) *Director {
	params := policy.NewParams(cfg.Policy)
	return &Director{
		cfg:        cfg,
		configPath: configPath,
		machine:    NewCycleMachine(models.CycleStable, cfg.Director.StartingHealth, time.Now()),
		store:      memory.NewStore(),
		policy:     policy.NewEngine(params, deps.Ledger, deps.Market, deps.Notifier),
		profiler:   profile.NewProfiler(),
		ledger:     deps.Ledger,
		market:     deps.Market,
		notifier:   deps.Notifier,
		archiver:   deps.Archiver,
		sched:      newScheduler(),
	}
}

// Start launches the heartbeat and the coarser profile pass.
func (d *Director) Start() {
	if !d.active.CompareAndSwap(false, true) {
		return
	}

	heartbeat := time.Duration(d.cfg.Director.HeartbeatMinutes) * time.Minute
	profilePass := time.Duration(d.cfg.Director.ProfilePassMinutes) * time.Minute

	d.sched.runEvery("heartbeat", heartbeat, d.tick)
	d.sched.runEvery("profile-pass", profilePass, d.profiler.RecomputeAll)
	if d.exporter != nil {
		d.sched.runEvery("snapshot-export", 6*time.Hour, d.exportSnapshots)
	}

	slog.Info("economy director started",
		slog.Duration("heartbeat", heartbeat),
		slog.Duration("profile_pass", profilePass))
}

// Stop halts both loops, waits for in-flight ticks to drain and
// cancels any pending bias revert. In-memory history is discarded;
// only archived records survive a restart.
func (d *Director) Stop() {
	if !d.active.CompareAndSwap(true, false) {
		return
	}
	d.sched.stop()
	d.policy.Close()
	slog.Info("economy director stopped")
}

func (d *Director) IsActive() bool { return d.active.Load() }

// Read API. These are lock-free loads of the latest committed state.

func (d *Director) CurrentCycle() models.Cycle { return d.machine.Cycle() }
func (d *Director) EconomicHealth() float64    { return d.machine.Health() }
func (d *Director) InflationRate() float64     { return d.machine.InflationRate() }
func (d *Director) VelocityOfMoney() float64   { return d.machine.VelocityOfMoney() }

func (d *Director) CurrentSnapshot() (models.Snapshot, bool) {
	if snap := d.lastSnapshot.Load(); snap != nil {
		return *snap, true
	}
	return models.Snapshot{}, false
}

func (d *Director) PlayerProfile(id snowflake.ID) (profile.View, bool) {
	return d.profiler.Get(id)
}

// Profiler exposes the participant profiler for bulk feeders such as
// the legacy import.
func (d *Director) Profiler() *profile.Profiler { return d.profiler }

// Forecast returns the near-term projection; ok is false before the
// first snapshot exists.
func (d *Director) Forecast() (models.Forecast, bool) {
	snap, ok := d.CurrentSnapshot()
	if !ok {
		return models.Forecast{}, false
	}
	return d.store.Forecast(snap, time.Now()), true
}

func (d *Director) DetectAnomalies() []models.Anomaly {
	snap, ok := d.CurrentSnapshot()
	if !ok {
		return nil
	}
	return d.store.DetectAnomalies(snap, time.Now())
}

func (d *Director) PredictNextCycle() models.Cycle {
	snap, ok := d.CurrentSnapshot()
	if !ok {
		return d.CurrentCycle()
	}
	return d.store.PredictNextCycle(snap)
}

func (d *Director) TransitionPatterns() []models.Pattern {
	return d.store.TransitionPatterns()
}

func (d *Director) InterventionEffectiveness(typ models.InterventionType) float64 {
	return d.store.InterventionEffectiveness(typ)
}

func (d *Director) RecommendedInterestRate() float64 {
	return d.policy.RecommendedInterestRate(d.machine.Health())
}

// RecordPlayerTransaction feeds one participant transaction into the
// profiler and the heartbeat's volume accumulator.
func (d *Director) RecordPlayerTransaction(id snowflake.ID, amount float64, category string) {
	d.profiler.RecordTransaction(id, amount, category)

	d.tickMu.Lock()
	if amount < 0 {
		d.tickVolume -= amount
	} else {
		d.tickVolume += amount
	}
	d.tickCount++
	d.tickMu.Unlock()
}

func (d *Director) RecordPlayerSavings(id snowflake.ID, delta float64) {
	d.profiler.RecordSavings(id, delta)
}

func (d *Director) RecordPlayerInterest(id snowflake.ID, amount float64) {
	d.profiler.RecordInterest(id, amount)
}

func (d *Director) RecordPlayerLoan(id snowflake.ID) {
	d.profiler.RecordLoan(id)
}

// drainTickVolume swaps out the accumulated volume for this heartbeat.
func (d *Director) drainTickVolume() (volume float64, count int) {
	d.tickMu.Lock()
	defer d.tickMu.Unlock()
	volume, count = d.tickVolume, d.tickCount
	d.tickVolume, d.tickCount = 0, 0
	return volume, count
}

// ForceIntervention executes an admin-requested intervention and
// records it.
func (d *Director) ForceIntervention(ctx context.Context, typ models.InterventionType, magnitude float64) (models.Intervention, error) {
	var iv models.Intervention
	var err error

	switch typ {
	case models.InterventionEmergencyStimulus:
		iv, err = d.policy.EmergencyStimulus(ctx, magnitude)
	case models.InterventionMonetaryEasing:
		iv, err = d.policy.MonetaryEasing(ctx, magnitude)
	case models.InterventionMonetaryTightening:
		iv, err = d.policy.MonetaryTightening(ctx, magnitude)
	case models.InterventionMarketStimulation:
		iv, err = d.policy.StimulateMarket(ctx)
	case models.InterventionWealthRedistribution:
		iv, err = d.policy.WealthRedistribution(ctx, magnitude)
	case models.InterventionNone:
		return models.NewIntervention(time.Now(), models.InterventionNone, 0, "no-op"), nil
	default:
		return models.Intervention{}, fmt.Errorf("unknown intervention type %q", typ)
	}
	if err != nil {
		return models.Intervention{}, err
	}

	d.recordIntervention(iv)
	return iv, nil
}

func (d *Director) recordIntervention(iv models.Intervention) {
	d.store.RecordIntervention(iv)
	d.archive(func(ctx context.Context, a Archiver) error {
		return a.ArchiveIntervention(ctx, iv)
	})
}

// archive dispatches a durable write without blocking the caller.
func (d *Director) archive(write func(ctx context.Context, a Archiver) error) {
	if d.archiver == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := write(ctx, d.archiver); err != nil {
			slog.Warn("history archive write failed", slog.Any("error", err))
		}
	}()
}

// SetExporter enables the periodic snapshot export. Call before Start.
func (d *Director) SetExporter(e SnapshotExporter) { d.exporter = e }

// exportSnapshots mirrors the current snapshot window to the exporter.
func (d *Director) exportSnapshots(ctx context.Context) error {
	snaps := d.store.Snapshots()
	if len(snaps) == 0 {
		return nil
	}
	return d.exporter.ExportSnapshots(ctx, snaps)
}

// PolicyInfo returns the current policy parameter values.
func (d *Director) PolicyInfo() map[string]float64 {
	return d.policy.Params().Info()
}

// SetPolicyParam updates one named policy parameter at runtime.
func (d *Director) SetPolicyParam(name string, value float64) error {
	return d.policy.Params().Set(name, value)
}

// ReloadPolicy re-reads the configuration file and re-applies the
// policy section. A parse failure keeps the last-known-good values.
func (d *Director) ReloadPolicy() error {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()

	cfg, err := LoadConfig(d.configPath)
	if err != nil {
		slog.Error("policy reload failed, keeping current parameters", slog.Any("error", err))
		return fmt.Errorf("reload policy: %w", err)
	}
	d.cfg.Policy = cfg.Policy
	d.policy.Params().Apply(cfg.Policy)
	slog.Info("policy parameters reloaded", slog.String("path", d.configPath))
	return nil
}
