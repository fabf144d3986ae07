package policy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sahilm/fuzzy"
)

// Config is the [policy] section of the service configuration. Rates
// are fractions (0.005 = 0.5%).
type Config struct {
	WealthTaxRate       float64 `toml:"wealth_tax_rate"`
	WealthTaxThreshold  float64 `toml:"wealth_tax_threshold"`
	StimulusFactor      float64 `toml:"stimulus_factor"`
	CooldownFactor      float64 `toml:"cooldown_factor"`
	InterventionMinutes float64 `toml:"intervention_minutes"`
	BiasMax             float64 `toml:"bias_max"`
}

// DefaultConfig returns the shipped policy defaults.
func DefaultConfig() Config {
	return Config{
		WealthTaxRate:       0.005,
		WealthTaxThreshold:  2.0,
		StimulusFactor:      0.02,
		CooldownFactor:      0.02,
		InterventionMinutes: 10,
		BiasMax:             0.03,
	}
}

type paramBounds struct{ min, max float64 }

var paramTable = map[string]paramBounds{
	"wealth_tax_rate":      {0, 0.05},
	"wealth_tax_threshold": {1, 10},
	"stimulus_factor":      {0, 0.20},
	"cooldown_factor":      {0, 0.20},
	"intervention_minutes": {1, 120},
	"bias_max":             {0, 0.20},
}

// Params holds the live policy parameters. Every write path clamps to
// the bounds above, so a bad config or admin input can narrow but
// never break the engine.
type Params struct {
	mu     sync.RWMutex
	values map[string]float64
}

func NewParams(cfg Config) *Params {
	p := &Params{values: make(map[string]float64, len(paramTable))}
	p.Apply(cfg)
	return p
}

// Apply replaces all parameters from a config section, clamping each.
func (p *Params) Apply(cfg Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values["wealth_tax_rate"] = clampTo("wealth_tax_rate", cfg.WealthTaxRate)
	p.values["wealth_tax_threshold"] = clampTo("wealth_tax_threshold", cfg.WealthTaxThreshold)
	p.values["stimulus_factor"] = clampTo("stimulus_factor", cfg.StimulusFactor)
	p.values["cooldown_factor"] = clampTo("cooldown_factor", cfg.CooldownFactor)
	p.values["intervention_minutes"] = clampTo("intervention_minutes", cfg.InterventionMinutes)
	p.values["bias_max"] = clampTo("bias_max", cfg.BiasMax)
}

func clampTo(name string, v float64) float64 {
	b := paramTable[name]
	if v < b.min {
		return b.min
	}
	if v > b.max {
		return b.max
	}
	return v
}

// Set updates one parameter by name, clamping the value. Unknown names
// are rejected with a fuzzy-matched suggestion where one exists.
func (p *Params) Set(name string, value float64) error {
	if _, ok := paramTable[name]; !ok {
		if suggestion := closestParamName(name); suggestion != "" {
			return fmt.Errorf("unknown policy parameter %q (did you mean %q?)", name, suggestion)
		}
		return fmt.Errorf("unknown policy parameter %q", name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[name] = clampTo(name, value)
	return nil
}

func closestParamName(name string) string {
	names := make([]string, 0, len(paramTable))
	for n := range paramTable {
		names = append(names, n)
	}
	sort.Strings(names)
	matches := fuzzy.Find(name, names)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

// Info returns a copy of the current parameter values. Two calls with
// no intervening Set or Apply return equal maps.
func (p *Params) Info() map[string]float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]float64, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

func (p *Params) get(name string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.values[name]
}

func (p *Params) WealthTaxRate() float64      { return p.get("wealth_tax_rate") }
func (p *Params) WealthTaxThreshold() float64 { return p.get("wealth_tax_threshold") }
func (p *Params) StimulusFactor() float64     { return p.get("stimulus_factor") }
func (p *Params) CooldownFactor() float64     { return p.get("cooldown_factor") }
func (p *Params) BiasMax() float64            { return p.get("bias_max") }
func (p *Params) InterventionMinutes() int    { return int(p.get("intervention_minutes")) }
