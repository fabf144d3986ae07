// Package profile maintains per-participant behavioral aggregates:
// running transaction totals, behavior-pattern tags, a personality
// classification and predictive risk/trust/credit scores.
package profile

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/duskhaven/economy/economy/models"
)

// Personality is the dominant behavioral classification. UNKNOWN until
// at least MinTransactionsForPersonality transactions are recorded.
type Personality string

const (
	PersonalityUnknown        Personality = "UNKNOWN"
	PersonalitySaver          Personality = "SAVER"
	PersonalityTrader         Personality = "TRADER"
	PersonalitySpender        Personality = "SPENDER"
	PersonalityInvestor       Personality = "INVESTOR"
	PersonalitySpeculator     Personality = "SPECULATOR"
	PersonalityHoarder        Personality = "HOARDER"
	PersonalityExploiter      Personality = "EXPLOITER"
	PersonalityPhilanthropist Personality = "PHILANTHROPIST"
)

// BehaviorTag marks a recognized behavior pattern. The tag set is
// replaced wholesale on every metrics update, never accumulated.
type BehaviorTag string

const (
	TagWhale           BehaviorTag = "WHALE"
	TagMicroTrader     BehaviorTag = "MICRO_TRADER"
	TagConsistentSaver BehaviorTag = "CONSISTENT_SAVER"
	TagMarketMaker     BehaviorTag = "MARKET_MAKER"
	TagCatalyst        BehaviorTag = "ECONOMIC_CATALYST"
)

// MinTransactionsForPersonality gates classification; below it the
// sample is too thin to mean anything.
const MinTransactionsForPersonality = 10

// CategoryMarket marks trades against the trading venue; everything
// else counts only toward the general totals.
const CategoryMarket = "market"

// Profile is one participant's behavioral aggregate. Created lazily on
// the first recorded transaction and never deleted. A single logical
// writer mutates it; concurrent readers go through View.
type Profile struct {
	mu sync.RWMutex

	ID        snowflake.ID
	CreatedAt time.Time

	// Running totals.
	TotalVolume      float64
	TransactionCount int
	MarketVolume     float64
	MarketCount      int
	TotalSaved       float64
	InterestEarned   float64
	LoanCount        int

	// Exponential estimate of transaction-size volatility.
	Volatility float64

	// Recomputed on each update.
	AvgTransactionSize float64
	IsMarketMaker      bool
	Tags               []BehaviorTag

	// Recomputed by the profiler pass.
	Personality           Personality
	EconomicContribution  float64
	InflationContribution float64
	VelocityContribution  float64
	ExpectedGrowthRate    float64
	RiskScore             float64
	TrustScore            float64
	CreditScore           int
}

func newProfile(id snowflake.ID, now time.Time) *Profile {
	return &Profile{
		ID:          id,
		CreatedAt:   now,
		Personality: PersonalityUnknown,
		RiskScore:   0.5,
		TrustScore:  0.5,
		CreditScore: 700,
	}
}

// recordTransaction folds one transaction into the running totals and
// the volatility estimate, then refreshes the behavior metrics.
func (p *Profile) recordTransaction(amount float64, category string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	abs := math.Abs(amount)
	p.TotalVolume += abs
	p.TransactionCount++
	if category == CategoryMarket {
		p.MarketVolume += abs
		p.MarketCount++
	}
	if amount > 0 {
		// Money flowing in adds inflationary pressure attributable to
		// this participant.
		p.InflationContribution += amount / 1_000_000
	}
	p.Volatility = models.Clamp(0.9*p.Volatility+0.1*(abs/10_000), 0, 1)

	p.updateBehaviorMetricsLocked()
}

func (p *Profile) recordSavings(delta float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TotalSaved = math.Max(0, p.TotalSaved+delta)
	p.updateBehaviorMetricsLocked()
}

func (p *Profile) recordInterest(amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.InterestEarned += amount
}

func (p *Profile) recordLoan() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LoanCount++
}

// updateBehaviorMetricsLocked recomputes the derived averages, the
// market-maker flag and the tag set. Caller holds p.mu.
func (p *Profile) updateBehaviorMetricsLocked() {
	if p.TransactionCount > 0 {
		p.AvgTransactionSize = p.TotalVolume / float64(p.TransactionCount)
	}
	p.IsMarketMaker = p.MarketCount > 50 && p.MarketVolume > 20*p.AvgTransactionSize

	tags := p.Tags[:0]
	if p.AvgTransactionSize > 10_000 {
		tags = append(tags, TagWhale)
	}
	if p.AvgTransactionSize < 100 && p.TransactionCount > 100 {
		tags = append(tags, TagMicroTrader)
	}
	if p.TotalSaved > 0.5*p.TotalVolume && p.TotalSaved > 0 {
		tags = append(tags, TagConsistentSaver)
	}
	if p.IsMarketMaker {
		tags = append(tags, TagMarketMaker)
	}
	if math.Abs(p.EconomicContribution) > 5_000 {
		tags = append(tags, TagCatalyst)
	}
	p.Tags = tags
}

// recompute runs the expensive derivations: economic impact, the
// personality classification and the predictive scores.
func (p *Profile) recompute(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calculateEconomicImpactLocked()
	p.Personality = p.classifyLocked()
	p.calculateScoresLocked(now)
	p.updateBehaviorMetricsLocked()
}

func (p *Profile) calculateEconomicImpactLocked() {
	p.VelocityContribution = math.Min(2.0, p.TotalVolume/100_000)

	positive := p.MarketVolume*0.1 +
		p.VelocityContribution*1000 +
		p.TotalSaved*0.05
	negative := math.Max(0, p.InflationContribution)*1000 +
		math.Max(0, p.RiskScore-0.5)*500

	p.EconomicContribution = positive - negative
}

// classifyLocked scores the six base personalities from behavior
// ratios and picks the strongest, with the exploiter and
// philanthropist overrides applied last.
func (p *Profile) classifyLocked() Personality {
	if p.TransactionCount < MinTransactionsForPersonality {
		return PersonalityUnknown
	}

	volume := math.Max(1, p.TotalVolume)
	savingsRatio := p.TotalSaved / volume
	marketRatio := p.MarketVolume / volume
	velocityNorm := math.Min(1, p.VelocityContribution/2)

	scores := []struct {
		personality Personality
		score       float64
	}{
		{PersonalitySaver, savingsRatio * 2.0},
		{PersonalityTrader, marketRatio*1.5 + p.Volatility*0.5},
		{PersonalitySpender, math.Max(0, (1-savingsRatio)*1.0-marketRatio*0.5)},
		{PersonalityInvestor, marketRatio*1.0 + savingsRatio*0.8},
		{PersonalitySpeculator, p.Volatility*1.5 + marketRatio*0.8},
		{PersonalityHoarder, savingsRatio*0.8 + (1-velocityNorm)*0.7},
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.score > best.score {
			best = s
		}
	}

	if p.RiskScore > 0.8 && p.TrustScore < 0.3 {
		return PersonalityExploiter
	}
	if p.EconomicContribution > 10_000 {
		return PersonalityPhilanthropist
	}
	return best.personality
}

var growthByPersonality = map[Personality]float64{
	PersonalityInvestor:   0.10,
	PersonalityTrader:     0.05,
	PersonalitySpeculator: 0.15,
	PersonalitySaver:      0.02,
	PersonalitySpender:    -0.05,
	PersonalityHoarder:    0.01,
}

func (p *Profile) calculateScoresLocked(now time.Time) {
	marketRatio := p.MarketVolume / math.Max(1, p.TotalVolume)

	// Risk: weighted blend of volatility, market exposure and loans.
	loanPenalty := math.Min(1, float64(p.LoanCount)/10)
	p.RiskScore = models.Clamp(0.5*p.Volatility+0.3*marketRatio+0.2*loanPenalty, 0, 1)

	// Trust: contribution, behavioral consistency and account age.
	contributionNorm := models.Clamp(p.EconomicContribution/10_000, 0, 1)
	consistency := 1 - p.Volatility
	ageYears := math.Min(1, now.Sub(p.CreatedAt).Hours()/(24*365))
	p.TrustScore = models.Clamp(0.4*contributionNorm+0.3*consistency+0.3*ageYears, 0, 1)

	// Expected growth keyed by personality, nudged by market making
	// and contribution.
	growth := growthByPersonality[p.Personality]
	if p.IsMarketMaker {
		growth += 0.03
	}
	growth += p.EconomicContribution / 100_000
	p.ExpectedGrowthRate = models.Clamp(growth, -0.5, 0.5)

	// Credit: 700 base shifted by trust, risk, contribution, loans and
	// earned interest.
	credit := 700.0
	credit += (p.TrustScore - 0.5) * 200
	credit -= (p.RiskScore - 0.5) * 200
	credit += math.Min(100, p.EconomicContribution/100)
	credit -= 10 * float64(p.LoanCount)
	credit += math.Min(50, p.InterestEarned/100)
	p.CreditScore = int(models.Clamp(credit, 300, 850))
}

// View is a read-only copy of a profile's current state.
type View struct {
	ID                   snowflake.ID
	CreatedAt            time.Time
	TotalVolume          float64
	TransactionCount     int
	MarketVolume         float64
	MarketCount          int
	TotalSaved           float64
	InterestEarned       float64
	LoanCount            int
	AvgTransactionSize   float64
	Volatility           float64
	IsMarketMaker        bool
	Tags                 []BehaviorTag
	Personality          Personality
	EconomicContribution float64
	ExpectedGrowthRate   float64
	RiskScore            float64
	TrustScore           float64
	CreditScore          int
}

// View snapshots the profile under its read lock.
func (p *Profile) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tags := make([]BehaviorTag, len(p.Tags))
	copy(tags, p.Tags)
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	return View{
		ID:                   p.ID,
		CreatedAt:            p.CreatedAt,
		TotalVolume:          p.TotalVolume,
		TransactionCount:     p.TransactionCount,
		MarketVolume:         p.MarketVolume,
		MarketCount:          p.MarketCount,
		TotalSaved:           p.TotalSaved,
		InterestEarned:       p.InterestEarned,
		LoanCount:            p.LoanCount,
		AvgTransactionSize:   p.AvgTransactionSize,
		Volatility:           p.Volatility,
		IsMarketMaker:        p.IsMarketMaker,
		Tags:                 tags,
		Personality:          p.Personality,
		EconomicContribution: p.EconomicContribution,
		ExpectedGrowthRate:   p.ExpectedGrowthRate,
		RiskScore:            p.RiskScore,
		TrustScore:           p.TrustScore,
		CreditScore:          p.CreditScore,
	}
}
