package economy

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/duskhaven/economy/economy/models"
)

// wealthyMultiple marks a balance as "wealthy" relative to the mean;
// feeds the concentration share.
const wealthyMultiple = 5.0

// ledgerStats is the per-tick digest of the ledger's balance
// distribution.
type ledgerStats struct {
	total               float64
	average             float64
	median              float64
	activeCount         int
	gini                float64
	wealthConcentration float64
}

func computeLedgerStats(balances []float64) ledgerStats {
	st := ledgerStats{activeCount: len(balances)}
	if len(balances) == 0 {
		return st
	}

	cleaned := make([]float64, len(balances))
	for i, b := range balances {
		cleaned[i] = math.Max(0, b)
		st.total += cleaned[i]
	}
	st.average = st.total / float64(len(cleaned))

	if median, err := stats.Median(cleaned); err == nil {
		st.median = median
	}

	st.gini = giniCoefficient(cleaned)

	var wealthy int
	for _, b := range cleaned {
		if b > st.average*wealthyMultiple {
			wealthy++
		}
	}
	st.wealthConcentration = float64(wealthy) / float64(len(cleaned))
	return st
}

// giniCoefficient computes wealth inequality over the balance list in
// O(n log n) using the sorted-rank form.
func giniCoefficient(balances []float64) float64 {
	if len(balances) == 0 {
		return 0
	}

	sorted := make([]float64, len(balances))
	copy(sorted, balances)
	sort.Float64s(sorted)

	var totalSum float64
	for _, b := range sorted {
		totalSum += b
	}
	if totalSum == 0 {
		return 0
	}

	n := float64(len(sorted))
	var numerator float64
	for i, b := range sorted {
		numerator += (2*float64(i) + 1 - n) * b
	}
	return numerator / (n * totalSum)
}

// freshHealth computes this tick's raw health score from the current
// measurements. It must be derived from fresh inputs every tick; the
// cycle machine does the smoothing against the previous value.
func freshHealth(st ledgerStats, txCount int, marketActivity float64) float64 {
	// Balance distribution: equality and dispersion of wealth.
	balanceScore := (1-st.gini)*0.7 + (1-st.wealthConcentration)*0.3

	// Transaction health: throughput per active participant, saturating
	// at five transactions per head per tick window.
	perHead := float64(txCount) / math.Max(1, float64(st.activeCount))
	txScore := math.Min(1, perHead/5)

	// Market health: activity level tempered by how far it sits from
	// the stable midpoint.
	volatility := math.Abs(marketActivity-0.5) * 2
	marketScore := 0.6*marketActivity + 0.4*(1-volatility)

	return models.Clamp(0.4*balanceScore+0.3*txScore+0.3*marketScore, 0, 1)
}
