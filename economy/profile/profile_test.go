package profile

import (
	"context"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

var profileEpoch = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func testProfiler(now time.Time) *Profiler {
	pr := NewProfiler()
	pr.now = func() time.Time { return now }
	return pr
}

func TestProfiler_GetUnknownParticipant(t *testing.T) {
	pr := testProfiler(profileEpoch)
	if _, ok := pr.Get(snowflake.ID(42)); ok {
		t.Error("Get() returned a profile nobody created")
	}
	if pr.Count() != 0 {
		t.Errorf("Count() = %d, want 0", pr.Count())
	}
}

func TestProfiler_RunningTotals(t *testing.T) {
	pr := testProfiler(profileEpoch)
	id := snowflake.ID(1)

	pr.RecordTransaction(id, 50, "general")
	pr.RecordTransaction(id, -60, "general")
	pr.RecordTransaction(id, 70, CategoryMarket)

	v, ok := pr.Get(id)
	if !ok {
		t.Fatal("profile missing after recording")
	}
	if v.TotalVolume != 180 {
		t.Errorf("TotalVolume = %v, want 180 (absolute amounts)", v.TotalVolume)
	}
	if v.TransactionCount != 3 {
		t.Errorf("TransactionCount = %d, want 3", v.TransactionCount)
	}
	if v.MarketVolume != 70 || v.MarketCount != 1 {
		t.Errorf("market totals = %v/%d, want 70/1", v.MarketVolume, v.MarketCount)
	}
	if v.AvgTransactionSize != 60 {
		t.Errorf("AvgTransactionSize = %v, want 60", v.AvgTransactionSize)
	}
}

func TestProfile_VolatilityEstimate(t *testing.T) {
	pr := testProfiler(profileEpoch)
	id := snowflake.ID(1)

	pr.RecordTransaction(id, 10_000, "general")
	v, _ := pr.Get(id)
	// 0.9*0 + 0.1*(10000/10000) = 0.1
	if math.Abs(v.Volatility-0.1) > 1e-9 {
		t.Errorf("Volatility = %v, want 0.1", v.Volatility)
	}

	pr.RecordTransaction(id, 10_000, "general")
	v, _ = pr.Get(id)
	if math.Abs(v.Volatility-0.19) > 1e-9 {
		t.Errorf("Volatility = %v, want 0.19", v.Volatility)
	}
}

func TestProfile_PersonalityGate(t *testing.T) {
	pr := testProfiler(profileEpoch)
	id := snowflake.ID(1)

	for i := 0; i < MinTransactionsForPersonality-1; i++ {
		pr.RecordTransaction(id, 100, CategoryMarket)
	}
	if err := pr.RecomputeAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	v, _ := pr.Get(id)
	if v.Personality != PersonalityUnknown {
		t.Errorf("Personality = %v with %d transactions, want UNKNOWN", v.Personality, v.TransactionCount)
	}

	pr.RecordTransaction(id, 100, CategoryMarket)
	if err := pr.RecomputeAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	v, _ = pr.Get(id)
	if v.Personality == PersonalityUnknown {
		t.Error("Personality still UNKNOWN at the transaction threshold")
	}
}

func TestProfile_SaverClassification(t *testing.T) {
	pr := testProfiler(profileEpoch)
	id := snowflake.ID(1)

	for i := 0; i < 20; i++ {
		pr.RecordTransaction(id, 100, "general")
	}
	pr.RecordSavings(id, 5_000) // savings dwarf volume

	if err := pr.RecomputeAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	v, _ := pr.Get(id)
	if v.Personality != PersonalitySaver {
		t.Errorf("Personality = %v, want SAVER", v.Personality)
	}
	if !slices.Contains(v.Tags, TagConsistentSaver) {
		t.Errorf("Tags = %v, want CONSISTENT_SAVER present", v.Tags)
	}
}

func TestProfile_WhaleAndMicroTraderTags(t *testing.T) {
	pr := testProfiler(profileEpoch)
	whale := snowflake.ID(1)
	micro := snowflake.ID(2)

	pr.RecordTransaction(whale, 50_000, "general")
	v, _ := pr.Get(whale)
	if !slices.Contains(v.Tags, TagWhale) {
		t.Errorf("whale Tags = %v, want WHALE", v.Tags)
	}

	for i := 0; i < 150; i++ {
		pr.RecordTransaction(micro, 5, "general")
	}
	v, _ = pr.Get(micro)
	if !slices.Contains(v.Tags, TagMicroTrader) {
		t.Errorf("micro Tags = %v, want MICRO_TRADER", v.Tags)
	}
	if slices.Contains(v.Tags, TagWhale) {
		t.Errorf("micro Tags = %v, WHALE should be absent", v.Tags)
	}
}

func TestProfile_MarketMaker(t *testing.T) {
	pr := testProfiler(profileEpoch)
	id := snowflake.ID(1)

	// 60 market trades of 1,000: count > 50 and market volume 60,000
	// clears 20x the 1,000 average.
	for i := 0; i < 60; i++ {
		pr.RecordTransaction(id, 1_000, CategoryMarket)
	}
	v, _ := pr.Get(id)
	if !v.IsMarketMaker {
		t.Fatal("IsMarketMaker = false, want true")
	}
	if !slices.Contains(v.Tags, TagMarketMaker) {
		t.Errorf("Tags = %v, want MARKET_MAKER", v.Tags)
	}
}

func TestProfile_CreditScoreBounds(t *testing.T) {
	pr := testProfiler(profileEpoch)
	id := snowflake.ID(1)

	// Fresh profile starts at the 700 base.
	pr.RecordTransaction(id, 100, "general")
	v, _ := pr.Get(id)
	if v.CreditScore != 700 {
		t.Errorf("initial CreditScore = %d, want 700", v.CreditScore)
	}

	// Pile on loans; the score must floor at 300, not go below.
	for i := 0; i < 60; i++ {
		pr.RecordLoan(id)
	}
	if err := pr.RecomputeAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	v, _ = pr.Get(id)
	if v.CreditScore < 300 || v.CreditScore > 850 {
		t.Errorf("CreditScore = %d, want within [300, 850]", v.CreditScore)
	}
	if v.CreditScore != 300 {
		t.Errorf("CreditScore = %d after 60 loans, want floored at 300", v.CreditScore)
	}
}

func TestProfile_SavingsFloorAtZero(t *testing.T) {
	pr := testProfiler(profileEpoch)
	id := snowflake.ID(1)

	pr.RecordSavings(id, 100)
	pr.RecordSavings(id, -500)
	v, _ := pr.Get(id)
	if v.TotalSaved != 0 {
		t.Errorf("TotalSaved = %v, want floored at 0", v.TotalSaved)
	}
}

func TestProfiler_RecomputeAllIsolatesProfiles(t *testing.T) {
	pr := testProfiler(profileEpoch)
	for i := 1; i <= 25; i++ {
		id := snowflake.ID(i)
		for j := 0; j < 12; j++ {
			pr.RecordTransaction(id, float64(100*i), CategoryMarket)
		}
	}
	if err := pr.RecomputeAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if pr.Count() != 25 {
		t.Fatalf("Count() = %d, want 25", pr.Count())
	}
	for i := 1; i <= 25; i++ {
		v, ok := pr.Get(snowflake.ID(i))
		if !ok {
			t.Fatalf("profile %d missing", i)
		}
		if v.Personality == PersonalityUnknown {
			t.Errorf("profile %d not classified", i)
		}
	}
}

func TestProfile_ViewTagsAreACopy(t *testing.T) {
	pr := testProfiler(profileEpoch)
	id := snowflake.ID(1)
	pr.RecordTransaction(id, 50_000, "general")

	v, _ := pr.Get(id)
	if len(v.Tags) == 0 {
		t.Fatal("expected at least one tag")
	}
	v.Tags[0] = "MUTATED"

	again, _ := pr.Get(id)
	if again.Tags[0] == "MUTATED" {
		t.Error("mutating a View leaked into the profile")
	}
}
