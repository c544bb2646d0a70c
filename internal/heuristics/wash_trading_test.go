package heuristics

import (
	"testing"

	"github.com/rawblock/txrisk-engine/pkg/models"
)

func hasWashPattern(r models.WashTradingResult, t models.WashPatternType) *models.WashPattern {
	for i := range r.Patterns {
		if r.Patterns[i].Type == t {
			return &r.Patterns[i]
		}
	}
	return nil
}

func TestDetectWashTrading_MinimumGuard(t *testing.T) {
	cfg := DefaultThresholds()
	txs := uniformHistory(3, dayBase, 60, "1.0", "20")

	result := DetectWashTrading(cfg, txs)

	if result.Detected {
		t.Error("below-minimum history must not detect")
	}
	if result.Reason == "" {
		t.Error("below-minimum result must carry a reason")
	}
	if result.RiskScore != 0 || result.Confidence != 0 {
		t.Errorf("below-minimum result must be zeroed, got score %v conf %v", result.RiskScore, result.Confidence)
	}
}

func TestDetectWashTrading_RapidReversal(t *testing.T) {
	cfg := DefaultThresholds()

	// Classic ping-pong: 1.000 → 1.001 → 0.999 inside 90 seconds, plus one
	// unrelated transaction far outside every window.
	txs := []models.TransactionRecord{
		makeTx("0xw1", dayBase, "1.000", "20"),
		makeTx("0xw2", dayBase+60, "1.001", "20"),
		makeTx("0xw3", dayBase+90, "0.999", "20"),
		makeTx("0xfar", dayBase+200000, "5.0", "20"),
	}

	result := DetectWashTrading(cfg, txs)

	if !result.Detected {
		t.Fatal("near-identical reversal inside the window must detect")
	}
	rr := hasWashPattern(result, models.WashRapidReversal)
	if rr == nil {
		t.Fatal("expected a RAPID_REVERSAL pattern")
	}
	if rr.Confidence < 85 {
		t.Errorf("reversal confidence = %v, want >= 85 for ~0.999 similarity", rr.Confidence)
	}
	if len(rr.Transactions) != 3 {
		t.Errorf("reversal names its triple, got %v", rr.Transactions)
	}
	if len(result.SuspiciousPairs) < 2 {
		t.Errorf("the three legs form multiple suspicious pairs, got %d", len(result.SuspiciousPairs))
	}
	if result.RiskScore <= cfg.WashDetectScore {
		t.Errorf("risk score = %v, want above %v", result.RiskScore, cfg.WashDetectScore)
	}
}

func TestDetectWashTrading_AmountMatching(t *testing.T) {
	cfg := DefaultThresholds()

	// Three transactions of exactly 2.5 ETH inside 30 minutes, separated by
	// dissimilar values that break reversal triples and chains.
	txs := []models.TransactionRecord{
		makeTx("0xm1", dayBase, "2.5", "20"),
		makeTx("0xn1", dayBase+400, "40.0", "20"),
		makeTx("0xm2", dayBase+800, "2.5", "20"),
		makeTx("0xn2", dayBase+1200, "55.0", "20"),
		makeTx("0xm3", dayBase+1600, "2.5", "20"),
	}

	result := DetectWashTrading(cfg, txs)

	am := hasWashPattern(result, models.WashAmountMatching)
	if am == nil {
		t.Fatal("expected an AMOUNT_MATCHING pattern")
	}
	if len(am.Transactions) != 3 {
		t.Errorf("the matched group has 3 members, got %d", len(am.Transactions))
	}
}

func TestDetectWashTrading_DustIgnored(t *testing.T) {
	cfg := DefaultThresholds()

	// Repeated dust amounts must not form pairs or matching groups.
	txs := []models.TransactionRecord{
		makeTx("0xd1", dayBase, "0.005", "20"),
		makeTx("0xd2", dayBase+60, "0.005", "20"),
		makeTx("0xd3", dayBase+120, "0.005", "20"),
		makeTx("0xd4", dayBase+180, "0.005", "20"),
	}

	result := DetectWashTrading(cfg, txs)

	if hasWashPattern(result, models.WashAmountMatching) != nil {
		t.Error("dust amounts must not form matching groups")
	}
	if len(result.SuspiciousPairs) != 0 {
		t.Errorf("dust amounts must not form pairs, got %d", len(result.SuspiciousPairs))
	}
}

func TestDetectWashTrading_OrganicHistoryClean(t *testing.T) {
	cfg := DefaultThresholds()

	// Varied amounts hours apart: nothing to find.
	txs := []models.TransactionRecord{
		makeTx("0xo1", dayBase, "0.5", "18"),
		makeTx("0xo2", dayBase+2*3600, "1.7", "25"),
		makeTx("0xo3", dayBase+5*3600, "0.03", "31"),
		makeTx("0xo4", dayBase+9*3600, "2.9", "22"),
		makeTx("0xo5", dayBase+14*3600, "0.8", "40"),
		makeTx("0xo6", dayBase+20*3600, "4.1", "19"),
	}

	result := DetectWashTrading(cfg, txs)

	if result.Detected {
		t.Error("organic history must not detect")
	}
	if len(result.Patterns) != 0 || len(result.SuspiciousPairs) != 0 || len(result.Chains) != 0 {
		t.Errorf("organic history must be signal-free: %d patterns, %d pairs, %d chains",
			len(result.Patterns), len(result.SuspiciousPairs), len(result.Chains))
	}
	if result.RiskScore != 0 {
		t.Errorf("risk score = %v, want 0", result.RiskScore)
	}
}

func TestDetectWashTrading_PairsSortedAndCapped(t *testing.T) {
	cfg := DefaultThresholds()
	cfg.MaxPairs = 3

	// Six near-identical amounts in tight succession generate many pairs;
	// only the top 3 survive, best first.
	txs := []models.TransactionRecord{
		makeTx("0xp1", dayBase, "3.000", "20"),
		makeTx("0xp2", dayBase+30, "3.001", "20"),
		makeTx("0xp3", dayBase+60, "2.999", "20"),
		makeTx("0xp4", dayBase+90, "3.002", "20"),
		makeTx("0xp5", dayBase+120, "3.000", "20"),
		makeTx("0xp6", dayBase+150, "2.998", "20"),
	}

	result := DetectWashTrading(cfg, txs)

	if len(result.SuspiciousPairs) != 3 {
		t.Fatalf("expected the pair list capped at 3, got %d", len(result.SuspiciousPairs))
	}
	for i := 1; i < len(result.SuspiciousPairs); i++ {
		if result.SuspiciousPairs[i].SuspicionScore > result.SuspiciousPairs[i-1].SuspicionScore {
			t.Fatal("pairs must be ordered best first")
		}
	}
}

func TestDetectWashTrading_AddressReversalBonus(t *testing.T) {
	cfg := DefaultThresholds()

	base := []models.TransactionRecord{
		makeTx("0xr1", dayBase, "2.0", "20"),
		makeTx("0xr2", dayBase+600, "2.0", "20"),
		makeTx("0xfarA", dayBase+50000, "9.0", "20"),
		makeTx("0xfarB", dayBase+90000, "17.0", "20"),
	}

	plain := DetectWashTrading(cfg, base)

	reversed := make([]models.TransactionRecord, len(base))
	copy(reversed, base)
	reversed[1].From, reversed[1].To = base[1].To, base[1].From
	withBonus := DetectWashTrading(cfg, reversed)

	if len(plain.SuspiciousPairs) != 1 || len(withBonus.SuspiciousPairs) != 1 {
		t.Fatalf("expected one pair in both runs, got %d and %d",
			len(plain.SuspiciousPairs), len(withBonus.SuspiciousPairs))
	}
	if !withBonus.SuspiciousPairs[0].AddressReversal {
		t.Error("swapped to/from must mark the pair as reversed")
	}
	if withBonus.SuspiciousPairs[0].SuspicionScore <= plain.SuspiciousPairs[0].SuspicionScore {
		t.Error("address reversal must raise the pair score")
	}
}
