package heuristics

import (
	"testing"

	"github.com/rawblock/txrisk-engine/pkg/models"
)

func hasCoordPattern(r models.CoordinationResult, t models.CoordinationPatternType) bool {
	for _, p := range r.Patterns {
		if p.Type == t {
			return true
		}
	}
	return false
}

func TestDetectCoordinatedActivity_MinimumGuard(t *testing.T) {
	cfg := DefaultThresholds()
	txs := uniformHistory(2, dayBase, 60, "1.0", "20")

	result := DetectCoordinatedActivity(cfg, txs)

	if result.Detected {
		t.Error("below-minimum history must not detect")
	}
	if result.Reason == "" {
		t.Error("below-minimum result must carry a reason")
	}
}

func TestDetectCoordinatedActivity_ScriptedDistribution(t *testing.T) {
	cfg := DefaultThresholds()

	// Six transactions 30 seconds apart, identical gas, identical round
	// amounts: the residue of a scripted multi-account distribution.
	txs := uniformHistory(6, dayBase, 30, "1.0", "25")

	result := DetectCoordinatedActivity(cfg, txs)

	if !result.Detected {
		t.Fatal("a fully synchronized uniform batch must detect")
	}
	if result.Score <= cfg.CoordDetectScore {
		t.Errorf("score = %v, want above %v", result.Score, cfg.CoordDetectScore)
	}
	if len(result.Groups) != 1 {
		t.Fatalf("expected one synchronized group, got %d", len(result.Groups))
	}
	if got := len(result.Groups[0].Transactions); got != 6 {
		t.Errorf("the group holds all 6 transactions, got %d", got)
	}
	if result.ParameterMatchScore != 100 {
		t.Errorf("one gas price across the whole history scores 100, got %v", result.ParameterMatchScore)
	}
	for _, want := range []models.CoordinationPatternType{
		models.CoordSynchronizedTiming,
		models.CoordIdenticalParameters,
		models.CoordCoordinatedAmounts,
	} {
		if !hasCoordPattern(result, want) {
			t.Errorf("expected a %s pattern", want)
		}
	}
}

func TestDetectCoordinatedActivity_OrganicActivity(t *testing.T) {
	cfg := DefaultThresholds()

	// Hours apart, non-round varied amounts, varied gas.
	ts := []int64{0, 2 * 3600, 6 * 3600, 11 * 3600, 18 * 3600}
	values := []string{"0.137", "2.413", "0.891", "1.77", "0.56"}
	gas := []string{"18", "33", "21", "45", "27"}
	txs := make([]models.TransactionRecord, len(ts))
	for i := range ts {
		txs[i] = makeTx(fmtHash(i), dayBase+ts[i], values[i], gas[i])
	}

	result := DetectCoordinatedActivity(cfg, txs)

	if result.Detected {
		t.Error("organic activity must not detect")
	}
	if result.Score >= 30 {
		t.Errorf("score = %v, want < 30", result.Score)
	}
	if len(result.Groups) != 0 {
		t.Errorf("no synchronized groups expected, got %d", len(result.Groups))
	}
	if hasCoordPattern(result, models.CoordSynchronizedTiming) {
		t.Error("hours-apart transactions cannot be synchronized")
	}
}

func TestDetectCoordinatedActivity_NetworkEffects(t *testing.T) {
	cfg := DefaultThresholds()

	// Violent gas swings with sustained priority fees, but spread over
	// hours so timing stays silent.
	ts := []int64{0, 3 * 3600, 7 * 3600, 12 * 3600, 16 * 3600, 21 * 3600}
	gas := []string{"60", "110", "65", "140", "75", "160"}
	txs := make([]models.TransactionRecord, len(ts))
	for i := range ts {
		txs[i] = makeTx(fmtHash(i), dayBase+ts[i], "0.137", gas[i])
	}

	result := DetectCoordinatedActivity(cfg, txs)

	if !hasCoordPattern(result, models.CoordNetworkEffects) {
		t.Fatal("expected a NETWORK_EFFECTS pattern")
	}
	if hasCoordPattern(result, models.CoordSynchronizedTiming) {
		t.Error("timing must stay silent on an hours-apart series")
	}
}
