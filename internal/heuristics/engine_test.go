package heuristics

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rawblock/txrisk-engine/pkg/models"
)

func quietEngine() *Engine {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewEngine(DefaultThresholds(), nil, log)
}

func TestEngine_DetectAnomalies_MinimumGuard(t *testing.T) {
	engine := quietEngine()
	asOf := time.Unix(dayBase+secondsPerDay, 0)
	txs := uniformHistory(2, dayBase, 3600, "1.0", "20")

	result, err := engine.DetectAnomalies(context.Background(), testAddrA, txs, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Reason == "" {
		t.Error("below-minimum result must carry a reason")
	}
	if result.OverallAnomalyScore != 0 || result.Confidence != 0 {
		t.Errorf("below-minimum result must be zeroed, got %v/%v", result.OverallAnomalyScore, result.Confidence)
	}
	if result.Flags != (models.AnomalyFlags{}) {
		t.Errorf("below-minimum result must carry no flags, got %+v", result.Flags)
	}
	if result.TransactionCount != 2 {
		t.Errorf("transaction count = %d, want 2", result.TransactionCount)
	}
}

func TestEngine_DetectAnomalies_PerDetectorGuards(t *testing.T) {
	engine := quietEngine()
	asOf := time.Unix(dayBase+secondsPerDay, 0)

	// Three transactions clear the overall minimum and the coordination
	// minimum, but not the wash (4) or bot (5) minimums.
	txs := uniformHistory(3, dayBase, 3600, "1.0", "20")

	result, err := engine.DetectAnomalies(context.Background(), testAddrA, txs, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Reason != "" {
		t.Error("three transactions clear the overall minimum")
	}
	if result.WashTrading.Reason == "" {
		t.Error("wash trading needs 4 transactions and must say so")
	}
	if result.BotBehavior.Reason == "" {
		t.Error("bot behavior needs 5 transactions and must say so")
	}
	if result.Coordination.Reason != "" {
		t.Error("coordination runs at 3 transactions")
	}
}

func TestEngine_DetectAnomalies_Idempotent(t *testing.T) {
	engine := quietEngine()
	asOf := time.Unix(dayBase+secondsPerDay, 0)

	txs := []models.TransactionRecord{
		makeTx("0xw1", dayBase, "1.000", "20"),
		makeTx("0xw2", dayBase+60, "1.001", "20"),
		makeTx("0xw3", dayBase+90, "0.999", "20"),
		makeTx("0xw4", dayBase+300, "1.000", "20"),
		makeTx("0xw5", dayBase+360, "1.002", "20"),
	}

	first, err := engine.DetectAnomalies(context.Background(), testAddrA, txs, asOf)
	if err != nil {
		t.Fatal(err)
	}

	// Same snapshot in reversed order: identical verdict.
	reversed := make([]models.TransactionRecord, len(txs))
	for i, tx := range txs {
		reversed[len(txs)-1-i] = tx
	}
	second, err := engine.DetectAnomalies(context.Background(), testAddrA, reversed, asOf)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("the same snapshot must produce an identical result regardless of input order")
	}
}

func TestEngine_DetectAnomalies_InvestigationFlag(t *testing.T) {
	engine := quietEngine()
	asOf := time.Unix(dayBase+secondsPerDay, 0)

	histories := [][]models.TransactionRecord{
		uniformHistory(10, dayBase, 30, "1.0", "25"),        // scripted burst
		uniformHistory(8, dayBase, 7*3600, "1.0", "20"),     // bland schedule
		{
			makeTx("0xa", dayBase, "0.5", "18"),
			makeTx("0xb", dayBase+2*3600, "1.7", "25"),
			makeTx("0xc", dayBase+5*3600, "0.03", "31"),
			makeTx("0xd", dayBase+9*3600, "2.9", "22"),
		},
	}

	for _, txs := range histories {
		result, err := engine.DetectAnomalies(context.Background(), testAddrA, txs, asOf)
		if err != nil {
			t.Fatal(err)
		}
		want := result.OverallAnomalyScore > engine.Thresholds().InvestigationScore
		if result.Flags.RequiresInvestigation != want {
			t.Errorf("investigation flag = %v for score %v, want %v",
				result.Flags.RequiresInvestigation, result.OverallAnomalyScore, want)
		}
	}
}

func TestEngine_DetectAnomalies_Cancellation(t *testing.T) {
	engine := quietEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	txs := uniformHistory(10, dayBase, 3600, "1.0", "20")
	if _, err := engine.DetectAnomalies(ctx, testAddrA, txs, time.Unix(dayBase, 0)); err == nil {
		t.Error("a cancelled context must abort the detection")
	}
}

func TestEngine_AssessRisk(t *testing.T) {
	engine := quietEngine()
	asOf := time.Unix(dayBase+10*secondsPerDay, 0)

	txs := uniformHistory(8, dayBase, 3600, "1.0", "20")
	profile := models.UserProfile{
		Address:             testAddrA,
		AccountAge:          200,
		TotalTransactions:   300,
		TotalVolume:         500,
		LastTransactionDate: dayBase + 7*3600,
	}

	assessment, err := engine.AssessRisk(context.Background(), txs, profile, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assessment.Address != testAddrA {
		t.Errorf("address = %s", assessment.Address)
	}
	if !assessment.Timestamp.Equal(asOf) {
		t.Error("assessment timestamp must be the supplied reference time")
	}
	if assessment.OverallLevel != BandRiskLevel(assessment.OverallScore) {
		t.Error("overall level must be the band of the overall score")
	}

	// Pipeline wiring: a full-history detection feeds the anomaly
	// dimension, so its confidence is above the fallback's 40.
	if assessment.Anomaly.Confidence <= 40 {
		t.Errorf("anomaly dimension confidence = %v, want detector-backed", assessment.Anomaly.Confidence)
	}
}
