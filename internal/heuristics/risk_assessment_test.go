package heuristics

import (
	"strings"
	"testing"
	"time"

	"github.com/rawblock/txrisk-engine/pkg/models"
)

func TestBandRiskLevel(t *testing.T) {
	tests := []struct {
		score float64
		want  models.RiskLevel
	}{
		{0, models.RiskLow},
		{39.9, models.RiskLow},
		{40, models.RiskMedium},
		{59.9, models.RiskMedium},
		{60, models.RiskHigh},
		{79.9, models.RiskHigh},
		{80, models.RiskCritical},
		{100, models.RiskCritical},
	}
	for _, tt := range tests {
		if got := BandRiskLevel(tt.score); got != tt.want {
			t.Errorf("BandRiskLevel(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestConcentrationFactor_DominantCategory(t *testing.T) {
	registry := DefaultProtocolRegistry()

	// Five value-less plain-gas transactions (UNKNOWN) and one transfer,
	// all on the same day: the dominant category is UNKNOWN at 83%.
	var txs []models.TransactionRecord
	for i := 0; i < 5; i++ {
		tx := makeTx(fmtHash(i), dayBase+int64(i)*3600, "0", "20")
		txs = append(txs, tx)
	}
	txs = append(txs, makeTx("0xxfer", dayBase+6*3600, "1.0", "20"))

	factor := concentrationFactor(registry, newSeries(txs))

	// 60 * 5/6 category share + 40 * full-day share
	if factor.Score != 90 {
		t.Errorf("score = %v, want 90", factor.Score)
	}
	if factor.Level != models.RiskCritical {
		t.Errorf("level = %s, want CRITICAL", factor.Level)
	}
	if !strings.Contains(factor.Explanation, string(models.CategoryUnknown)) {
		t.Errorf("explanation must name the dominant category, got %q", factor.Explanation)
	}
}

func TestInactivityFactor_Bands(t *testing.T) {
	last := time.Unix(dayBase, 0)

	tests := []struct {
		name     string
		daysAgo  int64
		maxScore float64
		minScore float64
	}{
		{"active this month", 10, 20, 0},
		{"silent one quarter", 60, 50, 20},
		{"silent half a year", 120, 80, 50},
		{"dormant", 300, 101, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := models.UserProfile{LastTransactionDate: last.Unix()}
			asOf := last.Add(time.Duration(tt.daysAgo) * 24 * time.Hour)

			factor := inactivityFactor(profile, asOf)
			if factor.Score < tt.minScore || factor.Score >= tt.maxScore {
				t.Errorf("score = %v, want in [%v, %v)", factor.Score, tt.minScore, tt.maxScore)
			}
			if factor.Level != BandRiskLevel(factor.Score) {
				t.Error("level must be the band of the score")
			}
		})
	}
}

func TestInactivityFactor_FutureLastActivity(t *testing.T) {
	// Clock skew: a last-activity timestamp after asOf clamps to zero.
	profile := models.UserProfile{LastTransactionDate: dayBase + 3600}
	factor := inactivityFactor(profile, time.Unix(dayBase, 0))
	if factor.Score != 0 {
		t.Errorf("score = %v, want 0 for future last activity", factor.Score)
	}
}

func TestNewAccountFactor(t *testing.T) {
	young := newAccountFactor(models.UserProfile{AccountAge: 10, TotalTransactions: 5})
	if young.Level != models.RiskCritical && young.Level != models.RiskHigh {
		t.Errorf("a 10-day account with 5 transactions grades at least HIGH, got %s", young.Level)
	}

	mature := newAccountFactor(models.UserProfile{AccountAge: 400, TotalTransactions: 500})
	if mature.Score != 0 {
		t.Errorf("a mature account scores 0, got %v", mature.Score)
	}
	if mature.Level != models.RiskLow {
		t.Errorf("level = %s, want LOW", mature.Level)
	}
}

func TestAnomalyStrategy_Selection(t *testing.T) {
	cfg := DefaultThresholds()

	full := &models.AnomalyDetectionResult{OverallAnomalyScore: 90, Confidence: 80}
	if _, ok := selectAnomalyStrategy(cfg, full).(detectorBackedAnomaly); !ok {
		t.Error("a completed detection selects the detector-backed strategy")
	}

	sentinel := &models.AnomalyDetectionResult{Reason: "too thin"}
	if _, ok := selectAnomalyStrategy(cfg, sentinel).(heuristicAnomaly); !ok {
		t.Error("a below-minimum sentinel selects the fallback strategy")
	}
	if _, ok := selectAnomalyStrategy(cfg, nil).(heuristicAnomaly); !ok {
		t.Error("a missing detection selects the fallback strategy")
	}
}

func TestAnomalyStrategy_DetectorBacked(t *testing.T) {
	detection := &models.AnomalyDetectionResult{
		OverallAnomalyScore: 90,
		Confidence:          80,
		Flags:               models.AnomalyFlags{RequiresInvestigation: true},
	}
	factor := detectorBackedAnomaly{detection: detection}.factor(nil)

	if factor.Score != 90 || factor.Confidence != 80 {
		t.Errorf("detector-backed factor passes scores through, got %v/%v", factor.Score, factor.Confidence)
	}
	if factor.Level != models.RiskCritical {
		t.Errorf("level = %s, want CRITICAL", factor.Level)
	}
	if len(factor.MitigationSuggestions) == 0 {
		t.Error("an investigation flag must produce a mitigation suggestion")
	}
}

func TestBuildRiskAssessment_Composite(t *testing.T) {
	cfg := DefaultThresholds()
	registry := DefaultProtocolRegistry()
	asOf := time.Unix(dayBase+30*secondsPerDay, 0)

	txs := uniformHistory(8, dayBase, 3600, "1.0", "20")
	profile := models.UserProfile{
		Address:             testAddrA,
		AccountAge:          200,
		TotalTransactions:   300,
		TotalVolume:         500,
		LastTransactionDate: dayBase + 7*3600,
		StakingBalance:      50,
		DeFiProtocolsUsed:   []string{"uniswap", "aave"},
	}

	assessment := BuildRiskAssessment(cfg, registry, txs, profile, nil, asOf)

	if assessment.Address != testAddrA {
		t.Errorf("address = %s", assessment.Address)
	}
	if !assessment.Timestamp.Equal(asOf) {
		t.Error("assessment timestamp must be the supplied reference time")
	}
	if assessment.OverallLevel != BandRiskLevel(assessment.OverallScore) {
		t.Error("overall level must be the band of the overall score")
	}
	if assessment.OverallScore < 0 || assessment.OverallScore > 100 {
		t.Errorf("overall score = %v, out of range", assessment.OverallScore)
	}
	if assessment.Confidence <= 0 || assessment.Confidence > 100 {
		t.Errorf("confidence = %v, out of range", assessment.Confidence)
	}
	if assessment.Anomaly.Confidence != 40 {
		t.Errorf("without a detection the anomaly dimension runs the fallback at confidence 40, got %v", assessment.Anomaly.Confidence)
	}

	for i, rec := range assessment.Recommendations {
		if rec.Priority != i+1 {
			t.Errorf("recommendation %d carries priority %d", i, rec.Priority)
		}
	}
}

func TestBuildRiskAssessment_FlagsMirrorDetection(t *testing.T) {
	cfg := DefaultThresholds()
	registry := DefaultProtocolRegistry()
	asOf := time.Unix(dayBase+secondsPerDay, 0)

	txs := uniformHistory(8, dayBase, 3600, "1.0", "20")
	profile := models.UserProfile{Address: testAddrA, AccountAge: 200, TotalTransactions: 300, TotalVolume: 500, LastTransactionDate: dayBase}

	detection := &models.AnomalyDetectionResult{
		OverallAnomalyScore:  75,
		Confidence:           80,
		StatisticalAnomalies: []models.StatisticalAnomaly{{Type: models.AnomalyAmountOutlier}},
		WashTrading:          models.WashTradingResult{Detected: true},
		BotBehavior:          models.BotBehaviorResult{Detected: true},
		Flags:                models.AnomalyFlags{RequiresInvestigation: true},
	}

	assessment := BuildRiskAssessment(cfg, registry, txs, profile, detection, asOf)

	if !assessment.Flags.WashTrading || !assessment.Flags.BotBehavior {
		t.Error("assessment flags must mirror the detector verdicts")
	}
	if assessment.Flags.CoordinatedActivity {
		t.Error("coordination was not detected")
	}
	if !assessment.Flags.StatisticalAnomalies {
		t.Error("present statistical anomalies must set the flag")
	}
	if !assessment.Flags.RequiresInvestigation {
		t.Error("the investigation flag must carry over")
	}
	if assessment.Anomaly.Score != 75 {
		t.Errorf("anomaly dimension = %v, want the detector score 75", assessment.Anomaly.Score)
	}
}
