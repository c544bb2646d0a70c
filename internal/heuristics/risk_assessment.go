package heuristics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rawblock/txrisk-engine/internal/stats"
	"github.com/rawblock/txrisk-engine/pkg/models"
)

// Risk Assessment Aggregator
//
// Combines six independently computed risk dimensions into one
// confidence-weighted composite:
//
//	concentration  .25   protocol/category and temporal skew
//	volatility     .20   blended volume/frequency/gas/behavioral CVs
//	inactivity     .20   days since last activity, banded 30/90/180
//	new account    .15   account-age and history-depth shortfall
//	anomaly        .15   detector-backed, with a heuristic fallback
//	liquidity      .05   staking lockup and DeFi diversity
//
// Each base weight is scaled by the dimension's own confidence before
// normalizing, so a low-confidence dimension cannot dominate the
// composite. The overall level is a pure function of the overall score:
// >=80 CRITICAL, >=60 HIGH, >=40 MEDIUM, else LOW.
//
// Recommendations are emitted per dimension at HIGH/CRITICAL (MEDIUM
// also qualifies for the new-account dimension) and ranked by severity,
// then by confidence-weighted score.

// Dimension base weights
const (
	weightConcentration = 0.25
	weightVolatility    = 0.20
	weightInactivity    = 0.20
	weightNewAccount    = 0.15
	weightAnomaly       = 0.15
	weightLiquidity     = 0.05
)

// BandRiskLevel maps a 0-100 score to its level band.
// The 80/60/40 boundaries are inclusive upward: exactly 80 is CRITICAL.
func BandRiskLevel(score float64) models.RiskLevel {
	switch {
	case score >= 80:
		return models.RiskCritical
	case score >= 60:
		return models.RiskHigh
	case score >= 40:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// BuildRiskAssessment computes the composite assessment. detection may
// be nil or a below-minimum sentinel; the anomaly dimension then falls
// back to its simplified heuristic strategy. asOf anchors the
// inactivity computation so identical inputs produce identical scores.
func BuildRiskAssessment(cfg Thresholds, registry ProtocolRegistry, txs []models.TransactionRecord,
	profile models.UserProfile, detection *models.AnomalyDetectionResult, asOf time.Time) models.RiskAssessment {

	series := newSeries(txs)

	assessment := models.RiskAssessment{
		Address:       profile.Address,
		Timestamp:     asOf,
		Concentration: concentrationFactor(registry, series),
		Volatility:    volatilityFactor(series),
		Inactivity:    inactivityFactor(profile, asOf),
		NewAccount:    newAccountFactor(profile),
		Anomaly:       anomalyFactor(selectAnomalyStrategy(cfg, detection), series),
		Liquidity:     liquidityFactor(profile),
	}

	dims := []models.RiskFactor{
		assessment.Concentration, assessment.Volatility, assessment.Inactivity,
		assessment.NewAccount, assessment.Anomaly, assessment.Liquidity,
	}
	baseWeights := []float64{
		weightConcentration, weightVolatility, weightInactivity,
		weightNewAccount, weightAnomaly, weightLiquidity,
	}

	weightedSum, totalWeight, confSum := 0.0, 0.0, 0.0
	for i, dim := range dims {
		eff := baseWeights[i] * dim.Confidence / 100
		weightedSum += eff * dim.Score
		totalWeight += eff
		confSum += dim.Confidence
	}
	if totalWeight > 0 {
		assessment.OverallScore = weightedSum / totalWeight
	}
	assessment.OverallLevel = BandRiskLevel(assessment.OverallScore)
	assessment.Confidence = confSum / float64(len(dims))

	if detection != nil {
		assessment.Flags = models.SuspiciousActivityFlags{
			WashTrading:           detection.WashTrading.Detected,
			BotBehavior:           detection.BotBehavior.Detected,
			CoordinatedActivity:   detection.Coordination.Detected,
			StatisticalAnomalies:  len(detection.StatisticalAnomalies) > 0,
			RequiresInvestigation: detection.Flags.RequiresInvestigation,
		}
	}

	assessment.Recommendations = buildRecommendations(dims)
	return assessment
}

// concentrationFactor measures how concentrated the activity is across
// transaction categories and across time.
func concentrationFactor(registry ProtocolRegistry, series []txView) models.RiskFactor {
	factor := models.RiskFactor{Name: "concentration"}
	if len(series) == 0 {
		factor.Level = models.RiskLow
		factor.Confidence = 30
		factor.Explanation = "no transaction history to measure concentration"
		return factor
	}

	categoryCounts := make(map[models.TransactionCategory]int)
	var topCategory models.TransactionCategory
	topCount := 0
	for _, v := range series {
		c := CategorizeTransaction(registry, v.TransactionRecord).Category
		categoryCounts[c]++
		if categoryCounts[c] > topCount {
			topCategory = c
			topCount = categoryCounts[c]
		}
	}
	categoryShare := float64(topCount) / float64(len(series))

	dayCounts := make(map[int64]int)
	topDay := 0
	for _, v := range series {
		d := v.Timestamp / secondsPerDay
		dayCounts[d]++
		if dayCounts[d] > topDay {
			topDay = dayCounts[d]
		}
	}
	dayShare := float64(topDay) / float64(len(series))

	factor.Score = math.Min(100, 60*categoryShare+40*dayShare)
	factor.Level = BandRiskLevel(factor.Score)
	factor.Confidence = math.Min(95, 40+float64(len(series))*2)
	factor.Explanation = fmt.Sprintf("%.0f%% of activity is %s; busiest day holds %.0f%% of all transactions",
		categoryShare*100, topCategory, dayShare*100)

	if categoryShare > 0.7 {
		factor.Indicators = append(factor.Indicators,
			fmt.Sprintf("single category %s dominates the history", topCategory))
	}
	if dayShare > 0.5 {
		factor.Indicators = append(factor.Indicators, "over half the history happened in one day")
	}
	if factor.Level == models.RiskHigh || factor.Level == models.RiskCritical {
		factor.MitigationSuggestions = append(factor.MitigationSuggestions,
			"spread activity across protocols and time to reduce single-venue exposure")
	}
	return factor
}

// volatilityFactor blends the dispersion of four behavioral series.
func volatilityFactor(series []txView) models.RiskFactor {
	factor := models.RiskFactor{Name: "volatility"}
	if len(series) < 2 {
		factor.Level = models.RiskLow
		factor.Confidence = 30
		factor.Explanation = "insufficient history to measure volatility"
		return factor
	}

	dayCounts := make(map[int64]float64)
	for _, v := range series {
		dayCounts[v.Timestamp/secondsPerDay]++
	}
	freqSeries := make([]float64, 0, len(dayCounts))
	for _, c := range dayCounts {
		freqSeries = append(freqSeries, c)
	}

	volumeCV := stats.CV(amounts(series))
	freqCV := stats.CV(freqSeries)
	gasCV := stats.CV(gasPrices(series))
	behaviorCV := stats.CV(intervals(series))

	cvScore := func(cv float64) float64 { return math.Min(100, cv*50) }
	factor.Score = 0.30*cvScore(volumeCV) + 0.25*cvScore(freqCV) + 0.25*cvScore(gasCV) + 0.20*cvScore(behaviorCV)
	factor.Level = BandRiskLevel(factor.Score)
	factor.Confidence = math.Min(95, 40+float64(len(series))*2)

	trend := volatilityTrend(series)
	factor.Explanation = fmt.Sprintf("volume CV %.2f, gas CV %.2f, timing CV %.2f; trend %s",
		volumeCV, gasCV, behaviorCV, trend)
	factor.Indicators = append(factor.Indicators, "volatility trend: "+trend)
	if volumeCV > 2 {
		factor.Indicators = append(factor.Indicators, "transaction sizes vary wildly")
	}
	if factor.Level == models.RiskHigh || factor.Level == models.RiskCritical {
		factor.MitigationSuggestions = append(factor.MitigationSuggestions,
			"review the largest recent transactions for intent before extending exposure")
	}
	return factor
}

// volatilityTrend compares amount dispersion of the recent half of the
// history against the older half.
func volatilityTrend(series []txView) string {
	if len(series) < 4 {
		return "stable"
	}
	mid := len(series) / 2
	older := stats.CV(amounts(series[:mid]))
	recent := stats.CV(amounts(series[mid:]))
	switch {
	case older == 0 && recent == 0:
		return "stable"
	case recent > older*1.2:
		return "increasing"
	case recent < older*0.8:
		return "decreasing"
	default:
		return "stable"
	}
}

// inactivityFactor bands days since the last transaction at 30/90/180.
func inactivityFactor(profile models.UserProfile, asOf time.Time) models.RiskFactor {
	factor := models.RiskFactor{Name: "inactivity", Confidence: 90}

	days := float64(asOf.Unix()-profile.LastTransactionDate) / secondsPerDay
	if days < 0 {
		days = 0
	}

	switch {
	case days < 30:
		factor.Score = days / 30 * 20
		factor.Explanation = fmt.Sprintf("active within the last month (%.0f days ago)", days)
	case days < 90:
		factor.Score = 20 + (days-30)/60*30
		factor.Explanation = fmt.Sprintf("%.0f days without activity", days)
		factor.Indicators = append(factor.Indicators, "over a month of silence")
	case days < 180:
		factor.Score = 50 + (days-90)/90*30
		factor.Explanation = fmt.Sprintf("%.0f days without activity", days)
		factor.Indicators = append(factor.Indicators, "over a quarter of silence")
	default:
		factor.Score = math.Min(100, 80+(days-180)/90*20)
		factor.Explanation = fmt.Sprintf("dormant for %.0f days", days)
		factor.Indicators = append(factor.Indicators, "dormant account — reactivation is a takeover signal")
	}
	factor.Level = BandRiskLevel(factor.Score)
	if factor.Level == models.RiskHigh || factor.Level == models.RiskCritical {
		factor.MitigationSuggestions = append(factor.MitigationSuggestions,
			"verify ownership out-of-band before trusting renewed activity from this address")
	}
	return factor
}

// newAccountFactor blends account-age and history-depth shortfall.
// Accounts younger than 90 days or with under 50 transactions carry
// elevated uncertainty.
func newAccountFactor(profile models.UserProfile) models.RiskFactor {
	factor := models.RiskFactor{Name: "new_account", Confidence: 85}

	ageShortfall := math.Max(0, 90-float64(profile.AccountAge)) / 90 * 100
	depthShortfall := math.Max(0, 50-float64(profile.TotalTransactions)) / 50 * 100

	factor.Score = 0.6*ageShortfall + 0.4*depthShortfall
	factor.Level = BandRiskLevel(factor.Score)
	factor.Explanation = fmt.Sprintf("account is %d days old with %d transactions",
		profile.AccountAge, profile.TotalTransactions)

	if profile.AccountAge < 30 {
		factor.Indicators = append(factor.Indicators, "account younger than 30 days")
	}
	if profile.TotalTransactions < 10 {
		factor.Indicators = append(factor.Indicators, "fewer than 10 lifetime transactions")
	}
	if factor.Level != models.RiskLow {
		factor.MitigationSuggestions = append(factor.MitigationSuggestions,
			"apply conservative limits until the account accumulates history")
	}
	return factor
}

// anomalyStrategy scores the anomaly dimension. Two implementations:
// detector-backed when the full detection ran, and a simplified
// heuristic fallback for thin histories. One consolidated seam instead
// of parallel legacy/enhanced code paths.
type anomalyStrategy interface {
	factor(series []txView) models.RiskFactor
}

// selectAnomalyStrategy picks the strategy by data availability.
func selectAnomalyStrategy(cfg Thresholds, detection *models.AnomalyDetectionResult) anomalyStrategy {
	if detection != nil && detection.Reason == "" {
		return detectorBackedAnomaly{detection: detection}
	}
	return heuristicAnomaly{cfg: cfg}
}

// detectorBackedAnomaly consumes the full detection result.
type detectorBackedAnomaly struct {
	detection *models.AnomalyDetectionResult
}

func (s detectorBackedAnomaly) factor(_ []txView) models.RiskFactor {
	d := s.detection
	factor := models.RiskFactor{
		Name:       "anomaly",
		Score:      d.OverallAnomalyScore,
		Confidence: d.Confidence,
		Explanation: fmt.Sprintf("%d statistical anomalies; detector score %.0f",
			len(d.StatisticalAnomalies), d.OverallAnomalyScore),
	}
	factor.Level = BandRiskLevel(factor.Score)
	if d.WashTrading.Detected {
		factor.Indicators = append(factor.Indicators, "wash trading patterns detected")
	}
	if d.BotBehavior.Detected {
		factor.Indicators = append(factor.Indicators, "automation signatures detected")
	}
	if d.Coordination.Detected {
		factor.Indicators = append(factor.Indicators, "coordination proxy signals detected")
	}
	if d.Flags.RequiresInvestigation {
		factor.MitigationSuggestions = append(factor.MitigationSuggestions,
			"escalate to manual investigation before clearing this address")
	}
	return factor
}

// heuristicAnomaly is the thin-history fallback: temporal shape plus
// gas/volume dispersion, nothing more. Confidence stays low on purpose.
type heuristicAnomaly struct {
	cfg Thresholds
}

func (s heuristicAnomaly) factor(series []txView) models.RiskFactor {
	factor := models.RiskFactor{Name: "anomaly", Confidence: 40}
	if len(series) < 2 {
		factor.Level = models.RiskLow
		factor.Explanation = "history too thin for anomaly analysis"
		return factor
	}

	volumeCV := stats.CV(amounts(series))
	gasCV := stats.CV(gasPrices(series))
	intervalCV := stats.CV(intervals(series))

	score := math.Min(100, 40*math.Min(1, volumeCV/2)+40*math.Min(1, gasCV/2))
	if intervalCV > 2 {
		score = math.Min(100, score+20)
		factor.Indicators = append(factor.Indicators, "erratic transaction timing")
	}
	factor.Score = score
	factor.Level = BandRiskLevel(score)
	factor.Explanation = fmt.Sprintf("fallback heuristic on %d transactions (volume CV %.2f, gas CV %.2f)",
		len(series), volumeCV, gasCV)
	return factor
}

// anomalyFactor evaluates the selected strategy.
func anomalyFactor(strategy anomalyStrategy, series []txView) models.RiskFactor {
	return strategy.factor(series)
}

// liquidityFactor grades staking lockup and DeFi diversity. A large
// locked share with no protocol spread means the holder cannot unwind
// quickly under stress.
func liquidityFactor(profile models.UserProfile) models.RiskFactor {
	factor := models.RiskFactor{Name: "liquidity", Confidence: 75}

	stakingRatio := 0.0
	if profile.TotalVolume > 0 {
		stakingRatio = math.Min(1, profile.StakingBalance/profile.TotalVolume)
	}
	diversity := len(profile.DeFiProtocolsUsed)

	factor.Score = math.Min(100, 60*stakingRatio+math.Max(0, 40-8*float64(diversity)))
	factor.Level = BandRiskLevel(factor.Score)
	factor.Explanation = fmt.Sprintf("%.0f%% of volume staked, %d DeFi protocols used",
		stakingRatio*100, diversity)

	if stakingRatio > 0.8 {
		factor.Indicators = append(factor.Indicators, "most holdings locked in staking")
	}
	if diversity == 0 {
		factor.Indicators = append(factor.Indicators, "no DeFi diversification")
	}
	if factor.Level == models.RiskHigh || factor.Level == models.RiskCritical {
		factor.MitigationSuggestions = append(factor.MitigationSuggestions,
			"maintain an unstaked reserve to cover sudden liquidity needs")
	}
	return factor
}

// recommendationFor maps a dimension to its mitigation step.
func recommendationFor(dim models.RiskFactor) models.Recommendation {
	rec := models.Recommendation{Category: dim.Name}
	switch dim.Name {
	case "concentration":
		rec.Action = "diversify protocol usage and spread transaction timing"
		rec.Timeframe = "30d"
	case "volatility":
		rec.Action = "review recent large transactions and stabilize position sizing"
		rec.Timeframe = "7d"
	case "inactivity":
		rec.Action = "re-verify address ownership before honoring new activity"
		rec.Timeframe = "immediate"
	case "new_account":
		rec.Action = "apply reduced limits until the account matures"
		rec.Timeframe = "30d"
	case "anomaly":
		rec.Action = "open a manual investigation into the flagged transactions"
		rec.Timeframe = "immediate"
	case "liquidity":
		rec.Action = "rebalance staked holdings toward a liquid reserve"
		rec.Timeframe = "30d"
	}
	return rec
}

// buildRecommendations emits one recommendation per qualifying dimension,
// ranked by level severity then score, and numbers the priorities.
func buildRecommendations(dims []models.RiskFactor) []models.Recommendation {
	type ranked struct {
		dim models.RiskFactor
		rec models.Recommendation
	}
	var qualifying []ranked
	for _, dim := range dims {
		qualifies := dim.Level == models.RiskHigh || dim.Level == models.RiskCritical ||
			(dim.Name == "new_account" && dim.Level == models.RiskMedium)
		if !qualifies {
			continue
		}
		qualifying = append(qualifying, ranked{dim: dim, rec: recommendationFor(dim)})
	}

	levelRank := func(l models.RiskLevel) int {
		switch l {
		case models.RiskCritical:
			return 3
		case models.RiskHigh:
			return 2
		case models.RiskMedium:
			return 1
		default:
			return 0
		}
	}
	sort.SliceStable(qualifying, func(i, j int) bool {
		if levelRank(qualifying[i].dim.Level) != levelRank(qualifying[j].dim.Level) {
			return levelRank(qualifying[i].dim.Level) > levelRank(qualifying[j].dim.Level)
		}
		return qualifying[i].dim.Score*qualifying[i].dim.Confidence > qualifying[j].dim.Score*qualifying[j].dim.Confidence
	})

	out := make([]models.Recommendation, len(qualifying))
	for i, q := range qualifying {
		q.rec.Priority = i + 1
		out[i] = q.rec
	}
	return out
}
