package heuristics

import (
	"fmt"
	"math"

	"github.com/rawblock/txrisk-engine/internal/stats"
	"github.com/rawblock/txrisk-engine/pkg/models"
)

// Per-Transaction Analysis Module
//
// Scores a single transaction against its owner's history and profile:
// value concentration, gas-price deviation from the user's own average,
// and timing deviation from the user's own rhythm. The overall risk is
// the severity-weighted mean of the flagged factors (LOW=1 .. CRITICAL=4).
//
// The gas-efficiency rating uses fixed Gwei bands with a continuous
// score inside each band, optionally nudged by up to ±20 points toward
// the supplied market average. Temporal tagging distinguishes a regular
// cadence (interval CV < 0.5) from burst activity (CV > 2 with 3+
// transactions in the prior hour) and everything else as irregular.

// severityWeight maps severity to its weight in the overall mean.
// Exhaustive over the closed Severity set.
func severityWeight(s models.Severity) float64 {
	switch s {
	case models.SeverityLow:
		return 1
	case models.SeverityMedium:
		return 2
	case models.SeverityHigh:
		return 3
	case models.SeverityCritical:
		return 4
	}
	return 0
}

// AnalyzeTransaction evaluates one transaction in context of its history.
// marketGasGwei is the current market average gas price; pass 0 when no
// market context is available and the rating stays band-only.
func AnalyzeTransaction(cfg Thresholds, registry ProtocolRegistry, tx models.TransactionRecord,
	history []models.TransactionRecord, profile models.UserProfile, marketGasGwei float64) models.TransactionAnalysis {

	series := newSeries(history)
	gaps := intervals(series)

	analysis := models.TransactionAnalysis{
		Hash:        tx.Hash,
		RiskFactors: transactionRiskFactors(tx, series, profile),
		Category:    CategorizeTransaction(registry, tx),
	}
	analysis.GasEfficiency = RateGasEfficiency(parseDecimal(tx.GasPrice), marketGasGwei)
	analysis.TemporalPattern = temporalPattern(tx, series, gaps)
	analysis.IsTimingOutlier = isTimingOutlier(tx, series, gaps)

	// Severity-weighted mean of the flagged factors
	weightSum, scoreSum := 0.0, 0.0
	for _, f := range analysis.RiskFactors {
		w := severityWeight(f.Severity)
		weightSum += w
		scoreSum += w * f.Score
	}
	if weightSum > 0 {
		analysis.RiskScore = scoreSum / weightSum
	}
	analysis.RiskLevel = BandRiskLevel(analysis.RiskScore)
	return analysis
}

// transactionRiskFactors flags the concentration, gas, and timing
// deviations of one transaction against the user's own baseline.
func transactionRiskFactors(tx models.TransactionRecord, series []txView, profile models.UserProfile) []models.TransactionRiskFactor {
	var factors []models.TransactionRiskFactor

	// Value concentration against lifetime volume
	if profile.TotalVolume > 0 {
		ratio := parseDecimal(tx.Value) / profile.TotalVolume
		if ratio > 0.5 {
			factors = append(factors, models.TransactionRiskFactor{
				Name:     "value_concentration",
				Severity: models.SeverityHigh,
				Score:    math.Min(100, ratio*100),
				Detail:   fmt.Sprintf("single transaction moves %.0f%% of lifetime volume", ratio*100),
			})
		}
	}

	// Gas price against the user's own average
	if avgGas := stats.Mean(gasPrices(series)); avgGas > 0 {
		ratio := parseDecimal(tx.GasPrice) / avgGas
		if ratio > 2 {
			severity := models.SeverityMedium
			if ratio > 5 {
				severity = models.SeverityHigh
			}
			factors = append(factors, models.TransactionRiskFactor{
				Name:     "gas_price_deviation",
				Severity: severity,
				Score:    math.Min(100, ratio*20),
				Detail:   fmt.Sprintf("gas price is %.1fx the user's average", ratio),
			})
		}
	}

	// Timing against the user's own rhythm
	if gap, ok := gapToPrevious(tx, series); ok {
		if avgGap := stats.Mean(intervals(series)); avgGap > 0 {
			ratio := gap / avgGap
			if ratio > 3 {
				severity := models.SeverityMedium
				if ratio > 10 {
					severity = models.SeverityHigh
				}
				factors = append(factors, models.TransactionRiskFactor{
					Name:     "timing_deviation",
					Severity: severity,
					Score:    math.Min(100, ratio*8),
					Detail:   fmt.Sprintf("gap since previous activity is %.1fx the usual interval", ratio),
				})
			}
		}
	}
	return factors
}

// Gas price efficiency bands in Gwei
const (
	gasExcellentCeiling = 20.0
	gasGoodCeiling      = 50.0
	gasAverageCeiling   = 100.0
)

// RateGasEfficiency grades a gas price on the fixed Gwei bands with a
// continuous score inside each band. When marketGasGwei is positive the
// score shifts by up to ±20 points scaled by the relative deviation from
// the market average.
func RateGasEfficiency(gasGwei, marketGasGwei float64) models.GasEfficiency {
	var rating models.GasRating
	var score float64

	switch {
	case gasGwei <= gasExcellentCeiling:
		rating = models.GasExcellent
		score = 90 + 10*(gasExcellentCeiling-gasGwei)/gasExcellentCeiling
	case gasGwei <= gasGoodCeiling:
		rating = models.GasGood
		score = 70 + 20*(gasGoodCeiling-gasGwei)/(gasGoodCeiling-gasExcellentCeiling)
	case gasGwei <= gasAverageCeiling:
		rating = models.GasAverage
		score = 40 + 30*(gasAverageCeiling-gasGwei)/(gasAverageCeiling-gasGoodCeiling)
	default:
		rating = models.GasPoor
		score = math.Max(0, 40-(gasGwei-gasAverageCeiling)/10)
	}

	eff := models.GasEfficiency{
		Rating:       rating,
		GasPriceGwei: gasGwei,
	}
	if marketGasGwei > 0 {
		adjustment := stats.Clamp(20*(marketGasGwei-gasGwei)/marketGasGwei, -20, 20)
		score += adjustment
		eff.MarketAdjusted = true
	}
	eff.Score = stats.Clamp(score, 0, 100)
	return eff
}

// temporalPattern tags how the transaction sits in the history's rhythm.
func temporalPattern(tx models.TransactionRecord, series []txView, gaps []float64) models.TemporalPatternTag {
	if len(gaps) == 0 {
		return models.TemporalIrregular
	}
	cv := stats.CV(gaps)
	if cv < 0.5 {
		return models.TemporalRegular
	}
	if cv > 2 && countWithinPriorHour(tx, series) > 3 {
		return models.TemporalBurst
	}
	return models.TemporalIrregular
}

// countWithinPriorHour counts history transactions in the hour before tx.
func countWithinPriorHour(tx models.TransactionRecord, series []txView) int {
	count := 0
	for _, v := range series {
		if v.Hash == tx.Hash {
			continue
		}
		if v.Timestamp <= tx.Timestamp && tx.Timestamp-v.Timestamp <= 3600 {
			count++
		}
	}
	return count
}

// isTimingOutlier reports whether the gap to the previous transaction
// deviates from the mean interval by more than two standard deviations.
func isTimingOutlier(tx models.TransactionRecord, series []txView, gaps []float64) bool {
	gap, ok := gapToPrevious(tx, series)
	if !ok || len(gaps) < 2 {
		return false
	}
	mean := stats.Mean(gaps)
	std := stats.StdDev(gaps)
	if std == 0 {
		return false
	}
	return math.Abs(gap-mean) > 2*std
}

// gapToPrevious finds the seconds since the latest history transaction
// strictly before tx. False when tx is the earliest activity.
func gapToPrevious(tx models.TransactionRecord, series []txView) (float64, bool) {
	var prev int64
	found := false
	for _, v := range series {
		if v.Hash == tx.Hash {
			continue
		}
		if v.Timestamp <= tx.Timestamp && (!found || v.Timestamp > prev) {
			prev = v.Timestamp
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return float64(tx.Timestamp - prev), true
}
