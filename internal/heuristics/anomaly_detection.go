package heuristics

import (
	"fmt"
	"math"

	"github.com/rawblock/txrisk-engine/internal/stats"
	"github.com/rawblock/txrisk-engine/pkg/models"
)

// Statistical Anomaly Detection Module
//
// Applies the statistics kernel across four independent series of an
// address's history:
//
//   1. Transaction amounts (z-score, then IQR extreme fences for what
//      z-scores miss in heavy-tailed samples)
//   2. Gas prices (z-score)
//   3. Inter-arrival intervals (z-score, flags both unusually short and
//      unusually long gaps)
//   4. Daily transaction counts (one-sided: only abnormally BUSY days are
//      flagged — a quiet day is not evidence of anything)
//
// Severity/confidence ladder:
//   z >= 3.0 → CRITICAL, score min(100, z*20), confidence 95
//   z >= 2.5 → HIGH,     score min(100, z*15), confidence 85 (amounts) / 80 (gas)
//
// Detections with confidence at or below 50 are dropped before returning;
// they add noise to the composite without changing any verdict.

const secondsPerDay = 86400

// DetectStatisticalAnomalies runs the four series scans over a history.
// Needs at least cfg.MinAnomalyTxs records overall; the amount/gas z-tests
// additionally need cfg.MinZTestTxs and the frequency scan cfg.MinFrequencyTxs,
// below which they are skipped silently.
func DetectStatisticalAnomalies(cfg Thresholds, txs []models.TransactionRecord) []models.StatisticalAnomaly {
	if len(txs) < cfg.MinAnomalyTxs {
		return nil
	}
	series := newSeries(txs)

	var found []models.StatisticalAnomaly
	found = append(found, detectAmountAnomalies(cfg, series)...)
	found = append(found, detectGasAnomalies(cfg, series)...)
	found = append(found, detectTimingAnomalies(cfg, series)...)
	found = append(found, detectFrequencyAnomalies(cfg, series)...)

	// Confidence floor: keep only detections the composite can trust
	kept := found[:0]
	for _, a := range found {
		if a.Confidence > 50 {
			kept = append(kept, a)
		}
	}
	return kept
}

// detectAmountAnomalies flags amount outliers by z-score, then by IQR
// extreme fences. IQR hits on a transaction already flagged by z-score
// are deduplicated: one observation, one anomaly.
func detectAmountAnomalies(cfg Thresholds, series []txView) []models.StatisticalAnomaly {
	if len(series) < cfg.MinZTestTxs {
		return nil
	}
	vals := amounts(series)
	mean := stats.Mean(vals)
	std := stats.StdDev(vals)

	var out []models.StatisticalAnomaly
	flagged := make(map[string]bool)

	for i, v := range series {
		z := stats.ZScore(vals[i], mean, std)
		if z < cfg.ZHigh {
			continue
		}
		a := models.StatisticalAnomaly{
			Type:              models.AnomalyAmountOutlier,
			StatisticalMethod: "z-score",
			ActualValue:       vals[i],
			AffectedTransactions: []string{v.Hash},
		}
		if z >= cfg.ZCritical {
			a.Severity = models.SeverityCritical
			a.Score = math.Min(100, z*20)
			a.Confidence = 95
			a.Threshold = cfg.ZCritical
		} else {
			a.Severity = models.SeverityHigh
			a.Score = math.Min(100, z*15)
			a.Confidence = 85
			a.Threshold = cfg.ZHigh
		}
		a.ExpectedRange = models.ValueRange{Min: mean - a.Threshold*std, Max: mean + a.Threshold*std}
		a.Evidence = []string{
			fmt.Sprintf("amount %.6f ETH sits %.2f standard deviations from the mean %.6f", vals[i], z, mean),
		}
		out = append(out, a)
		flagged[v.Hash] = true
	}

	// IQR extreme fences catch outliers a skewed mean hides
	lower, upper := stats.ExtremeBounds(vals)
	iqr := stats.IQR(vals)
	if iqr > 0 {
		for i, v := range series {
			if flagged[v.Hash] || (vals[i] >= lower && vals[i] <= upper) {
				continue
			}
			excess := (lower - vals[i]) / iqr
			if vals[i] > upper {
				excess = (vals[i] - upper) / iqr
			}
			out = append(out, models.StatisticalAnomaly{
				Type:              models.AnomalyAmountOutlier,
				Severity:          models.SeverityHigh,
				Score:             math.Min(100, 50+20*excess),
				Confidence:        75,
				StatisticalMethod: "iqr",
				Threshold:         stats.ExtremeOutlierMultiplier,
				ActualValue:       vals[i],
				ExpectedRange:     models.ValueRange{Min: lower, Max: upper},
				AffectedTransactions: []string{v.Hash},
				Evidence: []string{
					fmt.Sprintf("amount %.6f ETH outside the extreme IQR fences [%.6f, %.6f]", vals[i], lower, upper),
				},
			})
		}
	}
	return out
}

// detectGasAnomalies flags gas-price outliers by z-score.
func detectGasAnomalies(cfg Thresholds, series []txView) []models.StatisticalAnomaly {
	if len(series) < cfg.MinZTestTxs {
		return nil
	}
	vals := gasPrices(series)
	mean := stats.Mean(vals)
	std := stats.StdDev(vals)

	var out []models.StatisticalAnomaly
	for i, v := range series {
		z := stats.ZScore(vals[i], mean, std)
		if z < cfg.ZHigh {
			continue
		}
		a := models.StatisticalAnomaly{
			Type:              models.AnomalyGasPriceOutlier,
			StatisticalMethod: "z-score",
			ActualValue:       vals[i],
			AffectedTransactions: []string{v.Hash},
		}
		if z >= cfg.ZCritical {
			a.Severity = models.SeverityCritical
			a.Score = math.Min(100, z*20)
			a.Confidence = 95
			a.Threshold = cfg.ZCritical
		} else {
			a.Severity = models.SeverityHigh
			a.Score = math.Min(100, z*15)
			a.Confidence = 80
			a.Threshold = cfg.ZHigh
		}
		a.ExpectedRange = models.ValueRange{Min: mean - a.Threshold*std, Max: mean + a.Threshold*std}
		a.Evidence = []string{
			fmt.Sprintf("gas price %.2f Gwei sits %.2f standard deviations from the mean %.2f", vals[i], z, mean),
		}
		out = append(out, a)
	}
	return out
}

// detectTimingAnomalies flags inter-arrival gaps that deviate strongly
// from the address's own rhythm, in either direction.
func detectTimingAnomalies(cfg Thresholds, series []txView) []models.StatisticalAnomaly {
	gaps := intervals(series)
	if len(gaps) < 2 {
		return nil
	}
	mean := stats.Mean(gaps)
	std := stats.StdDev(gaps)

	var out []models.StatisticalAnomaly
	for i, gap := range gaps {
		z := stats.ZScore(gap, mean, std)
		if z < cfg.ZHigh {
			continue
		}
		direction := "long"
		if gap < mean {
			direction = "short"
		}
		severity := models.SeverityMedium
		if z >= cfg.ZCritical {
			severity = models.SeverityHigh
		}
		out = append(out, models.StatisticalAnomaly{
			Type:              models.AnomalyUnusualTiming,
			Severity:          severity,
			Score:             math.Min(100, z*15),
			Confidence:        75,
			StatisticalMethod: "z-score",
			Threshold:         cfg.ZHigh,
			ActualValue:       gap,
			ExpectedRange:     models.ValueRange{Min: math.Max(0, mean-cfg.ZHigh*std), Max: mean + cfg.ZHigh*std},
			AffectedTransactions: []string{series[i].Hash, series[i+1].Hash},
			Evidence: []string{
				fmt.Sprintf("unusually %s gap of %.0fs against a mean of %.0fs (z=%.2f)", direction, gap, mean, z),
			},
		})
	}
	return out
}

// detectFrequencyAnomalies buckets the history into calendar days and
// flags abnormally busy ones. One-sided: a day must exceed the mean count,
// quiet days never fire.
func detectFrequencyAnomalies(cfg Thresholds, series []txView) []models.StatisticalAnomaly {
	if len(series) < cfg.MinFrequencyTxs {
		return nil
	}

	byDay := make(map[int64][]txView)
	var days []int64
	for _, v := range series {
		day := v.Timestamp / secondsPerDay
		if _, seen := byDay[day]; !seen {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], v)
	}

	counts := make([]float64, len(days))
	for i, d := range days {
		counts[i] = float64(len(byDay[d]))
	}
	mean := stats.Mean(counts)
	std := stats.StdDev(counts)

	var out []models.StatisticalAnomaly
	for i, d := range days {
		z := stats.ZScore(counts[i], mean, std)
		if z < cfg.ZHigh || counts[i] <= mean {
			continue
		}
		out = append(out, models.StatisticalAnomaly{
			Type:              models.AnomalyFrequencySpike,
			Severity:          models.SeverityHigh,
			Score:             math.Min(100, z*15),
			Confidence:        80,
			StatisticalMethod: "z-score",
			Threshold:         cfg.ZHigh,
			ActualValue:       counts[i],
			ExpectedRange:     models.ValueRange{Min: 0, Max: mean + cfg.ZHigh*std},
			AffectedTransactions: hashes(byDay[d]),
			Evidence: []string{
				fmt.Sprintf("%d transactions in one day against a daily mean of %.1f (z=%.2f)", int(counts[i]), mean, z),
			},
		})
	}
	return out
}
