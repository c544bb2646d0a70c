package heuristics

import (
	"fmt"
	"math"

	"github.com/rawblock/txrisk-engine/internal/stats"
	"github.com/rawblock/txrisk-engine/pkg/models"
)

// Bot Behavior Detection Module
//
// Automation leaves timing and parameter fingerprints humans cannot
// reproduce: near-constant inter-arrival intervals, one dominant
// interval when rounded to the minute, identical gas parameters, and
// amounts stepping in arithmetic progression. Conversely, moderate
// interval variance (CV between 1 and 3) is the signature of organic
// activity and earns the human-likeness score a bonus.
//
// Bot probability composition:
//
//	0.4 × timing block (0.4 interval consistency + 0.3 regularity
//	                    + 0.3 inverted human-likeness)
//	0.3 × parameter consistency
//	0.3 × mean behavior-pattern strength
//
// Detected when probability > 70 or any single pattern strength > 80.

// DetectBotBehavior scans a history for automation signatures.
// Needs at least cfg.MinBotTxs transactions.
func DetectBotBehavior(cfg Thresholds, txs []models.TransactionRecord) models.BotBehaviorResult {
	if len(txs) < cfg.MinBotTxs {
		return models.BotBehaviorResult{
			HumanLikeScore: 100,
			Reason:         fmt.Sprintf("bot behavior analysis requires at least %d transactions, got %d", cfg.MinBotTxs, len(txs)),
		}
	}
	series := newSeries(txs)
	gaps := intervals(series)
	cv := stats.CV(gaps)

	result := models.BotBehaviorResult{
		IntervalConsistency: math.Max(0, 100-cv*100),
		Regularity:          intervalRegularity(gaps),
		Bursts:              findBurstWindows(cfg, series),
		Parameters:          parameterConsistency(series),
	}
	result.HumanLikeScore = humanLikeness(cv, result.Regularity, result.Bursts)
	result.Patterns = behaviorPatterns(result)

	meanStrength := 0.0
	if len(result.Patterns) > 0 {
		for _, p := range result.Patterns {
			meanStrength += p.Strength
		}
		meanStrength /= float64(len(result.Patterns))
	}

	timing := 0.4*result.IntervalConsistency + 0.3*result.Regularity + 0.3*(100-result.HumanLikeScore)
	result.Probability = math.Min(100, 0.4*timing+0.3*result.Parameters.Overall+0.3*meanStrength)

	for _, p := range result.Patterns {
		if p.Strength > 80 {
			result.Detected = true
		}
	}
	if result.Probability > cfg.BotDetectProb {
		result.Detected = true
	}

	result.Confidence = math.Min(95, 50+float64(len(result.Patterns))*10+math.Min(15, float64(len(series))))
	return result
}

// intervalRegularity is the share of intervals equal to the most common
// interval when rounded to the nearest minute, as a percentage. A series
// of identical intervals scores 100.
func intervalRegularity(gaps []float64) float64 {
	if len(gaps) == 0 {
		return 0
	}
	buckets := make(map[int64]int)
	best := 0
	for _, g := range gaps {
		b := int64(math.Round(g / 60))
		buckets[b]++
		if buckets[b] > best {
			best = buckets[b]
		}
	}
	return float64(best) / float64(len(gaps)) * 100
}

// findBurstWindows slides a fixed window over the series and records
// dense windows. On a match the scan skips past the covered transactions
// so overlapping windows are not double counted.
func findBurstWindows(cfg Thresholds, series []txView) []models.BurstWindow {
	windowMinutes := float64(cfg.BurstWindowSec) / 60
	var bursts []models.BurstWindow

	for i := 0; i < len(series); {
		end := i
		for end+1 < len(series) && series[end+1].Timestamp-series[i].Timestamp <= cfg.BurstWindowSec {
			end++
		}
		count := end - i + 1
		if count < cfg.MinBurstTxs {
			i++
			continue
		}
		intensity := float64(count) / windowMinutes
		suspicion := models.SeverityMedium
		switch {
		case intensity > 2:
			suspicion = models.SeverityCritical
		case intensity > 1:
			suspicion = models.SeverityHigh
		}
		bursts = append(bursts, models.BurstWindow{
			StartTime:        series[i].Timestamp,
			EndTime:          series[end].Timestamp,
			TransactionCount: count,
			Intensity:        intensity,
			Suspicion:        suspicion,
			Transactions:     hashes(series[i : end+1]),
		})
		i = end + 1
	}
	return bursts
}

// humanLikeness starts at 100 and subtracts automation evidence:
// regularity, tight interval CV, and burst severity. A moderate CV
// (organic variance) earns back 10 points. Clamped to [0, 100].
func humanLikeness(cv, regularity float64, bursts []models.BurstWindow) float64 {
	score := 100.0
	score -= regularity * 0.5

	switch {
	case cv < 0.1:
		score -= 40
	case cv < 0.3:
		score -= 20
	}

	for _, b := range bursts {
		switch b.Suspicion {
		case models.SeverityCritical:
			score -= 30
		case models.SeverityHigh:
			score -= 20
		case models.SeverityMedium:
			score -= 10
		case models.SeverityLow:
			// burst windows are never graded LOW
		}
	}

	if cv > 1.0 && cv < 3.0 {
		score += 10
	}
	return stats.Clamp(score, 0, 100)
}

// parameterConsistency measures per-field uniformity. A field of
// identical values scores 100, otherwise max(0, 100-CV*100). Amounts
// stepping in arithmetic progression (successive differences with
// CV < 0.1) are a scheduler fingerprint and lift the amount score.
func parameterConsistency(series []txView) models.ParameterConsistency {
	gasLimits := make([]float64, len(series))
	for i, v := range series {
		gasLimits[i] = float64(v.GasUsed)
	}

	p := models.ParameterConsistency{
		GasPrice: fieldConsistency(gasPrices(series)),
		GasLimit: fieldConsistency(gasLimits),
		Amount:   fieldConsistency(amounts(series)),
	}

	if diffs := successiveDiffs(amounts(series)); len(diffs) >= 2 && stats.CV(diffs) < 0.1 {
		p.ArithmeticProgression = true
		p.Amount = math.Min(100, p.Amount+50)
	}

	p.Overall = (p.GasPrice + p.GasLimit + p.Amount) / 3
	return p
}

// fieldConsistency scores one parameter series for uniformity.
func fieldConsistency(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	identical := true
	for _, v := range vals[1:] {
		if v != vals[0] {
			identical = false
			break
		}
	}
	if identical {
		return 100
	}
	return math.Max(0, 100-stats.CV(vals)*100)
}

// successiveDiffs returns the absolute deltas between consecutive values.
func successiveDiffs(vals []float64) []float64 {
	if len(vals) < 2 {
		return nil
	}
	out := make([]float64, len(vals)-1)
	for i := 1; i < len(vals); i++ {
		out[i-1] = math.Abs(vals[i] - vals[i-1])
	}
	return out
}

// behaviorPatterns derives the named automation signatures from the
// component scores.
func behaviorPatterns(r models.BotBehaviorResult) []models.BehaviorPattern {
	var out []models.BehaviorPattern

	if r.IntervalConsistency > 80 {
		out = append(out, models.BehaviorPattern{
			Type:        models.BehaviorRegularIntervals,
			Strength:    r.IntervalConsistency,
			Confidence:  90,
			Description: fmt.Sprintf("inter-transaction intervals show %.0f%% consistency", r.IntervalConsistency),
		})
	}
	if r.Parameters.Overall > 70 {
		out = append(out, models.BehaviorPattern{
			Type:        models.BehaviorIdenticalParameters,
			Strength:    r.Parameters.Overall,
			Confidence:  85,
			Description: fmt.Sprintf("gas and amount parameters are %.0f%% uniform", r.Parameters.Overall),
		})
	}
	for _, b := range r.Bursts {
		if b.Suspicion == models.SeverityHigh || b.Suspicion == models.SeverityCritical {
			out = append(out, models.BehaviorPattern{
				Type:        models.BehaviorBurstActivity,
				Strength:    burstStrength(r.Bursts),
				Confidence:  80,
				Description: fmt.Sprintf("%d burst window(s) of machine-speed activity", len(r.Bursts)),
			})
			break
		}
	}
	if r.Regularity > 90 && r.Parameters.Overall > 80 {
		out = append(out, models.BehaviorPattern{
			Type:        models.BehaviorMechanicalPrecision,
			Strength:    (r.Regularity + r.Parameters.Overall) / 2,
			Confidence:  95,
			Description: "clock-driven schedule with uniform parameters",
		})
	}
	return out
}

// burstStrength grades the worst observed burst.
func burstStrength(bursts []models.BurstWindow) float64 {
	strength := 0.0
	for _, b := range bursts {
		s := 60.0
		switch b.Suspicion {
		case models.SeverityHigh:
			s = 75
		case models.SeverityCritical:
			s = 90
		case models.SeverityMedium, models.SeverityLow:
			// base strength
		}
		if s > strength {
			strength = s
		}
	}
	return strength
}
