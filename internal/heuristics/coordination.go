package heuristics

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/rawblock/txrisk-engine/pkg/models"
)

// Coordinated Activity Detection Module
//
// True multi-account coordination needs cross-address graph analysis,
// which lives outside this engine. What a single address's history CAN
// reveal is the residue coordination leaves behind:
//
//   1. Synchronized timing: runs of transactions landing within seconds
//      of each other (shared trigger)
//   2. Identical parameters: one gas price dominating the history
//      (shared signing infrastructure)
//   3. Coordinated amounts: round numbers and repeated exact amounts
//      (scripted distributions)
//   4. Network effects: violent gas-price swings and sustained priority
//      fees (competing for the same blocks as the counterpart accounts)
//
// These are proxies, not proof — the composite weighting keeps any one
// signal from driving the verdict alone.

// coordPatternWeight maps each pattern kind to its composite weight.
// Exhaustive over the closed CoordinationPatternType set.
func coordPatternWeight(t models.CoordinationPatternType) float64 {
	switch t {
	case models.CoordSynchronizedTiming:
		return 30
	case models.CoordIdenticalParameters:
		return 25
	case models.CoordCoordinatedAmounts:
		return 20
	case models.CoordNetworkEffects:
		return 15
	}
	return 0
}

// DetectCoordinatedActivity scans a history for coordination proxy signals.
// Needs at least cfg.MinCoordTxs transactions.
func DetectCoordinatedActivity(cfg Thresholds, txs []models.TransactionRecord) models.CoordinationResult {
	if len(txs) < cfg.MinCoordTxs {
		return models.CoordinationResult{
			Reason: fmt.Sprintf("coordination analysis requires at least %d transactions, got %d", cfg.MinCoordTxs, len(txs)),
		}
	}
	series := newSeries(txs)

	result := models.CoordinationResult{}

	syncPattern, groups := findSynchronizedTiming(cfg, series)
	if syncPattern != nil {
		result.Patterns = append(result.Patterns, *syncPattern)
	}
	result.Groups = groups

	identPattern, matchScore := findIdenticalParameters(series)
	result.ParameterMatchScore = matchScore
	if identPattern != nil {
		result.Patterns = append(result.Patterns, *identPattern)
	}
	if p := findCoordinatedAmounts(series); p != nil {
		result.Patterns = append(result.Patterns, *p)
	}
	if p := findNetworkEffects(cfg, series); p != nil {
		result.Patterns = append(result.Patterns, *p)
	}

	score := 0.0
	for _, p := range result.Patterns {
		score += p.Strength / 100 * coordPatternWeight(p.Type)
	}
	if len(groups) > 0 {
		meanGroup := 0.0
		for _, g := range groups {
			meanGroup += g.Score
		}
		meanGroup /= float64(len(groups))
		score += meanGroup * 0.20
	}
	score += matchScore * 0.15
	result.Score = math.Min(100, score)

	result.Detected = result.Score > cfg.CoordDetectScore
	for _, p := range result.Patterns {
		if p.Strength > 75 {
			result.Detected = true
		}
	}

	result.Confidence = math.Min(95, 40+float64(len(result.Patterns))*15+math.Min(15, float64(len(series))))
	return result
}

// findSynchronizedTiming run-length clusters the series on a maximum
// consecutive gap. Clusters of 3+ become synchronized groups; the pattern
// strength scales with the share of the history that sits inside clusters.
func findSynchronizedTiming(cfg Thresholds, series []txView) (*models.CoordinationPattern, []models.SynchronizedGroup) {
	var groups []models.SynchronizedGroup
	var clustered []string

	start := 0
	flush := func(end int) { // [start, end) is one run
		if end-start < 3 {
			return
		}
		run := series[start:end]
		groups = append(groups, models.SynchronizedGroup{
			StartTime:    run[0].Timestamp,
			EndTime:      run[len(run)-1].Timestamp,
			Transactions: hashes(run),
			Score:        math.Min(100, float64(len(run))/float64(len(series))*150),
		})
		clustered = append(clustered, hashes(run)...)
	}
	for i := 1; i < len(series); i++ {
		if series[i].Timestamp-series[i-1].Timestamp > cfg.CoordWindowSec {
			flush(i)
			start = i
		}
	}
	flush(len(series))

	if len(clustered) == 0 {
		return nil, nil
	}
	strength := math.Min(100, float64(len(clustered))/float64(len(series))*150)
	if strength < 30 {
		return nil, groups
	}
	return &models.CoordinationPattern{
		Type:         models.CoordSynchronizedTiming,
		Strength:     strength,
		Confidence:   math.Min(90, strength),
		Transactions: clustered,
		Description:  fmt.Sprintf("%d of %d transactions fall in synchronized clusters", len(clustered), len(series)),
	}, groups
}

// findIdenticalParameters looks for one gas price dominating the history.
// Returns the pattern (when the dominant group covers 80%+ with 3+ members)
// and the raw dominance ratio as a 0-100 score for the composite.
func findIdenticalParameters(series []txView) (*models.CoordinationPattern, float64) {
	groups := make(map[float64][]txView)
	for _, v := range series {
		groups[v.Gas] = append(groups[v.Gas], v)
	}

	var dominant []txView
	var dominantGas float64
	for gas, group := range groups {
		if len(group) > len(dominant) || (len(group) == len(dominant) && gas < dominantGas) {
			dominant = group
			dominantGas = gas
		}
	}

	ratio := float64(len(dominant)) / float64(len(series))
	matchScore := math.Min(100, ratio*100)

	if ratio < 0.8 || len(dominant) < 3 {
		return nil, matchScore
	}
	return &models.CoordinationPattern{
		Type:         models.CoordIdenticalParameters,
		Strength:     math.Min(100, ratio*125),
		Confidence:   85,
		Transactions: hashes(dominant),
		Description:  fmt.Sprintf("%.0f%% of transactions share gas price %.2f Gwei", ratio*100, dominantGas),
	}, matchScore
}

// findCoordinatedAmounts combines two scripted-distribution signals:
// round amounts (at most one significant decimal, i.e. three or more
// trailing zeros at 4-decimal precision) and exact amounts repeated 3+
// times covering over 30% of the history.
func findCoordinatedAmounts(series []txView) *models.CoordinationPattern {
	round := 0
	counts := make(map[string]int)
	for _, v := range series {
		if isRoundAmount(v.Value) {
			round++
		}
		counts[amountKey(v.Value)]++
	}

	identical := 0
	for _, c := range counts {
		if c >= 3 {
			identical += c
		}
	}

	roundRatio := float64(round) / float64(len(series))
	identicalRatio := float64(identical) / float64(len(series))

	strength := 0.0
	if roundRatio > 0.5 {
		strength += 60 * roundRatio
	}
	if identicalRatio > 0.3 {
		strength += 40 * identicalRatio
	}
	if strength < 30 {
		return nil
	}

	var affected []string
	for _, v := range series {
		if isRoundAmount(v.Value) || counts[amountKey(v.Value)] >= 3 {
			affected = append(affected, v.Hash)
		}
	}
	return &models.CoordinationPattern{
		Type:         models.CoordCoordinatedAmounts,
		Strength:     math.Min(100, strength),
		Confidence:   80,
		Transactions: affected,
		Description: fmt.Sprintf("%.0f%% round amounts, %.0f%% repeated exact amounts",
			roundRatio*100, identicalRatio*100),
	}
}

// isRoundAmount reports whether an amount has at most one significant
// decimal digit (1.5, 2.0, 10 — the kind humans type and scripts emit
// when splitting allocations).
func isRoundAmount(value string) bool {
	d, err := decimal.NewFromString(value)
	if err != nil || d.IsZero() {
		return false
	}
	return d.Equal(d.Round(1))
}

// findNetworkEffects measures block-competition residue: the share of
// consecutive gas-price swings above 10%, and sustained priority-fee
// pressure above the high-gas threshold.
func findNetworkEffects(cfg Thresholds, series []txView) *models.CoordinationPattern {
	if len(series) < 2 {
		return nil
	}
	gas := gasPrices(series)

	swings := 0
	for i := 1; i < len(gas); i++ {
		if gas[i-1] > 0 && math.Abs(gas[i]-gas[i-1])/gas[i-1] > 0.1 {
			swings++
		}
	}
	swingRatio := float64(swings) / float64(len(gas)-1)

	high := 0
	for _, g := range gas {
		if g > cfg.HighGasGwei {
			high++
		}
	}
	highGasRatio := float64(high) / float64(len(gas))

	strength := 0.0
	if swingRatio > 0.4 {
		strength += 50 * swingRatio
	}
	if highGasRatio > 0.7 {
		strength += 30
	}
	if strength < 25 {
		return nil
	}

	// Deterministic affected set: the swing endpoints
	var affected []string
	seen := make(map[string]bool)
	for i := 1; i < len(gas); i++ {
		if gas[i-1] > 0 && math.Abs(gas[i]-gas[i-1])/gas[i-1] > 0.1 {
			for _, h := range []string{series[i-1].Hash, series[i].Hash} {
				if !seen[h] {
					seen[h] = true
					affected = append(affected, h)
				}
			}
		}
	}
	sort.Strings(affected)

	return &models.CoordinationPattern{
		Type:         models.CoordNetworkEffects,
		Strength:     math.Min(100, strength),
		Confidence:   70,
		Transactions: affected,
		Description: fmt.Sprintf("%.0f%% gas swings above 10%%, %.0f%% priority-fee transactions",
			swingRatio*100, highGasRatio*100),
	}
}
