package heuristics

import (
	"fmt"
	"math"
	"sort"

	"github.com/rawblock/txrisk-engine/internal/stats"
	"github.com/rawblock/txrisk-engine/pkg/models"
)

// Wash Trading Detection Module
//
// Wash trading inflates apparent activity with self-reversing or circular
// trades. Within a single address's history the detectable residue is:
//
//   1. Rapid reversals: A→B→A value ping-pong inside an hour
//   2. Amount matching: 3+ transactions sharing an amount (4-decimal
//      bucket) inside two hours
//   3. Suspicious pairs: near-identical amounts close in time, scored on
//      similarity, time proximity, gas similarity, and address reversal
//   4. Circular chains: greedy forward extension over similar amounts,
//      scored for circularity (length + amount CV + interval CV)
//   5. Timing coordination: 5-minute windows of 3+ low-variance amounts
//
// The aggregate risk score is a weighted sum of pattern confidences plus
// pair and chain contributions, capped at 100. Pair/chain scans are O(n²)
// in the worst case — callers bound the history size.

// washPatternWeight maps each pattern kind to its aggregate weight.
// The switch is exhaustive over the closed WashPatternType set; adding a
// kind without a weight is caught in review, not at runtime by a map miss.
func washPatternWeight(t models.WashPatternType) float64 {
	switch t {
	case models.WashRapidReversal:
		return 25
	case models.WashCircularFlow:
		return 30
	case models.WashAmountMatching:
		return 20
	case models.WashTimingCoordination:
		return 15
	}
	return 0
}

// DetectWashTrading scans a history for wash-trading patterns.
// Needs at least cfg.MinWashTxs transactions.
func DetectWashTrading(cfg Thresholds, txs []models.TransactionRecord) models.WashTradingResult {
	if len(txs) < cfg.MinWashTxs {
		return models.WashTradingResult{
			Reason: fmt.Sprintf("wash trading analysis requires at least %d transactions, got %d", cfg.MinWashTxs, len(txs)),
		}
	}
	series := newSeries(txs)

	result := models.WashTradingResult{}
	result.Patterns = append(result.Patterns, findRapidReversals(cfg, series)...)
	result.Patterns = append(result.Patterns, findAmountMatching(cfg, series)...)
	result.Patterns = append(result.Patterns, findTimingCoordination(cfg, series)...)
	result.SuspiciousPairs = findSuspiciousPairs(cfg, series)
	result.Chains = findCircularChains(cfg, series)

	// A chain whose endpoints carry matched amounts is a closed loop,
	// which is its own pattern on top of the chain contribution.
	for _, chain := range result.Chains {
		first, last := chainEndpoints(series, chain)
		if similarity(first, last) > 0.9 {
			result.Patterns = append(result.Patterns, models.WashPattern{
				Type:         models.WashCircularFlow,
				Strength:     chain.CircularityScore,
				Confidence:   math.Min(90, chain.CircularityScore),
				Transactions: chain.Transactions,
				Description:  fmt.Sprintf("closed loop of %d transactions with matched endpoint amounts", len(chain.Transactions)),
			})
		}
	}

	score := 0.0
	for _, p := range result.Patterns {
		score += p.Confidence / 100 * washPatternWeight(p.Type)
	}
	for _, pair := range result.SuspiciousPairs {
		score += pair.SuspicionScore / 100 * 15
	}
	for _, chain := range result.Chains {
		score += chain.CircularityScore / 100 * 20
	}
	result.RiskScore = math.Min(100, score)

	result.Detected = result.RiskScore > cfg.WashDetectScore ||
		len(result.Patterns) > 2 ||
		len(result.SuspiciousPairs) > 1

	result.Confidence = washConfidence(len(series), result)
	return result
}

// washConfidence combines sample size, pattern diversity, and signal
// presence into the result confidence, capped at 100.
func washConfidence(txCount int, r models.WashTradingResult) float64 {
	conf := math.Min(20, float64(txCount)) // more history, more trust

	kinds := make(map[models.WashPatternType]bool)
	for _, p := range r.Patterns {
		kinds[p.Type] = true
	}
	conf += float64(len(kinds)) * 15

	if len(r.Patterns) > 0 {
		conf += 20
	}
	if len(r.SuspiciousPairs) > 0 {
		conf += 15
	}
	if len(r.Chains) > 0 {
		conf += 20
	}
	return math.Min(100, conf)
}

// findRapidReversals scans consecutive triples (t1,t2,t3) for value
// ping-pong: t2 mirrors t1 closely, t3 returns near t1's amount, all
// inside the reversal window.
func findRapidReversals(cfg Thresholds, series []txView) []models.WashPattern {
	var out []models.WashPattern
	for i := 0; i+2 < len(series); i++ {
		t1, t2, t3 := series[i], series[i+1], series[i+2]
		if t3.Timestamp-t1.Timestamp >= cfg.ReversalWindowSec {
			continue
		}
		sim12 := similarity(t1.Amount, t2.Amount)
		sim13 := similarity(t1.Amount, t3.Amount)
		if sim12 <= 0.9 || sim13 <= 0.8 {
			continue
		}
		avgSim := (sim12 + sim13) / 2
		out = append(out, models.WashPattern{
			Type:         models.WashRapidReversal,
			Strength:     math.Min(100, avgSim*100),
			Confidence:   math.Min(95, avgSim*100),
			Transactions: []string{t1.Hash, t2.Hash, t3.Hash},
			Description: fmt.Sprintf("value reversal of ~%.4f ETH within %ds",
				t1.Amount, t3.Timestamp-t1.Timestamp),
		})
	}
	return out
}

// findAmountMatching groups transactions by amount bucketed to 4 decimals
// and flags tight groups of repeated non-dust amounts.
func findAmountMatching(cfg Thresholds, series []txView) []models.WashPattern {
	groups := make(map[string][]txView)
	for _, v := range series {
		key := amountKey(v.Value)
		groups[key] = append(groups[key], v)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []models.WashPattern
	for _, key := range keys {
		group := groups[key]
		if len(group) < 3 {
			continue
		}
		amount := parseDecimal(key)
		if amount <= cfg.DustAmountETH {
			continue
		}
		span := group[len(group)-1].Timestamp - group[0].Timestamp
		if span >= cfg.MatchingWindowSec {
			continue
		}
		out = append(out, models.WashPattern{
			Type:         models.WashAmountMatching,
			Strength:     math.Min(100, float64(len(group))*20),
			Confidence:   math.Min(90, float64(len(group))*20),
			Transactions: hashes(group),
			Description:  fmt.Sprintf("%d transactions of %s ETH within %ds", len(group), key, span),
		})
	}
	return out
}

// findSuspiciousPairs scores every close-in-time pair of non-dust,
// near-identical amounts. Score composition:
//
//	40% amount similarity
//	up to 30 points of time proximity, decaying linearly to 0 over one hour
//	20% gas-price similarity
//	10 point bonus when the to/from addresses reverse between the legs
//
// Pairs scoring above the keep threshold are returned, best first, top N.
func findSuspiciousPairs(cfg Thresholds, series []txView) []models.SuspiciousPair {
	var pairs []models.SuspiciousPair
	for i := 0; i < len(series); i++ {
		if series[i].Amount <= cfg.DustAmountETH {
			continue
		}
		for j := i + 1; j < len(series); j++ {
			dt := series[j].Timestamp - series[i].Timestamp
			if dt >= cfg.ReversalWindowSec {
				break // series is time-sorted, later j only grow the gap
			}
			if series[j].Amount <= cfg.DustAmountETH {
				continue
			}
			sim := similarity(series[i].Amount, series[j].Amount)
			if sim <= cfg.PairSimilarity {
				continue
			}
			gasSim := similarity(series[i].Gas, series[j].Gas)
			reversed := addressesReversed(series[i].TransactionRecord, series[j].TransactionRecord)

			score := 40*sim + 30*(1-float64(dt)/float64(cfg.ReversalWindowSec)) + 20*gasSim
			if reversed {
				score += 10
			}
			if score <= cfg.PairKeepScore {
				continue
			}
			pairs = append(pairs, models.SuspiciousPair{
				HashA:            series[i].Hash,
				HashB:            series[j].Hash,
				SuspicionScore:   math.Min(100, score),
				AmountSimilarity: sim,
				GasSimilarity:    gasSim,
				TimeGapSeconds:   dt,
				AddressReversal:  reversed,
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].SuspicionScore != pairs[j].SuspicionScore {
			return pairs[i].SuspicionScore > pairs[j].SuspicionScore
		}
		if pairs[i].HashA != pairs[j].HashA {
			return pairs[i].HashA < pairs[j].HashA
		}
		return pairs[i].HashB < pairs[j].HashB
	})
	if len(pairs) > cfg.MaxPairs {
		pairs = pairs[:cfg.MaxPairs]
	}
	return pairs
}

// findCircularChains greedily extends a chain from each unconsumed start
// index: the next link must land inside the window of the chain's tail and
// match its amount. Chains of 3+ links are scored for circularity:
//
//	length score      ≤ 30 (5 per link)
//	amount consistency ≤ 40 (from the CV of link amounts)
//	timing consistency ≤ 30 (from the CV of link intervals)
//
// Chains above the keep threshold are returned, best first, top N.
func findCircularChains(cfg Thresholds, series []txView) []models.TransactionChain {
	consumed := make([]bool, len(series))
	var chains []models.TransactionChain

	for start := 0; start < len(series); start++ {
		if consumed[start] {
			continue
		}
		idx := []int{start}
		last := start
		for next := start + 1; next < len(series) && len(idx) < cfg.ChainMaxLength; next++ {
			if consumed[next] {
				continue
			}
			if series[next].Timestamp-series[last].Timestamp >= cfg.ReversalWindowSec {
				break
			}
			if similarity(series[last].Amount, series[next].Amount) <= cfg.ChainSimilarity {
				continue
			}
			idx = append(idx, next)
			last = next
		}
		if len(idx) < 3 {
			continue
		}

		links := make([]txView, len(idx))
		for i, k := range idx {
			links[i] = series[k]
		}
		chain := scoreChain(links)
		if chain.CircularityScore <= cfg.ChainKeepScore {
			continue
		}
		for _, k := range idx {
			consumed[k] = true
		}
		chains = append(chains, chain)
	}

	sort.Slice(chains, func(i, j int) bool {
		if chains[i].CircularityScore != chains[j].CircularityScore {
			return chains[i].CircularityScore > chains[j].CircularityScore
		}
		return chains[i].Transactions[0] < chains[j].Transactions[0]
	})
	if len(chains) > cfg.MaxChains {
		chains = chains[:cfg.MaxChains]
	}
	return chains
}

// scoreChain computes the circularity decomposition for a linked sequence.
func scoreChain(links []txView) models.TransactionChain {
	lengthScore := math.Min(30, float64(len(links))*5)
	amountConsistency := 40 * math.Max(0, 1-stats.CV(amounts(links)))
	timingConsistency := 30 * math.Max(0, 1-stats.CV(intervals(links)))

	return models.TransactionChain{
		Transactions:      hashes(links),
		CircularityScore:  lengthScore + amountConsistency + timingConsistency,
		LengthScore:       lengthScore,
		AmountConsistency: amountConsistency,
		TimingConsistency: timingConsistency,
		SpanSeconds:       links[len(links)-1].Timestamp - links[0].Timestamp,
	}
}

// chainEndpoints returns the first and last link amounts of a chain.
func chainEndpoints(series []txView, chain models.TransactionChain) (first, last float64) {
	byHash := make(map[string]float64, len(series))
	for _, v := range series {
		byHash[v.Hash] = v.Amount
	}
	return byHash[chain.Transactions[0]], byHash[chain.Transactions[len(chain.Transactions)-1]]
}

// findTimingCoordination buckets the series into fixed 5-minute windows
// and flags windows holding 3+ transactions with near-uniform amounts.
func findTimingCoordination(cfg Thresholds, series []txView) []models.WashPattern {
	windows := make(map[int64][]txView)
	var order []int64
	for _, v := range series {
		w := v.Timestamp / cfg.CoordWindowSec
		if _, seen := windows[w]; !seen {
			order = append(order, w)
		}
		windows[w] = append(windows[w], v)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	var out []models.WashPattern
	for _, w := range order {
		group := windows[w]
		if len(group) < 3 {
			continue
		}
		cv := stats.CV(amounts(group))
		if cv >= 0.2 {
			continue
		}
		out = append(out, models.WashPattern{
			Type:         models.WashTimingCoordination,
			Strength:     math.Min(100, (1-cv)*100),
			Confidence:   math.Min(85, (1-cv)*100),
			Transactions: hashes(group),
			Description:  fmt.Sprintf("%d near-uniform amounts inside one %ds window", len(group), cfg.CoordWindowSec),
		})
	}
	return out
}
