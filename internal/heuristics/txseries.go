package heuristics

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rawblock/txrisk-engine/pkg/models"
)

// Transaction Series Utilities
//
// Every detector works on the same prepared view of the input: records
// sorted by time with value/gasPrice decimal strings parsed once. Sorting
// ties are broken by hash so that two calls over the same snapshot walk
// the series in the same order — the whole engine must be idempotent.
//
// Malformed numeric strings are an upstream data defect (the ingestion
// service owns field validity); they parse as 0 here rather than failing
// the evaluation.

// txView is a TransactionRecord with its numeric fields parsed
type txView struct {
	models.TransactionRecord
	Amount float64 // ETH
	Gas    float64 // Gwei
}

// newSeries parses and time-sorts the records. The input slice is not modified.
func newSeries(txs []models.TransactionRecord) []txView {
	views := make([]txView, len(txs))
	for i, tx := range txs {
		views[i] = txView{
			TransactionRecord: tx,
			Amount:            parseDecimal(tx.Value),
			Gas:               parseDecimal(tx.GasPrice),
		}
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Timestamp != views[j].Timestamp {
			return views[i].Timestamp < views[j].Timestamp
		}
		return views[i].Hash < views[j].Hash
	})
	return views
}

// parseDecimal converts a decimal string to float64, 0 on malformed input.
func parseDecimal(s string) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// amountKey buckets a decimal amount string to 4 decimal places.
// Bucketing happens in decimal space so that 1.00005 and 1.0001 land
// where base-10 rounding puts them, not where float64 does.
func amountKey(s string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return "0"
	}
	return d.Round(4).String()
}

// amounts extracts the parsed ETH amounts in series order.
func amounts(series []txView) []float64 {
	out := make([]float64, len(series))
	for i, v := range series {
		out[i] = v.Amount
	}
	return out
}

// gasPrices extracts the parsed Gwei gas prices in series order.
func gasPrices(series []txView) []float64 {
	out := make([]float64, len(series))
	for i, v := range series {
		out[i] = v.Gas
	}
	return out
}

// intervals returns the inter-arrival gaps in seconds of the time-sorted series.
func intervals(series []txView) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		out[i-1] = float64(series[i].Timestamp - series[i-1].Timestamp)
	}
	return out
}

// similarity measures how close two non-negative values are:
// 1 - |a-b|/max(a,b), in [0,1]. Two zeros have no magnitude to compare
// and score 0.
func similarity(a, b float64) float64 {
	maxAB := math.Max(a, b)
	if maxAB == 0 {
		return 0
	}
	s := 1 - math.Abs(a-b)/maxAB
	if s < 0 {
		return 0
	}
	return s
}

// addressesReversed reports whether the second leg flows back along the
// first leg's path (to/from swapped). Case-insensitive hex comparison.
func addressesReversed(a, b models.TransactionRecord) bool {
	return strings.EqualFold(a.From, b.To) && strings.EqualFold(a.To, b.From)
}

// hashes collects the transaction hashes of a sub-series.
func hashes(series []txView) []string {
	out := make([]string, len(series))
	for i, v := range series {
		out[i] = v.Hash
	}
	return out
}
