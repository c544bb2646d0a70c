package heuristics

// Detection Thresholds
//
// Every tunable cutoff the detectors use, gathered into one immutable
// value that is passed explicitly to the engine. There is no package
// level mutable state: a process can run two engines with different
// thresholds side by side (production + shadow calibration) without
// them interfering.
//
// Formula coefficients that define a detector's identity (severity
// weights, confidence constants, score multipliers) are deliberately
// NOT here — changing them produces a different detector, not a tuned
// one, and they live next to the formulas they belong to.

// Thresholds holds the detector cutoffs. Treat as read-only after construction.
type Thresholds struct {
	// Statistical anomaly detection
	ZCritical float64 // z-score for CRITICAL severity
	ZHigh     float64 // z-score for HIGH severity

	// Minimum-data guards. Below these each detector returns its
	// defined empty result instead of an error.
	MinAnomalyTxs   int // overall anomaly detection
	MinZTestTxs     int // amount / gas-price z-tests
	MinFrequencyTxs int // daily frequency anomaly
	MinWashTxs      int // wash trading
	MinBotTxs       int // bot behavior
	MinCoordTxs     int // coordinated activity

	// Wash trading
	ReversalWindowSec int64   // rapid-reversal triple span
	MatchingWindowSec int64   // amount-matching group span
	PairSimilarity    float64 // minimum amount similarity for suspicious pairs
	ChainSimilarity   float64 // minimum link similarity for chain extension
	ChainMaxLength    int
	DustAmountETH     float64 // amounts at or below this are ignored by pair/group scans
	PairKeepScore     float64 // suspicion score a pair must exceed
	ChainKeepScore    float64 // circularity score a chain must exceed
	MaxPairs          int     // top-N pairs returned
	MaxChains         int     // top-N chains returned
	WashDetectScore   float64 // aggregate score above which wash trading is detected

	// Bot behavior
	BurstWindowSec int64 // sliding burst window
	MinBurstTxs    int   // transactions required inside the window
	BotDetectProb  float64

	// Coordinated activity
	CoordWindowSec   int64   // synchronized-timing cluster gap
	HighGasGwei      float64 // gas price considered "priority" for network effects
	CoordDetectScore float64

	// Aggregation
	InvestigationScore float64 // overall anomaly score above which investigation is required
}

// DefaultThresholds returns the calibrated production cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ZCritical: 3.0,
		ZHigh:     2.5,

		MinAnomalyTxs:   3,
		MinZTestTxs:     5,
		MinFrequencyTxs: 10,
		MinWashTxs:      4,
		MinBotTxs:       5,
		MinCoordTxs:     3,

		ReversalWindowSec: 3600,
		MatchingWindowSec: 7200,
		PairSimilarity:    0.95,
		ChainSimilarity:   0.7,
		ChainMaxLength:    6,
		DustAmountETH:     0.01,
		PairKeepScore:     70,
		ChainKeepScore:    60,
		MaxPairs:          10,
		MaxChains:         5,
		WashDetectScore:   60,

		BurstWindowSec: 600,
		MinBurstTxs:    5,
		BotDetectProb:  70,

		CoordWindowSec:   300,
		HighGasGwei:      50,
		CoordDetectScore: 60,

		InvestigationScore: 70,
	}
}
