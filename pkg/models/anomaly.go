package models

import "time"

// Severity grades how strongly a single detection deviates from baseline
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// AnomalyType is the closed set of statistical anomaly kinds
type AnomalyType string

const (
	AnomalyAmountOutlier   AnomalyType = "AMOUNT_OUTLIER"
	AnomalyGasPriceOutlier AnomalyType = "GAS_PRICE_OUTLIER"
	AnomalyUnusualTiming   AnomalyType = "UNUSUAL_TIMING"
	AnomalyFrequencySpike  AnomalyType = "FREQUENCY_SPIKE"
)

// ValueRange is the expected interval a flagged value fell outside of
type ValueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// StatisticalAnomaly is one statistically flagged observation.
// Created fresh per detection call, never mutated afterwards.
type StatisticalAnomaly struct {
	Type                 AnomalyType `json:"type"`
	Severity             Severity    `json:"severity"`
	Score                float64     `json:"score"`      // 0-100
	Confidence           float64     `json:"confidence"` // 0-100
	StatisticalMethod    string      `json:"statisticalMethod"`
	Threshold            float64     `json:"threshold"`
	ActualValue          float64     `json:"actualValue"`
	ExpectedRange        ValueRange  `json:"expectedRange"`
	AffectedTransactions []string    `json:"affectedTransactions"`
	Evidence             []string    `json:"evidence"`
}

// WashPatternType is the closed set of wash-trading pattern kinds
type WashPatternType string

const (
	WashRapidReversal      WashPatternType = "RAPID_REVERSAL"
	WashAmountMatching     WashPatternType = "AMOUNT_MATCHING"
	WashCircularFlow       WashPatternType = "CIRCULAR_FLOW"
	WashTimingCoordination WashPatternType = "TIMING_COORDINATION"
)

// WashPattern is one detected wash-trading pattern
type WashPattern struct {
	Type         WashPatternType `json:"type"`
	Strength     float64         `json:"strength"`   // 0-100
	Confidence   float64         `json:"confidence"` // 0-100
	Transactions []string        `json:"transactions"`
	Description  string          `json:"description"`
}

// SuspiciousPair is a pair of transactions with wash-like reciprocity
type SuspiciousPair struct {
	HashA            string  `json:"hashA"`
	HashB            string  `json:"hashB"`
	SuspicionScore   float64 `json:"suspicionScore"` // 0-100
	AmountSimilarity float64 `json:"amountSimilarity"`
	GasSimilarity    float64 `json:"gasSimilarity"`
	TimeGapSeconds   int64   `json:"timeGapSeconds"`
	AddressReversal  bool    `json:"addressReversal"` // to/from swap between the two legs
}

// TransactionChain is a greedily constructed sequence of matched transactions
type TransactionChain struct {
	Transactions      []string `json:"transactions"` // Ordered hashes
	CircularityScore  float64  `json:"circularityScore"`
	LengthScore       float64  `json:"lengthScore"`
	AmountConsistency float64  `json:"amountConsistency"`
	TimingConsistency float64  `json:"timingConsistency"`
	SpanSeconds       int64    `json:"spanSeconds"`
}

// WashTradingResult aggregates all wash-trading signals for one address
type WashTradingResult struct {
	Detected        bool             `json:"detected"`
	RiskScore       float64          `json:"riskScore"`  // 0-100
	Confidence      float64          `json:"confidence"` // 0-100
	Patterns        []WashPattern    `json:"patterns"`
	SuspiciousPairs []SuspiciousPair `json:"suspiciousPairs"`
	Chains          []TransactionChain `json:"chains"`
	Reason          string           `json:"reason,omitempty"` // Set when history is below minimum
}

// BehaviorPatternType is the closed set of bot behavior pattern kinds
type BehaviorPatternType string

const (
	BehaviorRegularIntervals    BehaviorPatternType = "REGULAR_INTERVALS"
	BehaviorIdenticalParameters BehaviorPatternType = "IDENTICAL_PARAMETERS"
	BehaviorBurstActivity       BehaviorPatternType = "BURST_ACTIVITY"
	BehaviorMechanicalPrecision BehaviorPatternType = "MECHANICAL_PRECISION"
)

// BehaviorPattern is one automation signature
type BehaviorPattern struct {
	Type        BehaviorPatternType `json:"type"`
	Strength    float64             `json:"strength"`   // 0-100
	Confidence  float64             `json:"confidence"` // 0-100
	Description string              `json:"description"`
}

// BurstWindow is a dense activity window found by the sliding scan
type BurstWindow struct {
	StartTime        int64    `json:"startTime"` // Unix seconds
	EndTime          int64    `json:"endTime"`
	TransactionCount int      `json:"transactionCount"`
	Intensity        float64  `json:"intensity"` // Transactions per minute
	Suspicion        Severity `json:"suspicion"`
	Transactions     []string `json:"transactions"`
}

// ParameterConsistency measures per-field uniformity of transaction parameters
type ParameterConsistency struct {
	GasPrice              float64 `json:"gasPrice"` // 0-100 each
	GasLimit              float64 `json:"gasLimit"`
	Amount                float64 `json:"amount"`
	Overall               float64 `json:"overall"`
	ArithmeticProgression bool    `json:"arithmeticProgression"` // Amounts step by a constant delta
}

// BotBehaviorResult aggregates automation signals for one address
type BotBehaviorResult struct {
	Detected            bool                 `json:"detected"`
	Probability         float64              `json:"probability"` // 0-100
	Confidence          float64              `json:"confidence"`  // 0-100
	IntervalConsistency float64              `json:"intervalConsistency"`
	Regularity          float64              `json:"regularity"`
	HumanLikeScore      float64              `json:"humanLikeScore"` // 100 = organic, 0 = mechanical
	Parameters          ParameterConsistency `json:"parameters"`
	Patterns            []BehaviorPattern    `json:"patterns"`
	Bursts              []BurstWindow        `json:"bursts"`
	Reason              string               `json:"reason,omitempty"`
}

// CoordinationPatternType is the closed set of coordination pattern kinds
type CoordinationPatternType string

const (
	CoordSynchronizedTiming  CoordinationPatternType = "SYNCHRONIZED_TIMING"
	CoordIdenticalParameters CoordinationPatternType = "IDENTICAL_PARAMETERS"
	CoordCoordinatedAmounts  CoordinationPatternType = "COORDINATED_AMOUNTS"
	CoordNetworkEffects      CoordinationPatternType = "NETWORK_EFFECTS"
)

// CoordinationPattern is one multi-account coordination proxy signal
type CoordinationPattern struct {
	Type         CoordinationPatternType `json:"type"`
	Strength     float64                 `json:"strength"`   // 0-100
	Confidence   float64                 `json:"confidence"` // 0-100
	Transactions []string                `json:"transactions"`
	Description  string                  `json:"description"`
}

// SynchronizedGroup is a run-length cluster of near-simultaneous transactions
type SynchronizedGroup struct {
	StartTime    int64    `json:"startTime"`
	EndTime      int64    `json:"endTime"`
	Transactions []string `json:"transactions"`
	Score        float64  `json:"score"` // 0-100
}

// CoordinationResult aggregates coordination proxy signals for one address
type CoordinationResult struct {
	Detected            bool                  `json:"detected"`
	Score               float64               `json:"score"`      // 0-100
	Confidence          float64               `json:"confidence"` // 0-100
	Patterns            []CoordinationPattern `json:"patterns"`
	Groups              []SynchronizedGroup   `json:"groups"`
	ParameterMatchScore float64               `json:"parameterMatchScore"` // Largest gas-price group ratio, 0-100
	Reason              string                `json:"reason,omitempty"`
}

// AnomalyFlags summarizes detector verdicts for quick triage
type AnomalyFlags struct {
	RequiresInvestigation bool `json:"requiresInvestigation"` // True iff overall score > 70
	WashTradingSuspected  bool `json:"washTradingSuspected"`
	BotBehaviorSuspected  bool `json:"botBehaviorSuspected"`
	CoordinationSuspected bool `json:"coordinationSuspected"`
}

// AnomalyDetectionResult is the full anomaly verdict for one address
// at a point in time. Invariants: OverallAnomalyScore and Confidence are
// in [0,100], and Flags.RequiresInvestigation holds exactly when
// OverallAnomalyScore exceeds 70.
type AnomalyDetectionResult struct {
	Address              string               `json:"address"`
	Timestamp            time.Time            `json:"timestamp"`
	TransactionCount     int                  `json:"transactionCount"`
	OverallAnomalyScore  float64              `json:"overallAnomalyScore"` // 0-100
	Confidence           float64              `json:"confidence"`          // 0-100
	StatisticalAnomalies []StatisticalAnomaly `json:"statisticalAnomalies"`
	WashTrading          WashTradingResult    `json:"washTrading"`
	BotBehavior          BotBehaviorResult    `json:"botBehavior"`
	Coordination         CoordinationResult   `json:"coordination"`
	Flags                AnomalyFlags         `json:"flags"`
	Reason               string               `json:"reason,omitempty"` // Set when history is below minimum
}
