package models

import "time"

// RiskLevel is the banded risk grade. Banding over a 0-100 score:
// >=80 CRITICAL, >=60 HIGH, >=40 MEDIUM, else LOW.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskFactor is one scored risk dimension with its human-readable context
type RiskFactor struct {
	Name                  string    `json:"name"`
	Level                 RiskLevel `json:"level"`
	Score                 float64   `json:"score"`      // 0-100
	Confidence            float64   `json:"confidence"` // 0-100
	Explanation           string    `json:"explanation"`
	Indicators            []string  `json:"indicators"`
	MitigationSuggestions []string  `json:"mitigationSuggestions"`
}

// SuspiciousActivityFlags mirrors the detector verdicts on the assessment
type SuspiciousActivityFlags struct {
	WashTrading           bool `json:"washTrading"`
	BotBehavior           bool `json:"botBehavior"`
	CoordinatedActivity   bool `json:"coordinatedActivity"`
	StatisticalAnomalies  bool `json:"statisticalAnomalies"`
	RequiresInvestigation bool `json:"requiresInvestigation"`
}

// Recommendation is one prioritized mitigation step
type Recommendation struct {
	Priority  int    `json:"priority"` // 1 = most urgent
	Category  string `json:"category"` // Which dimension produced it
	Action    string `json:"action"`
	Timeframe string `json:"timeframe"` // "immediate"/"7d"/"30d"
}

// RiskAssessment is the composite multi-dimensional verdict for an address.
// Invariant: OverallLevel is a pure function of OverallScore (40/60/80 bands).
type RiskAssessment struct {
	Address         string                  `json:"address"`
	Timestamp       time.Time               `json:"timestamp"`
	OverallScore    float64                 `json:"overallScore"` // 0-100
	OverallLevel    RiskLevel               `json:"overallLevel"`
	Confidence      float64                 `json:"confidence"` // 0-100
	Concentration   RiskFactor              `json:"concentration"`
	Volatility      RiskFactor              `json:"volatility"`
	Inactivity      RiskFactor              `json:"inactivity"`
	NewAccount      RiskFactor              `json:"newAccount"`
	Anomaly         RiskFactor              `json:"anomaly"`
	Liquidity       RiskFactor              `json:"liquidity"`
	Flags           SuspiciousActivityFlags `json:"flags"`
	Recommendations []Recommendation        `json:"recommendations"`
}

// TransactionCategory is the closed set of transaction classifications
type TransactionCategory string

const (
	CategoryDexTrading          TransactionCategory = "DEX_TRADING"
	CategoryDexAggregator       TransactionCategory = "DEX_AGGREGATOR"
	CategoryLending             TransactionCategory = "LENDING"
	CategoryStaking             TransactionCategory = "STAKING"
	CategoryNFT                 TransactionCategory = "NFT"
	CategoryMixer               TransactionCategory = "MIXER"
	CategoryDeFi                TransactionCategory = "DEFI"
	CategoryTransfer            TransactionCategory = "TRANSFER"
	CategoryContractInteraction TransactionCategory = "CONTRACT_INTERACTION"
	CategoryUnknown             TransactionCategory = "UNKNOWN"
)

// SophisticationTier grades the protocol complexity a user interacts with
type SophisticationTier string

const (
	TierBasic        SophisticationTier = "BASIC"
	TierIntermediate SophisticationTier = "INTERMEDIATE"
	TierAdvanced     SophisticationTier = "ADVANCED"
	TierExpert       SophisticationTier = "EXPERT"
)

// CategoryResult classifies a single transaction
type CategoryResult struct {
	Category       TransactionCategory `json:"category"`
	Protocol       string              `json:"protocol,omitempty"` // Registry hit, if any
	Sophistication SophisticationTier  `json:"sophistication"`
	Tags           []string            `json:"tags,omitempty"`
	Confidence     float64             `json:"confidence"` // 0-100
	Method         string              `json:"method"`     // "registry"/"flag"/"heuristic"
}

// GasRating is the fixed Gwei efficiency band
type GasRating string

const (
	GasExcellent GasRating = "EXCELLENT" // <= 20 Gwei
	GasGood      GasRating = "GOOD"      // <= 50 Gwei
	GasAverage   GasRating = "AVERAGE"   // <= 100 Gwei
	GasPoor      GasRating = "POOR"
)

// GasEfficiency rates one transaction's gas price
type GasEfficiency struct {
	Rating         GasRating `json:"rating"`
	Score          float64   `json:"score"` // 0-100, continuous within band
	GasPriceGwei   float64   `json:"gasPriceGwei"`
	MarketAdjusted bool      `json:"marketAdjusted"` // Market-context adjustment applied
}

// TemporalPatternTag summarizes how a transaction sits in its history's rhythm
type TemporalPatternTag string

const (
	TemporalRegular   TemporalPatternTag = "REGULAR"
	TemporalBurst     TemporalPatternTag = "BURST"
	TemporalIrregular TemporalPatternTag = "IRREGULAR"
)

// TransactionRiskFactor is one flagged aspect of a single transaction
type TransactionRiskFactor struct {
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
	Score    float64  `json:"score"` // 0-100
	Detail   string   `json:"detail"`
}

// TransactionAnalysis is the per-transaction verdict in context of history
type TransactionAnalysis struct {
	Hash            string                  `json:"hash"`
	RiskScore       float64                 `json:"riskScore"` // 0-100
	RiskLevel       RiskLevel               `json:"riskLevel"`
	RiskFactors     []TransactionRiskFactor `json:"riskFactors"`
	GasEfficiency   GasEfficiency           `json:"gasEfficiency"`
	TemporalPattern TemporalPatternTag      `json:"temporalPattern"`
	IsTimingOutlier bool                    `json:"isTimingOutlier"` // Gap deviates > 2 sigma from mean
	Category        CategoryResult          `json:"category"`
}
