package models

// TransactionRecord is one historical transaction of the address under
// analysis, as delivered by the ingestion service. The engine treats
// records as immutable and only ever reads them.
type TransactionRecord struct {
	Hash         string `json:"hash"`                   // Unique transaction id
	Timestamp    int64  `json:"timestamp"`              // Unix seconds
	Value        string `json:"value"`                  // Decimal string, ETH
	GasPrice     string `json:"gasPrice"`               // Decimal string, Gwei
	GasUsed      int64  `json:"gasUsed"`                // Gas consumed
	From         string `json:"from"`                   // Sender address
	To           string `json:"to"`                     // Recipient address
	ProtocolName string `json:"protocolName,omitempty"` // Known protocol, if attributed upstream
	IsDeFi       bool   `json:"isDeFi"`
	IsStaking    bool   `json:"isStaking"`
}

// UserProfile holds the aggregated per-address metrics computed by the
// profile service. One profile per address; refreshed externally.
type UserProfile struct {
	Address             string   `json:"address"`
	AccountAge          int      `json:"accountAge"` // Days since first activity
	TotalTransactions   int      `json:"totalTransactions"`
	TotalVolume         float64  `json:"totalVolume"`         // Lifetime volume in ETH
	AvgTransactionValue float64  `json:"avgTransactionValue"` // ETH
	LastTransactionDate int64    `json:"lastTransactionDate"` // Unix seconds
	StakingBalance      float64  `json:"stakingBalance"`      // ETH currently staked
	DeFiProtocolsUsed   []string `json:"defiProtocolsUsed"`   // Distinct protocol names
}
