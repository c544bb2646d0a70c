package heuristics

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/rawblock/txrisk-engine/pkg/models"
)

// Transaction Categorization Module
//
// Classifies a transaction by destination. The primary path is a static
// registry of known protocol contracts (confidence 95); the fallbacks
// degrade gracefully:
//
//	isStaking flag            → STAKING, confidence 80
//	isDeFi flag               → generic DEFI, confidence 75
//	value/gas-used quadrant   → TRANSFER / CONTRACT_INTERACTION / UNKNOWN
//
// The registry is read-only after process start. Sophistication tiers
// grade how advanced the protocol's typical user is — registry entries
// feed the concentration and liquidity risk dimensions.

// ProtocolInfo describes one known protocol contract
type ProtocolInfo struct {
	Name           string
	Category       models.TransactionCategory
	Sophistication models.SophisticationTier
	Tags           []string
}

// ProtocolRegistry maps known contract addresses to protocol metadata
type ProtocolRegistry map[common.Address]ProtocolInfo

// DefaultProtocolRegistry returns the built-in mainnet contract table.
func DefaultProtocolRegistry() ProtocolRegistry {
	return ProtocolRegistry{
		common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"): {
			Name: "Uniswap V2", Category: models.CategoryDexTrading,
			Sophistication: models.TierIntermediate, Tags: []string{"dex", "amm"},
		},
		common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564"): {
			Name: "Uniswap V3", Category: models.CategoryDexTrading,
			Sophistication: models.TierAdvanced, Tags: []string{"dex", "amm", "concentrated-liquidity"},
		},
		common.HexToAddress("0x1111111254fb6c44bAC0beD2854e76F90643097d"): {
			Name: "1inch V4", Category: models.CategoryDexAggregator,
			Sophistication: models.TierAdvanced, Tags: []string{"dex", "aggregator"},
		},
		common.HexToAddress("0x7d2768dE32b0b80b7a3454c06BdAc94A69DDc7A9"): {
			Name: "Aave V2", Category: models.CategoryLending,
			Sophistication: models.TierAdvanced, Tags: []string{"lending", "collateral"},
		},
		common.HexToAddress("0x4Ddc2D193948926D02f9B1fE9e1daa0718270ED5"): {
			Name: "Compound cETH", Category: models.CategoryLending,
			Sophistication: models.TierIntermediate, Tags: []string{"lending"},
		},
		common.HexToAddress("0xae7ab96520DE3A18E5e111B5EaAb095312D7fE84"): {
			Name: "Lido stETH", Category: models.CategoryStaking,
			Sophistication: models.TierIntermediate, Tags: []string{"staking", "liquid-staking"},
		},
		common.HexToAddress("0xbEbc44782C7dB0a1A60Cb6fe97d0b483032FF1C7"): {
			Name: "Curve 3pool", Category: models.CategoryDexTrading,
			Sophistication: models.TierAdvanced, Tags: []string{"dex", "stableswap"},
		},
		common.HexToAddress("0x00000000006c3852cbEf3e08E8dF289169EdE581"): {
			Name: "OpenSea Seaport", Category: models.CategoryNFT,
			Sophistication: models.TierBasic, Tags: []string{"nft", "marketplace"},
		},
		common.HexToAddress("0x722122dF12D4e14e13Ac3b6895a86e84145b6967"): {
			Name: "Tornado Cash Router", Category: models.CategoryMixer,
			Sophistication: models.TierExpert, Tags: []string{"mixer", "privacy", "sanctioned"},
		},
	}
}

// Gas-used quadrant boundary: plain ETH transfers burn 21000 gas;
// anything meaningfully above is contract execution.
const plainTransferGasCeiling = 40000

// CategorizeTransaction classifies one transaction.
func CategorizeTransaction(registry ProtocolRegistry, tx models.TransactionRecord) models.CategoryResult {
	if common.IsHexAddress(tx.To) {
		if info, ok := registry[common.HexToAddress(tx.To)]; ok {
			return models.CategoryResult{
				Category:       info.Category,
				Protocol:       info.Name,
				Sophistication: info.Sophistication,
				Tags:           info.Tags,
				Confidence:     95,
				Method:         "registry",
			}
		}
	}

	if tx.IsStaking {
		return models.CategoryResult{
			Category:       models.CategoryStaking,
			Protocol:       tx.ProtocolName,
			Sophistication: models.TierIntermediate,
			Confidence:     80,
			Method:         "flag",
		}
	}
	if tx.IsDeFi {
		return models.CategoryResult{
			Category:       models.CategoryDeFi,
			Protocol:       tx.ProtocolName,
			Sophistication: models.TierIntermediate,
			Confidence:     75,
			Method:         "flag",
		}
	}

	// Value/gas quadrant fallback
	hasValue := parseDecimal(tx.Value) > 0
	highGas := tx.GasUsed > plainTransferGasCeiling

	switch {
	case !hasValue && highGas:
		return models.CategoryResult{
			Category:       models.CategoryContractInteraction,
			Sophistication: models.TierIntermediate,
			Confidence:     60,
			Method:         "heuristic",
		}
	case hasValue && !highGas:
		return models.CategoryResult{
			Category:       models.CategoryTransfer,
			Sophistication: models.TierBasic,
			Confidence:     90,
			Method:         "heuristic",
		}
	case hasValue && highGas:
		return models.CategoryResult{
			Category:       models.CategoryContractInteraction,
			Sophistication: models.TierIntermediate,
			Tags:           []string{"value-bearing"},
			Confidence:     70,
			Method:         "heuristic",
		}
	default:
		return models.CategoryResult{
			Category:       models.CategoryUnknown,
			Sophistication: models.TierBasic,
			Confidence:     20,
			Method:         "heuristic",
		}
	}
}
