package heuristics

import (
	"strings"
	"testing"

	"github.com/rawblock/txrisk-engine/pkg/models"
)

func TestCategorizeTransaction_RegistryHit(t *testing.T) {
	registry := DefaultProtocolRegistry()
	tx := makeTx("0xc1", dayBase, "1.0", "20")
	tx.To = "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"

	result := CategorizeTransaction(registry, tx)

	if result.Category != models.CategoryDexTrading {
		t.Errorf("category = %s, want DEX_TRADING", result.Category)
	}
	if result.Protocol != "Uniswap V2" {
		t.Errorf("protocol = %q, want Uniswap V2", result.Protocol)
	}
	if result.Confidence != 95 || result.Method != "registry" {
		t.Errorf("registry hits score 95/registry, got %v/%s", result.Confidence, result.Method)
	}
}

func TestCategorizeTransaction_RegistryCaseInsensitive(t *testing.T) {
	registry := DefaultProtocolRegistry()
	tx := makeTx("0xc2", dayBase, "1.0", "20")
	tx.To = strings.ToLower("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")

	result := CategorizeTransaction(registry, tx)

	if result.Method != "registry" {
		t.Fatalf("lowercased registry address must still hit, got method %s", result.Method)
	}
}

func TestCategorizeTransaction_MixerTagging(t *testing.T) {
	registry := DefaultProtocolRegistry()
	tx := makeTx("0xc3", dayBase, "10.0", "30")
	tx.To = "0x722122dF12D4e14e13Ac3b6895a86e84145b6967"

	result := CategorizeTransaction(registry, tx)

	if result.Category != models.CategoryMixer {
		t.Errorf("category = %s, want MIXER", result.Category)
	}
	if result.Sophistication != models.TierExpert {
		t.Errorf("sophistication = %s, want EXPERT", result.Sophistication)
	}
	found := false
	for _, tag := range result.Tags {
		if tag == "sanctioned" {
			found = true
		}
	}
	if !found {
		t.Error("mixer entry carries the sanctioned tag")
	}
}

func TestCategorizeTransaction_Fallbacks(t *testing.T) {
	registry := DefaultProtocolRegistry()

	tests := []struct {
		name       string
		mutate     func(*models.TransactionRecord)
		category   models.TransactionCategory
		confidence float64
		method     string
	}{
		{
			name:       "staking flag",
			mutate:     func(tx *models.TransactionRecord) { tx.IsStaking = true },
			category:   models.CategoryStaking,
			confidence: 80,
			method:     "flag",
		},
		{
			name:       "defi flag",
			mutate:     func(tx *models.TransactionRecord) { tx.IsDeFi = true },
			category:   models.CategoryDeFi,
			confidence: 75,
			method:     "flag",
		},
		{
			name:       "plain transfer",
			mutate:     func(tx *models.TransactionRecord) {},
			category:   models.CategoryTransfer,
			confidence: 90,
			method:     "heuristic",
		},
		{
			name: "contract call without value",
			mutate: func(tx *models.TransactionRecord) {
				tx.Value = "0"
				tx.GasUsed = 150000
			},
			category:   models.CategoryContractInteraction,
			confidence: 60,
			method:     "heuristic",
		},
		{
			name: "value-bearing contract call",
			mutate: func(tx *models.TransactionRecord) {
				tx.GasUsed = 150000
			},
			category:   models.CategoryContractInteraction,
			confidence: 70,
			method:     "heuristic",
		},
		{
			name: "no value and plain gas",
			mutate: func(tx *models.TransactionRecord) {
				tx.Value = "0"
			},
			category:   models.CategoryUnknown,
			confidence: 20,
			method:     "heuristic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := makeTx("0xfb", dayBase, "1.0", "20")
			tt.mutate(&tx)

			result := CategorizeTransaction(registry, tx)
			if result.Category != tt.category {
				t.Errorf("category = %s, want %s", result.Category, tt.category)
			}
			if result.Confidence != tt.confidence {
				t.Errorf("confidence = %v, want %v", result.Confidence, tt.confidence)
			}
			if result.Method != tt.method {
				t.Errorf("method = %s, want %s", result.Method, tt.method)
			}
		})
	}
}
