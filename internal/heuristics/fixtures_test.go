package heuristics

import (
	"fmt"

	"github.com/rawblock/txrisk-engine/pkg/models"
)

// Shared fixture builders for the detector tests.

const (
	testAddrA = "0x1111111111111111111111111111111111111111"
	testAddrB = "0x2222222222222222222222222222222222222222"
)

// makeTx builds a minimal transaction record with sane defaults.
func makeTx(hash string, ts int64, value, gasPrice string) models.TransactionRecord {
	return models.TransactionRecord{
		Hash:      hash,
		Timestamp: ts,
		Value:     value,
		GasPrice:  gasPrice,
		GasUsed:   21000,
		From:      testAddrA,
		To:        testAddrB,
	}
}

// uniformHistory builds n identical transactions spaced stepSec apart.
func uniformHistory(n int, start, stepSec int64, value, gasPrice string) []models.TransactionRecord {
	txs := make([]models.TransactionRecord, n)
	for i := range txs {
		txs[i] = makeTx(fmt.Sprintf("0xuni%03d", i), start+int64(i)*stepSec, value, gasPrice)
	}
	return txs
}
