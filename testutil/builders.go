package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ============================================================
// Transaction Builders
// ============================================================

// NewDynamicTx creates a new EIP-1559 dynamic fee transaction for testing
func NewDynamicTx(nonce uint64, to common.Address, value *big.Int, gasLimit uint64, gasTipCap, gasFeeCap *big.Int, chainID *big.Int) *types.Transaction {
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: gasFeeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
	})
}

// NewTx creates a simple test transaction with default gas settings
func NewTx(nonce uint64, to common.Address, value *big.Int) *types.Transaction {
	return NewDynamicTx(nonce, to, value, 21000, TwoGwei, TwentyGwei, ChainIDBattlechain)
}

// NewLegacyTx creates a legacy (pre-EIP-1559) transaction for testing
func NewLegacyTx(nonce uint64, to common.Address, value *big.Int, gasLimit uint64, gasPrice *big.Int) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
	})
}

// ============================================================
// Receipt Builders
// ============================================================

// NewReceipt creates a test receipt for a transaction hash with a specific status
func NewReceipt(hash common.Hash, status uint64) *types.Receipt {
	return &types.Receipt{
		Status:            status,
		TxHash:            hash,
		BlockNumber:       big.NewInt(12345678),
		BlockHash:         common.HexToHash("0xabcdef1234567890abcdef1234567890abcdef1234567890abcdef1234567890"),
		TransactionIndex:  0,
		GasUsed:           21000,
		CumulativeGasUsed: 21000,
	}
}

// NewSuccessReceipt creates a successful receipt
func NewSuccessReceipt(hash common.Hash) *types.Receipt {
	return NewReceipt(hash, types.ReceiptStatusSuccessful)
}

// NewFailedReceipt creates a failed (reverted) receipt
func NewFailedReceipt(hash common.Hash) *types.Receipt {
	return NewReceipt(hash, types.ReceiptStatusFailed)
}

// NewDeployReceipt creates a successful contract creation receipt
func NewDeployReceipt(hash common.Hash, contract common.Address) *types.Receipt {
	receipt := NewSuccessReceipt(hash)
	receipt.ContractAddress = contract
	return receipt
}

// ============================================================
// Header Builders
// ============================================================

// NewHeader creates a London header with the given base fee
func NewHeader(number int64, baseFee *big.Int) *types.Header {
	return &types.Header{Number: big.NewInt(number), BaseFee: baseFee}
}

// NewLegacyHeader creates a header without a base fee
func NewLegacyHeader(number int64) *types.Header {
	return &types.Header{Number: big.NewInt(number)}
}

// ============================================================
// Values
// ============================================================

// Ether parses a decimal ether amount and panics on bad input
func Ether(amount string) *big.Int {
	r, ok := new(big.Rat).SetString(amount)
	if !ok {
		panic("testutil: bad ether amount " + amount)
	}
	r.Mul(r, new(big.Rat).SetInt(OneEth))
	if !r.IsInt() {
		panic("testutil: ether amount below one wei " + amount)
	}
	return new(big.Int).Set(r.Num())
}

// Hash builds a deterministic transaction hash from n
func Hash(n int64) common.Hash {
	return common.BigToHash(big.NewInt(n))
}
