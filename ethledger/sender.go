package ethledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/battlechain/arenakit"
)

// DefaultGasBufferPercent is added on top of the node's gas estimate
const DefaultGasBufferPercent = 20

// ErrEstimateGasFailed is returned when the node cannot estimate the call,
// usually because it would revert
var ErrEstimateGasFailed = fmt.Errorf("estimate gas failed")

var (
	_ arenakit.LedgerReader = (*Reader)(nil)
	_ arenakit.TxSender     = (*Sender)(nil)
	_ arenakit.Signer       = (*KeySigner)(nil)
)

// Broadcaster estimates and sends transactions
type Broadcaster interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Sender builds, signs and broadcasts one attempt of a write
type Sender struct {
	backend          Broadcaster
	signer           arenakit.Signer
	gasBufferPercent uint64
}

// SenderOption configures a Sender
type SenderOption func(*Sender)

// WithGasBufferPercent sets the headroom added to estimated gas
func WithGasBufferPercent(pct uint64) SenderOption {
	return func(s *Sender) {
		s.gasBufferPercent = pct
	}
}

// NewSender creates a sender broadcasting through backend
func NewSender(backend Broadcaster, signer arenakit.Signer, opts ...SenderOption) *Sender {
	s := &Sender{backend: backend, signer: signer, gasBufferPercent: DefaultGasBufferPercent}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GasLimit adds the buffer to an estimate
func (s *Sender) GasLimit(estimate uint64) uint64 {
	return estimate + estimate*s.gasBufferPercent/100
}

// Send estimates gas, builds the transaction for attempt, signs and broadcasts it
func (s *Sender) Send(ctx context.Context, call arenakit.Call, attempt arenakit.TxAttempt) (common.Hash, error) {
	if s.signer == nil {
		return common.Hash{}, arenakit.ErrSignerUnavailable
	}
	from := s.signer.Address()
	chainID, err := s.signer.ChainID(ctx)
	if err != nil {
		return common.Hash{}, errors.Join(arenakit.ErrSignerUnavailable, err)
	}

	estimate, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    call.To,
		Value: call.Value,
		Data:  call.Data,
	})
	if err != nil {
		return common.Hash{}, errors.Join(ErrEstimateGasFailed, err)
	}
	gas := s.GasLimit(estimate)

	var inner types.TxData
	if attempt.Fee.IsLegacy() {
		inner = &types.LegacyTx{
			Nonce:    attempt.Nonce,
			GasPrice: attempt.Fee.GasPrice,
			Gas:      gas,
			To:       call.To,
			Value:    call.Value,
			Data:     call.Data,
		}
	} else {
		inner = &types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     attempt.Nonce,
			GasTipCap: attempt.Fee.GasTipCap,
			GasFeeCap: attempt.Fee.GasFeeCap,
			Gas:       gas,
			To:        call.To,
			Value:     call.Value,
			Data:      call.Data,
		}
	}

	signed, err := s.signer.SignTx(ctx, types.NewTx(inner))
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}

	zap.L().Debug("transaction broadcast",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.Uint64("nonce", attempt.Nonce),
		zap.Uint64("gas", gas),
		zap.Int("attempt", attempt.Index),
	)
	return signed.Hash(), nil
}
