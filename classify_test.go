package arenakit

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySubmitError(t *testing.T) {
	tests := []struct {
		msg  string
		want SubmitFailure
	}{
		{"replacement transaction underpriced", FailureReplacementUnderpriced},
		{"rpc error: Replacement Fee Too Low", FailureReplacementUnderpriced},
		{"insufficient gas price to replace existing transaction", FailureReplacementUnderpriced},
		{"nonce too low: next nonce 7, tx nonce 5", FailureNonceTooLow},
		{"already known", FailureAlreadyKnown},
		{"known transaction: 0xabc", FailureAlreadyKnown},
		{"insufficient funds for gas * price + value", FailureFatal},
		{"execution reverted: battle closed", FailureFatal},
		{"user rejected the request", FailureFatal},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got := ClassifySubmitError(fmt.Errorf("send: %w", errors.New(tt.msg)))
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, FailureFatal, ClassifySubmitError(nil))
}

func TestSubmitFailure_Properties(t *testing.T) {
	assert.False(t, FailureFatal.Retryable())
	assert.True(t, FailureReplacementUnderpriced.Retryable())
	assert.True(t, FailureNonceTooLow.Retryable())
	assert.True(t, FailureAlreadyKnown.Retryable())

	assert.True(t, FailureNonceTooLow.RefreshesNonce())
	assert.False(t, FailureReplacementUnderpriced.RefreshesNonce())
	assert.False(t, FailureAlreadyKnown.RefreshesNonce())

	assert.Equal(t, "nonce-too-low", FailureNonceTooLow.String())
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, CategoryNone},
		{"user rejected", errors.New("User rejected the request."), CategoryRejectedByUser},
		{"denied", errors.New("MetaMask Tx Signature: User denied transaction signature."), CategoryRejectedByUser},
		{"chain mismatch text", errors.New("chain mismatch: expected 627"), CategoryWrongNetwork},
		{"wrong network sentinel", CheckReadiness(ReadinessInput{ExpectedChainID: 627, RPCConfigured: true, RPCReachable: true, SignerConnected: true, SignerChainID: bigInt(1)}).Err(), CategoryWrongNetwork},
		{"not ready", CheckReadiness(ReadinessInput{ExpectedChainID: 627}).Err(), CategoryConfiguration},
		{"configuration", fmt.Errorf("%w: arena address missing", ErrConfiguration), CategoryConfiguration},
		{"nonce", errors.New("nonce too low"), CategoryPendingConflict},
		{"replacement", errors.New("replacement transaction underpriced"), CategoryPendingConflict},
		{"exhausted", errors.Join(ErrSubmissionExhausted, errors.New("3 attempts: already known")), CategoryPendingConflict},
		{"funds", errors.New("insufficient funds for gas * price + value"), CategoryInsufficientFunds},
		{"receipt timeout", fmt.Errorf("%w: 0x01", ErrReceiptTimeout), CategoryTimeout},
		{"deadline", context.DeadlineExceeded, CategoryTimeout},
		{"timed out text", errors.New("request timed out"), CategoryTimeout},
		{"other", errors.New("execution reverted"), CategoryGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.err))
		})
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Transaction rejected in wallet.", UserMessage(errors.New("user rejected")))
	assert.Equal(t, "Insufficient funds for gas.", UserMessage(errors.New("insufficient funds")))
	assert.Equal(t, "RPC timeout, try again.", UserMessage(ErrReceiptTimeout))
	assert.Equal(t, "Transaction failed. Try again.", UserMessage(errors.New("boom")))
	assert.Equal(t, "Pending tx detected. Speed up or cancel in your wallet, or increase gas.",
		UserMessage(errors.New("nonce too low")))

	notReady := CheckReadiness(ReadinessInput{ExpectedChainID: 627, RPCConfigured: true, RPCReachable: true}).Err()
	assert.Equal(t, "signer not connected", UserMessage(notReady))

	cfg := fmt.Errorf("%w: betting address not set", ErrConfiguration)
	assert.Equal(t, cfg.Error(), UserMessage(cfg))
}
