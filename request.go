package arenakit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// TxRequest is one logical write, configured with the builder methods and
// run with Execute
type TxRequest struct {
	c *Client

	call           Call
	maxAttempts    int
	receiptTimeout time.Duration

	phaseHook   PhaseHook
	attemptHook AttemptHook

	// Idempotency key for preventing duplicate transactions
	idempotencyKey string

	// afterSuccess runs once the write is confirmed, including cached outcomes
	afterSuccess func(ctx context.Context, out *TxOutcome)
}

// R creates a new write request that inherits the client defaults
func (c *Client) R() *TxRequest {
	return &TxRequest{
		c:              c,
		call:           Call{Value: new(big.Int)},
		maxAttempts:    c.maxAttempts,
		receiptTimeout: c.receiptTimeout,
	}
}

// SetCall sets the whole side effect
func (r *TxRequest) SetCall(call Call) *TxRequest {
	if call.Value == nil {
		call.Value = new(big.Int)
	}
	r.call = call
	return r
}

// SetTo sets the target contract
func (r *TxRequest) SetTo(to common.Address) *TxRequest {
	r.call.To = &to
	return r
}

// SetData sets the calldata, or the creation code when no target is set
func (r *TxRequest) SetData(data []byte) *TxRequest {
	r.call.Data = data
	return r
}

// SetValue sets the transaction value
func (r *TxRequest) SetValue(value *big.Int) *TxRequest {
	if value != nil {
		r.call.Value = value
	}
	return r
}

// SetMaxAttempts sets the submission attempt budget
func (r *TxRequest) SetMaxAttempts(n int) *TxRequest {
	r.maxAttempts = n
	return r
}

// SetReceiptTimeout sets how long to wait for inclusion
func (r *TxRequest) SetReceiptTimeout(d time.Duration) *TxRequest {
	r.receiptTimeout = d
	return r
}

// SetPhaseHook sets the hook that follows the request through its phases
func (r *TxRequest) SetPhaseHook(hook PhaseHook) *TxRequest {
	r.phaseHook = hook
	return r
}

// SetAttemptHook sets the hook called after every submission attempt
func (r *TxRequest) SetAttemptHook(hook AttemptHook) *TxRequest {
	r.attemptHook = hook
	return r
}

// SetIdempotencyKey sets a unique key to prevent duplicate submissions.
// Executing a key that already confirmed returns the stored outcome; a key
// whose transaction is still unconfirmed resumes waiting for it.
// Requires an idempotency store on the client.
func (r *TxRequest) SetIdempotencyKey(key string) *TxRequest {
	r.idempotencyKey = key
	return r
}

// Call returns the side effect the request will submit
func (r *TxRequest) Call() Call {
	return r.call
}

func (r *TxRequest) phase(p Phase, out *TxOutcome, err error) {
	if r.phaseHook != nil {
		r.phaseHook(p, out, err)
	}
}

// Execute runs the readiness gate, submits the call and waits for its receipt
func (r *TxRequest) Execute(ctx context.Context) (*TxOutcome, error) {
	r.phase(PhaseIdle, nil, nil)

	if err := r.c.Readiness(ctx).Err(); err != nil {
		r.phase(PhaseError, nil, err)
		return nil, err
	}

	var (
		out *TxOutcome
		err error
	)
	if r.idempotencyKey != "" && r.c.idempotency != nil {
		out, err = r.executeWithIdempotency(ctx)
	} else {
		out, err = r.executeInternal(ctx, nil)
	}
	if err == nil && r.afterSuccess != nil {
		r.afterSuccess(ctx, out)
	}
	return out, err
}

// executeInternal submits and awaits. onSubmitted sees the accepted hash
// before the receipt wait starts.
func (r *TxRequest) executeInternal(ctx context.Context, onSubmitted func(common.Hash)) (*TxOutcome, error) {
	from := r.c.signer.Address()
	write := func(ctx context.Context, attempt TxAttempt) (common.Hash, error) {
		hash, err := r.c.sender.Send(ctx, r.call, attempt)
		if r.attemptHook != nil {
			failure := FailureFatal
			if err != nil {
				failure = ClassifySubmitError(err)
			}
			r.attemptHook(attempt, failure, err)
		}
		return hash, err
	}

	r.phase(PhaseAwaitingSigner, nil, nil)
	hash, err := r.c.submitter.Submit(ctx, from, write, r.maxAttempts)
	if err != nil {
		r.phase(PhaseError, nil, err)
		return nil, err
	}
	if onSubmitted != nil {
		onSubmitted(hash)
	}
	r.phase(PhaseSubmitted, &TxOutcome{Hash: hash}, nil)
	return r.await(ctx, hash)
}

func (r *TxRequest) await(ctx context.Context, hash common.Hash) (*TxOutcome, error) {
	out := &TxOutcome{Hash: hash}
	r.phase(PhaseConfirming, out, nil)

	receipt, err := r.c.receiptWatcher(r.receiptTimeout).Await(ctx, hash)
	out.Receipt = receipt
	switch {
	case errors.Is(err, ErrReceiptTimeout):
		r.phase(PhaseTimeout, out, err)
		return out, err
	case err != nil:
		r.phase(PhaseError, out, err)
		return out, err
	}

	if r.call.IsDeploy() {
		if receipt.ContractAddress == (common.Address{}) {
			err := fmt.Errorf("%w: %s", ErrNoContractAddress, hash.Hex())
			r.phase(PhaseError, out, err)
			return out, err
		}
		addr := receipt.ContractAddress
		out.ContractAddress = &addr
	}

	zap.L().Info("write confirmed",
		zap.String("tx_hash", hash.Hex()),
		zap.Bool("deploy", r.call.IsDeploy()),
	)
	r.phase(PhaseSuccess, out, nil)
	return out, nil
}
