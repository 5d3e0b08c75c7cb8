package arenakit

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/battlechain/arenakit/idempotency"
)

// executeWithIdempotency handles idempotent execution
func (r *TxRequest) executeWithIdempotency(ctx context.Context) (*TxOutcome, error) {
	store := r.c.idempotency
	key := r.idempotencyKey

	existing, err := store.Get(ctx, key)
	switch {
	case err == nil:
		out, done, err := r.resume(ctx, existing)
		if done {
			return out, err
		}
	case !errors.Is(err, idempotency.ErrKeyNotFound):
		return nil, err
	}

	record, err := store.Create(ctx, key)
	if errors.Is(err, idempotency.ErrDuplicateKey) {
		// another request created the record first
		return outcomeFromRecord(record), err
	}
	if err != nil {
		return nil, err
	}

	out, txErr := r.executeInternal(ctx, func(hash common.Hash) {
		record.Status = idempotency.StatusSubmitted
		record.TxHash = hash
		r.saveRecord(ctx, record)
	})
	r.finishRecord(ctx, record, out, txErr)
	return out, txErr
}

// resume handles a key that already has a record. done is false when the
// request should run as new.
func (r *TxRequest) resume(ctx context.Context, rec *idempotency.Record) (*TxOutcome, bool, error) {
	switch rec.Status {
	case idempotency.StatusConfirmed:
		out := outcomeFromRecord(rec)
		out.Cached = true
		r.phase(PhaseSuccess, out, nil)
		return out, true, nil

	case idempotency.StatusSubmitted:
		zap.L().Info("resuming receipt wait for idempotent write",
			zap.String("key", rec.Key),
			zap.String("tx_hash", rec.TxHash.Hex()),
		)
		r.phase(PhaseSubmitted, &TxOutcome{Hash: rec.TxHash}, nil)
		out, err := r.await(ctx, rec.TxHash)
		r.finishRecord(ctx, rec, out, err)
		return out, true, err

	case idempotency.StatusPending:
		return outcomeFromRecord(rec), true, idempotency.ErrDuplicateKey

	case idempotency.StatusAmbiguous:
		err := fmt.Errorf("%w: key %q: %s", ErrAmbiguousOutcome, rec.Key, rec.Error)
		r.phase(PhaseError, nil, err)
		return nil, true, err

	default:
		// a failed write left nothing on-chain and may run again
		if err := r.c.idempotency.Delete(ctx, rec.Key); err != nil {
			return nil, true, err
		}
		return nil, false, nil
	}
}

func (r *TxRequest) finishRecord(ctx context.Context, rec *idempotency.Record, out *TxOutcome, txErr error) {
	switch {
	case txErr == nil:
		rec.Status = idempotency.StatusConfirmed
		rec.Error = ""
		if out != nil {
			rec.TxHash = out.Hash
			rec.ContractAddress = out.ContractAddress
			if out.Receipt != nil && out.Receipt.BlockNumber != nil {
				rec.BlockNumber = out.Receipt.BlockNumber.Uint64()
			}
		}
	case rec.TxHash != (common.Hash{}) && (errors.Is(txErr, ErrReceiptTimeout) || errors.Is(txErr, context.Canceled) || errors.Is(txErr, context.DeadlineExceeded)):
		// the transaction may still land; the next execution waits for it
		rec.Status = idempotency.StatusSubmitted
		rec.Error = txErr.Error()
	case errors.Is(txErr, ErrSubmissionExhausted):
		rec.Status = idempotency.StatusAmbiguous
		rec.Error = txErr.Error()
	default:
		rec.Status = idempotency.StatusFailed
		rec.Error = txErr.Error()
	}
	r.saveRecord(ctx, rec)
}

// saveRecord is best effort; the write outcome matters more than its record
func (r *TxRequest) saveRecord(ctx context.Context, rec *idempotency.Record) {
	if err := r.c.idempotency.Update(context.WithoutCancel(ctx), rec); err != nil {
		zap.L().Warn("failed to update idempotency record",
			zap.String("key", rec.Key),
			zap.Stringer("status", rec.Status),
			zap.Error(err),
		)
	}
}

func outcomeFromRecord(rec *idempotency.Record) *TxOutcome {
	if rec == nil {
		return nil
	}
	return &TxOutcome{Hash: rec.TxHash, ContractAddress: rec.ContractAddress}
}

// ForgetOperation deletes the record of an idempotency key, for instance
// after an ambiguous outcome was checked on-chain
func (c *Client) ForgetOperation(ctx context.Context, key string) error {
	if c.idempotency == nil {
		return nil
	}
	return c.idempotency.Delete(ctx, key)
}
