package arenakit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/battlechain/arenakit/internal/metrics"
)

// ReceiptWatcher waits for a submitted transaction to be included
type ReceiptWatcher struct {
	source   ReceiptSource
	timeout  time.Duration
	interval time.Duration
	metrics  *metrics.Metrics
}

// ReceiptOption configures a ReceiptWatcher
type ReceiptOption func(*ReceiptWatcher)

// WithReceiptTimeout bounds how long Await waits
func WithReceiptTimeout(d time.Duration) ReceiptOption {
	return func(w *ReceiptWatcher) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithReceiptPollInterval sets the delay between receipt lookups
func WithReceiptPollInterval(d time.Duration) ReceiptOption {
	return func(w *ReceiptWatcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithReceiptMetrics records wait durations into m
func WithReceiptMetrics(m *metrics.Metrics) ReceiptOption {
	return func(w *ReceiptWatcher) {
		w.metrics = m
	}
}

// NewReceiptWatcher creates a watcher with a 120s timeout and 2s poll interval
func NewReceiptWatcher(source ReceiptSource, opts ...ReceiptOption) *ReceiptWatcher {
	w := &ReceiptWatcher{
		source:   source,
		timeout:  DefaultReceiptTimeout,
		interval: DefaultReceiptPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Timeout returns the configured wait bound
func (w *ReceiptWatcher) Timeout() time.Duration {
	return w.timeout
}

// Await polls for hash's receipt. It returns an error wrapping
// ErrReceiptTimeout when none appears in time, and the receipt together with
// ErrExecutionReverted when the transaction failed. Any other lookup error is
// returned as is.
func (w *ReceiptWatcher) Await(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	start := time.Now()
	receipt, err := w.await(ctx, hash)

	result := ReceiptMined
	switch {
	case errors.Is(err, ErrReceiptTimeout):
		result = ReceiptTimedOut
	case errors.Is(err, ErrExecutionReverted):
		result = ReceiptReverted
	case ctx.Err() != nil:
		result = ReceiptCancelled
	case err != nil:
		result = ReceiptFailed
	}
	w.metrics.ReceiptWait(result, time.Since(start).Seconds())
	return receipt, err
}

type receiptResult struct {
	receipt *types.Receipt
	err     error
}

// poll runs one lookup bounded by stop. A lookup still running at stop is
// abandoned and its result discarded.
func (w *ReceiptWatcher) poll(ctx context.Context, hash common.Hash, stop time.Time) (*types.Receipt, error) {
	pctx, cancel := context.WithDeadline(ctx, stop)
	defer cancel()

	done := make(chan receiptResult, 1)
	go func() {
		receipt, err := w.source.TransactionReceipt(pctx, hash)
		done <- receiptResult{receipt, err}
	}()

	select {
	case res := <-done:
		if pctx.Err() == nil {
			return res.receipt, res.err
		}
	case <-pctx.Done():
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s after %s", ErrReceiptTimeout, hash.Hex(), w.timeout)
}

func (w *ReceiptWatcher) await(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	expires := time.Now().Add(w.timeout)
	// a lookup started at the deadline gets one interval to answer
	stop := expires.Add(w.interval)
	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		receipt, err := w.poll(ctx, hash, stop)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		switch {
		case errors.Is(err, ErrReceiptTimeout):
			return nil, err
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				zap.L().Info("transaction reverted",
					zap.String("tx_hash", hash.Hex()),
					zap.Stringer("block", receipt.BlockNumber),
				)
				return receipt, fmt.Errorf("%w: %s", ErrExecutionReverted, hash.Hex())
			}
			zap.L().Info("transaction mined",
				zap.String("tx_hash", hash.Hex()),
				zap.Stringer("block", receipt.BlockNumber),
				zap.Uint64("gas_used", receipt.GasUsed),
			)
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return nil, fmt.Errorf("get receipt of %s: %w", hash.Hex(), err)
		}

		remaining := time.Until(expires)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %s after %s", ErrReceiptTimeout, hash.Hex(), w.timeout)
		}
		// the last poll happens at the deadline
		timer.Reset(min(w.interval, remaining))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Watch is the non-blocking form of Await. The channel receives one status and is closed.
func (w *ReceiptWatcher) Watch(ctx context.Context, hash common.Hash) <-chan ReceiptStatus {
	statusChan := make(chan ReceiptStatus, 1)
	go func() {
		defer close(statusChan)
		receipt, err := w.Await(ctx, hash)
		status := ReceiptStatus{Receipt: receipt, Err: err}
		switch {
		case err == nil:
			status.Status = ReceiptMined
		case errors.Is(err, ErrExecutionReverted):
			status.Status = ReceiptReverted
		case errors.Is(err, ErrReceiptTimeout):
			status.Status = ReceiptTimedOut
		case ctx.Err() != nil:
			status.Status = ReceiptCancelled
		default:
			status.Status = ReceiptFailed
		}
		statusChan <- status
	}()
	return statusChan
}
