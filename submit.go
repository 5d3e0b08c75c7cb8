package arenakit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/battlechain/arenakit/internal/metrics"
	"github.com/battlechain/arenakit/internal/nonce"
)

// WriteFunc performs one attempt of a logical write. Every call must submit
// the same side effect; only the nonce and fee may differ.
type WriteFunc func(ctx context.Context, attempt TxAttempt) (common.Hash, error)

// Submitter owns the retry, backoff and nonce refresh loop around one logical write
type Submitter struct {
	nonces      NonceSource
	fees        *FeeEstimator
	tracker     *nonce.Tracker
	chainID     uint64
	backoffBase time.Duration
	backoffMax  time.Duration
	hook        AttemptHook
	metrics     *metrics.Metrics
}

// SubmitterOption configures a Submitter
type SubmitterOption func(*Submitter)

// WithBackoff sets the first retry delay and its cap
func WithBackoff(base, max time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.backoffBase = base
		s.backoffMax = max
	}
}

// WithNonceTracker shares a tracker between submitters of one process
func WithNonceTracker(tracker *nonce.Tracker) SubmitterOption {
	return func(s *Submitter) {
		s.tracker = tracker
	}
}

// WithChainID keys the nonce tracker by chain
func WithChainID(chainID uint64) SubmitterOption {
	return func(s *Submitter) {
		s.chainID = chainID
	}
}

// WithAttemptHook observes every attempt
func WithAttemptHook(hook AttemptHook) SubmitterOption {
	return func(s *Submitter) {
		s.hook = hook
	}
}

// WithSubmitMetrics records attempts into m
func WithSubmitMetrics(m *metrics.Metrics) SubmitterOption {
	return func(s *Submitter) {
		s.metrics = m
	}
}

// NewSubmitter creates a submitter
func NewSubmitter(nonces NonceSource, fees *FeeEstimator, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		nonces:      nonces,
		fees:        fees,
		tracker:     nonce.NewTracker(),
		backoffBase: DefaultBackoffBase,
		backoffMax:  DefaultBackoffMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backoff returns the delay before retry number n (n >= 1)
func (s *Submitter) Backoff(n int) time.Duration {
	if n < 1 || s.backoffBase <= 0 {
		return 0
	}
	d := s.backoffBase
	for i := 1; i < n; i++ {
		d *= 2
		if s.backoffMax > 0 && d >= s.backoffMax {
			return s.backoffMax
		}
	}
	if s.backoffMax > 0 && d > s.backoffMax {
		return s.backoffMax
	}
	return d
}

func (s *Submitter) acquireNonce(ctx context.Context, from common.Address) (uint64, error) {
	remote, err := s.nonces.PendingNonceAt(ctx, from)
	if err != nil {
		return 0, fmt.Errorf("get pending nonce of %s: %w", from.Hex(), err)
	}
	res := s.tracker.Acquire(from, s.chainID, remote)
	return res.Nonce, nil
}

// Submit runs write up to maxAttempts times and returns the first accepted
// hash. A non-retryable error is returned unchanged after one attempt.
// Running out of attempts returns an error wrapping ErrSubmissionExhausted;
// an earlier attempt may still be mined in that case.
func (s *Submitter) Submit(ctx context.Context, from common.Address, write WriteFunc, maxAttempts int) (common.Hash, error) {
	if from == (common.Address{}) {
		return common.Hash{}, ErrFromAddressZero
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	n, err := s.acquireNonce(ctx, from)
	if err != nil {
		return common.Hash{}, err
	}

	var (
		lastErr error
		prevFee *FeePolicy
		// set once a node has seen a transaction at the current nonce
		nonceInFlight bool
	)
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			if err := sleepContext(ctx, s.Backoff(i)); err != nil {
				s.release(from, n, nonceInFlight)
				return common.Hash{}, errors.Join(err, lastErr)
			}
		}

		fee, err := s.fees.Estimate(ctx, i)
		if err != nil {
			s.release(from, n, nonceInFlight)
			return common.Hash{}, fmt.Errorf("estimate fee for attempt %d: %w", i, err)
		}
		if prevFee != nil && !s.fees.Fixed() {
			fee = fee.raisedAbove(*prevFee)
		}

		attempt := TxAttempt{Nonce: n, Fee: fee, Index: i}
		hash, err := write(ctx, attempt)
		if err == nil {
			s.observe(attempt, FailureFatal, nil, "success")
			zap.L().Info("transaction submitted",
				zap.String("from", from.Hex()),
				zap.String("tx_hash", hash.Hex()),
				zap.Uint64("nonce", n),
				zap.Int("attempt", i),
				zap.Stringer("fee", fee),
			)
			return hash, nil
		}

		failure := ClassifySubmitError(err)
		s.observe(attempt, failure, err, failure.String())
		if !failure.Retryable() {
			s.release(from, n, nonceInFlight)
			return common.Hash{}, err
		}

		lastErr = err
		prevFee = &fee
		zap.L().Debug("retryable submission failure",
			zap.String("from", from.Hex()),
			zap.Uint64("nonce", n),
			zap.Int("attempt", i),
			zap.String("class", failure.String()),
			zap.Error(err),
		)

		if failure.RefreshesNonce() {
			if i+1 >= maxAttempts {
				break
			}
			next, err := s.acquireNonce(ctx, from)
			if err != nil {
				s.release(from, n, false)
				return common.Hash{}, errors.Join(err, lastErr)
			}
			n = next
			nonceInFlight = false
			continue
		}
		nonceInFlight = true
	}

	zap.L().Warn("submission attempts exhausted",
		zap.String("from", from.Hex()),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)
	return common.Hash{}, errors.Join(ErrSubmissionExhausted, fmt.Errorf("%d attempts: %w", maxAttempts, lastErr))
}

// release hands the nonce back when nothing at it can reach a block
func (s *Submitter) release(from common.Address, n uint64, inFlight bool) {
	if inFlight {
		return
	}
	s.tracker.Release(from, s.chainID, n)
}

func (s *Submitter) observe(attempt TxAttempt, failure SubmitFailure, err error, outcome string) {
	s.metrics.SubmitAttempt(outcome)
	if s.hook != nil {
		s.hook(attempt, failure, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
