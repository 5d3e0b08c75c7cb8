package arenakit

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/battlechain/arenakit/contracts"
)

// ClaimsRefresher keeps a claims sweep current. It re-sweeps when the account
// or battle list changes and when a claim event shows up in one log query
// spanning every battle and the betting contract.
type ClaimsRefresher struct {
	aggregator *ClaimsAggregator
	logs       LogSource
	betting    common.Address
	interval   time.Duration
	hook       ClaimsHook

	mu         sync.Mutex
	account    *common.Address
	battles    []BattleSummary
	nextBlock  uint64
	haveCursor bool

	wake      chan struct{}
	updates   chan SweepResult
	latest    atomic.Pointer[SweepResult]
	seq       atomic.Uint64
	publishMu sync.Mutex
	published uint64
}

// RefresherOption configures a ClaimsRefresher
type RefresherOption func(*ClaimsRefresher)

// WithRefreshInterval sets how often claim events are polled
func WithRefreshInterval(d time.Duration) RefresherOption {
	return func(r *ClaimsRefresher) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithClaimsHook is called with every published sweep
func WithClaimsHook(hook ClaimsHook) RefresherOption {
	return func(r *ClaimsRefresher) {
		r.hook = hook
	}
}

// NewClaimsRefresher creates a refresher. betting is included in the event filter.
func NewClaimsRefresher(aggregator *ClaimsAggregator, logs LogSource, betting common.Address, opts ...RefresherOption) *ClaimsRefresher {
	r := &ClaimsRefresher{
		aggregator: aggregator,
		logs:       logs,
		betting:    betting,
		interval:   DefaultRefreshInterval,
		wake:       make(chan struct{}, 1),
		updates:    make(chan SweepResult, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetAccount changes the swept account
func (r *ClaimsRefresher) SetAccount(account common.Address) {
	r.mu.Lock()
	changed := r.account == nil || *r.account != account
	r.account = &account
	r.mu.Unlock()
	if changed {
		r.trigger()
	}
}

// SetBattles replaces the battle list. The event filter follows the new set.
func (r *ClaimsRefresher) SetBattles(battles []BattleSummary) {
	cp := make([]BattleSummary, len(battles))
	copy(cp, battles)

	r.mu.Lock()
	changed := !sameBattles(r.battles, cp)
	r.battles = cp
	r.mu.Unlock()
	if changed {
		r.trigger()
	}
}

func sameBattles(a, b []BattleSummary) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Address != b[i].Address || a[i].State != b[i].State {
			return false
		}
	}
	return true
}

func (r *ClaimsRefresher) trigger() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Latest returns the most recent sweep, or nil before the first one
func (r *ClaimsRefresher) Latest() *SweepResult {
	return r.latest.Load()
}

// Updates delivers published sweeps. Only the newest unread one is kept.
func (r *ClaimsRefresher) Updates() <-chan SweepResult {
	return r.updates
}

// Refresh sweeps now with the current account and battles
func (r *ClaimsRefresher) Refresh(ctx context.Context) (*SweepResult, bool) {
	r.mu.Lock()
	account := r.account
	battles := r.battles
	r.mu.Unlock()
	if account == nil {
		return nil, false
	}

	seq := r.seq.Add(1)
	result := r.aggregator.Sweep(ctx, *account, battles)
	if ctx.Err() != nil {
		return nil, false
	}
	r.publish(seq, result)
	return &result, true
}

// publish stores result unless a sweep that started later already published
func (r *ClaimsRefresher) publish(seq uint64, result SweepResult) {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	if seq < r.published {
		zap.L().Debug("dropping stale claims sweep", zap.Uint64("seq", seq), zap.Uint64("published", r.published))
		return
	}
	r.published = seq
	r.latest.Store(&result)

	select {
	case <-r.updates:
	default:
	}
	r.updates <- result

	if r.hook != nil {
		r.hook(result)
	}
}

// Run sweeps on every change and polls for claim events until ctx is done
func (r *ClaimsRefresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// events mined after the first sweep starts are picked up by the first poll
	r.seedCursor(ctx)
	r.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
			r.Refresh(ctx)
		case <-ticker.C:
			claimed, err := r.PollClaimEvents(ctx)
			if err != nil {
				zap.L().Warn("claim event poll failed", zap.Error(err))
				continue
			}
			if claimed {
				r.Refresh(ctx)
			}
		}
	}
}

// PollClaimEvents queries claim events since the last poll and reports
// whether any were found. Without a cursor the first call only records the
// current block; Run seeds the cursor before its first sweep.
func (r *ClaimsRefresher) PollClaimEvents(ctx context.Context) (bool, error) {
	head, err := r.logs.BlockNumber(ctx)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	from, haveCursor := r.nextBlock, r.haveCursor
	addrs := make([]common.Address, 0, len(r.battles)+1)
	for _, b := range r.battles {
		addrs = append(addrs, b.Address)
	}
	r.mu.Unlock()

	if !haveCursor {
		r.advance(head + 1)
		return false, nil
	}
	if head < from {
		return false, nil
	}
	if r.betting != (common.Address{}) {
		addrs = append(addrs, r.betting)
	}
	if len(addrs) == 0 {
		r.advance(head + 1)
		return false, nil
	}

	logs, err := r.logs.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: addrs,
		Topics:    [][]common.Hash{contracts.ClaimEventTopics()},
	})
	if err != nil {
		return false, err
	}
	r.advance(head + 1)

	for _, l := range logs {
		if contracts.IsClaimEvent(l) {
			zap.L().Debug("claim event seen",
				zap.String("contract", l.Address.Hex()),
				zap.Uint64("block", l.BlockNumber),
			)
			return true, nil
		}
	}
	return false, nil
}

func (r *ClaimsRefresher) seedCursor(ctx context.Context) {
	r.mu.Lock()
	have := r.haveCursor
	r.mu.Unlock()
	if have {
		return
	}
	head, err := r.logs.BlockNumber(ctx)
	if err != nil {
		zap.L().Warn("claim event cursor not seeded", zap.Error(err))
		return
	}
	r.advance(head + 1)
}

func (r *ClaimsRefresher) advance(next uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextBlock = next
	r.haveCursor = true
}
