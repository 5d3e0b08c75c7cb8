package arenakit

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/battlechain/arenakit/contracts"
	"github.com/battlechain/arenakit/internal/metrics"
)

// ClaimsAggregator reduces an account's claimable balances across battles
type ClaimsAggregator struct {
	sources     ClaimSources
	concurrency int
	metrics     *metrics.Metrics
}

// NewClaimsAggregator creates an aggregator sweeping at most concurrency
// battles at once. Zero means DefaultSweepConcurrency.
func NewClaimsAggregator(sources ClaimSources, concurrency int, m *metrics.Metrics) *ClaimsAggregator {
	if concurrency <= 0 {
		concurrency = DefaultSweepConcurrency
	}
	return &ClaimsAggregator{sources: sources, concurrency: concurrency, metrics: m}
}

// Sweep computes the claim set of account for every terminal battle. A battle
// whose reads fail gets a zeroed, degraded entry; Sweep itself never fails.
func (a *ClaimsAggregator) Sweep(ctx context.Context, account common.Address, battles []BattleSummary) SweepResult {
	terminal := make([]BattleSummary, 0, len(battles))
	for _, b := range battles {
		if b.State.IsTerminal() && b.ID != nil {
			terminal = append(terminal, b)
		}
	}

	var (
		mu     sync.Mutex
		failed int
		result = SweepResult{
			Account:   account,
			PerBattle: make(map[string]ClaimSet, len(terminal)),
		}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, b := range terminal {
		b := b
		g.Go(func() error {
			set, err := a.sweepBattle(gctx, account, b)
			if err != nil {
				zap.L().Warn("claim sources failed, battle zeroed",
					zap.String("battle_id", b.ID.String()),
					zap.String("battle", b.Address.Hex()),
					zap.String("account", account.Hex()),
					zap.Error(err),
				)
				set = zeroClaimSet()
				set.Degraded = true
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
			}
			result.PerBattle[b.ID.String()] = set
			return nil
		})
	}
	_ = g.Wait()

	result.Totals = totalClaims(result.PerBattle)
	result.SweptAt = time.Now()
	a.metrics.Sweep(failed)
	zap.L().Info("claims swept",
		zap.String("account", account.Hex()),
		zap.Int("battles", len(terminal)),
		zap.Int("failed", failed),
		zap.Stringer("prize_total", result.Totals.Prize),
		zap.Stringer("bet_payout_total", result.Totals.BetPayout),
		zap.Stringer("pending_withdrawal_total", result.Totals.PendingWithdrawal),
	)
	return result
}

func (a *ClaimsAggregator) sweepBattle(ctx context.Context, account common.Address, b BattleSummary) (ClaimSet, error) {
	set := zeroClaimSet()
	var bet contracts.Bet

	// the four balance reads succeed or fail together
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := a.sources.ClaimablePrize(gctx, b.Address, account)
		if err != nil {
			return fmt.Errorf("claimable prize: %w", err)
		}
		set.ClaimablePrize = nonNil(v)
		return nil
	})
	g.Go(func() error {
		v, err := a.sources.PendingWithdrawal(gctx, b.Address, account)
		if err != nil {
			return fmt.Errorf("pending withdrawal: %w", err)
		}
		set.PendingWithdrawal = nonNil(v)
		return nil
	})
	g.Go(func() error {
		v, err := a.sources.ClaimableBetPayout(gctx, b.ID, account)
		if err != nil {
			return fmt.Errorf("claimable bet payout: %w", err)
		}
		set.ClaimableBetPayout = nonNil(v)
		return nil
	})
	g.Go(func() error {
		if b.Winner == nil {
			return nil
		}
		v, err := a.sources.Bet(gctx, b.ID, *b.Winner, account)
		if err != nil {
			return fmt.Errorf("bet on winner: %w", err)
		}
		bet = v
		return nil
	})

	// owner participation degrades on its own and never fails the battle
	ownerCh := make(chan bool, 1)
	go func() {
		ownerCh <- a.participatedAsOwner(ctx, account, b)
	}()

	err := g.Wait()
	owner := <-ownerCh
	if err != nil {
		return ClaimSet{}, err
	}

	set.BetAmount = nonNil(bet.Amount)
	set.BetClaimed = bet.Claimed
	set.ParticipatedAsOwner = owner
	set.ParticipatedAsBettor = set.BetAmount.Sign() > 0 || set.ClaimableBetPayout.Sign() > 0
	return set, nil
}

func (a *ClaimsAggregator) participatedAsOwner(ctx context.Context, account common.Address, b BattleSummary) bool {
	agents, err := a.sources.BattleAgents(ctx, b.Address)
	if err != nil {
		zap.L().Debug("agent listing failed, owner participation unknown",
			zap.String("battle", b.Address.Hex()), zap.Error(err))
		return false
	}

	g, gctx := errgroup.WithContext(ctx)
	owners := make([]common.Address, len(agents))
	for i, agent := range agents {
		i, agent := i, agent
		g.Go(func() error {
			owner, err := a.sources.AgentOwner(gctx, agent)
			if err != nil {
				return fmt.Errorf("owner of %s: %w", agent.Hex(), err)
			}
			owners[i] = owner
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		zap.L().Debug("owner lookup failed, owner participation unknown",
			zap.String("battle", b.Address.Hex()), zap.Error(err))
		return false
	}
	for _, owner := range owners {
		if owner == account {
			return true
		}
	}
	return false
}

func totalClaims(perBattle map[string]ClaimSet) ClaimTotals {
	totals := ClaimTotals{Prize: new(big.Int), BetPayout: new(big.Int), PendingWithdrawal: new(big.Int)}
	for _, c := range perBattle {
		totals.Prize.Add(totals.Prize, c.ClaimablePrize)
		totals.BetPayout.Add(totals.BetPayout, c.ClaimableBetPayout)
		totals.PendingWithdrawal.Add(totals.PendingWithdrawal, c.PendingWithdrawal)
	}
	return totals
}

func nonNil(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return x
}
