package arenakit

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/battlechain/arenakit/contracts"
	"github.com/battlechain/arenakit/internal/metrics"
	"github.com/battlechain/arenakit/testutil"
)

func assertWei(t *testing.T, want, got *big.Int, msgAndArgs ...any) {
	t.Helper()
	require.NotNil(t, got, msgAndArgs...)
	assert.Equal(t, 0, want.Cmp(got), append([]any{"want %s got %s", want, got}, msgAndArgs...)...)
}

func TestClaimsAggregator_ResolvedBattleWithPendingWithdrawal(t *testing.T) {
	src := newFakeClaimSources()
	src.withdrawals[testutil.TestBattle1] = testutil.Ether("2.5")
	src.agents[testutil.TestBattle1] = []common.Address{testutil.TestAgent1}
	src.owners[testutil.TestAgent1] = testutil.TestOther

	agg := NewClaimsAggregator(src, 4, nil)
	result := agg.Sweep(context.Background(), testutil.TestAccount, []BattleSummary{
		summary(1, testutil.TestBattle1, BattleResolved, nil),
	})

	assertWei(t, big.NewInt(0), result.Totals.Prize)
	assertWei(t, big.NewInt(0), result.Totals.BetPayout)
	assertWei(t, testutil.Ether("2.5"), result.Totals.PendingWithdrawal)
	assert.Equal(t, "2.5", FormatEther(result.Totals.PendingWithdrawal))

	set, ok := result.For(big.NewInt(1))
	require.True(t, ok)
	assert.False(t, set.ParticipatedAsOwner)
	assert.False(t, set.ParticipatedAsBettor)
	assert.False(t, set.Degraded)
	assert.Equal(t, testutil.TestAccount, result.Account)
	assert.False(t, result.SweptAt.IsZero())
}

func TestClaimsAggregator_SkipsNonTerminalBattles(t *testing.T) {
	src := newFakeClaimSources()
	battles := []BattleSummary{
		summary(1, testutil.TestBattle1, BattlePending, nil),
		summary(2, testutil.TestBattle2, BattleActive, nil),
		summary(3, testutil.TestBattle3, BattleClaimed, nil),
	}
	result := NewClaimsAggregator(src, 0, nil).Sweep(context.Background(), testutil.TestAccount, battles)

	assert.Len(t, result.PerBattle, 1)
	_, ok := result.PerBattle["3"]
	assert.True(t, ok)
	assert.Zero(t, src.readsOf(testutil.TestBattle1))
	assert.Zero(t, src.readsOf(testutil.TestBattle2))
	assert.NotZero(t, src.readsOf(testutil.TestBattle3))
}

func TestClaimsAggregator_FailedBattleIsZeroedNotFatal(t *testing.T) {
	src := newFakeClaimSources()
	src.prizes[testutil.TestBattle1] = testutil.Ether("1")
	src.prizes[testutil.TestBattle2] = testutil.Ether("3")
	src.failPrize[testutil.TestBattle2] = true
	reg := prometheus.NewRegistry()

	agg := NewClaimsAggregator(src, 2, metrics.New(reg))
	result := agg.Sweep(context.Background(), testutil.TestAccount, []BattleSummary{
		summary(1, testutil.TestBattle1, BattleResolved, nil),
		summary(2, testutil.TestBattle2, BattleResolved, nil),
	})

	require.Len(t, result.PerBattle, 2)
	failed := result.PerBattle["2"]
	assert.True(t, failed.Degraded)
	assertWei(t, big.NewInt(0), failed.ClaimablePrize)
	assertWei(t, big.NewInt(0), failed.PendingWithdrawal)
	assertWei(t, testutil.Ether("1"), result.Totals.Prize)

	expected := `
# HELP arenakit_claim_sweep_battle_failures_total Battles whose claim sources failed during a sweep.
# TYPE arenakit_claim_sweep_battle_failures_total counter
arenakit_claim_sweep_battle_failures_total 1
`
	assert.NoError(t, prom.GatherAndCompare(reg, strings.NewReader(expected), "arenakit_claim_sweep_battle_failures_total"))
}

func TestClaimsAggregator_BettorOnWinner(t *testing.T) {
	src := newFakeClaimSources()
	winner := testutil.TestAgent2
	src.payouts["7"] = testutil.Ether("0.4")
	src.bets["7"] = contracts.Bet{Amount: testutil.Ether("0.1")}

	result := NewClaimsAggregator(src, 0, nil).Sweep(context.Background(), testutil.TestAccount, []BattleSummary{
		summary(7, testutil.TestBattle1, BattleResolved, &winner),
	})

	set := result.PerBattle["7"]
	assert.True(t, set.ParticipatedAsBettor)
	assert.False(t, set.BetClaimed)
	assertWei(t, testutil.Ether("0.1"), set.BetAmount)
	assertWei(t, testutil.Ether("0.4"), result.Totals.BetPayout)
}

func TestClaimsAggregator_OwnerParticipation(t *testing.T) {
	t.Run("owner of a registered agent", func(t *testing.T) {
		src := newFakeClaimSources()
		src.agents[testutil.TestBattle1] = []common.Address{testutil.TestAgent1, testutil.TestAgent2}
		src.owners[testutil.TestAgent1] = testutil.TestOther
		src.owners[testutil.TestAgent2] = testutil.TestAccount

		result := NewClaimsAggregator(src, 0, nil).Sweep(context.Background(), testutil.TestAccount, []BattleSummary{
			summary(1, testutil.TestBattle1, BattleResolved, nil),
		})
		assert.True(t, result.PerBattle["1"].ParticipatedAsOwner)
	})

	t.Run("owner lookup failure degrades to false", func(t *testing.T) {
		src := newFakeClaimSources()
		src.withdrawals[testutil.TestBattle1] = testutil.Ether("0.5")
		src.agents[testutil.TestBattle1] = []common.Address{testutil.TestAgent1}
		src.failOwner[testutil.TestAgent1] = true

		result := NewClaimsAggregator(src, 0, nil).Sweep(context.Background(), testutil.TestAccount, []BattleSummary{
			summary(1, testutil.TestBattle1, BattleResolved, nil),
		})
		set := result.PerBattle["1"]
		assert.False(t, set.ParticipatedAsOwner)
		assert.False(t, set.Degraded, "balances are still valid")
		assertWei(t, testutil.Ether("0.5"), set.PendingWithdrawal)
	})

	t.Run("agent listing failure degrades to false", func(t *testing.T) {
		src := newFakeClaimSources()
		src.failAgents[testutil.TestBattle1] = true

		result := NewClaimsAggregator(src, 0, nil).Sweep(context.Background(), testutil.TestAccount, []BattleSummary{
			summary(1, testutil.TestBattle1, BattleResolved, nil),
		})
		assert.False(t, result.PerBattle["1"].ParticipatedAsOwner)
		assert.False(t, result.PerBattle["1"].Degraded)
	})
}

func TestClaimsAggregator_EmptySweep(t *testing.T) {
	result := NewClaimsAggregator(newFakeClaimSources(), 0, nil).Sweep(context.Background(), testutil.TestAccount, nil)
	assert.Empty(t, result.PerBattle)
	assertWei(t, big.NewInt(0), result.Totals.Prize)
	assertWei(t, big.NewInt(0), result.Totals.BetPayout)
	assertWei(t, big.NewInt(0), result.Totals.PendingWithdrawal)
}
