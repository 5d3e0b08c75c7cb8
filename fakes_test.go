package arenakit

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/battlechain/arenakit/contracts"
	"github.com/battlechain/arenakit/testutil"
)

// fakeLedger implements LedgerReader with scripted answers
type fakeLedger struct {
	mu sync.Mutex

	header  *types.Header
	tip     *big.Int
	price   *big.Int
	feeErr  error
	healthy bool

	// pendingNonces is consumed one per call; the last value repeats
	pendingNonces []uint64
	nonceCalls    int

	receipts     map[common.Hash]*types.Receipt
	receiptErr   error
	receiptCalls int

	code        map[common.Address][]byte
	blockNumber uint64
	logs        []types.Log
	logsErr     error
	queries     []ethereum.FilterQuery
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		header:        testutil.NewHeader(100, big.NewInt(1_000_000_000)),
		tip:           big.NewInt(100_000_000),
		price:         big.NewInt(2_000_000_000),
		healthy:       true,
		pendingNonces: []uint64{0},
		receipts:      make(map[common.Hash]*types.Receipt),
		code:          make(map[common.Address][]byte),
	}
}

func (f *fakeLedger) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.feeErr != nil {
		return nil, f.feeErr
	}
	return f.header, nil
}

func (f *fakeLedger) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.price), nil
}

func (f *fakeLedger) SuggestGasTipCap(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.tip), nil
}

func (f *fakeLedger) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.nonceCalls
	if i >= len(f.pendingNonces) {
		i = len(f.pendingNonces) - 1
	}
	f.nonceCalls++
	return f.pendingNonces[i], nil
}

func (f *fakeLedger) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptCalls++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeLedger) setReceipt(r *types.Receipt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts[r.TxHash] = r
}

func (f *fakeLedger) CodeAt(_ context.Context, addr common.Address, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code[addr], nil
}

func (f *fakeLedger) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, fmt.Errorf("no contract calls scripted")
}

func (f *fakeLedger) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	return f.logs, nil
}

func (f *fakeLedger) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockNumber, nil
}

func (f *fakeLedger) Healthy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy
}

// fakeSender returns scripted errors in order, then succeeds
type fakeSender struct {
	mu       sync.Mutex
	errs     []error
	attempts []TxAttempt
	calls    []Call
	ledger   *fakeLedger
	// receipt is stored on the ledger for each accepted hash
	receipt func(hash common.Hash) *types.Receipt
}

func (s *fakeSender) Send(_ context.Context, call Call, attempt TxAttempt) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	s.calls = append(s.calls, call)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return common.Hash{}, err
		}
	}
	hash := testutil.Hash(int64(1000 + len(s.attempts)))
	if s.ledger != nil && s.receipt != nil {
		s.ledger.setReceipt(s.receipt(hash))
	}
	return hash, nil
}

func (s *fakeSender) sent() []TxAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TxAttempt(nil), s.attempts...)
}

type fakeSigner struct {
	addr    common.Address
	chainID *big.Int
	err     error
}

func (s *fakeSigner) Address() common.Address { return s.addr }

func (s *fakeSigner) ChainID(context.Context) (*big.Int, error) {
	return s.chainID, s.err
}

func (s *fakeSigner) SignTx(_ context.Context, tx *types.Transaction) (*types.Transaction, error) {
	return tx, nil
}

// fakeClaimSources answers claim reads per battle address
type fakeClaimSources struct {
	prizes      map[common.Address]*big.Int
	withdrawals map[common.Address]*big.Int
	payouts     map[string]*big.Int
	bets        map[string]contracts.Bet
	agents      map[common.Address][]common.Address
	owners      map[common.Address]common.Address

	failPrize  map[common.Address]bool
	failAgents map[common.Address]bool
	failOwner  map[common.Address]bool

	mu    sync.Mutex
	reads map[common.Address]int
}

func newFakeClaimSources() *fakeClaimSources {
	return &fakeClaimSources{
		prizes:      make(map[common.Address]*big.Int),
		withdrawals: make(map[common.Address]*big.Int),
		payouts:     make(map[string]*big.Int),
		bets:        make(map[string]contracts.Bet),
		agents:      make(map[common.Address][]common.Address),
		owners:      make(map[common.Address]common.Address),
		failPrize:   make(map[common.Address]bool),
		failAgents:  make(map[common.Address]bool),
		failOwner:   make(map[common.Address]bool),
		reads:       make(map[common.Address]int),
	}
}

func (f *fakeClaimSources) touch(battle common.Address) {
	f.mu.Lock()
	f.reads[battle]++
	f.mu.Unlock()
}

func (f *fakeClaimSources) readsOf(battle common.Address) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[battle]
}

func (f *fakeClaimSources) ClaimablePrize(_ context.Context, battle, _ common.Address) (*big.Int, error) {
	f.touch(battle)
	if f.failPrize[battle] {
		return nil, fmt.Errorf("execution reverted")
	}
	return f.prizes[battle], nil
}

func (f *fakeClaimSources) PendingWithdrawal(_ context.Context, battle, _ common.Address) (*big.Int, error) {
	f.touch(battle)
	return f.withdrawals[battle], nil
}

func (f *fakeClaimSources) ClaimableBetPayout(_ context.Context, battleID *big.Int, _ common.Address) (*big.Int, error) {
	return f.payouts[battleID.String()], nil
}

func (f *fakeClaimSources) Bet(_ context.Context, battleID *big.Int, _, _ common.Address) (contracts.Bet, error) {
	return f.bets[battleID.String()], nil
}

func (f *fakeClaimSources) BattleAgents(_ context.Context, battle common.Address) ([]common.Address, error) {
	if f.failAgents[battle] {
		return nil, fmt.Errorf("agents unavailable")
	}
	return f.agents[battle], nil
}

func (f *fakeClaimSources) AgentOwner(_ context.Context, agent common.Address) (common.Address, error) {
	if f.failOwner[agent] {
		return common.Address{}, fmt.Errorf("owner() reverted")
	}
	return f.owners[agent], nil
}

// fakeAgentSources serves registrations and owners for discovery
type fakeAgentSources struct {
	deployed bool
	regs     []contracts.AgentRegistration
	regsErr  error
	owners   map[common.Address]common.Address
	ownerErr map[common.Address]error

	mu          sync.Mutex
	ownerLookup map[common.Address]int
}

func (f *fakeAgentSources) HasCode(context.Context, common.Address) (bool, error) {
	return f.deployed, nil
}

func (f *fakeAgentSources) AgentRegistrations(context.Context, uint64, *big.Int) ([]contracts.AgentRegistration, error) {
	return f.regs, f.regsErr
}

func (f *fakeAgentSources) AgentOwner(_ context.Context, agent common.Address) (common.Address, error) {
	f.mu.Lock()
	if f.ownerLookup == nil {
		f.ownerLookup = make(map[common.Address]int)
	}
	f.ownerLookup[agent]++
	f.mu.Unlock()
	if err := f.ownerErr[agent]; err != nil {
		return common.Address{}, err
	}
	return f.owners[agent], nil
}

func registration(battleID int64, agent common.Address) contracts.AgentRegistration {
	return contracts.AgentRegistration{BattleID: big.NewInt(battleID), Agent: agent}
}

// fakeBattleSources serves a small arena
type fakeBattleSources struct {
	ids        []*big.Int
	idsErr     error
	next       *big.Int
	addrs      map[string]common.Address
	states     map[common.Address]uint8
	winners    map[common.Address]common.Address
	failState  map[common.Address]bool
	creator    []*big.Int
	countErr   error
	pageCalls  [][2]int64
	pageErr    error
	creatorAll []*big.Int
	legacyErr  error
}

func (f *fakeBattleSources) AllBattleIDs(context.Context) ([]*big.Int, error) {
	return f.ids, f.idsErr
}

func (f *fakeBattleSources) NextBattleID(context.Context) (*big.Int, error) {
	if f.next == nil {
		return nil, fmt.Errorf("nextBattleId reverted")
	}
	return f.next, nil
}

func (f *fakeBattleSources) BattleAddress(_ context.Context, id *big.Int) (common.Address, error) {
	return f.addrs[id.String()], nil
}

func (f *fakeBattleSources) BattleState(_ context.Context, b common.Address) (uint8, error) {
	if f.failState[b] {
		return 0, fmt.Errorf("getState reverted")
	}
	return f.states[b], nil
}

func (f *fakeBattleSources) BattleChallenge(context.Context, common.Address) (common.Address, error) {
	return testutil.TestOther, nil
}

func (f *fakeBattleSources) BattleEntryFee(context.Context, common.Address) (*big.Int, error) {
	return testutil.Ether("0.05"), nil
}

func (f *fakeBattleSources) BattleDeadline(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(1_700_000_000), nil
}

func (f *fakeBattleSources) BattleWinner(_ context.Context, b common.Address) (common.Address, error) {
	return f.winners[b], nil
}

func (f *fakeBattleSources) CreatorBattles(context.Context, common.Address) ([]*big.Int, error) {
	return f.creatorAll, f.legacyErr
}

func (f *fakeBattleSources) CreatorBattleCount(context.Context, common.Address) (*big.Int, error) {
	if f.countErr != nil {
		return nil, f.countErr
	}
	return big.NewInt(int64(len(f.creator))), nil
}

func (f *fakeBattleSources) CreatorBattlesPage(_ context.Context, _ common.Address, offset, limit *big.Int) ([]*big.Int, error) {
	f.pageCalls = append(f.pageCalls, [2]int64{offset.Int64(), limit.Int64()})
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	start := int(offset.Int64())
	end := min(start+int(limit.Int64()), len(f.creator))
	if start >= end {
		return nil, nil
	}
	return f.creator[start:end], nil
}

func summary(id int64, addr common.Address, state BattleState, winner *common.Address) BattleSummary {
	return BattleSummary{ID: big.NewInt(id), Address: addr, State: state, Winner: winner}
}
