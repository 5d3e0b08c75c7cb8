package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Backend is the subset of a ledger node the typed reader needs
type Backend interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// Addresses of the singleton contracts. Registry is where AgentRegistered is emitted.
type Addresses struct {
	Arena    common.Address
	Betting  common.Address
	Registry common.Address
}

// Bet is a bettor's position on one agent of a battle
type Bet struct {
	Amount  *big.Int
	Claimed bool
}

// Reader performs typed view calls against the arena contracts
type Reader struct {
	backend Backend
	addrs   Addresses
}

// NewReader creates a reader. A zero Registry defaults to Arena.
func NewReader(backend Backend, addrs Addresses) *Reader {
	if addrs.Registry == (common.Address{}) {
		addrs.Registry = addrs.Arena
	}
	return &Reader{backend: backend, addrs: addrs}
}

// Addresses returns the configured contract addresses
func (r *Reader) Addresses() Addresses {
	return r.addrs
}

func (r *Reader) call(ctx context.Context, contract *abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s from %s: %w", method, to.Hex(), err)
	}
	return out, nil
}

func first[T any](out []any, method string) (T, error) {
	var zero T
	if len(out) == 0 {
		return zero, fmt.Errorf("%s: empty result", method)
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected result type %T", method, out[0])
	}
	return v, nil
}

func callOne[T any](ctx context.Context, r *Reader, contract *abi.ABI, to common.Address, method string, args ...any) (T, error) {
	out, err := r.call(ctx, contract, to, method, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	return first[T](out, method)
}

// HasCode reports whether addr holds contract bytecode at the latest block
func (r *Reader) HasCode(ctx context.Context, addr common.Address) (bool, error) {
	code, err := r.backend.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("get code at %s: %w", addr.Hex(), err)
	}
	return len(code) > 0, nil
}

// Arena

func (r *Reader) AllBattleIDs(ctx context.Context) ([]*big.Int, error) {
	return callOne[[]*big.Int](ctx, r, &ArenaABI, r.addrs.Arena, "getAllBattleIds")
}

func (r *Reader) NextBattleID(ctx context.Context) (*big.Int, error) {
	return callOne[*big.Int](ctx, r, &ArenaABI, r.addrs.Arena, "nextBattleId")
}

func (r *Reader) BattleAddress(ctx context.Context, battleID *big.Int) (common.Address, error) {
	return callOne[common.Address](ctx, r, &ArenaABI, r.addrs.Arena, "battles", battleID)
}

func (r *Reader) CreatorBattles(ctx context.Context, creator common.Address) ([]*big.Int, error) {
	return callOne[[]*big.Int](ctx, r, &ArenaABI, r.addrs.Arena, "getCreatorBattles", creator)
}

func (r *Reader) CreatorBattleCount(ctx context.Context, creator common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, r, &ArenaPaginationABI, r.addrs.Arena, "getCreatorBattleCount", creator)
}

func (r *Reader) CreatorBattlesPage(ctx context.Context, creator common.Address, offset, limit *big.Int) ([]*big.Int, error) {
	return callOne[[]*big.Int](ctx, r, &ArenaPaginationABI, r.addrs.Arena, "getCreatorBattles", creator, offset, limit)
}

// Battle

func (r *Reader) BattleState(ctx context.Context, battle common.Address) (uint8, error) {
	return callOne[uint8](ctx, r, &BattleABI, battle, "getState")
}

func (r *Reader) BattleChallenge(ctx context.Context, battle common.Address) (common.Address, error) {
	return callOne[common.Address](ctx, r, &BattleABI, battle, "getChallenge")
}

func (r *Reader) BattleEntryFee(ctx context.Context, battle common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, r, &BattleABI, battle, "entryFee")
}

func (r *Reader) BattleDeadline(ctx context.Context, battle common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, r, &BattleABI, battle, "deadline")
}

func (r *Reader) BattleWinner(ctx context.Context, battle common.Address) (common.Address, error) {
	return callOne[common.Address](ctx, r, &BattleABI, battle, "getWinner")
}

func (r *Reader) BattleAgents(ctx context.Context, battle common.Address) ([]common.Address, error) {
	return callOne[[]common.Address](ctx, r, &BattleABI, battle, "getAgents")
}

func (r *Reader) ClaimablePrize(ctx context.Context, battle, account common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, r, &BattleABI, battle, "claimablePrize", account)
}

func (r *Reader) PendingWithdrawal(ctx context.Context, battle, account common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, r, &BattleABI, battle, "pendingWithdrawals", account)
}

// Betting

func (r *Reader) ClaimableBetPayout(ctx context.Context, battleID *big.Int, account common.Address) (*big.Int, error) {
	return callOne[*big.Int](ctx, r, &BettingABI, r.addrs.Betting, "claimableBetPayout", battleID, account)
}

// Bet returns account's bet on agent in battleID
func (r *Reader) Bet(ctx context.Context, battleID *big.Int, agent, account common.Address) (Bet, error) {
	out, err := r.call(ctx, &BettingABI, r.addrs.Betting, "getBet", battleID, agent, account)
	if err != nil {
		return Bet{}, err
	}
	if len(out) != 2 {
		return Bet{}, fmt.Errorf("getBet: expected 2 results, got %d", len(out))
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return Bet{}, fmt.Errorf("getBet: unexpected amount type %T", out[0])
	}
	claimed, ok := out[1].(bool)
	if !ok {
		return Bet{}, fmt.Errorf("getBet: unexpected claimed type %T", out[1])
	}
	return Bet{Amount: amount, Claimed: claimed}, nil
}

// Agent

func (r *Reader) AgentOwner(ctx context.Context, agent common.Address) (common.Address, error) {
	return callOne[common.Address](ctx, r, &AgentABI, agent, "owner")
}

// AgentRegistrations returns every AgentRegistered event emitted by the
// registry between fromBlock and toBlock. A nil toBlock means latest.
func (r *Reader) AgentRegistrations(ctx context.Context, fromBlock uint64, toBlock *big.Int) ([]AgentRegistration, error) {
	logs, err := r.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   toBlock,
		Addresses: []common.Address{r.addrs.Registry},
		Topics:    [][]common.Hash{{AgentRegisteredTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("query AgentRegistered logs on %s: %w", r.addrs.Registry.Hex(), err)
	}
	regs := make([]AgentRegistration, 0, len(logs))
	for _, l := range logs {
		reg, err := ParseAgentRegistered(l)
		if err != nil {
			zap.L().Warn("skipping malformed registration log", zap.Error(err))
			continue
		}
		regs = append(regs, reg)
	}
	return regs, nil
}
