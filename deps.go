package arenakit

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/battlechain/arenakit/contracts"
)

// NonceSource returns an account's pending-inclusive transaction count
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// FeeSource exposes the node's fee suggestions
type FeeSource interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// ReceiptSource looks up transaction receipts
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// LogSource is what the claims refresher polls
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// LedgerReader is the full read side of a ledger node
type LedgerReader interface {
	contracts.Backend
	NonceSource
	FeeSource
	ReceiptSource
	BlockNumber(ctx context.Context) (uint64, error)
	// Healthy is false while the node is considered unreachable
	Healthy() bool
}

// TxSender builds, signs and broadcasts a call with the attempt's nonce and fee
type TxSender interface {
	Send(ctx context.Context, call Call, attempt TxAttempt) (common.Hash, error)
}

// Signer is the signing capability. It may be absent or on another chain.
type Signer interface {
	Address() common.Address
	ChainID(ctx context.Context) (*big.Int, error)
	SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)
}

// ClaimSources are the reads a claims sweep needs
type ClaimSources interface {
	ClaimablePrize(ctx context.Context, battle, account common.Address) (*big.Int, error)
	PendingWithdrawal(ctx context.Context, battle, account common.Address) (*big.Int, error)
	ClaimableBetPayout(ctx context.Context, battleID *big.Int, account common.Address) (*big.Int, error)
	Bet(ctx context.Context, battleID *big.Int, agent, account common.Address) (contracts.Bet, error)
	BattleAgents(ctx context.Context, battle common.Address) ([]common.Address, error)
	AgentOwner(ctx context.Context, agent common.Address) (common.Address, error)
}

// AgentSources are the reads agent discovery needs
type AgentSources interface {
	HasCode(ctx context.Context, addr common.Address) (bool, error)
	AgentRegistrations(ctx context.Context, fromBlock uint64, toBlock *big.Int) ([]contracts.AgentRegistration, error)
	AgentOwner(ctx context.Context, agent common.Address) (common.Address, error)
}

// BattleSources are the reads the battle directory needs
type BattleSources interface {
	AllBattleIDs(ctx context.Context) ([]*big.Int, error)
	NextBattleID(ctx context.Context) (*big.Int, error)
	BattleAddress(ctx context.Context, battleID *big.Int) (common.Address, error)
	BattleState(ctx context.Context, battle common.Address) (uint8, error)
	BattleChallenge(ctx context.Context, battle common.Address) (common.Address, error)
	BattleEntryFee(ctx context.Context, battle common.Address) (*big.Int, error)
	BattleDeadline(ctx context.Context, battle common.Address) (*big.Int, error)
	BattleWinner(ctx context.Context, battle common.Address) (common.Address, error)
	CreatorBattles(ctx context.Context, creator common.Address) ([]*big.Int, error)
	CreatorBattleCount(ctx context.Context, creator common.Address) (*big.Int, error)
	CreatorBattlesPage(ctx context.Context, creator common.Address, offset, limit *big.Int) ([]*big.Int, error)
}

var (
	_ ClaimSources  = (*contracts.Reader)(nil)
	_ AgentSources  = (*contracts.Reader)(nil)
	_ BattleSources = (*contracts.Reader)(nil)
)
