package arenakit

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Constants for transaction execution
const (
	DefaultMaxAttempts         = 3
	DefaultBackoffBase         = 500 * time.Millisecond
	DefaultBackoffMax          = 8 * time.Second
	DefaultReceiptTimeout      = 120 * time.Second
	DefaultReceiptPollInterval = 2 * time.Second

	DefaultFeeMultiplierPercent = 100
)

// Constants for read sweeps
const (
	DefaultSweepConcurrency = 8
	DefaultRefreshInterval  = 15 * time.Second
	CreatorBattlesPageSize  = 25

	// AgentStorageKey is the store key of the saved agent list
	AgentStorageKey = "battlechain.deployedAgents"
)

// DefaultBumpSchedule is the percentage applied to the node fee per retry
var DefaultBumpSchedule = []uint64{120, 130, 150}

// BattleState is the lifecycle state of a battle contract
type BattleState uint8

const (
	BattlePending BattleState = iota
	BattleActive
	BattleExecuting
	BattleResolved
	BattleClaimed
)

// BattleStateFromUint maps the on-chain enum. Unknown values are Pending.
func BattleStateFromUint(v uint8) BattleState {
	if v > uint8(BattleClaimed) {
		return BattlePending
	}
	return BattleState(v)
}

func (s BattleState) String() string {
	switch s {
	case BattleActive:
		return "Active"
	case BattleExecuting:
		return "Executing"
	case BattleResolved:
		return "Resolved"
	case BattleClaimed:
		return "Claimed"
	default:
		return "Pending"
	}
}

// IsTerminal reports whether claimable balances can exist
func (s BattleState) IsTerminal() bool {
	return s == BattleResolved || s == BattleClaimed
}

// BattleRef identifies one deployed battle
type BattleRef struct {
	ID      *big.Int
	Address common.Address
}

// BattleSummary is a read-only snapshot of a battle, rebuilt on every refresh
type BattleSummary struct {
	ID          *big.Int        `json:"id"`
	Address     common.Address  `json:"address"`
	State       BattleState     `json:"state"`
	Challenge   common.Address  `json:"challenge"`
	EntryFee    string          `json:"entryFee"`
	DeadlineISO string          `json:"deadline"`
	Winner      *common.Address `json:"winner"`
}

// Ref returns the battle's identity
func (b BattleSummary) Ref() BattleRef {
	return BattleRef{ID: b.ID, Address: b.Address}
}

// ClaimSet is one account's claimable position in one battle. The three
// balances are separate buckets with separate claim actions.
type ClaimSet struct {
	ClaimablePrize       *big.Int `json:"claimablePrize"`
	PendingWithdrawal    *big.Int `json:"pendingWithdrawal"`
	ClaimableBetPayout   *big.Int `json:"claimableBetPayout"`
	BetAmount            *big.Int `json:"betAmount"`
	ParticipatedAsOwner  bool     `json:"participatedAsOwner"`
	ParticipatedAsBettor bool     `json:"participatedAsBettor"`
	BetClaimed           bool     `json:"betClaimed"`

	// Degraded is set when the entry was zeroed after a read failure
	Degraded bool `json:"degraded,omitempty"`
}

func zeroClaimSet() ClaimSet {
	return ClaimSet{
		ClaimablePrize:     new(big.Int),
		PendingWithdrawal:  new(big.Int),
		ClaimableBetPayout: new(big.Int),
		BetAmount:          new(big.Int),
	}
}

// ClaimTotals are independent sums per bucket
type ClaimTotals struct {
	Prize             *big.Int `json:"prize"`
	BetPayout         *big.Int `json:"betPayout"`
	PendingWithdrawal *big.Int `json:"pendingWithdrawal"`
}

// SweepResult is the output of a claims sweep. PerBattle is keyed by the
// decimal battle id.
type SweepResult struct {
	Account   common.Address      `json:"account"`
	PerBattle map[string]ClaimSet `json:"perBattle"`
	Totals    ClaimTotals         `json:"totals"`
	SweptAt   time.Time           `json:"sweptAt"`
}

// For returns the entry for battle id
func (r SweepResult) For(id *big.Int) (ClaimSet, bool) {
	c, ok := r.PerBattle[id.String()]
	return c, ok
}

// Call is the side effect of a logical write. It is identical on every attempt.
// A nil To deploys Data as contract creation code.
type Call struct {
	To    *common.Address
	Data  []byte
	Value *big.Int
}

// IsDeploy reports whether the call creates a contract
func (c Call) IsDeploy() bool {
	return c.To == nil
}

// TxAttempt is one submission try of a logical write
type TxAttempt struct {
	Nonce uint64
	Fee   FeePolicy
	Index int
}

// TxOutcome is the result of a confirmed write
type TxOutcome struct {
	Hash            common.Hash
	Receipt         *types.Receipt
	ContractAddress *common.Address
	// Cached is set when the outcome came from the idempotency store
	Cached bool
}

// Phase is where a write operation stands, for display
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseAwaitingSigner Phase = "awaiting-signer"
	PhaseSubmitted      Phase = "submitted"
	PhaseConfirming     Phase = "confirming"
	PhaseSuccess        Phase = "success"
	PhaseTimeout        Phase = "timeout"
	PhaseError          Phase = "error"
)

// ReceiptStatus is sent on the channel returned by ReceiptWatcher.Watch
type ReceiptStatus struct {
	Status  string
	Receipt *types.Receipt
	Err     error
}

// Receipt status values
const (
	ReceiptMined     = "mined"
	ReceiptReverted  = "reverted"
	ReceiptTimedOut  = "timeout"
	ReceiptFailed    = "failed"
	ReceiptCancelled = "cancelled"
)
