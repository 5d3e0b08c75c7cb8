// Package arenakit is the client core of the battle arena: a readiness gate,
// fee estimation, a retrying transaction submitter, receipt confirmation,
// claims aggregation and agent discovery, wired together by Client.
package arenakit

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/battlechain/arenakit/contracts"
	"github.com/battlechain/arenakit/idempotency"
	"github.com/battlechain/arenakit/internal/metrics"
	"github.com/battlechain/arenakit/internal/nonce"
	"github.com/battlechain/arenakit/kvstore"
)

// ClientDeps are the collaborators a Client is built from. Sender and Signer
// are nil for a read-only client; writes then fail the readiness gate.
type ClientDeps struct {
	Reader    LedgerReader
	Sender    TxSender
	Signer    Signer
	Store     kvstore.Store
	Addresses contracts.Addresses
	ChainID   uint64
	RPCURL    string
	Fees      FeeConfig
}

// Client is the entry point for reads and writes against the arena contracts
type Client struct {
	reader  LedgerReader
	sender  TxSender
	signer  Signer
	chainID uint64
	rpcURL  string

	contracts *contracts.Reader
	fees      *FeeEstimator
	submitter *Submitter
	receipts  *ReceiptWatcher
	claims    *ClaimsAggregator
	discovery *AgentDiscovery
	agents    *AgentBook
	battles   *BattleDirectory

	idempotency idempotency.Store
	metrics     *metrics.Metrics
	tracker     *nonce.Tracker

	maxAttempts      int
	receiptTimeout   time.Duration
	pollInterval     time.Duration
	backoffBase      time.Duration
	backoffMax       time.Duration
	sweepConcurrency int
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// WithIdempotencyStore sets a custom idempotency store
func WithIdempotencyStore(store idempotency.Store) ClientOption {
	return func(c *Client) {
		c.idempotency = store
	}
}

// WithDefaultIdempotencyStore sets up an in-memory idempotency store with the given TTL
func WithDefaultIdempotencyStore(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.idempotency = idempotency.NewInMemoryStore(ttl)
	}
}

// WithMetrics records into m instead of the process-wide collectors
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithClientNonceTracker shares a nonce tracker between clients of one sender
func WithClientNonceTracker(t *nonce.Tracker) ClientOption {
	return func(c *Client) {
		c.tracker = t
	}
}

// WithDefaultMaxAttempts sets the submission attempt budget
func WithDefaultMaxAttempts(n int) ClientOption {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithDefaultBackoff sets the retry backoff base and cap
func WithDefaultBackoff(base, max time.Duration) ClientOption {
	return func(c *Client) {
		c.backoffBase = base
		c.backoffMax = max
	}
}

// WithDefaultReceiptTimeout sets the receipt wait bound
func WithDefaultReceiptTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.receiptTimeout = d
	}
}

// WithDefaultReceiptPollInterval sets the receipt poll interval
func WithDefaultReceiptPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// WithSweepConcurrency bounds how many battles are read at once
func WithSweepConcurrency(n int) ClientOption {
	return func(c *Client) {
		c.sweepConcurrency = n
	}
}

// NewClient wires a client from deps
func NewClient(deps ClientDeps, opts ...ClientOption) (*Client, error) {
	if deps.Reader == nil {
		return nil, fmt.Errorf("%w: ledger reader is required", ErrConfiguration)
	}
	c := &Client{
		reader:           deps.Reader,
		sender:           deps.Sender,
		signer:           deps.Signer,
		chainID:          deps.ChainID,
		rpcURL:           deps.RPCURL,
		maxAttempts:      DefaultMaxAttempts,
		receiptTimeout:   DefaultReceiptTimeout,
		pollInterval:     DefaultReceiptPollInterval,
		backoffBase:      DefaultBackoffBase,
		backoffMax:       DefaultBackoffMax,
		sweepConcurrency: DefaultSweepConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.Default()
	}
	if c.tracker == nil {
		c.tracker = nonce.NewTracker()
	}

	fees, err := NewFeeEstimator(deps.Reader, deps.Fees)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	c.fees = fees

	store := deps.Store
	if store == nil {
		store = kvstore.NewMemory()
	}

	c.contracts = contracts.NewReader(deps.Reader, deps.Addresses)
	c.submitter = NewSubmitter(deps.Reader, fees,
		WithBackoff(c.backoffBase, c.backoffMax),
		WithNonceTracker(c.tracker),
		WithChainID(deps.ChainID),
		WithSubmitMetrics(c.metrics),
	)
	c.receipts = c.receiptWatcher(c.receiptTimeout)
	c.claims = NewClaimsAggregator(c.contracts, c.sweepConcurrency, c.metrics)
	c.discovery = NewAgentDiscovery(c.contracts, c.contracts.Addresses().Registry, c.metrics)
	c.agents = NewAgentBook(store, c.discovery)
	c.battles = NewBattleDirectory(c.contracts, c.sweepConcurrency)
	return c, nil
}

func (c *Client) receiptWatcher(timeout time.Duration) *ReceiptWatcher {
	if c.receipts != nil && timeout == c.receipts.Timeout() {
		return c.receipts
	}
	return NewReceiptWatcher(c.reader,
		WithReceiptTimeout(timeout),
		WithReceiptPollInterval(c.pollInterval),
		WithReceiptMetrics(c.metrics),
	)
}

// Contracts returns the typed contract reader
func (c *Client) Contracts() *contracts.Reader { return c.contracts }

// Fees returns the fee estimator
func (c *Client) Fees() *FeeEstimator { return c.fees }

// Agents returns the saved agent book
func (c *Client) Agents() *AgentBook { return c.agents }

// Battles returns the battle directory
func (c *Client) Battles() *BattleDirectory { return c.battles }

// ClaimsAggregator returns the claims aggregator
func (c *Client) ClaimsAggregator() *ClaimsAggregator { return c.claims }

// IdempotencyStore returns the configured store, or nil
func (c *Client) IdempotencyStore() idempotency.Store { return c.idempotency }

// Account returns the signer address, or the zero address without a signer
func (c *Client) Account() common.Address {
	if c.signer == nil {
		return common.Address{}
	}
	return c.signer.Address()
}

// Readiness evaluates the readiness gate against the current collaborators
func (c *Client) Readiness(ctx context.Context) Readiness {
	in := ReadinessInput{
		ExpectedChainID: c.chainID,
		RPCConfigured:   c.rpcURL != "",
		RPCReachable:    c.reader.Healthy(),
		SignerConnected: c.signer != nil && c.sender != nil,
	}
	if in.SignerConnected {
		id, err := c.signer.ChainID(ctx)
		if err != nil {
			zap.L().Debug("signer chain id unavailable", zap.Error(err))
			in.SignerConnected = false
		} else {
			in.SignerChainID = id
		}
	}
	return CheckReadiness(in)
}

// Claims lists every battle and sweeps account's claimable balances
func (c *Client) Claims(ctx context.Context, account common.Address) (SweepResult, error) {
	battles, err := c.battles.List(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	return c.claims.Sweep(ctx, account, battles), nil
}

// NewClaimsRefresher creates a refresher over this client's aggregator
func (c *Client) NewClaimsRefresher(opts ...RefresherOption) *ClaimsRefresher {
	return NewClaimsRefresher(c.claims, c.reader, c.contracts.Addresses().Betting, opts...)
}

// DiscoverAgents finds the agents account owns
func (c *Client) DiscoverAgents(ctx context.Context, account common.Address) (DiscoveryResult, error) {
	return c.discovery.Discover(ctx, account)
}

// Write operations. Each returns a request to configure further and Execute.

func (c *Client) contractCall(to common.Address, value *big.Int, data []byte, err error) (*TxRequest, error) {
	if err != nil {
		return nil, err
	}
	if to == (common.Address{}) {
		return nil, fmt.Errorf("%w: contract address not set", ErrConfiguration)
	}
	return c.R().SetTo(to).SetData(data).SetValue(value), nil
}

// CreateBattle opens a battle. The entry fee is sent as value.
func (c *Client) CreateBattle(challengeType uint8, entryFee, maxAgents, duration *big.Int) (*TxRequest, error) {
	data, err := contracts.PackCreateBattle(challengeType, entryFee, maxAgents, duration)
	return c.contractCall(c.contracts.Addresses().Arena, entryFee, data, err)
}

func (c *Client) RegisterAgent(battleID *big.Int, agent common.Address) (*TxRequest, error) {
	data, err := contracts.PackRegisterAgent(battleID, agent)
	return c.contractCall(c.contracts.Addresses().Arena, nil, data, err)
}

func (c *Client) StartBattle(battleID *big.Int) (*TxRequest, error) {
	data, err := contracts.PackStartBattle(battleID)
	return c.contractCall(c.contracts.Addresses().Arena, nil, data, err)
}

func (c *Client) ResolveBattle(battleID *big.Int) (*TxRequest, error) {
	data, err := contracts.PackResolveBattle(battleID)
	return c.contractCall(c.contracts.Addresses().Arena, nil, data, err)
}

// PlaceBet bets amount on the agent at agentIndex
func (c *Client) PlaceBet(battleID, agentIndex, amount *big.Int) (*TxRequest, error) {
	data, err := contracts.PackPlaceBet(battleID, agentIndex)
	return c.contractCall(c.contracts.Addresses().Betting, amount, data, err)
}

func (c *Client) ClaimPrize(battle common.Address) (*TxRequest, error) {
	data, err := contracts.PackClaimPrize()
	return c.contractCall(battle, nil, data, err)
}

func (c *Client) Withdraw(battle common.Address) (*TxRequest, error) {
	data, err := contracts.PackWithdraw()
	return c.contractCall(battle, nil, data, err)
}

func (c *Client) ClaimBetPayout(battleID *big.Int) (*TxRequest, error) {
	data, err := contracts.PackClaimBetPayout(battleID)
	return c.contractCall(c.contracts.Addresses().Betting, nil, data, err)
}

// DeployAgent deploys a compiled agent. On success the new address is saved
// to the agent book.
func (c *Client) DeployAgent(artifact *contracts.Artifact, args ...any) (*TxRequest, error) {
	if artifact == nil {
		return nil, fmt.Errorf("deploy agent: no artifact")
	}
	data, err := artifact.DeployData(args...)
	if err != nil {
		return nil, err
	}
	req := c.R().SetData(data)
	req.afterSuccess = func(ctx context.Context, out *TxOutcome) {
		if out == nil || out.ContractAddress == nil {
			return
		}
		if _, err := c.agents.Add(ctx, *out.ContractAddress); err != nil {
			zap.L().Warn("deployed agent not saved",
				zap.String("agent", out.ContractAddress.Hex()),
				zap.Error(err),
			)
		}
	}
	return req, nil
}
