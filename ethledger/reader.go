// Package ethledger adapts a go-ethereum JSON-RPC client to the interfaces
// arenakit reads, signs and broadcasts through.
package ethledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/battlechain/arenakit/internal/circuitbreaker"
	"github.com/battlechain/arenakit/internal/metrics"
)

// Client is the part of *ethclient.Client the ledger uses
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

var _ Client = (*ethclient.Client)(nil)

// Reader wraps a Client with a request rate limit and a circuit breaker.
// Calls rejected by an open breaker fail fast with circuitbreaker.ErrOpen.
type Reader struct {
	client  Client
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
	metrics *metrics.Metrics
}

type readerOptions struct {
	rps     float64
	burst   int
	breaker circuitbreaker.Config
	metrics *metrics.Metrics
}

// ReaderOption configures a Reader
type ReaderOption func(*readerOptions)

// WithRateLimit caps requests per second. Zero disables the limit.
func WithRateLimit(rps float64, burst int) ReaderOption {
	return func(o *readerOptions) {
		o.rps = rps
		o.burst = burst
	}
}

// WithBreakerConfig overrides the circuit breaker settings
func WithBreakerConfig(cfg circuitbreaker.Config) ReaderOption {
	return func(o *readerOptions) {
		o.breaker = cfg
	}
}

// WithReaderMetrics records breaker transitions and rejections into m
func WithReaderMetrics(m *metrics.Metrics) ReaderOption {
	return func(o *readerOptions) {
		o.metrics = m
	}
}

// Dial connects to rawURL
func Dial(ctx context.Context, rawURL string, opts ...ReaderOption) (*Reader, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	return NewReader(client, opts...), nil
}

// NewReader wraps client
func NewReader(client Client, opts ...ReaderOption) *Reader {
	o := readerOptions{breaker: circuitbreaker.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Reader{client: client, metrics: o.metrics}
	if o.rps > 0 {
		burst := o.burst
		if burst <= 0 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(o.rps), burst)
	}

	cfg := o.breaker
	next := cfg.OnStateChange
	cfg.OnStateChange = func(from, to circuitbreaker.State) {
		zap.L().Warn("rpc circuit breaker state changed",
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
		r.metrics.BreakerState(int(to))
		if next != nil {
			next(from, to)
		}
	}
	r.breaker = circuitbreaker.New(cfg)
	return r
}

// Close closes the underlying client
func (r *Reader) Close() {
	r.client.Close()
}

// Healthy reports whether the breaker lets calls through
func (r *Reader) Healthy() bool {
	return r.breaker.Healthy()
}

// BreakerStats returns a snapshot of the circuit breaker
func (r *Reader) BreakerStats() circuitbreaker.Stats {
	return r.breaker.Stats()
}

// countsAgainstEndpoint separates transport failures from answers. A JSON-RPC
// error response or a missing object means the node is up.
func countsAgainstEndpoint(err error) bool {
	if errors.Is(err, ethereum.NotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	var rpcErr rpc.Error
	return !errors.As(err, &rpcErr)
}

func (r *Reader) guard(ctx context.Context, method string, fn func() error) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
	}
	err := r.breaker.Do(fn, countsAgainstEndpoint)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		r.metrics.RPCRejected(method)
		return fmt.Errorf("%s: %w", method, err)
	}
	return err
}

func (r *Reader) ChainID(ctx context.Context) (id *big.Int, err error) {
	err = r.guard(ctx, "eth_chainId", func() (err error) {
		id, err = r.client.ChainID(ctx)
		return err
	})
	return id, err
}

func (r *Reader) BlockNumber(ctx context.Context) (n uint64, err error) {
	err = r.guard(ctx, "eth_blockNumber", func() (err error) {
		n, err = r.client.BlockNumber(ctx)
		return err
	})
	return n, err
}

func (r *Reader) HeaderByNumber(ctx context.Context, number *big.Int) (h *types.Header, err error) {
	err = r.guard(ctx, "eth_getBlockByNumber", func() (err error) {
		h, err = r.client.HeaderByNumber(ctx, number)
		return err
	})
	return h, err
}

func (r *Reader) SuggestGasPrice(ctx context.Context) (p *big.Int, err error) {
	err = r.guard(ctx, "eth_gasPrice", func() (err error) {
		p, err = r.client.SuggestGasPrice(ctx)
		return err
	})
	return p, err
}

func (r *Reader) SuggestGasTipCap(ctx context.Context) (p *big.Int, err error) {
	err = r.guard(ctx, "eth_maxPriorityFeePerGas", func() (err error) {
		p, err = r.client.SuggestGasTipCap(ctx)
		return err
	})
	return p, err
}

func (r *Reader) PendingNonceAt(ctx context.Context, account common.Address) (n uint64, err error) {
	err = r.guard(ctx, "eth_getTransactionCount", func() (err error) {
		n, err = r.client.PendingNonceAt(ctx, account)
		return err
	})
	return n, err
}

func (r *Reader) TransactionReceipt(ctx context.Context, hash common.Hash) (receipt *types.Receipt, err error) {
	err = r.guard(ctx, "eth_getTransactionReceipt", func() (err error) {
		receipt, err = r.client.TransactionReceipt(ctx, hash)
		return err
	})
	return receipt, err
}

func (r *Reader) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) (code []byte, err error) {
	err = r.guard(ctx, "eth_getCode", func() (err error) {
		code, err = r.client.CodeAt(ctx, account, blockNumber)
		return err
	})
	return code, err
}

func (r *Reader) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) (out []byte, err error) {
	err = r.guard(ctx, "eth_call", func() (err error) {
		out, err = r.client.CallContract(ctx, msg, blockNumber)
		return err
	})
	return out, err
}

func (r *Reader) FilterLogs(ctx context.Context, q ethereum.FilterQuery) (logs []types.Log, err error) {
	err = r.guard(ctx, "eth_getLogs", func() (err error) {
		logs, err = r.client.FilterLogs(ctx, q)
		return err
	})
	return logs, err
}

func (r *Reader) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (gas uint64, err error) {
	err = r.guard(ctx, "eth_estimateGas", func() (err error) {
		gas, err = r.client.EstimateGas(ctx, msg)
		return err
	})
	return gas, err
}

func (r *Reader) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return r.guard(ctx, "eth_sendRawTransaction", func() error {
		return r.client.SendTransaction(ctx, tx)
	})
}
