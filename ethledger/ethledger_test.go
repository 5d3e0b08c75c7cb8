package ethledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/battlechain/arenakit"
	"github.com/battlechain/arenakit/internal/circuitbreaker"
	"github.com/battlechain/arenakit/internal/metrics"
	"github.com/battlechain/arenakit/testutil"
)

// rpcError mimics a JSON-RPC error response
type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string  { return e.msg }
func (e *rpcError) ErrorCode() int { return e.code }

type fakeClient struct {
	mu sync.Mutex

	chainID     *big.Int
	blockErr    error
	estimate    uint64
	estimateErr error
	sendErr     error
	sent        []*types.Transaction
	estimates   []ethereum.CallMsg
	calls       int
}

func (f *fakeClient) count() {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
}

func (f *fakeClient) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeClient) BlockNumber(context.Context) (uint64, error) {
	f.count()
	return 42, f.blockErr
}

func (f *fakeClient) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return testutil.NewHeader(42, big.NewInt(1)), nil
}

func (f *fakeClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return testutil.TwoGwei, nil
}

func (f *fakeClient) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeClient) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	f.count()
	return nil, ethereum.NotFound
}

func (f *fakeClient) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, nil
}

func (f *fakeClient) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	f.count()
	return nil, &rpcError{code: 3, msg: "execution reverted"}
}

func (f *fakeClient) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeClient) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimates = append(f.estimates, msg)
	return f.estimate, f.estimateErr
}

func (f *fakeClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeClient) Close() {}

func TestCountsAgainstEndpoint(t *testing.T) {
	assert.False(t, countsAgainstEndpoint(ethereum.NotFound))
	assert.False(t, countsAgainstEndpoint(context.Canceled))
	assert.False(t, countsAgainstEndpoint(&rpcError{code: -32000, msg: "nonce too low"}))
	assert.True(t, countsAgainstEndpoint(errors.New("dial tcp 127.0.0.1:8545: connection refused")))
	assert.True(t, countsAgainstEndpoint(context.DeadlineExceeded))
}

func TestReader_BreakerOpensOnTransportFailures(t *testing.T) {
	client := &fakeClient{blockErr: errors.New("connection refused")}
	var transitions []circuitbreaker.State
	r := NewReader(client,
		WithReaderMetrics(metrics.New(nil)),
		WithBreakerConfig(circuitbreaker.Config{
			FailureThreshold: 2,
			Cooldown:         time.Hour,
			OnStateChange: func(_, to circuitbreaker.State) {
				transitions = append(transitions, to)
			},
		}),
	)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := r.BlockNumber(ctx)
		assert.ErrorIs(t, err, client.blockErr)
	}
	assert.False(t, r.Healthy())
	assert.Equal(t, []circuitbreaker.State{circuitbreaker.StateOpen}, transitions)

	_, err := r.BlockNumber(ctx)
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Contains(t, err.Error(), "eth_blockNumber")
	assert.Equal(t, 2, client.calls, "an open breaker does not reach the node")
	assert.Equal(t, circuitbreaker.StateOpen, r.BreakerStats().State)
}

func TestReader_NodeAnswersKeepBreakerClosed(t *testing.T) {
	client := &fakeClient{}
	r := NewReader(client, WithBreakerConfig(circuitbreaker.Config{FailureThreshold: 1, Cooldown: time.Hour}))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := r.CallContract(ctx, ethereum.CallMsg{}, nil)
		assert.Error(t, err)
		_, err = r.TransactionReceipt(ctx, testutil.Hash(1))
		assert.ErrorIs(t, err, ethereum.NotFound)
	}
	assert.True(t, r.Healthy())
	assert.Equal(t, 6, client.calls)
}

func TestReader_RateLimit(t *testing.T) {
	client := &fakeClient{}
	r := NewReader(client, WithRateLimit(1, 1))

	_, err := r.BlockNumber(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.BlockNumber(ctx)
	assert.Error(t, err, "the second call would wait past the deadline")
	assert.Equal(t, 1, client.calls)
}

func newTestSender(t *testing.T, client *fakeClient, opts ...SenderOption) (*Sender, *KeySigner) {
	t.Helper()
	signer, err := NewKeySigner("0x"+testutil.TestPrivateKeyHex, client)
	require.NoError(t, err)
	return NewSender(client, signer, opts...), signer
}

func TestSender_DynamicFeeTx(t *testing.T) {
	client := &fakeClient{chainID: testutil.ChainIDBattlechain, estimate: 50_000}
	s, signer := newTestSender(t, client)

	to := testutil.TestArena
	call := arenakit.Call{To: &to, Data: []byte{0xde, 0xad}, Value: testutil.OneEth}
	attempt := arenakit.TxAttempt{
		Nonce: 7,
		Fee:   arenakit.FeePolicy{GasFeeCap: testutil.TwentyGwei, GasTipCap: testutil.TwoGwei},
	}
	hash, err := s.Send(context.Background(), call, attempt)
	require.NoError(t, err)

	require.Len(t, client.sent, 1)
	tx := client.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(60_000), tx.Gas())
	assert.Equal(t, 0, tx.GasFeeCap().Cmp(testutil.TwentyGwei))
	assert.Equal(t, 0, tx.GasTipCap().Cmp(testutil.TwoGwei))
	assert.Equal(t, to, *tx.To())

	from, err := types.Sender(types.LatestSignerForChainID(testutil.ChainIDBattlechain), tx)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from)
	assert.Equal(t, testutil.TestPrivateKey1Address, from)

	require.Len(t, client.estimates, 1)
	assert.Equal(t, from, client.estimates[0].From)
}

func TestSender_LegacyDeploy(t *testing.T) {
	client := &fakeClient{chainID: testutil.ChainIDBattlechain, estimate: 100_000}
	s, _ := newTestSender(t, client, WithGasBufferPercent(0))

	attempt := arenakit.TxAttempt{Nonce: 1, Fee: arenakit.FeePolicy{GasPrice: testutil.TwoGwei}}
	_, err := s.Send(context.Background(), arenakit.Call{Data: []byte{0x60, 0x80}}, attempt)
	require.NoError(t, err)

	tx := client.sent[0]
	assert.Equal(t, uint8(types.LegacyTxType), tx.Type())
	assert.Nil(t, tx.To())
	assert.Equal(t, uint64(100_000), tx.Gas())
	assert.Equal(t, 0, tx.ChainId().Cmp(testutil.ChainIDBattlechain), "legacy txs are replay protected")
}

func TestSender_Errors(t *testing.T) {
	attempt := arenakit.TxAttempt{Fee: arenakit.FeePolicy{GasPrice: testutil.TwoGwei}}

	t.Run("estimate", func(t *testing.T) {
		client := &fakeClient{chainID: testutil.ChainIDBattlechain, estimateErr: &rpcError{msg: "execution reverted: battle full"}}
		s, _ := newTestSender(t, client)
		_, err := s.Send(context.Background(), arenakit.Call{}, attempt)
		assert.ErrorIs(t, err, ErrEstimateGasFailed)
		assert.Equal(t, arenakit.FailureFatal, arenakit.ClassifySubmitError(err))
		assert.Empty(t, client.sent)
	})

	t.Run("broadcast keeps node text", func(t *testing.T) {
		client := &fakeClient{chainID: testutil.ChainIDBattlechain, estimate: 21_000, sendErr: errors.New("replacement transaction underpriced")}
		s, _ := newTestSender(t, client)
		_, err := s.Send(context.Background(), arenakit.Call{}, attempt)
		assert.ErrorIs(t, err, client.sendErr)
		assert.Equal(t, arenakit.FailureReplacementUnderpriced, arenakit.ClassifySubmitError(err))
	})

	t.Run("no signer", func(t *testing.T) {
		_, err := NewSender(&fakeClient{}, nil).Send(context.Background(), arenakit.Call{}, attempt)
		assert.ErrorIs(t, err, arenakit.ErrSignerUnavailable)
	})
}

func TestSender_GasLimit(t *testing.T) {
	tests := []struct {
		name     string
		buffer   uint64
		estimate uint64
		want     uint64
	}{
		{"40% buffer", 40, 50_000, 70_000},
		{"default buffer", DefaultGasBufferPercent, 50_000, 60_000},
		{"no buffer", 0, 50_000, 50_000},
		{"100% buffer doubles the gas", 100, 50_000, 100_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSender(nil, nil, WithGasBufferPercent(tt.buffer))
			assert.Equal(t, tt.want, s.GasLimit(tt.estimate))
		})
	}
}

func TestNewKeySigner(t *testing.T) {
	s, err := NewKeySigner(testutil.TestPrivateKeyHex, nil)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestPrivateKey1Address, s.Address())

	_, err = s.ChainID(context.Background())
	assert.Error(t, err)

	_, err = NewKeySigner("0xnothex", nil)
	assert.Error(t, err)
}
