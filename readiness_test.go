package arenakit

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigInt(v int64) *big.Int { return big.NewInt(v) }

func readyInput() ReadinessInput {
	return ReadinessInput{
		ExpectedChainID: 627,
		RPCConfigured:   true,
		RPCReachable:    true,
		SignerConnected: true,
		SignerChainID:   bigInt(627),
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ReadinessInput)
		reason string
		kind   error
	}{
		{"ready", func(*ReadinessInput) {}, "", nil},
		{"no chain id", func(in *ReadinessInput) { in.ExpectedChainID = 0 }, "chain id not configured", ErrConfiguration},
		{"no rpc", func(in *ReadinessInput) { in.RPCConfigured = false }, "RPC unavailable", ErrConfiguration},
		{"rpc down", func(in *ReadinessInput) { in.RPCReachable = false }, "RPC unavailable", ErrConfiguration},
		{"no signer", func(in *ReadinessInput) { in.SignerConnected = false }, "signer not connected", ErrSignerUnavailable},
		{"wrong chain", func(in *ReadinessInput) { in.SignerChainID = bigInt(1) }, "wrong network, switch to chain 627", ErrWrongNetwork},
		{"huge chain id", func(in *ReadinessInput) { in.SignerChainID = new(big.Int).Lsh(bigInt(1), 70) }, "wrong network, switch to chain 627", ErrWrongNetwork},
		{"signer chain unknown", func(in *ReadinessInput) { in.SignerChainID = nil }, "", nil},
		// the first failing check wins
		{"everything missing", func(in *ReadinessInput) { *in = ReadinessInput{} }, "chain id not configured", ErrConfiguration},
		{"rpc before signer", func(in *ReadinessInput) { in.RPCReachable = false; in.SignerConnected = false }, "RPC unavailable", ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := readyInput()
			tt.mutate(&in)
			got := CheckReadiness(in)

			if tt.kind == nil {
				assert.True(t, got.Ready)
				assert.Empty(t, got.Reason)
				assert.NoError(t, got.Err())
				return
			}
			assert.False(t, got.Ready)
			assert.Equal(t, tt.reason, got.Reason)
			err := got.Err()
			assert.ErrorIs(t, err, ErrNotReady)
			assert.ErrorIs(t, err, tt.kind)

			var notReady *NotReadyError
			require.True(t, errors.As(err, &notReady))
			assert.Equal(t, tt.reason, notReady.Reason)
		})
	}
}
