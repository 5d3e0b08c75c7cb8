package arenakit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/battlechain/arenakit/testutil"
)

func TestFormatEther(t *testing.T) {
	tests := []struct {
		wei  *big.Int
		want string
	}{
		{nil, "0"},
		{big.NewInt(0), "0"},
		{big.NewInt(1), "0.000000000000000001"},
		{testutil.OneEth, "1"},
		{testutil.Ether("2.5"), "2.5"},
		{testutil.Ether("0.05"), "0.05"},
		{testutil.Ether("1234.000100"), "1234.0001"},
		{new(big.Int).Neg(testutil.Ether("0.3")), "-0.3"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEther(tt.wei))
		})
	}
}

func TestParseEther(t *testing.T) {
	wei, err := ParseEther(" 2.5 ")
	require.NoError(t, err)
	assert.Equal(t, 0, wei.Cmp(testutil.Ether("2.5")))

	wei, err = ParseEther("0.000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), wei.Int64())

	_, err = ParseEther("0.0000000000000000001")
	assert.Error(t, err)

	_, err = ParseEther("abc")
	assert.Error(t, err)
}
