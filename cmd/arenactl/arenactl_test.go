package main

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/battlechain/arenakit"
)

const agentABI = `[{"type":"constructor","inputs":[
	{"name":"owner","type":"address"},
	{"name":"name","type":"string"},
	{"name":"budget","type":"uint256"},
	{"name":"aggressive","type":"bool"}]}]`

func TestConstructorArgs(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(agentABI))
	require.NoError(t, err)

	owner := "0x00000000000000000000000000000000000000aa"
	args, err := constructorArgs(parsed.Constructor, []string{owner, "scout", "0x10", "true"})
	require.NoError(t, err)
	require.Len(t, args, 4)
	assert.Equal(t, common.HexToAddress(owner), args[0])
	assert.Equal(t, "scout", args[1])
	assert.Equal(t, 0, big.NewInt(16).Cmp(args[2].(*big.Int)))
	assert.Equal(t, true, args[3])

	_, err = parsed.Pack("", args...)
	assert.NoError(t, err, "converted values must pack")

	t.Run("wrong count", func(t *testing.T) {
		_, err := constructorArgs(parsed.Constructor, []string{owner})
		assert.ErrorIs(t, err, arenakit.ErrConfiguration)
	})

	t.Run("bad address", func(t *testing.T) {
		_, err := constructorArgs(parsed.Constructor, []string{"0x12", "scout", "1", "false"})
		assert.ErrorIs(t, err, arenakit.ErrConfiguration)
		assert.Contains(t, err.Error(), "owner")
	})
}

func TestConvertArg_SmallIntsUnsupported(t *testing.T) {
	u8, err := abi.NewType("uint8", "", nil)
	require.NoError(t, err)
	_, err = convertArg(u8, "1")
	assert.Error(t, err)
}

func TestParseBattleID(t *testing.T) {
	id, err := parseBattleID("42")
	require.NoError(t, err)
	assert.Equal(t, "42", id.String())

	for _, s := range []string{"", "-1", "0x2a", "abc"} {
		_, err := parseBattleID(s)
		assert.ErrorIs(t, err, arenakit.ErrConfiguration, "input %q", s)
	}
}

func TestParseAmount(t *testing.T) {
	wei, err := parseAmount("0.05")
	require.NoError(t, err)
	assert.Equal(t, "50000000000000000", wei.String())

	_, err = parseAmount("lots")
	assert.ErrorIs(t, err, arenakit.ErrConfiguration)
}

func TestParseAddress(t *testing.T) {
	_, err := parseAddress("agent", "nope")
	assert.ErrorIs(t, err, arenakit.ErrConfiguration)

	addr, err := parseAddress("agent", "0x00000000000000000000000000000000000000Bb")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xbb"), addr)
}

func TestRootCmd_Tree(t *testing.T) {
	root := NewRootCmd()
	for _, path := range [][]string{
		{"readiness"},
		{"battles"},
		{"claims"},
		{"agents", "discover"},
		{"agents", "sync"},
		{"agents", "add"},
		{"agents", "remove"},
		{"agents", "list"},
		{"create-battle"},
		{"register-agent"},
		{"start-battle"},
		{"resolve-battle"},
		{"place-bet"},
		{"claim-prize"},
		{"withdraw"},
		{"claim-bet"},
		{"deploy-agent"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, "%v", path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	write, _, err := root.Find([]string{"place-bet"})
	require.NoError(t, err)
	assert.NotNil(t, write.Flags().Lookup("idempotency-key"))
	assert.NotNil(t, write.Flags().Lookup("max-attempts"))
}

func TestSetupLogger(t *testing.T) {
	assert.NoError(t, setupLogger("debug", true))
	assert.NoError(t, setupLogger("warn", false))
	err := setupLogger("loud", false)
	assert.ErrorIs(t, err, arenakit.ErrConfiguration)
}

func TestAccountSignerMode(t *testing.T) {
	assert.Equal(t, signerOptional, accountSignerMode(nil))
	assert.Equal(t, signerNone, accountSignerMode([]string{"0xabc"}))
}
