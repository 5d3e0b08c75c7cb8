package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ============================================================
// Test Addresses
// ============================================================

var (
	// TestAccount is the connected account in most tests
	TestAccount = common.HexToAddress("0x1111111111111111111111111111111111111111")
	// TestOther is an account that is not the connected one
	TestOther = common.HexToAddress("0x2222222222222222222222222222222222222222")

	TestArena   = common.HexToAddress("0xA0A0A0A0A0A0A0A0A0A0A0A0A0A0A0A0A0A0A0A0")
	TestBetting = common.HexToAddress("0xB0B0B0B0B0B0B0B0B0B0B0B0B0B0B0B0B0B0B0B0")

	TestBattle1 = common.HexToAddress("0xC100000000000000000000000000000000000001")
	TestBattle2 = common.HexToAddress("0xC200000000000000000000000000000000000002")
	TestBattle3 = common.HexToAddress("0xC300000000000000000000000000000000000003")

	TestAgent1 = common.HexToAddress("0xD100000000000000000000000000000000000001")
	TestAgent2 = common.HexToAddress("0xD200000000000000000000000000000000000002")
	TestAgent3 = common.HexToAddress("0xD300000000000000000000000000000000000003")
)

// ============================================================
// Test Private Keys
// ============================================================

var (
	// TestPrivateKeyHex is a test private key in hex format
	TestPrivateKeyHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	// TestPrivateKey1 is a parsed ECDSA private key for testing
	TestPrivateKey1, _ = crypto.HexToECDSA(TestPrivateKeyHex)
	// TestPrivateKey1Address is the address derived from TestPrivateKey1
	TestPrivateKey1Address = crypto.PubkeyToAddress(TestPrivateKey1.PublicKey)
)

// ============================================================
// Common Values
// ============================================================

var (
	// OneEth represents 1 ETH in wei
	OneEth = big.NewInt(1000000000000000000)
	// TwentyGwei represents 20 gwei
	TwentyGwei = big.NewInt(20000000000)
	// TwoGwei represents 2 gwei
	TwoGwei = big.NewInt(2000000000)
)

// ============================================================
// Chain IDs
// ============================================================

var (
	// ChainIDBattlechain is the chain id the tests expect
	ChainIDBattlechain = big.NewInt(627)
	// ChainIDMainnet is used as the wrong network
	ChainIDMainnet = big.NewInt(1)
)
