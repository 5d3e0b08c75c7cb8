// Package config loads arenactl settings from defaults, a TOML file and the
// environment.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/battlechain/arenakit"
	"github.com/battlechain/arenakit/contracts"
	"github.com/battlechain/arenakit/kvstore"
)

// Config is the resolved configuration
type Config struct {
	Chain  ChainConfig
	Fees   FeeSettings
	Wallet WalletConfig
	Store  StoreConfig
	Client ClientSettings
}

// ChainConfig selects the network and the contracts
type ChainConfig struct {
	ID              uint64
	RPCURL          string
	RPCRateLimit    float64
	ArenaAddress    string
	BettingAddress  string
	RegistryAddress string
}

// FeeSettings are the fee overrides as decimal wei strings
type FeeSettings struct {
	MaxFeePerGas         string
	MaxPriorityFeePerGas string
	MultiplierPercent    uint64
	BumpSchedule         []uint64
}

// WalletConfig holds signer settings
type WalletConfig struct {
	PrivateKey             string
	WalletConnectProjectID string
}

// StoreConfig selects the key-value backend
type StoreConfig struct {
	Backend string
	Path    string
}

// ClientSettings tune the write path
type ClientSettings struct {
	MaxAttempts         int
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
	SweepConcurrency    int
	GasBufferPercent    uint64
}

// DefaultConfig returns the defaults every other source overrides
func DefaultConfig() *Config {
	return &Config{
		Fees: FeeSettings{
			MultiplierPercent: arenakit.DefaultFeeMultiplierPercent,
			BumpSchedule:      append([]uint64(nil), arenakit.DefaultBumpSchedule...),
		},
		Store: StoreConfig{Backend: kvstore.BackendMemory},
		Client: ClientSettings{
			MaxAttempts:         arenakit.DefaultMaxAttempts,
			ReceiptTimeout:      arenakit.DefaultReceiptTimeout,
			ReceiptPollInterval: arenakit.DefaultReceiptPollInterval,
			SweepConcurrency:    arenakit.DefaultSweepConcurrency,
			GasBufferPercent:    20,
		},
	}
}

// MissingKeyError names the setting that must be provided
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing configuration: set %s", e.Key)
}

// Unwrap makes a MissingKeyError match arenakit.ErrConfiguration
func (e *MissingKeyError) Unwrap() error {
	return arenakit.ErrConfiguration
}

// Validate checks the settings every command needs
func (c *Config) Validate() error {
	if c.Chain.ID == 0 {
		return &MissingKeyError{Key: EnvChainID}
	}
	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		return &MissingKeyError{Key: EnvRPCURL}
	}
	if !common.IsHexAddress(c.Chain.ArenaAddress) {
		return &MissingKeyError{Key: EnvArenaAddress}
	}
	if c.Chain.BettingAddress != "" && !common.IsHexAddress(c.Chain.BettingAddress) {
		return fmt.Errorf("%w: %s is not an address", arenakit.ErrConfiguration, EnvBettingAddress)
	}
	if c.Chain.RegistryAddress != "" && !common.IsHexAddress(c.Chain.RegistryAddress) {
		return fmt.Errorf("%w: %s is not an address", arenakit.ErrConfiguration, EnvRegistryAddress)
	}
	if _, err := c.FeeConfig(); err != nil {
		return err
	}
	return nil
}

// ValidateWrite additionally requires a signer
func (c *Config) ValidateWrite() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Wallet.PrivateKey) == "" {
		return &MissingKeyError{Key: EnvPrivateKey}
	}
	return nil
}

// Addresses returns the contract addresses. An unset registry is the arena.
func (c *Config) Addresses() contracts.Addresses {
	arena := common.HexToAddress(c.Chain.ArenaAddress)
	addrs := contracts.Addresses{Arena: arena, Registry: arena}
	if c.Chain.BettingAddress != "" {
		addrs.Betting = common.HexToAddress(c.Chain.BettingAddress)
	}
	if c.Chain.RegistryAddress != "" {
		addrs.Registry = common.HexToAddress(c.Chain.RegistryAddress)
	}
	return addrs
}

// FeeConfig parses the fee settings
func (c *Config) FeeConfig() (arenakit.FeeConfig, error) {
	maxFee, err := parseWei(EnvMaxFeePerGas, c.Fees.MaxFeePerGas)
	if err != nil {
		return arenakit.FeeConfig{}, err
	}
	tip, err := parseWei(EnvMaxPriorityFeePerGas, c.Fees.MaxPriorityFeePerGas)
	if err != nil {
		return arenakit.FeeConfig{}, err
	}
	if (maxFee == nil) != (tip == nil) {
		return arenakit.FeeConfig{}, fmt.Errorf("%w: %w", arenakit.ErrConfiguration, arenakit.ErrIncompleteFeeOverride)
	}
	return arenakit.FeeConfig{
		MaxFeePerGas:         maxFee,
		MaxPriorityFeePerGas: tip,
		MultiplierPercent:    c.Fees.MultiplierPercent,
		BumpSchedule:         c.Fees.BumpSchedule,
	}, nil
}

func parseWei(key, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative wei amount, got %q", arenakit.ErrConfiguration, key, s)
	}
	return v, nil
}
