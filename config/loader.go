package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// DefaultConfigFile is read when no path is given
const DefaultConfigFile = "arenactl.toml"

// Environment variable names
const (
	EnvChainID                = "BATTLECHAIN_CHAIN_ID"
	EnvRPCURL                 = "BATTLECHAIN_RPC_URL"
	EnvRPCRateLimit           = "BATTLECHAIN_RPC_RATE_LIMIT"
	EnvArenaAddress           = "BATTLECHAIN_ARENA_ADDRESS"
	EnvBettingAddress         = "BATTLECHAIN_BETTING_ADDRESS"
	EnvRegistryAddress        = "BATTLECHAIN_REGISTRY_ADDRESS"
	EnvMaxFeePerGas           = "BATTLECHAIN_MAX_FEE_PER_GAS"
	EnvMaxPriorityFeePerGas   = "BATTLECHAIN_MAX_PRIORITY_FEE_PER_GAS"
	EnvFeeMultiplier          = "BATTLECHAIN_FEE_MULTIPLIER_PERCENT"
	EnvBumpSchedule           = "BATTLECHAIN_FEE_BUMP_SCHEDULE"
	EnvPrivateKey             = "BATTLECHAIN_PRIVATE_KEY" //nolint:gosec // env var name
	EnvWalletConnectProjectID = "BATTLECHAIN_WALLETCONNECT_PROJECT_ID"
	EnvStoreBackend           = "BATTLECHAIN_STORE_BACKEND"
	EnvStorePath              = "BATTLECHAIN_STORE_PATH"
	EnvMaxAttempts            = "BATTLECHAIN_MAX_ATTEMPTS"
	EnvReceiptTimeout         = "BATTLECHAIN_RECEIPT_TIMEOUT"
)

// Frontend .env files use these names; they apply when the BATTLECHAIN_ key is unset.
var envAliases = map[string]string{
	EnvChainID:                "NEXT_PUBLIC_CHAIN_ID",
	EnvRPCURL:                 "NEXT_PUBLIC_BATTLECHAIN_RPC_URL",
	EnvArenaAddress:           "NEXT_PUBLIC_ARENA_ADDRESS",
	EnvBettingAddress:         "NEXT_PUBLIC_BETTING_ADDRESS",
	EnvWalletConnectProjectID: "VITE_WALLETCONNECT_PROJECT_ID",
}

// FileConfig mirrors the TOML file. Unset keys stay nil.
type FileConfig struct {
	Chain struct {
		ID              *uint64  `toml:"id"`
		RPCURL          *string  `toml:"rpc_url"`
		RPCRateLimit    *float64 `toml:"rpc_rate_limit"`
		ArenaAddress    *string  `toml:"arena_address"`
		BettingAddress  *string  `toml:"betting_address"`
		RegistryAddress *string  `toml:"registry_address"`
	} `toml:"chain"`
	Fees struct {
		MaxFeePerGas         *string  `toml:"max_fee_per_gas"`
		MaxPriorityFeePerGas *string  `toml:"max_priority_fee_per_gas"`
		MultiplierPercent    *uint64  `toml:"multiplier_percent"`
		BumpSchedule         []uint64 `toml:"bump_schedule"`
	} `toml:"fees"`
	Wallet struct {
		PrivateKey             *string `toml:"private_key"`
		WalletConnectProjectID *string `toml:"walletconnect_project_id"`
	} `toml:"wallet"`
	Store struct {
		Backend *string `toml:"backend"`
		Path    *string `toml:"path"`
	} `toml:"store"`
	Client struct {
		MaxAttempts         *int    `toml:"max_attempts"`
		ReceiptTimeout      *string `toml:"receipt_timeout"`
		ReceiptPollInterval *string `toml:"receipt_poll_interval"`
		SweepConcurrency    *int    `toml:"sweep_concurrency"`
		GasBufferPercent    *uint64 `toml:"gas_buffer_percent"`
	} `toml:"client"`
}

// Loader resolves configuration with priority defaults < file < env
type Loader struct {
	configPath string
	envFiles   []string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a loader. An empty configPath reads DefaultConfigFile if
// it exists.
func NewLoader(configPath string, envFiles ...string) *Loader {
	return &Loader{configPath: configPath, envFiles: envFiles, lookupEnv: os.LookupEnv}
}

// Load returns the resolved configuration. Validation is left to the caller.
func (l *Loader) Load() (*Config, error) {
	// missing .env files are fine; existing variables win over them
	_ = godotenv.Load(l.envFiles...)

	cfg := DefaultConfig()
	fileCfg, err := l.loadFile()
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		if err := mergeFileConfig(cfg, fileCfg); err != nil {
			return nil, err
		}
	}
	if err := l.applyEnvVars(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadFile() (*FileConfig, error) {
	path := l.configPath
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg FileConfig
	if err := toml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("invalid TOML in %s: %w", path, err)
	}
	return &fileCfg, nil
}

func mergeFileConfig(cfg *Config, file *FileConfig) error {
	setIf(&cfg.Chain.ID, file.Chain.ID)
	setIf(&cfg.Chain.RPCURL, file.Chain.RPCURL)
	setIf(&cfg.Chain.RPCRateLimit, file.Chain.RPCRateLimit)
	setIf(&cfg.Chain.ArenaAddress, file.Chain.ArenaAddress)
	setIf(&cfg.Chain.BettingAddress, file.Chain.BettingAddress)
	setIf(&cfg.Chain.RegistryAddress, file.Chain.RegistryAddress)

	setIf(&cfg.Fees.MaxFeePerGas, file.Fees.MaxFeePerGas)
	setIf(&cfg.Fees.MaxPriorityFeePerGas, file.Fees.MaxPriorityFeePerGas)
	setIf(&cfg.Fees.MultiplierPercent, file.Fees.MultiplierPercent)
	if len(file.Fees.BumpSchedule) > 0 {
		cfg.Fees.BumpSchedule = file.Fees.BumpSchedule
	}

	setIf(&cfg.Wallet.PrivateKey, file.Wallet.PrivateKey)
	setIf(&cfg.Wallet.WalletConnectProjectID, file.Wallet.WalletConnectProjectID)

	setIf(&cfg.Store.Backend, file.Store.Backend)
	setIf(&cfg.Store.Path, file.Store.Path)

	setIf(&cfg.Client.MaxAttempts, file.Client.MaxAttempts)
	setIf(&cfg.Client.SweepConcurrency, file.Client.SweepConcurrency)
	setIf(&cfg.Client.GasBufferPercent, file.Client.GasBufferPercent)
	if file.Client.ReceiptTimeout != nil {
		d, err := time.ParseDuration(*file.Client.ReceiptTimeout)
		if err != nil {
			return fmt.Errorf("client.receipt_timeout: %w", err)
		}
		cfg.Client.ReceiptTimeout = d
	}
	if file.Client.ReceiptPollInterval != nil {
		d, err := time.ParseDuration(*file.Client.ReceiptPollInterval)
		if err != nil {
			return fmt.Errorf("client.receipt_poll_interval: %w", err)
		}
		cfg.Client.ReceiptPollInterval = d
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (l *Loader) env(key string) (string, bool) {
	if v, ok := l.lookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	if alias, ok := envAliases[key]; ok {
		if v, ok := l.lookupEnv(alias); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func (l *Loader) applyEnvVars(cfg *Config) error {
	strs := map[string]*string{
		EnvRPCURL:                 &cfg.Chain.RPCURL,
		EnvArenaAddress:           &cfg.Chain.ArenaAddress,
		EnvBettingAddress:         &cfg.Chain.BettingAddress,
		EnvRegistryAddress:        &cfg.Chain.RegistryAddress,
		EnvMaxFeePerGas:           &cfg.Fees.MaxFeePerGas,
		EnvMaxPriorityFeePerGas:   &cfg.Fees.MaxPriorityFeePerGas,
		EnvPrivateKey:             &cfg.Wallet.PrivateKey,
		EnvWalletConnectProjectID: &cfg.Wallet.WalletConnectProjectID,
		EnvStoreBackend:           &cfg.Store.Backend,
		EnvStorePath:              &cfg.Store.Path,
	}
	for key, dst := range strs {
		if v, ok := l.env(key); ok {
			*dst = v
		}
	}

	if v, ok := l.env(EnvChainID); ok {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvChainID, err)
		}
		cfg.Chain.ID = id
	}
	if v, ok := l.env(EnvRPCRateLimit); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRPCRateLimit, err)
		}
		cfg.Chain.RPCRateLimit = rps
	}
	if v, ok := l.env(EnvFeeMultiplier); ok {
		pct, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvFeeMultiplier, err)
		}
		cfg.Fees.MultiplierPercent = pct
	}
	if v, ok := l.env(EnvBumpSchedule); ok {
		schedule, err := parseSchedule(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBumpSchedule, err)
		}
		cfg.Fees.BumpSchedule = schedule
	}
	if v, ok := l.env(EnvMaxAttempts); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxAttempts, err)
		}
		cfg.Client.MaxAttempts = n
	}
	if v, ok := l.env(EnvReceiptTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvReceiptTimeout, err)
		}
		cfg.Client.ReceiptTimeout = d
	}
	return nil
}

// parseSchedule reads a comma separated list of percentages such as "120,130,150"
func parseSchedule(s string) ([]uint64, error) {
	parts := strings.Split(s, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
