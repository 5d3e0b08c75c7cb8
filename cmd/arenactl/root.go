package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/battlechain/arenakit"
	"github.com/battlechain/arenakit/config"
	"github.com/battlechain/arenakit/ethledger"
	"github.com/battlechain/arenakit/idempotency"
	"github.com/battlechain/arenakit/internal/metrics"
	"github.com/battlechain/arenakit/kvstore"
)

var (
	configPath  string
	envFile     string
	logLevel    string
	jsonMode    bool
	metricsAddr string
)

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "arenactl",
		Short: "Battle arena client",
		Long: `arenactl lists battles, sweeps claimable balances, discovers agents and
submits arena transactions.

Configuration is read from arenactl.toml, a .env file and BATTLECHAIN_*
environment variables, in increasing priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := setupLogger(logLevel, jsonMode); err != nil {
				return err
			}
			if metricsAddr != "" {
				serveMetrics(metricsAddr)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default arenactl.toml if present)")
	flags.StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	flags.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.BoolVar(&jsonMode, "json", false, "print JSON output and JSON logs")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		NewReadinessCmd(),
		NewBattlesCmd(),
		NewClaimsCmd(),
		NewAgentsCmd(),
	)
	root.AddCommand(newWriteCmds()...)
	return root
}

func setupLogger(level string, asJSON bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("%w: --log-level: %w", arenakit.ErrConfiguration, err)
	}

	var cfg zap.Config
	if asJSON {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
}

// session is one command's client and the resources behind it
type session struct {
	cfg    *config.Config
	client *arenakit.Client
	reader *ethledger.Reader
	store  kvstore.Store
}

func (s *session) Close() {
	if s.reader != nil {
		s.reader.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func loadConfig() (*config.Config, error) {
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	return config.NewLoader(configPath, envFiles...).Load()
}

// signerMode says whether a session installs the private key signer
type signerMode int

const (
	signerNone signerMode = iota
	// signerOptional installs the signer when a key is configured
	signerOptional
	signerRequired
)

// openSession dials the RPC endpoint and wires a client
func openSession(ctx context.Context, mode signerMode) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if mode == signerOptional && cfg.Wallet.PrivateKey != "" {
		mode = signerRequired
	}
	if mode == signerRequired {
		err = cfg.ValidateWrite()
	} else {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, err
	}
	fees, err := cfg.FeeConfig()
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg}
	m := metrics.Default()
	s.reader, err = ethledger.Dial(ctx, cfg.Chain.RPCURL,
		ethledger.WithRateLimit(cfg.Chain.RPCRateLimit, 4),
		ethledger.WithReaderMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", arenakit.ErrConfiguration, err)
	}
	s.store, err = kvstore.Open(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		s.Close()
		return nil, err
	}

	deps := arenakit.ClientDeps{
		Reader:    s.reader,
		Store:     s.store,
		Addresses: cfg.Addresses(),
		ChainID:   cfg.Chain.ID,
		RPCURL:    cfg.Chain.RPCURL,
		Fees:      fees,
	}
	if mode == signerRequired {
		signer, err := ethledger.NewKeySigner(cfg.Wallet.PrivateKey, s.reader)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: %s: %w", arenakit.ErrConfiguration, config.EnvPrivateKey, err)
		}
		deps.Signer = signer
		deps.Sender = ethledger.NewSender(s.reader, signer,
			ethledger.WithGasBufferPercent(cfg.Client.GasBufferPercent))
	}

	s.client, err = arenakit.NewClient(deps,
		arenakit.WithMetrics(m),
		arenakit.WithIdempotencyStore(idempotency.NewKVStore(s.store)),
		arenakit.WithDefaultMaxAttempts(cfg.Client.MaxAttempts),
		arenakit.WithDefaultReceiptTimeout(cfg.Client.ReceiptTimeout),
		arenakit.WithDefaultReceiptPollInterval(cfg.Client.ReceiptPollInterval),
		arenakit.WithSweepConcurrency(cfg.Client.SweepConcurrency),
	)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
