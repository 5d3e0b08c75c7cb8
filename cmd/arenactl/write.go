package main

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/battlechain/arenakit"
	"github.com/battlechain/arenakit/contracts"
)

type writeFlags struct {
	idempotencyKey string
	maxAttempts    int
	receiptTimeout time.Duration
}

func (f *writeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.idempotencyKey, "idempotency-key", "", "run this write at most once per key")
	cmd.Flags().IntVar(&f.maxAttempts, "max-attempts", 0, "submission attempts (default from config)")
	cmd.Flags().DurationVar(&f.receiptTimeout, "receipt-timeout", 0, "receipt wait bound (default from config)")
}

// writeCmd builds a command that sends the request returned by build
func writeCmd(use, short string, args cobra.PositionalArgs, build func(c *arenakit.Client, args []string) (*arenakit.TxRequest, error)) *cobra.Command {
	var flags writeFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), signerRequired)
			if err != nil {
				return err
			}
			defer s.Close()

			req, err := build(s.client, args)
			if err != nil {
				return err
			}
			req.SetPhaseHook(phasePrinter)
			if flags.idempotencyKey != "" {
				req.SetIdempotencyKey(flags.idempotencyKey)
			}
			if flags.maxAttempts > 0 {
				req.SetMaxAttempts(flags.maxAttempts)
			}
			if flags.receiptTimeout > 0 {
				req.SetReceiptTimeout(flags.receiptTimeout)
			}

			out, err := req.Execute(cmd.Context())
			if err != nil {
				return err
			}
			return printOutcome(out)
		},
	}
	flags.register(cmd)
	return cmd
}

func newWriteCmds() []*cobra.Command {
	return []*cobra.Command{
		newCreateBattleCmd(),
		writeCmd("register-agent <battle-id> <agent>", "Register an agent in a battle", cobra.ExactArgs(2),
			func(c *arenakit.Client, args []string) (*arenakit.TxRequest, error) {
				id, err := parseBattleID(args[0])
				if err != nil {
					return nil, err
				}
				agent, err := parseAddress("agent", args[1])
				if err != nil {
					return nil, err
				}
				return c.RegisterAgent(id, agent)
			}),
		writeCmd("start-battle <battle-id>", "Start a pending battle", cobra.ExactArgs(1),
			func(c *arenakit.Client, args []string) (*arenakit.TxRequest, error) {
				id, err := parseBattleID(args[0])
				if err != nil {
					return nil, err
				}
				return c.StartBattle(id)
			}),
		writeCmd("resolve-battle <battle-id>", "Resolve a battle past its deadline", cobra.ExactArgs(1),
			func(c *arenakit.Client, args []string) (*arenakit.TxRequest, error) {
				id, err := parseBattleID(args[0])
				if err != nil {
					return nil, err
				}
				return c.ResolveBattle(id)
			}),
		writeCmd("place-bet <battle-id> <agent-index> <amount-eth>", "Bet on an agent", cobra.ExactArgs(3),
			func(c *arenakit.Client, args []string) (*arenakit.TxRequest, error) {
				id, err := parseBattleID(args[0])
				if err != nil {
					return nil, err
				}
				index, err := strconv.ParseUint(args[1], 10, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: agent index %q", arenakit.ErrConfiguration, args[1])
				}
				amount, err := parseAmount(args[2])
				if err != nil {
					return nil, err
				}
				return c.PlaceBet(id, new(big.Int).SetUint64(index), amount)
			}),
		writeCmd("claim-prize <battle-address>", "Claim a battle prize", cobra.ExactArgs(1),
			func(c *arenakit.Client, args []string) (*arenakit.TxRequest, error) {
				battle, err := parseAddress("battle", args[0])
				if err != nil {
					return nil, err
				}
				return c.ClaimPrize(battle)
			}),
		writeCmd("withdraw <battle-address>", "Withdraw a pending refund", cobra.ExactArgs(1),
			func(c *arenakit.Client, args []string) (*arenakit.TxRequest, error) {
				battle, err := parseAddress("battle", args[0])
				if err != nil {
					return nil, err
				}
				return c.Withdraw(battle)
			}),
		writeCmd("claim-bet <battle-id>", "Claim a winning bet payout", cobra.ExactArgs(1),
			func(c *arenakit.Client, args []string) (*arenakit.TxRequest, error) {
				id, err := parseBattleID(args[0])
				if err != nil {
					return nil, err
				}
				return c.ClaimBetPayout(id)
			}),
		newDeployAgentCmd(),
	}
}

func newCreateBattleCmd() *cobra.Command {
	var (
		challengeType uint8
		entryFee      string
		maxAgents     uint64
		duration      time.Duration
	)
	cmd := writeCmd("create-battle", "Open a new battle", cobra.NoArgs,
		func(c *arenakit.Client, _ []string) (*arenakit.TxRequest, error) {
			fee, err := parseAmount(entryFee)
			if err != nil {
				return nil, err
			}
			if duration < time.Second {
				return nil, fmt.Errorf("%w: --duration must be at least 1s", arenakit.ErrConfiguration)
			}
			seconds := big.NewInt(int64(duration / time.Second))
			return c.CreateBattle(challengeType, fee, new(big.Int).SetUint64(maxAgents), seconds)
		})
	cmd.Flags().Uint8Var(&challengeType, "challenge-type", 0, "challenge type")
	cmd.Flags().StringVar(&entryFee, "entry-fee", "0", "entry fee in ETH")
	cmd.Flags().Uint64Var(&maxAgents, "max-agents", 2, "maximum registered agents")
	cmd.Flags().DurationVar(&duration, "duration", time.Hour, "battle duration")
	return cmd
}

func newDeployAgentCmd() *cobra.Command {
	var (
		artifactPath string
		ctorArgs     []string
	)
	cmd := writeCmd("deploy-agent", "Deploy a compiled agent and save its address", cobra.NoArgs,
		func(c *arenakit.Client, _ []string) (*arenakit.TxRequest, error) {
			raw, err := os.ReadFile(artifactPath)
			if err != nil {
				return nil, fmt.Errorf("read artifact: %w", err)
			}
			artifact, err := contracts.ParseArtifact(raw)
			if err != nil {
				return nil, err
			}
			args, err := constructorArgs(artifact.ABI.Constructor, ctorArgs)
			if err != nil {
				return nil, err
			}
			return c.DeployAgent(artifact, args...)
		})
	cmd.Flags().StringVar(&artifactPath, "artifact", "", "compiler output JSON with contractName, abi and bytecode")
	cmd.Flags().StringArrayVar(&ctorArgs, "arg", nil, "constructor argument, repeated in order")
	_ = cmd.MarkFlagRequired("artifact")
	return cmd
}

// constructorArgs converts flag strings to the Go values the ABI packer expects
func constructorArgs(ctor abi.Method, raw []string) ([]any, error) {
	if len(raw) != len(ctor.Inputs) {
		return nil, fmt.Errorf("%w: constructor takes %d arguments, got %d", arenakit.ErrConfiguration, len(ctor.Inputs), len(raw))
	}
	out := make([]any, len(raw))
	for i, in := range ctor.Inputs {
		v, err := convertArg(in.Type, raw[i])
		if err != nil {
			return nil, fmt.Errorf("%w: constructor argument %s: %w", arenakit.ErrConfiguration, in.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

func convertArg(t abi.Type, s string) (any, error) {
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil
	case abi.StringTy:
		return s, nil
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.UintTy, abi.IntTy:
		if t.Size <= 64 {
			return nil, fmt.Errorf("unsupported type %s", t)
		}
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("unsupported type %s", t)
	}
}

func parseBattleID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid battle id %q", arenakit.ErrConfiguration, s)
	}
	return id, nil
}

func parseAmount(s string) (*big.Int, error) {
	wei, err := arenakit.ParseEther(s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %w", arenakit.ErrConfiguration, s, err)
	}
	return wei, nil
}
