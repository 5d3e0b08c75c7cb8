package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/battlechain/arenakit"
	"github.com/battlechain/arenakit/config"
)

// NewAgentsCmd manages the saved agent list
func NewAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Discover and manage saved agents",
	}
	cmd.AddCommand(
		newAgentsListCmd(),
		newAgentsDiscoverCmd(),
		newAgentsSyncCmd(),
		newAgentsEditCmd("add", "Save an agent address", (*arenakit.AgentBook).Add),
		newAgentsEditCmd("remove", "Forget a saved agent address", (*arenakit.AgentBook).Remove),
	)
	return cmd
}

func printAgents(agents []string) error {
	if jsonMode {
		return printJSON(agents)
	}
	if len(agents) == 0 {
		fmt.Println("No saved agents")
		return nil
	}
	for _, a := range agents {
		fmt.Println(a)
	}
	return nil
}

func printDiscovery(res arenakit.DiscoveryResult) {
	for _, a := range res.Agents {
		fmt.Printf("%s %s\n", color.GreenString("found"), a)
	}
	for _, e := range res.Errors {
		fmt.Printf("%s %s\n", color.YellowString("skipped"), e)
	}
}

func newAgentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show saved agents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), signerNone)
			if err != nil {
				return err
			}
			defer s.Close()

			agents, err := s.client.Agents().List(cmd.Context())
			if err != nil {
				return err
			}
			return printAgents(agents)
		},
	}
}

// accountSignerMode loads the signer only when it names the account
func accountSignerMode(args []string) signerMode {
	if len(args) == 0 {
		return signerOptional
	}
	return signerNone
}

// accountArg resolves the optional account argument, falling back to the signer
func accountArg(s *session, args []string) (common.Address, error) {
	if len(args) == 1 {
		return parseAddress("account", args[0])
	}
	if account := s.client.Account(); account != (common.Address{}) {
		return account, nil
	}
	return common.Address{}, fmt.Errorf("%w: pass an account or set %s", arenakit.ErrConfiguration, config.EnvPrivateKey)
}

func newAgentsDiscoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover [account]",
		Short: "Find agents owned by an account from registration history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), accountSignerMode(args))
			if err != nil {
				return err
			}
			defer s.Close()

			account, err := accountArg(s, args)
			if err != nil {
				return err
			}
			res, err := s.client.DiscoverAgents(cmd.Context(), account)
			if err != nil {
				return err
			}
			if jsonMode {
				return printJSON(res)
			}
			if len(res.Agents) == 0 {
				fmt.Println("No agents found")
			}
			printDiscovery(res)
			return nil
		},
	}
}

func newAgentsSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync [account]",
		Short: "Discover agents and add them to the saved list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), accountSignerMode(args))
			if err != nil {
				return err
			}
			defer s.Close()

			account, err := accountArg(s, args)
			if err != nil {
				return err
			}
			agents, res, err := s.client.Agents().Sync(cmd.Context(), account)
			if err != nil {
				return err
			}
			if jsonMode {
				return printJSON(struct {
					Saved     []string                 `json:"saved"`
					Discovery arenakit.DiscoveryResult `json:"discovery"`
				}{agents, res})
			}
			printDiscovery(res)
			fmt.Printf("%d agents saved\n", len(agents))
			return nil
		},
	}
}

func newAgentsEditCmd(use, short string, edit func(*arenakit.AgentBook, context.Context, common.Address) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <address>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress("agent", args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), signerNone)
			if err != nil {
				return err
			}
			defer s.Close()

			agents, err := edit(s.client.Agents(), cmd.Context(), addr)
			if err != nil {
				return err
			}
			return printAgents(agents)
		},
	}
}
