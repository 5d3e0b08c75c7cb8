package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/battlechain/arenakit"
)

// NewReadinessCmd reports whether writes would be allowed
func NewReadinessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "readiness",
		Short: "Check chain, RPC and signer readiness",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), signerOptional)
			if err != nil {
				return err
			}
			defer s.Close()

			r := s.client.Readiness(cmd.Context())
			if jsonMode {
				return printJSON(struct {
					Ready  bool   `json:"ready"`
					Reason string `json:"reason,omitempty"`
				}{r.Ready, r.Reason})
			}
			if r.Ready {
				fmt.Printf("%s chain %d, signer %s\n", color.GreenString("Ready"), s.cfg.Chain.ID, s.client.Account().Hex())
				return nil
			}
			fmt.Printf("%s %s\n", color.RedString("Not ready:"), r.Reason)
			return nil
		},
	}
}

// NewBattlesCmd lists battles
func NewBattlesCmd() *cobra.Command {
	var (
		creator string
		page    int
	)
	cmd := &cobra.Command{
		Use:   "battles",
		Short: "List battles, or one creator's battles a page at a time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), signerNone)
			if err != nil {
				return err
			}
			defer s.Close()

			if creator == "" {
				battles, err := s.client.Battles().List(cmd.Context())
				if err != nil {
					return err
				}
				if jsonMode {
					return printJSON(battles)
				}
				printBattles(battles)
				return nil
			}

			addr, err := parseAddress("creator", creator)
			if err != nil {
				return err
			}
			p, err := s.client.Battles().CreatorBattles(cmd.Context(), addr, page)
			if err != nil {
				return err
			}
			if jsonMode {
				return printJSON(p)
			}
			printBattles(p.Battles)
			fmt.Printf("Page %d of %d, %d battles\n", p.Page+1, max(p.Pages, 1), p.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&creator, "creator", "", "only battles created by this address")
	cmd.Flags().IntVar(&page, "page", 0, "zero-based page of the creator's battles")
	return cmd
}

// NewClaimsCmd sweeps claimable balances
func NewClaimsCmd() *cobra.Command {
	var (
		watch    bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "claims [account]",
		Short: "Show prizes, bet payouts and pending withdrawals",
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

			if !watch {
				result, err := s.client.Claims(cmd.Context(), account)
				if err != nil {
					return err
				}
				if jsonMode {
					return printJSON(result)
				}
				printSweep(result)
				return nil
			}
			return watchClaims(cmd, s, account, interval)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep sweeping when claim events arrive")
	cmd.Flags().DurationVar(&interval, "interval", arenakit.DefaultRefreshInterval, "claim event poll interval")
	return cmd
}

func watchClaims(cmd *cobra.Command, s *session, account common.Address, interval time.Duration) error {
	ctx := cmd.Context()
	battles, err := s.client.Battles().List(ctx)
	if err != nil {
		return err
	}
	refresher := s.client.NewClaimsRefresher(
		arenakit.WithRefreshInterval(interval),
		arenakit.WithClaimsHook(func(r arenakit.SweepResult) {
			if jsonMode {
				_ = printJSON(r)
				return
			}
			fmt.Println(color.CyanString(r.SweptAt.Format(time.RFC3339)))
			printSweep(r)
		}),
	)
	refresher.SetBattles(battles)
	refresher.SetAccount(account)
	if err := refresher.Run(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func parseAddress(name, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: invalid %s address %q", arenakit.ErrConfiguration, name, s)
	}
	return common.HexToAddress(s), nil
}
