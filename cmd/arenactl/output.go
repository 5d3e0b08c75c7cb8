package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"

	"github.com/battlechain/arenakit"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stateColor(s arenakit.BattleState) string {
	switch s {
	case arenakit.BattleActive:
		return color.GreenString(s.String())
	case arenakit.BattleResolved, arenakit.BattleClaimed:
		return color.CyanString(s.String())
	default:
		return color.YellowString(s.String())
	}
}

func printBattles(battles []arenakit.BattleSummary) {
	if len(battles) == 0 {
		fmt.Println("No battles")
		return
	}
	for _, b := range battles {
		winner := "-"
		if b.Winner != nil {
			winner = b.Winner.Hex()
		}
		fmt.Printf("#%-5s %s  %-10s fee %s ETH  deadline %s  winner %s\n",
			b.ID, b.Address.Hex(), stateColor(b.State), b.EntryFee, b.DeadlineISO, winner)
	}
}

func printSweep(r arenakit.SweepResult) {
	fmt.Printf("Account %s\n", color.CyanString(r.Account.Hex()))
	fmt.Printf("  Prizes:              %s ETH\n", arenakit.FormatEther(r.Totals.Prize))
	fmt.Printf("  Bet payouts:         %s ETH\n", arenakit.FormatEther(r.Totals.BetPayout))
	fmt.Printf("  Pending withdrawals: %s ETH\n", arenakit.FormatEther(r.Totals.PendingWithdrawal))

	ids := make([]string, 0, len(r.PerBattle))
	for id := range r.PerBattle {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := new(big.Int).SetString(ids[i], 10)
		b, _ := new(big.Int).SetString(ids[j], 10)
		return a.Cmp(b) < 0
	})
	for _, id := range ids {
		c := r.PerBattle[id]
		if c.Degraded {
			fmt.Printf("  #%s %s\n", id, color.YellowString("unavailable"))
			continue
		}
		if isZero(c.ClaimablePrize) && isZero(c.PendingWithdrawal) && isZero(c.ClaimableBetPayout) {
			continue
		}
		fmt.Printf("  #%s prize %s  withdrawal %s  bet payout %s\n", id,
			arenakit.FormatEther(c.ClaimablePrize),
			arenakit.FormatEther(c.PendingWithdrawal),
			arenakit.FormatEther(c.ClaimableBetPayout))
	}
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

// phasePrinter reports write progress on stderr so stdout stays parseable
func phasePrinter(phase arenakit.Phase, out *arenakit.TxOutcome, _ error) {
	if jsonMode {
		return
	}
	switch phase {
	case arenakit.PhaseAwaitingSigner:
		fmt.Fprintln(os.Stderr, color.YellowString("Signing..."))
	case arenakit.PhaseSubmitted:
		fmt.Fprintf(os.Stderr, "%s %s\n", color.CyanString("Submitted"), out.Hash.Hex())
	case arenakit.PhaseConfirming:
		fmt.Fprintln(os.Stderr, color.YellowString("Waiting for confirmation..."))
	case arenakit.PhaseTimeout:
		fmt.Fprintln(os.Stderr, color.YellowString("Still pending, check the explorer later"))
	}
}

type outcomeView struct {
	Hash            common.Hash     `json:"hash"`
	Block           uint64          `json:"block,omitempty"`
	GasUsed         uint64          `json:"gasUsed,omitempty"`
	ContractAddress *common.Address `json:"contractAddress,omitempty"`
	Cached          bool            `json:"cached"`
}

func printOutcome(out *arenakit.TxOutcome) error {
	view := outcomeView{Hash: out.Hash, ContractAddress: out.ContractAddress, Cached: out.Cached}
	if out.Receipt != nil {
		if out.Receipt.BlockNumber != nil {
			view.Block = out.Receipt.BlockNumber.Uint64()
		}
		view.GasUsed = out.Receipt.GasUsed
	}
	if jsonMode {
		return printJSON(view)
	}

	fmt.Printf("%s %s\n", color.GreenString("Confirmed"), view.Hash.Hex())
	if view.Block != 0 {
		fmt.Printf("  Block:    %d\n", view.Block)
		fmt.Printf("  Gas used: %d\n", view.GasUsed)
	}
	if view.ContractAddress != nil {
		fmt.Printf("  Contract: %s\n", view.ContractAddress.Hex())
	}
	if view.Cached {
		fmt.Println(color.CyanString("  (already confirmed earlier for this idempotency key)"))
	}
	return nil
}
