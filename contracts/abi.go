// Package contracts holds the ABIs of the arena contracts and typed helpers
// for packing calls, reading views and decoding events.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const arenaABIJSON = `[
 {"type":"function","name":"createBattle","stateMutability":"payable",
  "inputs":[{"name":"challengeType","type":"uint8"},{"name":"entryFee","type":"uint256"},{"name":"maxAgents","type":"uint256"},{"name":"duration","type":"uint256"}],
  "outputs":[{"name":"battleId","type":"uint256"}]},
 {"type":"function","name":"registerAgent","stateMutability":"nonpayable",
  "inputs":[{"name":"battleId","type":"uint256"},{"name":"agent","type":"address"}],"outputs":[]},
 {"type":"function","name":"startBattle","stateMutability":"nonpayable",
  "inputs":[{"name":"battleId","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"resolveBattle","stateMutability":"nonpayable",
  "inputs":[{"name":"battleId","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"battles","stateMutability":"view",
  "inputs":[{"name":"battleId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"getAllBattleIds","stateMutability":"view",
  "inputs":[],"outputs":[{"name":"","type":"uint256[]"}]},
 {"type":"function","name":"nextBattleId","stateMutability":"view",
  "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"getCreatorBattles","stateMutability":"view",
  "inputs":[{"name":"creator","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}]},
 {"type":"event","name":"AgentRegistered","anonymous":false,
  "inputs":[{"name":"battleId","type":"uint256","indexed":true},{"name":"agent","type":"address","indexed":true}]}
]`

// Paged creator listing lives in a separate ABI so the single-argument
// getCreatorBattles of older deployments keeps its plain method name.
const arenaPaginationABIJSON = `[
 {"type":"function","name":"getCreatorBattleCount","stateMutability":"view",
  "inputs":[{"name":"creator","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"getCreatorBattles","stateMutability":"view",
  "inputs":[{"name":"creator","type":"address"},{"name":"offset","type":"uint256"},{"name":"limit","type":"uint256"}],
  "outputs":[{"name":"","type":"uint256[]"}]}
]`

const battleABIJSON = `[
 {"type":"function","name":"getState","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
 {"type":"function","name":"getChallenge","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"entryFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"deadline","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"getWinner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"getAgents","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
 {"type":"function","name":"claimablePrize","stateMutability":"view",
  "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"pendingWithdrawals","stateMutability":"view",
  "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"claimPrize","stateMutability":"nonpayable","inputs":[],"outputs":[]},
 {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[],"outputs":[]},
 {"type":"event","name":"PrizeClaimed","anonymous":false,
  "inputs":[{"name":"winner","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
 {"type":"event","name":"Withdrawn","anonymous":false,
  "inputs":[{"name":"account","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

const bettingABIJSON = `[
 {"type":"function","name":"placeBet","stateMutability":"payable",
  "inputs":[{"name":"battleId","type":"uint256"},{"name":"agentIndex","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"claimableBetPayout","stateMutability":"view",
  "inputs":[{"name":"battleId","type":"uint256"},{"name":"bettor","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"getBet","stateMutability":"view",
  "inputs":[{"name":"battleId","type":"uint256"},{"name":"agent","type":"address"},{"name":"bettor","type":"address"}],
  "outputs":[{"name":"amount","type":"uint256"},{"name":"claimed","type":"bool"}]},
 {"type":"function","name":"claimBetPayout","stateMutability":"nonpayable",
  "inputs":[{"name":"battleId","type":"uint256"}],"outputs":[]},
 {"type":"event","name":"PayoutClaimed","anonymous":false,
  "inputs":[{"name":"battleId","type":"uint256","indexed":true},{"name":"bettor","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

const agentABIJSON = `[
 {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

// Parsed ABIs
var (
	ArenaABI           = mustParse(arenaABIJSON)
	ArenaPaginationABI = mustParse(arenaPaginationABIJSON)
	BattleABI          = mustParse(battleABIJSON)
	BettingABI         = mustParse(bettingABIJSON)
	AgentABI           = mustParse(agentABIJSON)
)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("contracts: invalid embedded abi: " + err.Error())
	}
	return parsed
}
