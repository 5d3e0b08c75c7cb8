package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Event topics
var (
	AgentRegisteredTopic = ArenaABI.Events["AgentRegistered"].ID
	PrizeClaimedTopic    = BattleABI.Events["PrizeClaimed"].ID
	WithdrawnTopic       = BattleABI.Events["Withdrawn"].ID
	PayoutClaimedTopic   = BettingABI.Events["PayoutClaimed"].ID
)

// ClaimEventTopics lists the events that change a claimable balance
func ClaimEventTopics() []common.Hash {
	return []common.Hash{PrizeClaimedTopic, WithdrawnTopic, PayoutClaimedTopic}
}

// IsClaimEvent reports whether log is one of ClaimEventTopics
func IsClaimEvent(log types.Log) bool {
	if len(log.Topics) == 0 {
		return false
	}
	for _, topic := range ClaimEventTopics() {
		if log.Topics[0] == topic {
			return true
		}
	}
	return false
}

// AgentRegistration is a decoded AgentRegistered event
type AgentRegistration struct {
	BattleID    *big.Int
	Agent       common.Address
	BlockNumber uint64
	TxHash      common.Hash
}

// ParseAgentRegistered decodes an AgentRegistered log. Both fields are indexed.
func ParseAgentRegistered(log types.Log) (AgentRegistration, error) {
	if len(log.Topics) != 3 || log.Topics[0] != AgentRegisteredTopic {
		return AgentRegistration{}, fmt.Errorf("log %s/%d is not AgentRegistered", log.TxHash.Hex(), log.Index)
	}
	return AgentRegistration{
		BattleID:    new(big.Int).SetBytes(log.Topics[1].Bytes()),
		Agent:       common.BytesToAddress(log.Topics[2].Bytes()),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
	}, nil
}
