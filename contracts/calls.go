package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// PackCreateBattle encodes Arena.createBattle. The entry fee is also the call value.
func PackCreateBattle(challengeType uint8, entryFee, maxAgents, duration *big.Int) ([]byte, error) {
	return ArenaABI.Pack("createBattle", challengeType, entryFee, maxAgents, duration)
}

func PackRegisterAgent(battleID *big.Int, agent common.Address) ([]byte, error) {
	return ArenaABI.Pack("registerAgent", battleID, agent)
}

func PackStartBattle(battleID *big.Int) ([]byte, error) {
	return ArenaABI.Pack("startBattle", battleID)
}

func PackResolveBattle(battleID *big.Int) ([]byte, error) {
	return ArenaABI.Pack("resolveBattle", battleID)
}

func PackPlaceBet(battleID, agentIndex *big.Int) ([]byte, error) {
	return BettingABI.Pack("placeBet", battleID, agentIndex)
}

func PackClaimBetPayout(battleID *big.Int) ([]byte, error) {
	return BettingABI.Pack("claimBetPayout", battleID)
}

func PackClaimPrize() ([]byte, error) {
	return BattleABI.Pack("claimPrize")
}

func PackWithdraw() ([]byte, error) {
	return BattleABI.Pack("withdraw")
}

// Artifact is a compiled contract ready for deployment
type Artifact struct {
	ContractName string
	ABI          abi.ABI
	Bytecode     []byte
}

type artifactJSON struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// ParseArtifact decodes a compiler response of the form
// {"contractName": "...", "abi": [...], "bytecode": "0x..."}.
func ParseArtifact(raw []byte) (*Artifact, error) {
	var doc artifactJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(doc.ABI) == 0 {
		return nil, fmt.Errorf("artifact has no abi")
	}
	parsed, err := abi.JSON(bytes.NewReader(doc.ABI))
	if err != nil {
		return nil, fmt.Errorf("parse artifact abi: %w", err)
	}
	code := common.FromHex(strings.TrimSpace(doc.Bytecode))
	if len(code) == 0 {
		return nil, fmt.Errorf("artifact has no bytecode")
	}
	return &Artifact{ContractName: doc.ContractName, ABI: parsed, Bytecode: code}, nil
}

// DeployData returns the creation payload: bytecode followed by the encoded constructor arguments.
func (a *Artifact) DeployData(args ...any) ([]byte, error) {
	packed, err := a.ABI.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("pack constructor args: %w", err)
	}
	data := make([]byte, 0, len(a.Bytecode)+len(packed))
	data = append(data, a.Bytecode...)
	return append(data, packed...), nil
}
