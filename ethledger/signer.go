package ethledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ChainSource reports the chain a signer is connected to
type ChainSource interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// KeySigner signs with a local private key. Its active chain is whatever the
// connected node reports, so a node on another chain fails the readiness gate.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chain   ChainSource
}

// NewKeySigner parses a hex private key, with or without 0x
func NewKeySigner(hexKey string, chain ChainSource) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey), chain: chain}, nil
}

func (s *KeySigner) Address() common.Address {
	return s.address
}

func (s *KeySigner) ChainID(ctx context.Context) (*big.Int, error) {
	if s.chain == nil {
		return nil, fmt.Errorf("signer has no chain source")
	}
	return s.chain.ChainID(ctx)
}

// SignTx signs tx for the active chain
func (s *KeySigner) SignTx(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	chainID, err := s.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}
