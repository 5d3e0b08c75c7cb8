// Package nonce tracks the nonces this process has handed out per sender and chain.
// This is an internal package and should not be imported directly by external code.
package nonce

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type key struct {
	wallet  common.Address
	chainID uint64
}

// Tracker remembers the last nonce reserved for each (wallet, chain) pair so
// that back-to-back submissions do not reuse a nonce a lagging node still
// reports as pending.
type Tracker struct {
	mu       sync.Mutex
	reserved map[key]uint64
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{reserved: make(map[key]uint64)}
}

// AcquireResult contains the result of a nonce acquisition
type AcquireResult struct {
	Nonce          uint64
	DecisionReason string
}

// Acquire picks the nonce for the next submission from the node's pending
// count and the locally reserved nonce, then reserves it.
func (t *Tracker) Acquire(wallet common.Address, chainID uint64, remotePending uint64) AcquireResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{wallet, chainID}
	last, tracked := t.reserved[k]

	var result AcquireResult
	switch {
	case !tracked:
		result = AcquireResult{Nonce: remotePending, DecisionReason: "no local reservation, using remote pending"}
	case last+1 > remotePending:
		result = AcquireResult{Nonce: last + 1, DecisionReason: "local reservation ahead of remote pending"}
	default:
		result = AcquireResult{Nonce: remotePending, DecisionReason: "remote pending at or ahead of local reservation"}
	}
	t.reserved[k] = result.Nonce

	zap.L().Debug("nonce acquired",
		zap.String("wallet", wallet.Hex()),
		zap.Uint64("chain_id", chainID),
		zap.Uint64("nonce", result.Nonce),
		zap.Uint64("remote_pending", remotePending),
		zap.String("decision", result.DecisionReason),
	)
	return result
}

// Release hands back a reserved nonce that never reached the network. Only
// the most recent reservation can be released.
func (t *Tracker) Release(wallet common.Address, chainID uint64, nonce uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{wallet, chainID}
	last, tracked := t.reserved[k]
	if !tracked || last != nonce {
		zap.L().Debug("nonce release skipped: not the latest reservation",
			zap.String("wallet", wallet.Hex()),
			zap.Uint64("chain_id", chainID),
			zap.Uint64("nonce", nonce),
		)
		return false
	}
	if nonce == 0 {
		delete(t.reserved, k)
	} else {
		t.reserved[k] = nonce - 1
	}
	return true
}

// Reserved returns the last reserved nonce, if any
func (t *Tracker) Reserved(wallet common.Address, chainID uint64) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.reserved[key{wallet, chainID}]
	return n, ok
}
