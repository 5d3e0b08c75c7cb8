package arenakit

import (
	"fmt"
	"math/big"
)

// ReadinessInput is everything the readiness gate looks at
type ReadinessInput struct {
	ExpectedChainID uint64
	RPCConfigured   bool
	RPCReachable    bool
	SignerConnected bool
	// SignerChainID is nil when the signer has not reported a chain
	SignerChainID *big.Int
}

// Readiness is the gate verdict. Reason is empty when Ready.
type Readiness struct {
	Ready  bool
	Reason string
	err    error
}

// Err returns a *NotReadyError for a failed verdict, nil otherwise
func (r Readiness) Err() error {
	if r.Ready {
		return nil
	}
	return r.err
}

func notReady(reason string, kind error) Readiness {
	return Readiness{Reason: reason, err: &NotReadyError{Reason: reason, kind: kind}}
}

// CheckReadiness runs the ordered checks that must pass before any write.
// The first failing check decides the reason.
func CheckReadiness(in ReadinessInput) Readiness {
	switch {
	case in.ExpectedChainID == 0:
		return notReady("chain id not configured", ErrConfiguration)
	case !in.RPCConfigured || !in.RPCReachable:
		return notReady("RPC unavailable", ErrConfiguration)
	case !in.SignerConnected:
		return notReady("signer not connected", ErrSignerUnavailable)
	case in.SignerChainID != nil && !in.SignerChainID.IsUint64(),
		in.SignerChainID != nil && in.SignerChainID.Uint64() != in.ExpectedChainID:
		return notReady(fmt.Sprintf("wrong network, switch to chain %d", in.ExpectedChainID), ErrWrongNetwork)
	}
	return Readiness{Ready: true}
}
