package arenakit

import (
	"errors"
	"fmt"
)

// Readiness and configuration errors
var (
	ErrNotReady          = fmt.Errorf("network not ready")
	ErrConfiguration     = fmt.Errorf("configuration error")
	ErrWrongNetwork      = fmt.Errorf("wrong network")
	ErrSignerUnavailable = fmt.Errorf("signer not connected")
)

// Transaction execution errors
var (
	ErrSubmissionExhausted   = fmt.Errorf("failed to submit after retries")
	ErrReceiptTimeout        = fmt.Errorf("timed out waiting for transaction receipt")
	ErrExecutionReverted     = fmt.Errorf("transaction execution reverted")
	ErrFromAddressZero       = fmt.Errorf("from address cannot be zero")
	ErrInvalidFeeSchedule    = fmt.Errorf("fee bump schedule must be positive and strictly ascending")
	ErrIncompleteFeeOverride = fmt.Errorf("fee override needs both max fee and priority fee")
	ErrNoContractAddress     = fmt.Errorf("deploy receipt has no contract address")
	ErrAmbiguousOutcome      = fmt.Errorf("previous attempt exhausted retries and may still be mined")
)

// Read errors
var (
	ErrContractNotDeployed = fmt.Errorf("contract not deployed")
)

// NotReadyError is returned when the readiness gate fails. Reason is the
// user-facing text.
type NotReadyError struct {
	Reason string
	kind   error
}

func (e *NotReadyError) Error() string {
	return "not ready: " + e.Reason
}

// Unwrap exposes ErrNotReady and the category of the failed check
func (e *NotReadyError) Unwrap() []error {
	if e.kind == nil {
		return []error{ErrNotReady}
	}
	return []error{ErrNotReady, e.kind}
}

// IsAmbiguous reports whether err leaves open that a transaction from the
// operation may still be mined. Such an operation must be re-checked on-chain
// before it is retried as a whole.
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrSubmissionExhausted) ||
		errors.Is(err, ErrReceiptTimeout) ||
		errors.Is(err, ErrAmbiguousOutcome)
}
