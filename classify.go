package arenakit

import (
	"context"
	"errors"
	"strings"
)

// SubmitFailure is the class of a failed write attempt
type SubmitFailure int

const (
	FailureFatal SubmitFailure = iota
	FailureReplacementUnderpriced
	FailureNonceTooLow
	FailureAlreadyKnown
)

func (f SubmitFailure) String() string {
	switch f {
	case FailureReplacementUnderpriced:
		return "replacement-underpriced"
	case FailureNonceTooLow:
		return "nonce-too-low"
	case FailureAlreadyKnown:
		return "already-known"
	default:
		return "fatal"
	}
}

// Retryable reports whether the controller should try again
func (f SubmitFailure) Retryable() bool {
	return f != FailureFatal
}

// RefreshesNonce reports whether the next attempt needs a fresh nonce
func (f SubmitFailure) RefreshesNonce() bool {
	return f == FailureNonceTooLow
}

// Node error texts differ between clients; every substring we match on lives here.
var submitFailurePatterns = []struct {
	substr  string
	failure SubmitFailure
}{
	{"replacement transaction underpriced", FailureReplacementUnderpriced},
	{"replacement fee too low", FailureReplacementUnderpriced},
	{"insufficient gas price to replace", FailureReplacementUnderpriced},
	{"nonce too low", FailureNonceTooLow},
	{"already known", FailureAlreadyKnown},
	{"known transaction", FailureAlreadyKnown},
}

// ClassifySubmitError maps a write error onto a SubmitFailure by
// case-insensitive substring match. Unknown errors are fatal.
func ClassifySubmitError(err error) SubmitFailure {
	if err == nil {
		return FailureFatal
	}
	msg := strings.ToLower(err.Error())
	for _, p := range submitFailurePatterns {
		if strings.Contains(msg, p.substr) {
			return p.failure
		}
	}
	return FailureFatal
}

// ErrorCategory is a user-facing error bucket
type ErrorCategory string

const (
	CategoryNone              ErrorCategory = ""
	CategoryConfiguration     ErrorCategory = "configuration"
	CategoryRejectedByUser    ErrorCategory = "rejected-by-user"
	CategoryWrongNetwork      ErrorCategory = "wrong-network"
	CategoryPendingConflict   ErrorCategory = "pending-transaction-conflict"
	CategoryInsufficientFunds ErrorCategory = "insufficient-funds"
	CategoryTimeout           ErrorCategory = "timeout"
	CategoryGeneric           ErrorCategory = "generic"
)

var categoryPatterns = []struct {
	substrs  []string
	category ErrorCategory
}{
	{[]string{"user rejected", "denied"}, CategoryRejectedByUser},
	{[]string{"wrong network", "unsupported chain", "chain mismatch", "chain id"}, CategoryWrongNetwork},
	{[]string{"replacement", "nonce"}, CategoryPendingConflict},
	{[]string{"insufficient funds"}, CategoryInsufficientFunds},
	{[]string{"timeout", "timed out"}, CategoryTimeout},
}

// Categorize buckets err for display. Typed errors are checked before the
// message text.
func Categorize(err error) ErrorCategory {
	if err == nil {
		return CategoryNone
	}
	var notReady *NotReadyError
	switch {
	case errors.Is(err, ErrWrongNetwork):
		return CategoryWrongNetwork
	case errors.Is(err, ErrConfiguration), errors.As(err, &notReady):
		return CategoryConfiguration
	case errors.Is(err, ErrReceiptTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, ErrSubmissionExhausted):
		return CategoryPendingConflict
	}

	msg := strings.ToLower(err.Error())
	for _, p := range categoryPatterns {
		for _, s := range p.substrs {
			if strings.Contains(msg, s) {
				return p.category
			}
		}
	}
	return CategoryGeneric
}

var categoryMessages = map[ErrorCategory]string{
	CategoryRejectedByUser:    "Transaction rejected in wallet.",
	CategoryWrongNetwork:      "Wrong network. Switch networks in your wallet.",
	CategoryPendingConflict:   "Pending tx detected. Speed up or cancel in your wallet, or increase gas.",
	CategoryInsufficientFunds: "Insufficient funds for gas.",
	CategoryTimeout:           "RPC timeout, try again.",
	CategoryGeneric:           "Transaction failed. Try again.",
}

// UserMessage returns the fixed message for err's category. Configuration
// and readiness errors keep their own text since it names what is missing.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var notReady *NotReadyError
	if errors.As(err, &notReady) {
		return notReady.Reason
	}
	cat := Categorize(err)
	if cat == CategoryConfiguration {
		return err.Error()
	}
	return categoryMessages[cat]
}
