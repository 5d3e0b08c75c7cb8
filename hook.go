package arenakit

// AttemptHook is called after every submission attempt. err is nil on success.
// failure is FailureFatal for errors the controller will not retry.
type AttemptHook func(attempt TxAttempt, failure SubmitFailure, err error)

// PhaseHook is called whenever a write moves to another phase
type PhaseHook func(phase Phase, outcome *TxOutcome, err error)

// ClaimsHook receives every published claims sweep
type ClaimsHook func(result SweepResult)
