package runtime

import "fmt"

// Process exit codes for replay and serve.
const (
	ExitCodeOK     = 0 // stream consumed, archive flushed
	ExitCodeUsage  = 1 // invalid arguments or configuration
	ExitCodeStream = 2 // malformed framing, broken reader or cancellation
	ExitCodePolicy = 3 // archive policy failure
)

// OutcomeStatus classifies how an ingestion run ended.
type OutcomeStatus string

// Outcome statuses.
const (
	OutcomeSuccess       OutcomeStatus = "success"
	OutcomeStreamError   OutcomeStatus = "stream_error"
	OutcomePolicyFailure OutcomeStatus = "policy_failure"
	OutcomeCanceled      OutcomeStatus = "canceled"
)

// Outcome is the result classification of an ingestion run.
type Outcome struct {
	Status  OutcomeStatus `json:"status"`
	Message string        `json:"message"`
}

// DetermineOutcome classifies the error returned by IngestionEngine.Run.
func DetermineOutcome(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Status: OutcomeSuccess, Message: "stream consumed"}
	case IsPolicyError(err):
		return Outcome{Status: OutcomePolicyFailure, Message: fmt.Sprintf("policy failure: %v", err)}
	case IsCanceledError(err):
		return Outcome{Status: OutcomeCanceled, Message: fmt.Sprintf("ingestion canceled: %v", err)}
	default:
		return Outcome{Status: OutcomeStreamError, Message: fmt.Sprintf("stream error: %v", err)}
	}
}

// ExitCode maps the outcome to a process exit code.
func (o Outcome) ExitCode() int {
	switch o.Status {
	case OutcomeSuccess:
		return ExitCodeOK
	case OutcomePolicyFailure:
		return ExitCodePolicy
	default:
		return ExitCodeStream
	}
}
