package service

import "errors"

// Machine-readable codes carried on blocked or failed pipeline runs.
const (
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeLimitReached        = "LIMIT_REACHED"
	CodeCreditsExceeded     = "CREDITS_EXCEEDED"
	CodeNoActiveTopics      = "NO_ACTIVE_TOPICS"
	CodeNoSectionsGenerated = "NO_SECTIONS_GENERATED"
)

// FlowError is a business-level pipeline outcome. Count and Limit are only
// meaningful for LIMIT_REACHED.
type FlowError struct {
	Code    string
	Message string
	Count   int
	Limit   int
}

func (e *FlowError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// AsFlowError unwraps a business-level pipeline error if err carries one.
func AsFlowError(err error) (*FlowError, bool) {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
