package types

import "fmt"

// X402Error is the structured error returned by every client operation.
// Code identifies the failure class, Message is human-readable, and Data
// carries call-specific detail (gateway status, rejected reason, step name).
type X402Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	// Err is the underlying cause when the failure wraps a lower-level
	// error (transport, JSON decoding). Not serialized.
	Err error `json:"-"`
}

func (e *X402Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *X402Error) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	// Transport failures
	ErrGatewayError   = "GATEWAY_ERROR"   // non-2xx gateway response
	ErrTransportError = "TRANSPORT_ERROR" // request never completed

	// Validation failures, raised before any network call
	ErrValidation         = "VALIDATION_ERROR"
	ErrMissingHeader      = "MISSING_HEADER"
	ErrMissingSession     = "MISSING_SESSION"
	ErrMissingTrace       = "MISSING_TRACE"
	ErrTraceHeaderInvalid = "TRACE_HEADER_INVALID"
	ErrRiskSessionInvalid = "RISK_SESSION_INVALID"
	ErrEvidenceInvalid    = "EVIDENCE_INVALID"
	ErrInvalidRequirement = "INVALID_REQUIREMENTS"
	ErrConfigError        = "CONFIG_ERROR"

	// Payment outcomes
	ErrPaymentRejected  = "PAYMENT_REJECTED"  // verify reported isValid=false
	ErrSettlementFailed = "SETTLEMENT_FAILED" // settle reported success=false
)

// NewValidationError builds a VALIDATION_ERROR with a formatted message.
func NewValidationError(format string, args ...interface{}) *X402Error {
	return &X402Error{
		Code:    ErrValidation,
		Message: fmt.Sprintf(format, args...),
	}
}
