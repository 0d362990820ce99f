package stripe

import (
	"errors"
	"fmt"
)

// GatewayError represents a payment-gateway-specific error. The code tells
// the HTTP layer how to answer the delivery and tells callers whether a
// retry can help: network-level failures are retryable, business-validation
// rejections are terminal.
type GatewayError struct {
	Code    string
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway error [%s]: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("gateway error [%s]: %s", e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Gateway error codes.
const (
	CodeInvalidInput      = "invalid_input"
	CodeConfigMissing     = "config_missing"
	CodeAPICallFailed     = "api_call_failed"
	CodeWebhookValidation = "webhook_validation"
	CodeInvalidEvent      = "invalid_event"
	CodeLedgerFailed      = "ledger_failed"
	CodeFulfillmentFailed = "fulfillment_failed"
)

// NewGatewayError creates a new GatewayError with the given code, message
// and underlying error.
func NewGatewayError(code, message string, err error) *GatewayError {
	return &GatewayError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ErrorCode extracts the gateway error code from err, or "" when err is not
// a GatewayError.
func ErrorCode(err error) string {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Code
	}
	return ""
}

// IsRetryableError reports whether a retry of the same operation can
// succeed. Only infrastructure-level failures qualify; validation and
// configuration errors are terminal until an operator intervenes.
func IsRetryableError(err error) bool {
	switch ErrorCode(err) {
	case CodeAPICallFailed, CodeLedgerFailed, CodeFulfillmentFailed:
		return true
	default:
		return false
	}
}
