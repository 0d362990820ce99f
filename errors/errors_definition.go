package errors

import (
	"fmt"
	"net/http"
)

// Error codes in the 40001-49999 range are the caller's fault and map to
// HTTP 400/403/404. Codes 50001-59999 are the server's fault and map to 500.
// Never change an existing code, only append; gaps mean a retired error.
//
// User-facing messages stay generic on purpose: configuration and provider
// details are logged server-side only.
var (
	// Client faults
	ErrMalformedBody        = Error{Code: 40001, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidProduct       = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid product ID")}
	ErrInvalidSecurityToken = Error{Code: 40003, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("security check failed")}
	ErrProductNotFound      = Error{Code: 40004, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("product not found")}
	ErrNotEntitled          = Error{Code: 40005, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("premium features are not licensed")}
	ErrMalformedURLParam    = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed URL parameter")}
	ErrInvalidDownloadToken = Error{Code: 40007, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("download link is invalid or has expired")}

	// Server faults
	ErrGatewayNotConfigured = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("payment configuration or product data missing")}
	ErrProviderFailure      = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("failed to create checkout session")}
	ErrInternalStorageError = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal storage error")}
	ErrGenericInternalServerError = Error{Code: 50004, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)
