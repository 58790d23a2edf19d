// errors/impersonation_errors.go
package errors

import "errors"

var (
	ErrInvalidImpersonationTarget = errors.New("invalid impersonation target")
	ErrImpersonationValidation    = errors.New("impersonation validation failed")
	ErrSessionStorage             = errors.New("impersonation session storage failed")
)
