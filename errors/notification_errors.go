// errors/notification_errors.go
package errors

import "errors"

var (
	ErrMalformedFrame     = errors.New("malformed stream frame")
	ErrMarkReadFailed     = errors.New("mark read request failed")
	ErrInvalidationFailed = errors.New("cache invalidation failed")
	ErrUnauthorized       = errors.New("unauthorized")
)
