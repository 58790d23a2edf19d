// errors/stream_errors.go
package errors

import "errors"

var ErrHandshakeRejected = errors.New("stream handshake rejected")
