package relay

import (
	"errors"
	"fmt"
)

// ErrNoResponseBody means the upstream stream ended before producing a
// single byte.
var ErrNoResponseBody = errors.New("no response body")

// ParseError means the stream carried more malformed event payloads than the
// engine tolerates. The relay is aborted; whatever content parsed before the
// bound was hit is preserved.
type ParseError struct {
	Failures int
	LastErr  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("giving up after %d malformed event payloads: %v", e.Failures, e.LastErr)
}

func (e *ParseError) Unwrap() error {
	return e.LastErr
}
