package upstream

import (
	"fmt"
	"time"
)

// TimeoutError means the backend did not produce response headers before the
// configured deadline. The in-flight call is already cancelled when this is
// returned. Retryable by the caller; never retried here.
type TimeoutError struct {
	Endpoint string
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream %s timed out after %s", e.Endpoint, e.Timeout)
}

// StatusError means the backend answered with a non-2xx status.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.Endpoint, e.Code)
}
