package poster

import "errors"

// GatewayError carries the classification every caller needs to pick between
// retrying and giving up on a post.
type GatewayError struct {
	Message    string
	StatusCode int
	Retryable  bool
	Timeout    bool
}

func (e *GatewayError) Error() string {
	return e.Message
}

// IsRetryable reports whether another attempt against the gateway makes
// sense. Anything that is not a GatewayError is treated as terminal.
func IsRetryable(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return false
}

// IsTimeout reports whether the error was produced by the per-call deadline.
func IsTimeout(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Timeout
	}
	return false
}
