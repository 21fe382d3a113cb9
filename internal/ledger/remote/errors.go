package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vovakirdan/dash-rally/internal/ledger"
)

// errorBody is the JSON error envelope written by the server.
type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// HTTPError is a non-2xx response that did not carry a ledger rejection.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("remote: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for rate limits (429) and server errors (5xx).
func (e *HTTPError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// statusFor maps a handler error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnknownRound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrNotOperator), errors.Is(err, ledger.ErrNotCreator):
		return http.StatusForbidden
	case ledger.IsRejection(err):
		return http.StatusConflict
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errNoCaller):
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}

var (
	errBadRequest = errors.New("bad request")
	errNoCaller   = errors.New("missing or invalid X-Player header")
)
