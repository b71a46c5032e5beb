package client

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNilClient        = errors.New("slack client is nil")
	ErrNotConnected     = errors.New("client not connected - call Connect() first")
	ErrMissingAppToken  = errors.New("socket mode requires an app-level token (xapp-...) - use WithAppToken")
	ErrNilHandler       = errors.New("socket mode handler is nil")
	ErrAckWriterStopped = errors.New("acknowledgement writer stopped")
	ErrHandlerPanic     = errors.New("socket mode handler panicked")
)

// APIError is returned when Slack answers a Web API call with "ok": false.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack API method %s failed: %s", e.Method, e.Code)
}

// RateLimitError is returned when Slack keeps answering HTTP 429 after all
// retries are spent. RetryAfter comes from the Retry-After header.
type RateLimitError struct {
	Method     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("slack API method %s rate limited, retry after %v", e.Method, e.RetryAfter)
}
