package afs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Error categories attached to failure metrics. Values are stable label
// vocabulary; dashboards and alerts key on them.
const (
	CategoryAuthentication = "authentication"
	CategoryConnection     = "connection"
	CategoryTimeout        = "timeout"
	CategoryAPI            = "api_error"
	CategoryRateLimit      = "rate_limit"
	CategoryData           = "data_processing"
	CategoryPartial        = "partial_collection"
	CategoryCircuitOpen    = "circuit_open"
	CategoryUnknown        = "unknown"
)

// AuthError reports rejected credentials or a bad request signature.
// Authentication failures need operator intervention and are not retried.
type AuthError struct {
	Status int // HTTP status that triggered it, 0 when locally generated
	Msg    string
}

func (e *AuthError) Error() string { return "afs: authentication failed: " + e.Msg }

func (e *AuthError) Retryable() bool { return false }

// NetworkError wraps a transport-level failure reaching the API.
type NetworkError struct{ Err error }

func (e *NetworkError) Error() string { return "afs: network error: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Retryable() bool { return true }

func (e *NetworkError) RetryAfter() time.Duration { return 5 * time.Second }

// TimeoutError reports a request that exceeded its deadline.
type TimeoutError struct{ Op string }

func (e *TimeoutError) Error() string { return "afs: " + e.Op + " timed out" }

func (e *TimeoutError) Retryable() bool { return true }

func (e *TimeoutError) RetryAfter() time.Duration { return 10 * time.Second }

// APIError reports a non-success HTTP status from the API. Server-side
// statuses and 429 are retryable, other client-side ones are not.
type APIError struct {
	Status int
	Body   string // response body snippet, may be empty
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("afs: api error %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("afs: api error %d", e.Status)
}

func (e *APIError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

func (e *APIError) RetryAfter() time.Duration {
	if e.Status >= 500 {
		return 5 * time.Second
	}
	return 0
}

// RateLimitError reports HTTP 429 with the server's requested backoff.
type RateLimitError struct{ After time.Duration }

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("afs: rate limited, retry after %s", e.After)
}

func (e *RateLimitError) Retryable() bool { return true }

func (e *RateLimitError) RetryAfter() time.Duration { return e.After }

// DataError reports a response that could not be decoded or failed
// structural validation. Retrying the same payload would not help.
type DataError struct {
	Msg string
	Err error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return "afs: " + e.Msg + ": " + e.Err.Error()
	}
	return "afs: " + e.Msg
}

func (e *DataError) Unwrap() error { return e.Err }

func (e *DataError) Retryable() bool { return false }

// PartialCollectionError reports a collection cycle in which every volume
// failed. Failed holds "volume@zone" identifiers.
type PartialCollectionError struct {
	Failed []string
	Total  int
}

func (e *PartialCollectionError) Error() string {
	return fmt.Sprintf("afs: collection failed for %d of %d volumes: %s",
		len(e.Failed), e.Total, strings.Join(e.Failed, ", "))
}

func (e *PartialCollectionError) Retryable() bool { return true }

func (e *PartialCollectionError) RetryAfter() time.Duration { return 30 * time.Second }

// Category classifies err into one of the category label values above.
// Classification matches error types, never message text, so categories stay
// stable when messages change.
func Category(err error) string {
	var (
		authErr    *AuthError
		rateErr    *RateLimitError
		apiErr     *APIError
		timeoutErr *TimeoutError
		netErr     *NetworkError
		dataErr    *DataError
		partErr    *PartialCollectionError
	)
	switch {
	case errors.As(err, &authErr):
		return CategoryAuthentication
	case errors.As(err, &rateErr):
		return CategoryRateLimit
	case errors.As(err, &apiErr):
		return CategoryAPI
	case errors.As(err, &timeoutErr):
		return CategoryTimeout
	case errors.As(err, &netErr):
		return CategoryConnection
	case errors.As(err, &dataErr):
		return CategoryData
	case errors.As(err, &partErr):
		return CategoryPartial
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return CategoryConnection
	}
	return CategoryUnknown
}
