package domain

import (
	"fmt"
	"net/http"
	"time"
)

// FetchResult is the outcome of one adapter call, either Success or Failure
type FetchResult interface {
	isFetchResult()
}

// Success holds normalized articles of a completed fetch. Empty Articles is a valid outcome.
type Success struct {
	Articles  []Article
	FetchedAt time.Time
}

// Failure holds a classified fetch error
type Failure struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
}

func (Success) isFetchResult() {}
func (Failure) isFetchResult() {}

// Error implements error interface
func (f Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// ErrorKind is the closed taxonomy of fetch failures
type ErrorKind string

// error kinds, listed in classification priority order
const (
	ErrTimeout           ErrorKind = "timeout"
	ErrRateLimited       ErrorKind = "rate_limited"
	ErrUnauthorized      ErrorKind = "unauthorized"
	ErrUpstream          ErrorKind = "upstream_error"
	ErrMalformedResponse ErrorKind = "malformed_response"
	ErrUnknown           ErrorKind = "unknown"
)

// HTTPStatus maps the kind to the status code used on the JSON boundary
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrUpstream, ErrMalformedResponse:
		return http.StatusBadGateway
	default: // unauthorized is a server-side credential problem, not the caller's
		return http.StatusInternalServerError
	}
}
