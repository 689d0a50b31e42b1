// Package classify maps transport failures and provider error signals into the closed
// domain.ErrorKind taxonomy. When several conditions match, the first one in this order wins:
// timeout, rate limited, unauthorized, upstream error, malformed response, unknown.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/mihailescuandrei/market-news-stream/pkg/domain"
)

// Input collects everything an adapter observed about a failed call
type Input struct {
	Provider    string // provider name used in messages
	Err         error  // transport error, nil if a response was received
	StatusCode  int    // http status, 0 if no response
	Sentinel    string // provider notice embedded in a response body
	RateLimited bool   // explicit rate-limit marker, e.g. an error code field
	AuthFailed  bool   // explicit credential marker, e.g. an error code field
	MissingKey  bool   // credential not configured, no request was made
	Malformed   error  // body failed to decode or has the wrong shape
	HasArticles bool   // usable article data accompanies the signal
}

// RateLimitMessage is reported when the provider notice is empty
const RateLimitMessage = "API rate limit reached. Please wait a moment and try again."

var rateLimitPhrases = []string{
	"rate limit", "rate-limit", "ratelimit", "api call frequency", "api limit",
	"too many requests", "requests per day", "requests per minute",
}

var authPhrases = []string{
	"api key", "apikey", "api_key", "invalid token", "unauthorized", "unauthorised", "access denied",
}

// Classify builds a failure for the observed signals
func Classify(in Input) domain.Failure {
	name := in.Provider
	if name == "" {
		name = "upstream"
	}

	switch {
	case IsTimeout(in.Err):
		return domain.Failure{Kind: domain.ErrTimeout, Message: fmt.Sprintf("request to %s timed out", name), Retryable: true}

	case !in.HasArticles && (in.StatusCode == http.StatusTooManyRequests || in.RateLimited || IsRateLimitMessage(in.Sentinel)):
		msg := RateLimitMessage
		if in.Sentinel != "" {
			msg = in.Sentinel
		}
		return domain.Failure{Kind: domain.ErrRateLimited, Message: msg}

	case in.MissingKey:
		return domain.Failure{Kind: domain.ErrUnauthorized, Message: fmt.Sprintf("%s API key not configured", name)}

	case in.StatusCode == http.StatusUnauthorized || in.StatusCode == http.StatusForbidden:
		return domain.Failure{Kind: domain.ErrUnauthorized, Message: fmt.Sprintf("%s rejected credentials: HTTP %d", name, in.StatusCode)}

	case in.AuthFailed || IsAuthMessage(in.Sentinel):
		return domain.Failure{Kind: domain.ErrUnauthorized, Message: firstNonEmpty(in.Sentinel, name+" rejected credentials")}

	case in.StatusCode != 0 && (in.StatusCode < 200 || in.StatusCode > 299):
		return domain.Failure{
			Kind:      domain.ErrUpstream,
			Message:   fmt.Sprintf("%s API error: %d %s", name, in.StatusCode, http.StatusText(in.StatusCode)),
			Retryable: in.StatusCode >= 500,
		}

	case in.Sentinel != "" && !in.HasArticles:
		// provider reported an error inside a 2xx body
		return domain.Failure{Kind: domain.ErrUpstream, Message: in.Sentinel}

	case in.Malformed != nil:
		return domain.Failure{Kind: domain.ErrMalformedResponse, Message: fmt.Sprintf("%s malformed response: %v", name, in.Malformed)}

	case in.Err != nil:
		// network level failure without a specific signal, e.g. connection refused
		return domain.Failure{Kind: domain.ErrUnknown, Message: fmt.Sprintf("%s request failed: %v", name, in.Err), Retryable: true}

	default:
		return domain.Failure{Kind: domain.ErrUnknown, Message: fmt.Sprintf("%s request failed", name)}
	}
}

// IsTimeout reports whether err is a deadline or network timeout
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRateLimitMessage is a best-effort wording match on provider notices
func IsRateLimitMessage(msg string) bool {
	return containsAny(msg, rateLimitPhrases)
}

// IsAuthMessage is a best-effort wording match for credential problems
func IsAuthMessage(msg string) bool {
	return containsAny(msg, authPhrases)
}

func containsAny(msg string, phrases []string) bool {
	if msg == "" {
		return false
	}
	lower := strings.ToLower(msg)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
