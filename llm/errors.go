package llm

import (
	"errors"
	"strings"
)

// ErrRateLimited marks a provider rate-limit rejection. It is the only retryable failure.
var ErrRateLimited = errors.New("rate limited")

// ErrEmptyResponse is returned when the provider answers with no text
var ErrEmptyResponse = errors.New("empty response from model")

// RateLimitError wraps a provider error that signalled rate limiting
type RateLimitError struct {
	err error
}

func (e *RateLimitError) Error() string {
	return "rate limited: " + e.err.Error()
}

func (e *RateLimitError) Unwrap() []error {
	return []error{ErrRateLimited, e.err}
}

// NewRateLimitError wraps err as a rate-limit failure
func NewRateLimitError(err error) error {
	return &RateLimitError{err: err}
}

// IsRateLimited reports whether err is a rate-limit failure
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// looksRateLimited catches providers that only signal 429 in the message text
func looksRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit")
}
