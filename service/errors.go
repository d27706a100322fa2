package service

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable machine-readable code of a user-visible failure
type ErrorKind string

const (
	KindValidation      ErrorKind = "VALIDATION_ERROR"
	KindPromptInjection ErrorKind = "PROMPT_INJECTION_DETECTED"
	KindServiceBusy     ErrorKind = "SERVICE_BUSY"
	KindDraftingFailed  ErrorKind = "DRAFTING_FAILED"
)

// UserFacingError is implemented by every error that may be shown to a client.
// UserMessage never contains upstream error text.
type UserFacingError interface {
	error
	Kind() ErrorKind
	UserMessage() string
}

// ValidationError reports malformed or injection-bearing input
type ValidationError struct {
	Field    string
	Message  string
	Security bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Kind() ErrorKind {
	if e.Security {
		return KindPromptInjection
	}
	return KindValidation
}

func (e *ValidationError) UserMessage() string {
	return e.Error()
}

// ServiceBusyError means the generation service kept rate limiting us
type ServiceBusyError struct {
	Attempts int
	cause    error
}

func (e *ServiceBusyError) Error() string {
	return fmt.Sprintf("generation service busy after %d attempts: %v", e.Attempts, e.cause)
}

func (e *ServiceBusyError) Unwrap() error { return e.cause }

func (e *ServiceBusyError) Kind() ErrorKind { return KindServiceBusy }

func (e *ServiceBusyError) UserMessage() string {
	return "Our drafting service is handling too many requests right now. Please try again in a minute."
}

// DraftingFailedError is any non-retryable generation failure
type DraftingFailedError struct {
	Message string
	cause   error
}

func (e *DraftingFailedError) Error() string {
	if e.cause == nil {
		return "drafting failed"
	}
	return "drafting failed: " + e.cause.Error()
}

func (e *DraftingFailedError) Unwrap() error { return e.cause }

func (e *DraftingFailedError) Kind() ErrorKind { return KindDraftingFailed }

func (e *DraftingFailedError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return "We could not draft your notice. Please try again."
}

func newDraftingFailed(cause error) error {
	return &DraftingFailedError{cause: cause}
}

var (
	// ErrExtractionParse means the ready sentinel was present but its payload was malformed
	ErrExtractionParse = errors.New("malformed case extraction")
	// ErrNoGenerator is returned when the service was built without a generator
	ErrNoGenerator = errors.New("generator not set")
)

// AsUserFacing converts any error into a user-facing one. Errors that are not
// already user-facing become a generic drafting failure.
func AsUserFacing(err error) UserFacingError {
	var ufe UserFacingError
	if errors.As(err, &ufe) {
		return ufe
	}
	return &DraftingFailedError{cause: err}
}
