package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrEndpointNotFound is wrapped by ExtractionError when no strategy resolved a submission URL.
	ErrEndpointNotFound = errors.New("submit URL not found on page")

	// ErrStepLimit stops a session that kept receiving next URLs past the configured bound.
	ErrStepLimit = errors.New("step limit reached")

	// ErrInvalidSecret is returned by the dispatch boundary on a credential mismatch.
	ErrInvalidSecret = errors.New("invalid secret")

	// ErrRunNotFound is returned by run stores for unknown session IDs.
	ErrRunNotFound = errors.New("run not found")
)

// NavigationError - page failed to load or settle
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("failed to load page %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ExtractionError - mandatory submission endpoint could not be resolved
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// AnswerComputationError - answer engine failed; never fatal to a session
type AnswerComputationError struct {
	URL string
	Err error
}

func (e *AnswerComputationError) Error() string {
	return fmt.Sprintf("answer computation failed for %s: %v", e.URL, e.Err)
}

func (e *AnswerComputationError) Unwrap() error { return e.Err }

// TransportError - submission request failed to send or receive
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("submission to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError - submission reply was not the expected JSON object
type ProtocolError struct {
	Endpoint   string
	StatusCode int
	Body       string // truncated raw body for logs
	Err        error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected reply from %s (status %d): %v", e.Endpoint, e.StatusCode, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
