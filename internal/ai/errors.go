package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential means the provider has no API key configured.
	ErrMissingCredential = errors.New("missing API credential")
	// ErrEncodeRequest means the request body could not be serialised.
	ErrEncodeRequest = errors.New("failed to encode request")
)

// TransportError is a network failure or a non-2xx response.
type TransportError struct {
	Provider   string
	StatusCode int    // 0 when no response was received
	Body       string // truncated response body, if any
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s API error (status %d)", e.Provider, e.StatusCode)
	default:
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StreamError is a failure the provider reported inside the stream.
type StreamError struct {
	Provider string
	Message  string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s stream error: %s", e.Provider, e.Message)
}
