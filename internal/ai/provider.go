package ai

import (
	"context"
	"image"
	"net/http"
)

// Role is the author of a history turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// maxHistory caps the turns sent with a request to stay within the model's
// context window.
const maxHistory = 20

// Turn is one prior exchange sent as context.
type Turn struct {
	Role Role
	Text string
}

// Request is one generation: a prompt, optional screenshots and the
// conversation so far.
type Request struct {
	Prompt  string
	Images  []image.Image
	History []Turn
}

// Chunk is what a provider extracts from one decoded envelope.
type Chunk struct {
	// Text is the delta to append. Empty is valid (lifecycle events).
	Text string
	// Completed is set when the envelope carries the completion marker.
	Completed bool
	// Err is set when the provider reported a failure inside the stream.
	Err error
}

// Provider is the interface every AI backend implements. It owns the wire
// format; StreamingClient owns the transport and the stream lifecycle.
type Provider interface {
	// Name identifies the provider in errors and logs.
	Name() string
	// Configured reports whether a credential is present.
	Configured() bool
	// NewRequest builds the HTTP request. images are base64 JPEG payloads.
	NewRequest(ctx context.Context, req Request, images []string) (*http.Request, error)
	// Decode extracts the text delta and completion state from one
	// complete JSON envelope.
	Decode(doc []byte) Chunk
}

// recentHistory keeps only the last maxHistory turns.
func recentHistory(history []Turn) []Turn {
	if len(history) > maxHistory {
		return history[len(history)-maxHistory:]
	}
	return history
}

// providerOptions are the knobs shared by the built-in providers.
type providerOptions struct {
	baseURL     string
	temperature *float64
	system      string
}

// ProviderOption configures a built-in provider.
type ProviderOption func(*providerOptions)

// WithBaseURL points the provider at a different API host.
func WithBaseURL(u string) ProviderOption {
	return func(o *providerOptions) { o.baseURL = u }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ProviderOption {
	return func(o *providerOptions) { o.temperature = &t }
}

// WithSystemInstruction sets a system prompt.
func WithSystemInstruction(s string) ProviderOption {
	return func(o *providerOptions) { o.system = s }
}

func applyProviderOptions(defaultBase string, opts []ProviderOption) providerOptions {
	o := providerOptions{baseURL: defaultBase}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
