// Package ai streams generative-AI answers from Gemini or OpenAI and turns
// the growing text into renderable content.
package ai

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/arin/cuecard/internal/content"
	"github.com/arin/cuecard/internal/logging"
)

const (
	defaultRequestTimeout  = 60 * time.Second
	defaultResourceTimeout = 300 * time.Second

	readChunkSize = 4096
	maxErrorBody  = 8 << 10
	eventBuffer   = 16
)

// StreamingClient runs one streaming request at a time against a Provider.
// Starting a new request cancels the previous one. Methods are safe to call
// from multiple goroutines.
type StreamingClient struct {
	provider   Provider
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	state  State
	gen    uint64 // bumped per request; stale goroutines stop emitting
	cancel context.CancelFunc
	text   string
}

// ClientOption configures a StreamingClient.
type ClientOption func(*StreamingClient)

// WithHTTPClient replaces the HTTP client, timeouts included.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *StreamingClient) { c.httpClient = hc }
}

// WithTimeouts sets the time allowed for response headers (request) and for
// the whole exchange (resource).
func WithTimeouts(request, resource time.Duration) ClientOption {
	return func(c *StreamingClient) { c.httpClient = newHTTPClient(request, resource) }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *StreamingClient) { c.logger = logging.OrDiscard(l) }
}

func NewStreamingClient(p Provider, opts ...ClientOption) *StreamingClient {
	c := &StreamingClient{
		provider:   p,
		httpClient: newHTTPClient(defaultRequestTimeout, defaultResourceTimeout),
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPClient(request, resource time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = request
	return &http.Client{Transport: transport, Timeout: resource}
}

// Provider returns the backend this client talks to.
func (c *StreamingClient) Provider() Provider {
	return c.provider
}

// State returns the current lifecycle state.
func (c *StreamingClient) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Text returns the text accumulated by the active request.
func (c *StreamingClient) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// Generate starts a streaming request and returns its events in arrival
// order. The channel closes after a terminal Completed or Failed event, or
// without a further event when the request is cancelled. A missing
// credential or an unencodable body is returned directly and no request is
// sent.
func (c *StreamingClient) Generate(ctx context.Context, req Request) (<-chan Event, error) {
	if !c.provider.Configured() {
		return nil, fmt.Errorf("%s: %w", c.provider.Name(), ErrMissingCredential)
	}
	images := encodeImages(req.Images, c.logger)

	ctx, cancel := context.WithCancel(ctx)
	httpReq, err := c.provider.NewRequest(ctx, req, images)
	if err != nil {
		cancel()
		return nil, err
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.state = StateRequesting
	c.text = ""
	c.mu.Unlock()

	c.logger.Debug("starting stream", "provider", c.provider.Name(), "images", len(images), "history", len(req.History))

	events := make(chan Event, eventBuffer)
	go c.run(ctx, gen, httpReq, events)
	return events, nil
}

// Cancel stops the active request and clears its buffers. It does nothing
// when no request is running.
func (c *StreamingClient) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.gen++
	c.state = StateCancelled
	c.text = ""
}

// GenerateStructuredStreamingContent is the callback form of Generate.
// onUpdate receives the content after every delta and once more, finished,
// at the end. onError receives missing-credential, encoding and transport
// errors. Both run on the calling goroutine, which blocks until the stream
// ends.
func (c *StreamingClient) GenerateStructuredStreamingContent(
	ctx context.Context,
	prompt string,
	images []image.Image,
	onUpdate func(content.StreamContent),
	onError func(error),
) {
	events, err := c.Generate(ctx, Request{Prompt: prompt, Images: images})
	if err != nil {
		onError(err)
		return
	}
	for ev := range events {
		if ev.Err != nil {
			onError(ev.Err)
			continue
		}
		onUpdate(ev.Content)
	}
}

func (c *StreamingClient) run(ctx context.Context, gen uint64, req *http.Request, events chan<- Event) {
	defer close(events)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.fail(ctx, gen, events, &TransportError{Provider: c.provider.Name(), Err: err})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.fail(ctx, gen, events, &TransportError{
			Provider:   c.provider.Name(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		})
		return
	}
	if !c.transition(gen, StateStreaming) {
		return
	}

	var scanner envelopeScanner
	buf := make([]byte, readChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			scanner.Write(buf[:n])
			if done := c.drain(ctx, gen, &scanner, events); done {
				return
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if pending := strings.TrimSpace(string(scanner.Pending())); pending != "" {
					c.logger.Debug("stream ended with undecoded bytes", "bytes", len(pending))
				}
				c.complete(ctx, gen, events)
				return
			}
			c.fail(ctx, gen, events, &TransportError{Provider: c.provider.Name(), Err: readErr})
			return
		}
	}
}

// drain decodes every complete envelope in the scanner. It reports true
// once the stream has ended for any reason.
func (c *StreamingClient) drain(ctx context.Context, gen uint64, sc *envelopeScanner, events chan<- Event) bool {
	for {
		pending := len(sc.Pending())
		doc, ok, err := sc.Next()
		if err != nil {
			c.logger.Debug("envelope not ready", "error", err)
			if len(sc.Pending()) == pending {
				return false
			}
			continue
		}
		if sc.Done() {
			c.complete(ctx, gen, events)
			return true
		}
		if !ok {
			return false
		}

		chunk := c.provider.Decode(doc)
		if chunk.Err != nil {
			c.fail(ctx, gen, events, chunk.Err)
			return true
		}
		if chunk.Text != "" {
			text, current := c.appendText(gen, chunk.Text)
			if !current {
				return true
			}
			ev := Event{
				Content: content.NewBuilder(text).Build(),
				Text:    text,
				Delta:   chunk.Text,
				State:   StateStreaming,
			}
			if !send(ctx, events, ev) {
				c.cancelled(gen)
				return true
			}
		}
		if chunk.Completed {
			c.complete(ctx, gen, events)
			return true
		}
	}
}

func (c *StreamingClient) transition(gen uint64, s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.state = s
	return true
}

func (c *StreamingClient) appendText(gen uint64, delta string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return "", false
	}
	c.text += delta
	return c.text, true
}

// finish moves the request identified by gen into a terminal state and
// returns the text it had accumulated. It reports false if the request is
// no longer the active one.
func (c *StreamingClient) finish(gen uint64, s State) (string, context.CancelFunc, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return "", nil, false
	}
	text := c.text
	cancel := c.cancel
	c.state = s
	c.text = ""
	c.cancel = nil
	return text, cancel, true
}

func (c *StreamingClient) complete(ctx context.Context, gen uint64, events chan<- Event) {
	if ctx.Err() != nil {
		c.cancelled(gen)
		return
	}
	text, cancel, ok := c.finish(gen, StateCompleted)
	if !ok {
		return
	}
	send(ctx, events, Event{
		Content: content.NewBuilder(text).Build().Finish(),
		Text:    text,
		State:   StateCompleted,
	})
	if cancel != nil {
		cancel()
	}
	c.logger.Debug("stream completed", "provider", c.provider.Name(), "chars", len(text))
}

func (c *StreamingClient) fail(ctx context.Context, gen uint64, events chan<- Event, err error) {
	if ctx.Err() != nil {
		c.cancelled(gen)
		return
	}
	text, cancel, ok := c.finish(gen, StateFailed)
	if !ok {
		return
	}
	send(ctx, events, Event{
		Content: content.NewBuilder(text).Build(),
		Text:    text,
		State:   StateFailed,
		Err:     err,
	})
	if cancel != nil {
		cancel()
	}
	c.logger.Debug("stream failed", "provider", c.provider.Name(), "error", err)
}

func (c *StreamingClient) cancelled(gen uint64) {
	if _, cancel, ok := c.finish(gen, StateCancelled); ok && cancel != nil {
		cancel()
	}
}

func send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
