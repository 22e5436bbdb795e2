package ai

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/arin/cuecard/internal/content"
)

// --- helpers ---

func geminiChunk(text, finish string) string {
	doc := fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]}`, text)
	if finish != "" {
		doc += fmt.Sprintf(`,"finishReason":%q`, finish)
	}
	return doc + `}]}`
}

// sseServer writes each frame as its own flushed write.
func sseServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, f := range frames {
			_, _ = io.WriteString(w, f)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// blockingServer sends one delta and then holds the stream open until the
// client goes away.
func blockingServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: "+geminiChunk("partial", "")+"\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newGeminiClient(srv *httptest.Server, opts ...ProviderOption) *StreamingClient {
	opts = append([]ProviderOption{WithBaseURL(srv.URL)}, opts...)
	return NewStreamingClient(NewGeminiProvider("test-key", "gemini-test", opts...))
}

func collectEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not finish")
			return out
		}
	}
}

func markdownOf(t *testing.T, sc content.StreamContent) string {
	t.Helper()
	require.Len(t, sc.Items, 1)
	md, ok := sc.Items[0].Value.(content.Markdown)
	require.True(t, ok, "expected markdown item, got %T", sc.Items[0].Value)
	return md.Content
}

// --- lifecycle ---

func TestNewStreamingClient_StartsIdle(t *testing.T) {
	c := NewStreamingClient(NewGeminiProvider("k", "m"))
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.Text())
}

func TestCancel_WhenIdleIsNoop(t *testing.T) {
	c := NewStreamingClient(NewGeminiProvider("k", "m"))
	c.Cancel()
	c.Cancel()
	assert.Equal(t, StateIdle, c.State())
}

func TestGenerate_MissingCredential(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	for _, p := range []Provider{
		NewGeminiProvider("", "m", WithBaseURL(srv.URL)),
		NewOpenAIProvider("  ", "m", WithBaseURL(srv.URL)),
	} {
		c := NewStreamingClient(p)
		events, err := c.Generate(context.Background(), Request{Prompt: "hi"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingCredential))
		assert.Contains(t, err.Error(), p.Name())
		assert.Nil(t, events)
		assert.Equal(t, StateIdle, c.State())
	}
	assert.Zero(t, hits.Load(), "no request may be sent without a credential")
}

// --- streaming ---

func TestGenerate_GeminiStreamsInOrder(t *testing.T) {
	srv := sseServer(t,
		"data: "+geminiChunk("Hel", "")+"\r\n\r\n",
		"data: "+geminiChunk("lo", "")+"\r\n\r\n",
		"data: "+geminiChunk(" world", "STOP")+"\r\n\r\n",
	)
	c := newGeminiClient(srv)

	events, err := c.Generate(context.Background(), Request{Prompt: "greet"})
	require.NoError(t, err)
	got := collectEvents(t, events)

	require.Len(t, got, 4)
	wantText := []string{"Hel", "Hello", "Hello world"}
	wantDelta := []string{"Hel", "lo", " world"}
	for i := 0; i < 3; i++ {
		assert.Equal(t, StateStreaming, got[i].State)
		assert.Equal(t, wantText[i], got[i].Text)
		assert.Equal(t, wantDelta[i], got[i].Delta)
		assert.Equal(t, wantText[i], markdownOf(t, got[i].Content))
		assert.False(t, got[i].Content.Finished, "only the terminal event is finished")
		assert.NoError(t, got[i].Err)
	}

	last := got[3]
	assert.Equal(t, StateCompleted, last.State)
	assert.True(t, last.Content.Finished)
	assert.Equal(t, "Hello world", markdownOf(t, last.Content))
	assert.Empty(t, last.Delta)

	assert.Equal(t, StateCompleted, c.State())
	assert.Empty(t, c.Text(), "buffers are cleared after completion")
}

func TestGenerate_SplitEnvelopeIsNotSurfaced(t *testing.T) {
	doc := "data: " + geminiChunk("whole", "STOP") + "\n\n"
	half := len(doc) / 2
	srv := sseServer(t, doc[:half], doc[half:])
	c := newGeminiClient(srv)

	events, err := c.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	got := collectEvents(t, events)

	require.Len(t, got, 2)
	assert.Equal(t, "whole", got[0].Text)
	assert.Equal(t, StateCompleted, got[1].State)
}

func TestGenerate_InvalidEnvelopeIsIgnored(t *testing.T) {
	srv := sseServer(t,
		"data: {not json\n\n",
		"data: "+geminiChunk("ok", "STOP")+"\n\n",
	)
	c := newGeminiClient(srv)

	events, err := c.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	text, err := Collect(events)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestGenerate_EOFCompletes(t *testing.T) {
	srv := sseServer(t, "data: "+geminiChunk("no marker", "")+"\n\n")
	c := newGeminiClient(srv)

	events, err := c.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	got := collectEvents(t, events)

	require.Len(t, got, 2)
	assert.Equal(t, StateCompleted, got[1].State)
	assert.True(t, got[1].Content.Finished)
	assert.Equal(t, "no marker", got[1].Text)
}

func TestGenerate_EmptyResponseCompletesWithNoItems(t *testing.T) {
	srv := sseServer(t)
	c := newGeminiClient(srv)

	events, err := c.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	got := collectEvents(t, events)

	require.Len(t, got, 1)
	assert.Equal(t, StateCompleted, got[0].State)
	assert.True(t, got[0].Content.Finished)
	assert.Empty(t, got[0].Content.Items)
}

func TestGenerate_OpenAIDeltasAndCompletion(t *testing.T) {
	srv := sseServer(t,
		"event: response.created\ndata: {\"type\":\"response.created\",\"response\":{\"status\":\"in_progress\"}}\n\n",
		"event: response.output_text.delta\ndata: {\"type\":\"response.output_text.delta\",\"delta\":\"Two \"}\n\n",
		"event: response.output_text.delta\ndata: {\"type\":\"response.output_text.delta\",\"delta\":\"sum\"}\n\n",
		"event: response.completed\ndata: {\"type\":\"response.completed\",\"response\":{\"status\":\"completed\",\"output\":[{\"content\":[{\"type\":\"output_text\",\"text\":\"Two sum\"}]}]}}\n\n",
	)
	c := NewStreamingClient(NewOpenAIProvider("sk-test", "gpt-test", WithBaseURL(srv.URL)))

	events, err := c.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	got := collectEvents(t, events)

	require.Len(t, got, 3)
	assert.Equal(t, "Two ", got[0].Text)
	assert.Equal(t, "Two sum", got[1].Text)
	assert.Equal(t, StateCompleted, got[2].State)
	assert.Equal(t, "Two sum", got[2].Text, "completion must not append the full text again")
}

func TestGenerate_DoneMarkerCompletes(t *testing.T) {
	var tail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: {\"type\":\"response.output_text.delta\",\"delta\":\"A\"}\n\ndata: [DONE]\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
			tail.Store(true)
		}
	}))
	defer srv.Close()
	c := NewStreamingClient(NewOpenAIProvider("sk", "m", WithBaseURL(srv.URL)))

	events, err := c.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	got := collectEvents(t, events)

	require.Len(t, got, 2)
	assert.Equal(t, StateCompleted, got[1].State)
	assert.Equal(t, "A", got[1].Text)
	assert.False(t, tail.Load(), "client should stop reading after [DONE]")
}

// --- failures ---

func TestGenerate_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"API key not valid"}}`)
	}))
	defer srv.Close()
	c := newGeminiClient(srv)

	events, err := c.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	got := collectEvents(t, events)

	require.Len(t, got, 1)
	assert.Equal(t, StateFailed, got[0].State)
	var te *TransportError
	require.True(t, errors.As(got[0].Err, &te))
	assert.Equal(t, http.StatusUnauthorized, te.StatusCode)
	assert.Equal(t, "gemini", te.Provider)
	assert.Contains(t, te.Body, "API key not valid")
	assert.Contains(t, te.Error(), "status 401")
	assert.Equal(t, StateFailed, c.State())
}

func TestGenerate_UnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewStreamingClient(NewGeminiProvider("k", "m", WithBaseURL(url)))
	events, err := c.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)

	_, err = Collect(events)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Zero(t, te.StatusCode)
	assert.Error(t, te.Unwrap())
}

func TestGenerate_InStreamProviderError(t *testing.T) {
	srv := sseServer(t,
		"data: "+geminiChunk("so far", "")+"\n\n",
		"data: {\"error\":{\"code\":429,\"message\":\"quota exceeded\"}}\n\n",
	)
	c := newGeminiClient(srv)

	events, err := c.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	got := collectEvents(t, events)

	require.Len(t, got, 2)
	assert.Equal(t, StateFailed, got[1].State)
	var se *StreamError
	require.True(t, errors.As(got[1].Err, &se))
	assert.Equal(t, "quota exceeded", se.Message)
	assert.Equal(t, "so far", got[1].Text)
	assert.False(t, got[1].Content.Finished)
}

func TestGenerate_ResourceTimeoutFails(t *testing.T) {
	srv := blockingServer(t)
	c := NewStreamingClient(
		NewGeminiProvider("k", "m", WithBaseURL(srv.URL)),
		WithTimeouts(time.Second, 200*time.Millisecond),
	)

	events, err := c.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	got := collectEvents(t, events)

	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, StateFailed, last.State)
	var te *TransportError
	assert.True(t, errors.As(last.Err, &te))
}

// --- cancellation ---

func TestCancel_ClosesWithoutError(t *testing.T) {
	srv := blockingServer(t)
	c := newGeminiClient(srv)

	events, err := c.Generate(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, "partial", first.Text)
	assert.Equal(t, "partial", c.Text())

	c.Cancel()
	for _, ev := range collectEvents(t, events) {
		assert.NoError(t, ev.Err)
		assert.NotEqual(t, StateCompleted, ev.State)
	}
	assert.Equal(t, StateCancelled, c.State())
	assert.Empty(t, c.Text())
}

func TestGenerate_ContextCancelClosesWithoutError(t *testing.T) {
	srv := blockingServer(t)
	c := newGeminiClient(srv)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := c.Generate(ctx, Request{Prompt: "x"})
	require.NoError(t, err)
	<-events

	cancel()
	for _, ev := range collectEvents(t, events) {
		assert.NoError(t, ev.Err)
	}
	assert.Eventually(t, func() bool { return c.State() == StateCancelled }, time.Second, 10*time.Millisecond)
}

func TestGenerate_NewRequestCancelsPrevious(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = io.WriteString(w, "data: "+geminiChunk("old", "")+"\n\n")
			w.(http.Flusher).Flush()
			<-r.Context().Done()
			return
		}
		_, _ = io.WriteString(w, "data: "+geminiChunk("new", "STOP")+"\n\n")
	}))
	defer srv.Close()
	c := newGeminiClient(srv)

	oldEvents, err := c.Generate(context.Background(), Request{Prompt: "one"})
	require.NoError(t, err)
	<-oldEvents

	newEvents, err := c.Generate(context.Background(), Request{Prompt: "two"})
	require.NoError(t, err)

	for _, ev := range collectEvents(t, oldEvents) {
		assert.NoError(t, ev.Err, "superseded stream must not report an error")
	}
	text, err := Collect(newEvents)
	require.NoError(t, err)
	assert.Equal(t, "new", text)
	assert.Equal(t, StateCompleted, c.State())
}

// --- callback adapter ---

func TestGenerateStructuredStreamingContent(t *testing.T) {
	srv := sseServer(t,
		"data: "+geminiChunk("a", "")+"\n\n",
		"data: "+geminiChunk("b", "STOP")+"\n\n",
	)
	c := newGeminiClient(srv)

	var updates []content.StreamContent
	var errs []error
	c.GenerateStructuredStreamingContent(context.Background(), "x", nil,
		func(sc content.StreamContent) { updates = append(updates, sc) },
		func(err error) { errs = append(errs, err) },
	)

	assert.Empty(t, errs)
	require.Len(t, updates, 3)
	assert.False(t, updates[0].Finished)
	assert.False(t, updates[1].Finished)
	assert.True(t, updates[2].Finished)
	assert.Equal(t, "ab", updates[2].Text())
}

func TestGenerateStructuredStreamingContent_MissingCredential(t *testing.T) {
	c := NewStreamingClient(NewOpenAIProvider("", "m"))

	var updates int
	var got error
	c.GenerateStructuredStreamingContent(context.Background(), "x", nil,
		func(content.StreamContent) { updates++ },
		func(err error) { got = err },
	)

	assert.Zero(t, updates)
	assert.ErrorIs(t, got, ErrMissingCredential)
}

// --- request bodies ---

// captureServer records the request body and answers with a finished chunk.
func captureServer(t *testing.T, answer string) (*httptest.Server, func() (*http.Request, []byte)) {
	t.Helper()
	var (
		req  *http.Request
		body []byte
		done = make(chan struct{}, 1)
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		req = r
		_, _ = io.WriteString(w, answer)
		done <- struct{}{}
	}))
	t.Cleanup(srv.Close)
	return srv, func() (*http.Request, []byte) {
		<-done
		return req, body
	}
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img
}

func TestGeminiRequestBody(t *testing.T) {
	srv, captured := captureServer(t, "data: "+geminiChunk("ok", "STOP")+"\n\n")
	c := newGeminiClient(srv, WithTemperature(0.2), WithSystemInstruction("be brief"))

	events, err := c.Generate(context.Background(), Request{
		Prompt:  "solve this",
		Images:  []image.Image{testImage(), nil, image.NewRGBA(image.Rectangle{})},
		History: []Turn{{Role: RoleUser, Text: "q1"}, {Role: RoleAssistant, Text: "a1"}},
	})
	require.NoError(t, err)
	_, err = Collect(events)
	require.NoError(t, err)

	req, body := captured()
	assert.Equal(t, "/v1beta/models/gemini-test:streamGenerateContent", req.URL.Path)
	assert.Equal(t, "sse", req.URL.Query().Get("alt"))
	assert.Equal(t, "test-key", req.Header.Get("x-goog-api-key"))

	doc := gjson.ParseBytes(body)
	assert.Equal(t, int64(3), doc.Get("contents.#").Int())
	assert.Equal(t, "model", doc.Get("contents.1.role").String())
	assert.Equal(t, "solve this", doc.Get("contents.2.parts.0.text").String())
	assert.Equal(t, int64(2), doc.Get("contents.2.parts.#").Int(), "undrawable images are dropped")
	assert.Equal(t, "image/jpeg", doc.Get("contents.2.parts.1.inline_data.mime_type").String())
	assert.NotEmpty(t, doc.Get("contents.2.parts.1.inline_data.data").String())
	assert.InDelta(t, 0.2, doc.Get("generationConfig.temperature").Float(), 1e-9)
	assert.Equal(t, "be brief", doc.Get("system_instruction.parts.0.text").String())
}

func TestOpenAIRequestBody(t *testing.T) {
	srv, captured := captureServer(t, "data: {\"type\":\"response.completed\"}\n\n")
	c := NewStreamingClient(NewOpenAIProvider("sk-1", "gpt-test", WithBaseURL(srv.URL)))

	events, err := c.Generate(context.Background(), Request{
		Prompt:  "what is this",
		Images:  []image.Image{testImage()},
		History: []Turn{{Role: RoleAssistant, Text: "earlier"}},
	})
	require.NoError(t, err)
	_, err = Collect(events)
	require.NoError(t, err)

	req, body := captured()
	assert.Equal(t, "/v1/responses", req.URL.Path)
	assert.Equal(t, "Bearer sk-1", req.Header.Get("Authorization"))

	doc := gjson.ParseBytes(body)
	assert.Equal(t, "gpt-test", doc.Get("model").String())
	assert.True(t, doc.Get("stream").Bool())
	assert.Equal(t, "output_text", doc.Get("input.0.content.0.type").String())
	assert.Equal(t, "input_text", doc.Get("input.1.content.0.type").String())
	assert.Equal(t, "input_image", doc.Get("input.1.content.1.type").String())
	assert.Contains(t, doc.Get("input.1.content.1.image_url").String(), "data:image/jpeg;base64,")
	assert.False(t, doc.Get("temperature").Exists())
	assert.False(t, doc.Get("instructions").Exists())
}

func TestRequestHistoryIsCapped(t *testing.T) {
	srv, captured := captureServer(t, "data: "+geminiChunk("ok", "STOP")+"\n\n")
	c := newGeminiClient(srv)

	var history []Turn
	for i := 0; i < maxHistory+5; i++ {
		history = append(history, Turn{Role: RoleUser, Text: fmt.Sprintf("turn %d", i)})
	}
	events, err := c.Generate(context.Background(), Request{Prompt: "now", History: history})
	require.NoError(t, err)
	_, _ = Collect(events)

	_, body := captured()
	doc := gjson.ParseBytes(body)
	assert.Equal(t, int64(maxHistory+1), doc.Get("contents.#").Int())
	assert.Equal(t, "turn 5", doc.Get("contents.0.parts.0.text").String())
}
