package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeminiDecode(t *testing.T) {
	p := NewGeminiProvider("k", "m")
	tests := []struct {
		name string
		doc  string
		want Chunk
	}{
		{"text", `{"candidates":[{"content":{"parts":[{"text":"a"},{"text":"b"}]}}]}`, Chunk{Text: "ab"}},
		{"finish", `{"candidates":[{"content":{"parts":[{"text":"z"}]},"finishReason":"STOP"}]}`, Chunk{Text: "z", Completed: true}},
		{"unspecified finish", `{"candidates":[{"finishReason":"FINISH_REASON_UNSPECIFIED"}]}`, Chunk{}},
		{"usage only", `{"usageMetadata":{"totalTokenCount":12}}`, Chunk{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Decode([]byte(tt.doc)))
		})
	}
}

func TestGeminiDecode_Error(t *testing.T) {
	chunk := NewGeminiProvider("k", "m").Decode([]byte(`{"error":{"code":400,"message":"bad"}}`))
	var se *StreamError
	assert.True(t, errors.As(chunk.Err, &se))
	assert.Equal(t, "gemini stream error: bad", se.Error())
}

func TestOpenAIDecode(t *testing.T) {
	p := NewOpenAIProvider("k", "m")
	tests := []struct {
		name string
		doc  string
		want Chunk
	}{
		{"delta", `{"type":"response.output_text.delta","delta":"hi"}`, Chunk{Text: "hi"}},
		{"lifecycle", `{"type":"response.in_progress","response":{"status":"in_progress"}}`, Chunk{}},
		{"completed event", `{"type":"response.completed","response":{"status":"completed","output":[{"content":[{"text":"all"}]}]}}`, Chunk{Completed: true}},
		{"bare response", `{"status":"completed","output":[{"content":[{"text":"one "},{"text":"two"}]},{"content":[{"text":" three"}]}]}`, Chunk{Text: "one two three", Completed: true}},
		{"bare in progress", `{"status":"in_progress","output":[]}`, Chunk{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Decode([]byte(tt.doc)))
		})
	}
}

func TestOpenAIDecode_Errors(t *testing.T) {
	p := NewOpenAIProvider("k", "m")
	for _, doc := range []string{
		`{"type":"error","message":"rate limited"}`,
		`{"type":"response.failed","response":{"error":{"message":"rate limited"}}}`,
		`{"error":{"message":"rate limited"}}`,
	} {
		chunk := p.Decode([]byte(doc))
		var se *StreamError
		if assert.True(t, errors.As(chunk.Err, &se), doc) {
			assert.Equal(t, "rate limited", se.Message)
		}
	}
}

func TestTransportErrorMessages(t *testing.T) {
	assert.Equal(t, "openai API error (status 500): boom",
		(&TransportError{Provider: "openai", StatusCode: 500, Body: "boom"}).Error())
	assert.Equal(t, "openai API error (status 502)",
		(&TransportError{Provider: "openai", StatusCode: 502}).Error())
	inner := errors.New("dial tcp: refused")
	err := &TransportError{Provider: "gemini", Err: inner}
	assert.Equal(t, "gemini request failed: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateRequesting.Terminal())
}
