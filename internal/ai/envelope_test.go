package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drainScanner collects every document the scanner can produce right now.
func drainScanner(s *envelopeScanner) []string {
	var docs []string
	for {
		pending := len(s.Pending())
		doc, ok, err := s.Next()
		if err != nil {
			if len(s.Pending()) == pending {
				return docs
			}
			continue
		}
		if !ok {
			return docs
		}
		docs = append(docs, string(doc))
	}
}

func TestEnvelopeScanner_Framings(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
		done bool
	}{
		{
			name: "sse",
			in:   "data: {\"a\":1}\r\n\r\ndata: {\"a\":2}\n\n",
			want: []string{`{"a":1}`, `{"a":2}`},
		},
		{
			name: "sse with event and comment lines",
			in:   ": keep-alive\nevent: response.output_text.delta\nid: 7\ndata: {\"a\":1}\n\n",
			want: []string{`{"a":1}`},
		},
		{
			name: "json array",
			in:   "[{\"a\":1}\n,\r\n{\"a\":2}\n]",
			want: []string{`{"a":1}`, `{"a":2}`},
		},
		{
			name: "pretty printed object",
			in:   "{\n  \"a\": {\n    \"b\": [1, 2]\n  }\n}\n",
			want: []string{"{\n  \"a\": {\n    \"b\": [1, 2]\n  }\n}"},
		},
		{
			name: "done marker",
			in:   "data: {\"a\":1}\n\ndata: [DONE]\n\n",
			want: []string{`{"a":1}`},
			done: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s envelopeScanner
			s.Write([]byte(tt.in))
			assert.Equal(t, tt.want, drainScanner(&s))
			assert.Equal(t, tt.done, s.Done())
		})
	}
}

func TestEnvelopeScanner_ByteAtATime(t *testing.T) {
	in := "event: x\ndata: {\"t\":\"he said \\\"hi\\\"\"}\n\ndata: {\"t\":\"[x]\"}\n\ndata: [DONE]\n\n"
	var s envelopeScanner
	var docs []string
	for i := 0; i < len(in); i++ {
		s.Write([]byte{in[i]})
		docs = append(docs, drainScanner(&s)...)
	}
	assert.Equal(t, []string{`{"t":"he said \"hi\""}`, `{"t":"[x]"}`}, docs)
	assert.True(t, s.Done())
}

func TestEnvelopeScanner_PartialDocumentIsNotReady(t *testing.T) {
	var s envelopeScanner
	s.Write([]byte(`data: {"candidates":[{"content":{"parts":[{"text":"Hel`))

	doc, ok, err := s.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, doc)

	s.Write([]byte(`lo"}]}}]}` + "\n\n"))
	doc, ok, err = s.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"candidates":[{"content":{"parts":[{"text":"Hello"}]}}]}`, string(doc))
}

func TestEnvelopeScanner_SkipsMalformedLine(t *testing.T) {
	var s envelopeScanner
	s.Write([]byte("data: {oops\n\ndata: {\"ok\":true}\n\n"))

	_, ok, err := s.Next()
	assert.Error(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{`{"ok":true}`}, drainScanner(&s))
}

func TestEnvelopeScanner_MalformedWithoutNewlineWaits(t *testing.T) {
	var s envelopeScanner
	s.Write([]byte("data: {oops"))

	pending := len(s.Pending())
	_, ok, err := s.Next()
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, pending-len("data: "), len(s.Pending()), "only the prefix is consumed")

	_, ok, err = s.Next()
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestEnvelopeScanner_PartialMarkers(t *testing.T) {
	var s envelopeScanner
	s.Write([]byte("da"))
	assert.Empty(t, drainScanner(&s))
	s.Write([]byte("ta: [DO"))
	assert.Empty(t, drainScanner(&s))
	assert.False(t, s.Done())
	s.Write([]byte("NE]\n"))
	assert.Empty(t, drainScanner(&s))
	assert.True(t, s.Done())
}
