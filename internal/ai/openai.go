package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const openAIBaseURL = "https://api.openai.com"

// OpenAIProvider streams from the Responses API.
type OpenAIProvider struct {
	apiKey string
	model  string
	opts   providerOptions
}

func NewOpenAIProvider(apiKey, model string, opts ...ProviderOption) *OpenAIProvider {
	return &OpenAIProvider{
		apiKey: apiKey,
		model:  model,
		opts:   applyProviderOptions(openAIBaseURL, opts),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Configured() bool { return strings.TrimSpace(p.apiKey) != "" }

func (p *OpenAIProvider) NewRequest(ctx context.Context, req Request, images []string) (*http.Request, error) {
	body, err := p.body(req, images)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", p.Name(), ErrEncodeRequest, err)
	}
	endpoint := strings.TrimRight(p.opts.baseURL, "/") + "/v1/responses"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	return httpReq, nil
}

func (p *OpenAIProvider) body(req Request, images []string) ([]byte, error) {
	var input []openAIInput
	for _, turn := range recentHistory(req.History) {
		if turn.Role == RoleAssistant {
			input = append(input, openAIInput{Role: "assistant", Content: []openAIPart{{Type: "output_text", Text: turn.Text}}})
			continue
		}
		input = append(input, openAIInput{Role: "user", Content: []openAIPart{{Type: "input_text", Text: turn.Text}}})
	}
	parts := []openAIPart{{Type: "input_text", Text: req.Prompt}}
	for _, data := range images {
		parts = append(parts, openAIPart{Type: "input_image", ImageURL: "data:image/jpeg;base64," + data})
	}
	input = append(input, openAIInput{Role: "user", Content: parts})

	body, err := json.Marshal(openAIRequest{Model: p.model, Stream: true, Input: input})
	if err != nil {
		return nil, err
	}
	if p.opts.temperature != nil {
		if body, err = sjson.SetBytes(body, "temperature", *p.opts.temperature); err != nil {
			return nil, err
		}
	}
	if p.opts.system != "" {
		if body, err = sjson.SetBytes(body, "instructions", p.opts.system); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// Decode handles both streamed events (typed by "type") and a bare response
// object, which carries its text under output[].content[].text.
func (p *OpenAIProvider) Decode(doc []byte) Chunk {
	r := gjson.ParseBytes(doc)
	switch typ := r.Get("type").String(); typ {
	case "response.output_text.delta":
		return Chunk{Text: r.Get("delta").String()}
	case "response.completed":
		return Chunk{Completed: true}
	case "response.failed":
		return Chunk{Err: &StreamError{Provider: p.Name(), Message: r.Get("response.error.message").String()}}
	case "error":
		return Chunk{Err: &StreamError{Provider: p.Name(), Message: r.Get("message").String()}}
	case "":
	default:
		// Other lifecycle events carry no text.
		return Chunk{}
	}

	if msg := r.Get("error.message"); msg.Exists() {
		return Chunk{Err: &StreamError{Provider: p.Name(), Message: msg.String()}}
	}
	var sb strings.Builder
	r.Get("output.#.content.#.text").ForEach(func(_, item gjson.Result) bool {
		item.ForEach(func(_, v gjson.Result) bool {
			sb.WriteString(v.String())
			return true
		})
		return true
	})
	return Chunk{
		Text:      sb.String(),
		Completed: r.Get("status").String() == "completed",
	}
}
