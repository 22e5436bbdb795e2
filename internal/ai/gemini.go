package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiProvider streams from the Gemini streamGenerateContent endpoint
// with SSE framing.
type GeminiProvider struct {
	apiKey string
	model  string
	opts   providerOptions
}

func NewGeminiProvider(apiKey, model string, opts ...ProviderOption) *GeminiProvider {
	return &GeminiProvider{
		apiKey: apiKey,
		model:  model,
		opts:   applyProviderOptions(geminiBaseURL, opts),
	}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Configured() bool { return strings.TrimSpace(p.apiKey) != "" }

func (p *GeminiProvider) NewRequest(ctx context.Context, req Request, images []string) (*http.Request, error) {
	body, err := p.body(req, images)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", p.Name(), ErrEncodeRequest, err)
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse",
		strings.TrimRight(p.opts.baseURL, "/"), url.PathEscape(p.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)
	return httpReq, nil
}

func (p *GeminiProvider) body(req Request, images []string) ([]byte, error) {
	var contents []geminiContent
	for _, turn := range recentHistory(req.History) {
		role := "user"
		if turn.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: turn.Text}}})
	}
	parts := []geminiPart{{Text: req.Prompt}}
	for _, data := range images {
		parts = append(parts, geminiPart{InlineData: &geminiBlob{MimeType: "image/jpeg", Data: data}})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: parts})

	body, err := json.Marshal(geminiRequest{Contents: contents})
	if err != nil {
		return nil, err
	}
	if p.opts.temperature != nil {
		if body, err = sjson.SetBytes(body, "generationConfig.temperature", *p.opts.temperature); err != nil {
			return nil, err
		}
	}
	if p.opts.system != "" {
		if body, err = sjson.SetBytes(body, "system_instruction.parts.0.text", p.opts.system); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// Decode reads one GenerateContentResponse. Any finishReason other than
// the unspecified value marks completion.
func (p *GeminiProvider) Decode(doc []byte) Chunk {
	r := gjson.ParseBytes(doc)
	if msg := r.Get("error.message"); msg.Exists() {
		return Chunk{Err: &StreamError{Provider: p.Name(), Message: msg.String()}}
	}
	var sb strings.Builder
	r.Get("candidates.0.content.parts.#.text").ForEach(func(_, v gjson.Result) bool {
		sb.WriteString(v.String())
		return true
	})
	finish := r.Get("candidates.0.finishReason").String()
	return Chunk{
		Text:      sb.String(),
		Completed: finish != "" && finish != "FINISH_REASON_UNSPECIFIED",
	}
}
