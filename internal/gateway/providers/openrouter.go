package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// openRouterAllowed is the fixed set of free aggregator-exposed models
// this adapter will dispatch to. Anything else is rejected before the
// remote call.
var openRouterAllowed = map[string]bool{
	"deepseek/deepseek-chat-v3-0324:free":  true,
	"deepseek/deepseek-r1-0528:free":       true,
	"tngtech/deepseek-r1t2-chimera:free":   true,
	"google/gemini-2.0-flash-exp:free":     true,
	"mistralai/mistral-nemo:free":          true,
}

// OpenRouter serves the aggregator family.
type OpenRouter struct {
	client *openai.Client
}

// headerTransport adds the aggregator's attribution headers to every
// request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	clone := r.Clone(r.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

// NewOpenRouter creates the aggregator adapter.
func NewOpenRouter(apiKey, referer, title string) *OpenRouter {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = openRouterBaseURL
	cfg.HTTPClient = &http.Client{
		Timeout: 60 * time.Second,
		Transport: &headerTransport{
			headers: map[string]string{
				"HTTP-Referer": referer,
				"X-Title":      title,
			},
		},
	}
	return &OpenRouter{client: openai.NewClientWithConfig(cfg)}
}

// Family returns the provider family served by this adapter.
func (p *OpenRouter) Family() Family {
	return FamilyOpenRouter
}

// Complete makes a chat completion request through the aggregator.
func (p *OpenRouter) Complete(ctx context.Context, req Request) (*Result, error) {
	if !openRouterAllowed[req.Model] {
		return nil, fmt.Errorf("model %q is not allowed via OpenRouter", req.Model)
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    chatMessages(req),
		Temperature: 0.9,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenRouter API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenRouter API returned no choices for model %q", req.Model)
	}

	return &Result{
		Content: resp.Choices[0].Message.Content,
		Usage:   normalizeUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens),
	}, nil
}
