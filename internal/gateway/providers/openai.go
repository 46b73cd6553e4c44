package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// EndpointRoute binds a model-name keyword to an OpenAI-compatible
// upstream and credential. Several distinct API providers speak this
// protocol behind different base URLs.
type EndpointRoute struct {
	Matcher string
	BaseURL string
	APIKey  string
}

// OpenAICompat serves the hosted OpenAI-compatible family. The
// upstream endpoint is selected per model from the route table; a
// model no route matches is an error.
type OpenAICompat struct {
	routes     []EndpointRoute
	httpClient *http.Client
}

// NewOpenAICompat creates the adapter with the configured routes.
func NewOpenAICompat(routes []EndpointRoute) *OpenAICompat {
	return &OpenAICompat{
		routes: routes,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Family returns the provider family served by this adapter.
func (p *OpenAICompat) Family() Family {
	return FamilyOpenAI
}

// clientFor picks the upstream whose matcher appears in the lowercased
// model name. Routes are checked in table order.
func (p *OpenAICompat) clientFor(model string) (*openai.Client, error) {
	lower := strings.ToLower(model)
	for _, route := range p.routes {
		if strings.Contains(lower, route.Matcher) {
			cfg := openai.DefaultConfig(route.APIKey)
			cfg.BaseURL = route.BaseURL
			cfg.HTTPClient = p.httpClient
			return openai.NewClientWithConfig(cfg), nil
		}
	}
	return nil, fmt.Errorf("no endpoint route matches model %q", model)
}

// Complete makes a chat completion request against the matched
// upstream.
func (p *OpenAICompat) Complete(ctx context.Context, req Request) (*Result, error) {
	client, err := p.clientFor(req.Model)
	if err != nil {
		return nil, err
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    chatMessages(req),
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI-compatible API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI-compatible API returned no choices for model %q", req.Model)
	}

	return &Result{
		Content: resp.Choices[0].Message.Content,
		Usage:   normalizeUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens),
	}, nil
}
