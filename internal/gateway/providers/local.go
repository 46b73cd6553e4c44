package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Local serves the self-hosted inference server, which speaks the
// OpenAI protocol. Local inference is free and unmetered.
type Local struct {
	client *openai.Client
}

// NewLocal creates the adapter for the self-hosted server. The server
// ignores credentials but the client requires one.
func NewLocal(baseURL string) *Local {
	cfg := openai.DefaultConfig("0")
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{
		Timeout: 60 * time.Second,
	}
	return &Local{client: openai.NewClientWithConfig(cfg)}
}

// Family returns the provider family served by this adapter.
func (p *Local) Family() Family {
	return FamilyLocal
}

// Complete makes a chat completion request to the local server.
func (p *Local) Complete(ctx context.Context, req Request) (*Result, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    chatMessages(req),
		Temperature: 1.0,
	})
	if err != nil {
		return nil, fmt.Errorf("local API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("local API returned no choices")
	}

	return &Result{
		Content: resp.Choices[0].Message.Content,
		Usage:   normalizeUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens),
	}, nil
}
