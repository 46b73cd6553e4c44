package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const googleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Google serves the hosted Google family over the generativelanguage
// REST API. The system context is sent as structured systemInstruction
// parts rather than one concatenated block.
type Google struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// googleRequest represents a generateContent request
type googleRequest struct {
	Contents          []googleContent         `json:"contents"`
	SystemInstruction *googleContent          `json:"systemInstruction,omitempty"`
	SafetySettings    []googleSafetySetting   `json:"safetySettings,omitempty"`
	GenerationConfig  *googleGenerationConfig `json:"generationConfig,omitempty"`
}

// googleContent represents content in Google format
type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

// googlePart represents a part of the content
type googlePart struct {
	Text string `json:"text"`
}

type googleSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type googleGenerationConfig struct {
	Temperature float32 `json:"temperature"`
}

// googleResponse represents a generateContent response
type googleResponse struct {
	Candidates    []googleCandidate `json:"candidates"`
	UsageMetadata googleUsage       `json:"usageMetadata"`
}

type googleCandidate struct {
	Content      googleContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type googleUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Character chat needs the model to speak freely in persona, so every
// safety category is switched off.
var googleSafetyOff = []googleSafetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "OFF"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "OFF"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "OFF"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "OFF"},
	{Category: "HARM_CATEGORY_CIVIC_INTEGRITY", Threshold: "OFF"},
}

// NewGoogle creates the Google adapter.
func NewGoogle(apiKey string) *Google {
	return &Google{
		apiKey:  apiKey,
		baseURL: googleBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Family returns the provider family served by this adapter.
func (p *Google) Family() Family {
	return FamilyGoogle
}

// googleSystemParts maps the system context to ordered instruction
// parts, preserving the same order and markers as the chat-style
// backends.
func googleSystemParts(sc SystemContext) []googlePart {
	blocks := systemParts(sc)
	parts := make([]googlePart, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, googlePart{Text: b})
	}
	return parts
}

// googleContents maps rolling history into Google's role vocabulary
// ("character" becomes "model") and appends the new user turn.
func googleContents(req Request) []googleContent {
	contents := make([]googleContent, 0, len(req.History)+1)
	for _, m := range req.History {
		role := "model"
		if m.Role == RoleUser {
			role = "user"
		}
		contents = append(contents, googleContent{
			Role:  role,
			Parts: []googlePart{{Text: m.Content}},
		})
	}
	contents = append(contents, googleContent{
		Role:  "user",
		Parts: []googlePart{{Text: req.Prompt}},
	})
	return contents
}

// Complete makes a generateContent request.
func (p *Google) Complete(ctx context.Context, req Request) (*Result, error) {
	googleReq := googleRequest{
		Contents:          googleContents(req),
		SystemInstruction: &googleContent{Parts: googleSystemParts(req.System)},
		SafetySettings:    googleSafetyOff,
		GenerationConfig:  &googleGenerationConfig{Temperature: 1.0},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, req.Model, p.apiKey)

	reqBody, err := json.Marshal(googleReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("Google API error: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Google API error (status %d): %s", resp.StatusCode, string(body))
	}

	var googleResp googleResponse
	if err := json.Unmarshal(body, &googleResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(googleResp.Candidates) == 0 {
		return nil, fmt.Errorf("Google API returned no candidates for model %q", req.Model)
	}

	var text strings.Builder
	for _, part := range googleResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	u := googleResp.UsageMetadata
	return &Result{
		Content: text.String(),
		Usage:   normalizeUsage(u.PromptTokenCount, u.CandidatesTokenCount, u.TotalTokenCount),
	}, nil
}
