package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenRouter_RejectsModelOutsideAllowList(t *testing.T) {
	p := NewOpenRouter("key", "https://example.com/", "Example")

	_, err := p.Complete(context.Background(), Request{
		Model:  "openai/gpt-4o",
		Prompt: "hi",
	})
	if err == nil || !strings.Contains(err.Error(), "not allowed via OpenRouter") {
		t.Errorf("Complete error = %v, want allow-list rejection", err)
	}
}

func TestOpenRouter_AllowListCoversCatalog(t *testing.T) {
	for _, model := range []string{
		"deepseek/deepseek-chat-v3-0324:free",
		"deepseek/deepseek-r1-0528:free",
		"tngtech/deepseek-r1t2-chimera:free",
		"google/gemini-2.0-flash-exp:free",
		"mistralai/mistral-nemo:free",
	} {
		if !openRouterAllowed[model] {
			t.Errorf("model %q missing from allow list", model)
		}
	}
}

func TestHeaderTransport_AddsAttributionHeaders(t *testing.T) {
	var gotReferer, gotTitle string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
	}))
	defer srv.Close()

	client := &http.Client{Transport: &headerTransport{
		headers: map[string]string{
			"HTTP-Referer": "https://example.com/",
			"X-Title":      "Example",
		},
	}}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if gotReferer != "https://example.com/" || gotTitle != "Example" {
		t.Errorf("headers = (%q, %q), want attribution headers set", gotReferer, gotTitle)
	}
}
