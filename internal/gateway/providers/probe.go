package providers

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Probe checks whether the self-hosted inference server is reachable.
// It only informs default-model selection; it is never consulted once
// a model has been explicitly resolved.
type Probe struct {
	baseAddr   string
	httpClient *http.Client
}

// NewProbe creates a probe for the local server. The probe hits the
// server root, not the API prefix.
func NewProbe(baseURL string) *Probe {
	return &Probe{
		baseAddr: strings.TrimSuffix(baseURL, "/v1"),
		httpClient: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

// LocalAvailable reports reachability, swallowing every connection
// error into false.
func (p *Probe) LocalAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseAddr, nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
