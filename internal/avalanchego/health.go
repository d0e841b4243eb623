package avalanchego

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HealthClient probes a node's health API.
type HealthClient struct {
	httpClient *http.Client
}

// NewHealthClient creates a health probe client with a short request
// timeout.
func NewHealthClient() *HealthClient {
	return &HealthClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// CheckLiveness calls the node's liveness endpoint and returns an
// error unless it reports healthy.
func (h *HealthClient) CheckLiveness(ctx context.Context, baseURL string) error {
	url := baseURL + "/ext/health/liveness"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build liveness request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("liveness probe failed for %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("liveness probe for %s returned status %d", baseURL, resp.StatusCode)
	}

	var body struct {
		Healthy bool `json:"healthy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode liveness response from %s: %w", baseURL, err)
	}
	if !body.Healthy {
		return fmt.Errorf("node at %s reports unhealthy", baseURL)
	}
	return nil
}
