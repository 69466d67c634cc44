package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ExternalClassifier is the optional out-of-process toxicity scorer.
// It returns a confidence in [0,1] that the text is toxic. Implementations
// are best-effort: callers swallow errors and continue without this layer.
type ExternalClassifier interface {
	Score(ctx context.Context, text string) (float64, error)
}

// HTTPClassifier scores text against a hosted toxicity model with a
// HuggingFace-style inference API: POST {"inputs": text} returns
// [[{"label": ..., "score": ...}, ...]].
type HTTPClassifier struct {
	url    string
	apiKey string
	client *http.Client
}

// NewHTTPClassifier creates a scorer for the given endpoint. The timeout
// bounds the whole request; it must stay short because relays wait on it.
func NewHTTPClassifier(url, apiKey string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

// Score returns the model's confidence that text is toxic.
func (c *HTTPClassifier) Score(ctx context.Context, text string) (float64, error) {
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return 0, fmt.Errorf("moderation: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("moderation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("moderation: external scorer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("moderation: external scorer status %d", resp.StatusCode)
	}

	var results [][]struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, fmt.Errorf("moderation: decode response: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	for _, item := range results[0] {
		if item.Label == "toxic" {
			return item.Score, nil
		}
	}
	return 0, nil
}
