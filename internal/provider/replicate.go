package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"atelier/internal/config"
	"atelier/internal/pkg/httpclient"
)

// replicateClient calls Replicate's predictions API in synchronous mode
// ("Prefer: wait" holds the connection open until the prediction settles).
type replicateClient struct {
	http    *httpclient.Client
	baseURL string
}

func newReplicateClient(cfg config.ProvidersConfig) *replicateClient {
	return &replicateClient{
		http: httpclient.New().
			WithTimeout(cfg.RequestTimeout).
			WithBearerToken(cfg.ReplicateToken).
			WithHeader("Prefer", "wait"),
		baseURL: strings.TrimRight(cfg.ReplicateAPIURL, "/"),
	}
}

func (c *replicateClient) Name() Name {
	return Replicate
}

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

func (c *replicateClient) Generate(ctx context.Context, model string, params map[string]interface{}) ([]Artifact, error) {
	url := fmt.Sprintf("%s/models/%s/predictions", c.baseURL, strings.Trim(model, "/"))
	payload := map[string]interface{}{"input": params}

	body, status, err := c.http.Post(ctx, url, payload)
	if err != nil {
		return nil, fmt.Errorf("replicate request: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("replicate returned %d: %s", status, errorText(body))
	}

	var pred replicatePrediction
	if err := json.Unmarshal(body, &pred); err != nil {
		return nil, fmt.Errorf("replicate response decode: %w", err)
	}
	if pred.Status == "failed" || pred.Status == "canceled" {
		msg := pred.Error
		if msg == "" {
			msg = "prediction " + pred.Status
		}
		return nil, fmt.Errorf("replicate prediction %s: %s", pred.ID, msg)
	}

	urls, err := outputURLs(pred.Output)
	if err != nil {
		return nil, fmt.Errorf("replicate prediction %s: %w", pred.ID, err)
	}

	artifacts := make([]Artifact, 0, len(urls))
	for _, u := range urls {
		artifacts = append(artifacts, Artifact{URL: u})
	}
	return artifacts, nil
}

// outputURLs normalizes the prediction output, which Replicate returns as
// either a single URL string or an array of URL strings depending on the
// model.
func outputURLs(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}

	return nil, fmt.Errorf("unexpected output shape: %s", truncate(string(raw), 120))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
