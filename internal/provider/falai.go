package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"atelier/internal/config"
	"atelier/internal/pkg/httpclient"
)

// falClient calls fal.ai's synchronous inference endpoint. One POST per
// batch; the endpoint blocks until generation finishes.
type falClient struct {
	http    *httpclient.Client
	baseURL string
}

func newFalClient(cfg config.ProvidersConfig) *falClient {
	return &falClient{
		http: httpclient.New().
			WithTimeout(cfg.RequestTimeout).
			WithHeader("Authorization", "Key "+cfg.FalKey),
		baseURL: strings.TrimRight(cfg.FalBaseURL, "/"),
	}
}

func (c *falClient) Name() Name {
	return FalAI
}

type falResponse struct {
	Images []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"images"`
	Seed int64 `json:"seed"`
}

func (c *falClient) Generate(ctx context.Context, model string, params map[string]interface{}) ([]Artifact, error) {
	url := c.baseURL + "/" + strings.TrimLeft(model, "/")

	body, status, err := c.http.Post(ctx, url, params)
	if err != nil {
		return nil, fmt.Errorf("fal.ai request: %w", err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("fal.ai returned %d: %s", status, errorText(body))
	}

	var resp falResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("fal.ai response decode: %w", err)
	}

	artifacts := make([]Artifact, 0, len(resp.Images))
	for _, img := range resp.Images {
		artifacts = append(artifacts, Artifact{
			URL:    img.URL,
			Width:  img.Width,
			Height: img.Height,
			Seed:   resp.Seed,
		})
	}
	return artifacts, nil
}
