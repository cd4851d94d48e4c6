package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"atelier/internal/config"
)

// Factory builds the client for a stored provider name. The switch is
// exhaustive over the closed Name set.
func Factory(name Name, cfg config.ProvidersConfig) (Client, error) {
	switch name {
	case FalAI:
		if cfg.FalKey == "" {
			return nil, fmt.Errorf("fal.ai provider: FAL_KEY not configured")
		}
		return newFalClient(cfg), nil
	case Replicate:
		if cfg.ReplicateToken == "" {
			return nil, fmt.Errorf("replicate provider: REPLICATE_API_TOKEN not configured")
		}
		return newReplicateClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// errorText pulls a human-readable message out of a provider error body,
// falling back to the raw body. Both providers wrap messages in JSON but
// under different keys.
func errorText(body []byte) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"detail", "error", "message", "title"} {
			if v, ok := payload[key].(string); ok && v != "" {
				return v
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response body"
	}
	return truncate(text, 300)
}
