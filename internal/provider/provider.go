package provider

import (
	"context"
	"fmt"
)

// Name identifies a generation provider. The set is closed: a provider is
// chosen once at order creation, validated here, and stored on the order.
type Name string

const (
	FalAI     Name = "fal.ai"
	Replicate Name = "replicate"
)

// ParseName validates a provider name coming from the API layer.
func ParseName(s string) (Name, error) {
	switch Name(s) {
	case FalAI:
		return FalAI, nil
	case Replicate:
		return Replicate, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

func (n Name) String() string {
	return string(n)
}

// Artifact is one generated image as reported by a provider.
type Artifact struct {
	URL    string
	Width  int
	Height int
	Seed   int64
}

// Client generates images for a model. Errors returned by Generate carry
// the raw provider message so the caller can classify them.
type Client interface {
	Name() Name
	Generate(ctx context.Context, model string, params map[string]interface{}) ([]Artifact, error)
}
