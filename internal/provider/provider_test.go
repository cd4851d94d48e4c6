package provider

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier/internal/config"
)

func TestParseName(t *testing.T) {
	name, err := ParseName("fal.ai")
	require.NoError(t, err)
	assert.Equal(t, FalAI, name)

	name, err = ParseName("replicate")
	require.NoError(t, err)
	assert.Equal(t, Replicate, name)

	_, err = ParseName("midjourney")
	assert.Error(t, err)

	_, err = ParseName("")
	assert.Error(t, err)
}

func TestFactoryRequiresCredentials(t *testing.T) {
	_, err := Factory(FalAI, config.ProvidersConfig{})
	assert.Error(t, err)

	_, err = Factory(Replicate, config.ProvidersConfig{})
	assert.Error(t, err)

	client, err := Factory(FalAI, config.ProvidersConfig{FalKey: "key"})
	require.NoError(t, err)
	assert.Equal(t, FalAI, client.Name())

	client, err = Factory(Replicate, config.ProvidersConfig{ReplicateToken: "token"})
	require.NoError(t, err)
	assert.Equal(t, Replicate, client.Name())

	_, err = Factory(Name("other"), config.ProvidersConfig{})
	assert.Error(t, err)
}

func TestOutputURLs(t *testing.T) {
	urls, err := outputURLs(json.RawMessage(`"https://example.com/a.png"`))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a.png"}, urls)

	urls, err = outputURLs(json.RawMessage(`["https://example.com/a.png","https://example.com/b.png"]`))
	require.NoError(t, err)
	assert.Len(t, urls, 2)

	urls, err = outputURLs(nil)
	require.NoError(t, err)
	assert.Empty(t, urls)

	urls, err = outputURLs(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, urls)

	_, err = outputURLs(json.RawMessage(`{"unexpected":true}`))
	assert.Error(t, err)
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "Rate limit exceeded", errorText([]byte(`{"detail":"Rate limit exceeded"}`)))
	assert.Equal(t, "boom", errorText([]byte(`{"error":"boom"}`)))
	assert.Equal(t, "plain text", errorText([]byte("plain text")))
	assert.Equal(t, "empty response body", errorText(nil))
}
