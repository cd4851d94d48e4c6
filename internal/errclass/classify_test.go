package errclass

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyKnownPatterns(t *testing.T) {
	cases := []struct {
		name     string
		message  string
		provider string
		want     Category
		retry    bool
		delay    time.Duration
	}{
		{"fal rate limit", "Rate limit exceeded", "fal.ai", CategoryRateLimited, true, 60 * time.Second},
		{"fal bad key", "Invalid API key", "fal.ai", CategoryAuthentication, false, 0},
		{"fal validation", "Invalid input: width must be between 64 and 2048", "fal.ai", CategoryValidation, false, 0},
		{"fal nsfw", "Image flagged by NSFW safety checker", "fal.ai", CategoryContentPolicy, false, 0},
		{"fal outage", "502 Bad Gateway", "fal.ai", CategoryProviderOutage, true, 120 * time.Second},
		{"replicate throttle", "Request was throttled", "replicate", CategoryRateLimited, true, 60 * time.Second},
		{"replicate token", "Invalid token provided", "replicate", CategoryAuthentication, false, 0},
		{"replicate missing model", "The specified model does not exist", "replicate", CategoryValidation, false, 0},
		{"network no provider", "Connection timeout", "", CategoryNetwork, true, 10 * time.Second},
		{"network reset", "connection reset by peer", "replicate", CategoryNetwork, true, 10 * time.Second},
		{"network dns", "dns lookup failed for fal.run", "fal.ai", CategoryNetwork, true, 10 * time.Second},
		{"network tls", "TLS handshake timeout", "", CategoryNetwork, true, 10 * time.Second},
		{"fs perm", "open /data/out.png: permission denied", "", CategoryFileSystem, true, 30 * time.Second},
		{"fs space", "write failed: no space left on device", "fal.ai", CategoryFileSystem, true, 30 * time.Second},
		{"oom", "CUDA out of memory", "replicate", CategoryTransient, true, 60 * time.Second},
		{"generic transient", "Temporary failure, please try again", "", CategoryTransient, true, 5 * time.Second},
		{"unknown", "some nonsense xyz123", "", CategoryUnknown, false, 0},
		{"unknown provider falls back", "rate limit exceeded", "midjourney", CategoryRateLimited, true, 60 * time.Second},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.message, tc.provider)
			assert.Equal(t, tc.want, got.Category)
			assert.Equal(t, tc.retry, got.Retryable)
			assert.Equal(t, tc.delay, got.BaseDelay)
		})
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	// File-system wording wins over anything a provider table would match.
	got := Classify("permission denied while calling provider, try again", "fal.ai")
	assert.Equal(t, CategoryFileSystem, got.Category)

	// Generic network wording wins over the provider outage table.
	got = Classify("connection refused: internal server error", "replicate")
	assert.Equal(t, CategoryNetwork, got.Category)
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	upper := Classify("RATE LIMIT EXCEEDED", "fal.ai")
	lower := Classify("rate limit exceeded", "fal.ai")
	assert.Equal(t, lower, upper)
}

func TestRetryDelayGrowsAndRespectsCap(t *testing.T) {
	base := 10 * time.Second

	avg := func(retryCount int) time.Duration {
		const samples = 400
		var total time.Duration
		for i := 0; i < samples; i++ {
			total += RetryDelay(CategoryNetwork, base, retryCount)
		}
		return total / samples
	}

	require.Greater(t, avg(1), avg(0), "average delay must grow with retry count")

	for i := 0; i < 200; i++ {
		d := RetryDelay(CategoryNetwork, base, 20)
		assert.LessOrEqual(t, d, MaxDelay(CategoryNetwork))
	}
}

func TestRetryDelayCategoryCaps(t *testing.T) {
	assert.Equal(t, 600*time.Second, MaxDelay(CategoryRateLimited))
	assert.Equal(t, 1800*time.Second, MaxDelay(CategoryProviderOutage))
	assert.Equal(t, 300*time.Second, MaxDelay(CategoryNetwork))
	assert.Equal(t, 300*time.Second, MaxDelay(CategoryFileSystem))
	assert.Equal(t, 300*time.Second, MaxDelay(CategoryUnknown))
}

func TestUserMessagesStayFriendly(t *testing.T) {
	jargon := []string{"SSL", "HTTP", "JSON", "STACK", "5XX", "TLS"}

	for cat, msg := range userMessages {
		combined := msg.Title + " " + msg.Message + " " + msg.Action
		for _, word := range jargon {
			assert.NotContains(t, strings.ToUpper(combined), word,
				"category %s leaks %q to end users", cat, word)
		}
		assert.NotEmpty(t, msg.Title)
		assert.NotEmpty(t, msg.Action)
	}

	// Unmapped categories fall back to the generic tuple.
	assert.Equal(t, userMessages[CategoryUnknown], ForUser(Category("BOGUS")))
}
