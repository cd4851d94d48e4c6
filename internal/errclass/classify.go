// Package errclass maps raw provider error strings to an error category
// and a retry policy. Classification is pattern-based: ordered groups of
// regular expressions are evaluated against the lower-cased message and
// the first match wins.
package errclass

import (
	"regexp"
	"strings"
	"time"
)

// Category is the classified failure kind.
type Category string

const (
	CategoryTransient      Category = "TRANSIENT"
	CategoryRateLimited    Category = "RATE_LIMITED"
	CategoryAuthentication Category = "AUTHENTICATION"
	CategoryValidation     Category = "VALIDATION"
	CategoryContentPolicy  Category = "CONTENT_POLICY"
	CategoryProviderOutage Category = "PROVIDER_OUTAGE"
	CategoryNetwork        Category = "NETWORK"
	CategoryFileSystem     Category = "FILE_SYSTEM"
	CategoryUnknown        Category = "UNKNOWN"
)

// Classification is the outcome of classifying one error message.
type Classification struct {
	Category  Category
	Retryable bool
	BaseDelay time.Duration
}

// Retryable reports whether failures in this category are auto-retried.
func (c Category) Retryable() bool {
	switch c {
	case CategoryTransient, CategoryRateLimited, CategoryProviderOutage,
		CategoryNetwork, CategoryFileSystem:
		return true
	}
	return false
}

// RetryableCategories lists the auto-retried categories in the string
// form stored on order item rows, for use in claim queries.
func RetryableCategories() []string {
	return []string{
		string(CategoryTransient),
		string(CategoryRateLimited),
		string(CategoryProviderOutage),
		string(CategoryNetwork),
		string(CategoryFileSystem),
	}
}

type patternGroup struct {
	patterns []*regexp.Regexp
	result   Classification
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// Generic groups, evaluated in priority order before any provider table.
var genericGroups = []patternGroup{
	{
		patterns: compileAll(
			`permission denied`,
			`disk full`,
			`no space left`,
			`no such file`,
			`file not found`,
			`i/?o error`,
			`read-only file system`,
		),
		result: Classification{CategoryFileSystem, true, 30 * time.Second},
	},
	{
		patterns: compileAll(
			`out of memory`,
			`\boom\b`,
			`cuda out of memory`,
			`resource exhausted`,
			`insufficient .*(memory|capacity)`,
		),
		result: Classification{CategoryTransient, true, 60 * time.Second},
	},
	{
		patterns: compileAll(
			`temporary failure`,
			`temporarily unavailable`,
			`timeout occurred`,
			`try again`,
		),
		result: Classification{CategoryTransient, true, 5 * time.Second},
	},
	{
		patterns: compileAll(
			`connection (reset|refused|timed? ?out|aborted|closed)`,
			`connection error`,
			`network (error|unreachable|is unreachable)`,
			`dns (failure|error|lookup failed)`,
			`name resolution`,
			`no such host`,
			`ssl[: ]`,
			`tls handshake`,
			`certificate verify failed`,
			`socket (error|hang ?up)`,
			`broken pipe`,
			`context deadline exceeded`,
		),
		result: Classification{CategoryNetwork, true, 10 * time.Second},
	},
}

// Per-provider tables, consulted after the generic groups. Keys match the
// provider names stored on orders.
var providerGroups = map[string][]patternGroup{
	"fal.ai": {
		{
			patterns: compileAll(`rate limit`, `too many requests`, `429`, `quota exceeded`),
			result:   Classification{CategoryRateLimited, true, 60 * time.Second},
		},
		{
			patterns: compileAll(`invalid api key`, `unauthorized`, `401`, `403 forbidden`, `authentication (failed|required)`, `invalid credentials`),
			result:   Classification{CategoryAuthentication, false, 0},
		},
		{
			patterns: compileAll(`invalid (input|parameter|request|prompt)`, `validation (error|failed)`, `unprocessable`, `422`, `must be (one of|between)`, `unknown model`),
			result:   Classification{CategoryValidation, false, 0},
		},
		{
			patterns: compileAll(`content policy`, `nsfw`, `safety (checker|filter|system)`, `flagged`, `prohibited content`),
			result:   Classification{CategoryContentPolicy, false, 0},
		},
		{
			patterns: compileAll(`service unavailable`, `bad gateway`, `gateway timeout`, `internal server error`, `50[0-4]`, `maintenance`, `overloaded`),
			result:   Classification{CategoryProviderOutage, true, 120 * time.Second},
		},
	},
	"replicate": {
		{
			patterns: compileAll(`rate limit`, `too many requests`, `429`, `throttled`),
			result:   Classification{CategoryRateLimited, true, 60 * time.Second},
		},
		{
			patterns: compileAll(`invalid (api )?token`, `unauthenticated`, `unauthorized`, `401`, `authentication (failed|required)`),
			result:   Classification{CategoryAuthentication, false, 0},
		},
		{
			patterns: compileAll(`invalid (input|version|request)`, `validation (error|failed)`, `unprocessable`, `422`, `does not exist`, `model not found`),
			result:   Classification{CategoryValidation, false, 0},
		},
		{
			patterns: compileAll(`content policy`, `nsfw`, `sensitive content`, `safety`, `flagged`),
			result:   Classification{CategoryContentPolicy, false, 0},
		},
		{
			patterns: compileAll(`service unavailable`, `bad gateway`, `gateway timeout`, `internal server error`, `director.*failed`, `prediction.*interrupted`, `50[0-4]`),
			result:   Classification{CategoryProviderOutage, true, 120 * time.Second},
		},
	},
}

// sharedProviderGroups classify provider-shaped failures when no provider
// is known for the message.
var sharedProviderGroups = []patternGroup{
	{
		patterns: compileAll(`rate limit`, `too many requests`, `429`),
		result:   Classification{CategoryRateLimited, true, 60 * time.Second},
	},
	{
		patterns: compileAll(`invalid api (key|token)`, `unauthorized`, `authentication failed`),
		result:   Classification{CategoryAuthentication, false, 0},
	},
	{
		patterns: compileAll(`validation (error|failed)`, `invalid (input|parameter|request)`),
		result:   Classification{CategoryValidation, false, 0},
	},
	{
		patterns: compileAll(`content policy`, `nsfw`, `safety`),
		result:   Classification{CategoryContentPolicy, false, 0},
	},
	{
		patterns: compileAll(`service unavailable`, `bad gateway`, `gateway timeout`, `internal server error`),
		result:   Classification{CategoryProviderOutage, true, 120 * time.Second},
	},
}

// Classify maps a raw provider error message to a category and retry
// policy. provider may be empty when the failure happened outside a
// provider call. An unmatched message is UNKNOWN and not retried.
func Classify(message, provider string) Classification {
	lowered := strings.ToLower(message)

	for _, group := range genericGroups {
		if group.matches(lowered) {
			return group.result
		}
	}

	table, ok := providerGroups[provider]
	if !ok {
		table = sharedProviderGroups
	}
	for _, group := range table {
		if group.matches(lowered) {
			return group.result
		}
	}

	return Classification{CategoryUnknown, false, 0}
}

func (g patternGroup) matches(lowered string) bool {
	for _, p := range g.patterns {
		if p.MatchString(lowered) {
			return true
		}
	}
	return false
}
