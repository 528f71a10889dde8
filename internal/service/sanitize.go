package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const maxSanitizePasses = 4

// textSanitizer strips markup from free-text fields. Values are stored as
// plain text: entities are decoded after stripping and the result is stripped
// again until it no longer changes, so encoded markup cannot survive decoding.
type textSanitizer struct {
	policy *bluemonday.Policy
}

func newTextSanitizer() textSanitizer {
	return textSanitizer{policy: bluemonday.StrictPolicy()}
}

func (t textSanitizer) clean(value string) string {
	if value == "" {
		return value
	}
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(t.policy.Sanitize(value))
		if next == value {
			return strings.TrimSpace(value)
		}
		value = next
	}
	// still decoding into markup after every pass; keep it escaped
	return strings.TrimSpace(t.policy.Sanitize(value))
}
