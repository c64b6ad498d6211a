package stories

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxSanitizePasses bounds how many layers of entity encoding are peeled off.
const maxSanitizePasses = 4

// textSanitizer strips all markup from user-supplied story text. The policy is
// safe for concurrent use.
type textSanitizer struct {
	policy *bluemonday.Policy
}

func newTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean returns plain text with tags removed. Entity-encoded markup decodes to
// tags, so sanitizing and decoding repeat until the text stops changing. Text
// that is still changing after maxSanitizePasses is returned escaped.
func (s *textSanitizer) Clean(raw string) string {
	text := raw
	for range maxSanitizePasses {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			return strings.TrimSpace(text)
		}
		text = next
	}
	return strings.TrimSpace(s.policy.Sanitize(text))
}
