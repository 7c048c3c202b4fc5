package rules

import (
	"fmt"
	"strings"

	"github.com/ihub-edu/hallpass/moderation"
)

var _ moderation.MessageRuleFunc = DenylistWordRule

// DenylistWordRule flags messages containing a configured denylist word as a
// case-insensitive substring. The matched word rides along in the flag for the
// audit trail; user-facing responses only ever see the category.
func DenylistWordRule(c *moderation.MessageContext) error {
	lower := strings.ToLower(c.Text)
	for _, word := range c.DenylistWords() {
		if strings.Contains(lower, strings.ToLower(word)) {
			c.Flag(fmt.Sprintf("inappropriate_language:%s", word))
		}
	}
	return nil
}

var _ moderation.MessageRuleFunc = DenylistPatternRule

// DenylistPatternRule runs every configured denylist regex against the
// lowercased message. Patterns are compiled case-insensitive at load time, so
// casing in the pattern text itself does not matter either.
func DenylistPatternRule(c *moderation.MessageContext) error {
	lower := strings.ToLower(c.Text)
	for _, pat := range c.DenylistPatterns() {
		if pat.MatchString(lower) {
			c.Flag(fmt.Sprintf("pattern_match:%s", pat.Raw))
		}
	}
	return nil
}
