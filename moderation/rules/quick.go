package rules

import (
	"unicode"

	"github.com/ihub-edu/hallpass/moderation"
)

const (
	// shouting heuristic: short strings are exempt, above that more than 70%
	// uppercase runes (measured against all runes, not just letters) flags
	capsMinLength = 10
	capsRatio     = 0.7

	maxMessageRunes = 500

	// identical runes in a row before a message counts as keyboard mashing
	repeatRunLength = 6
)

var _ moderation.MessageRuleFunc = ExcessiveCapsRule

// ExcessiveCapsRule flags messages that are mostly uppercase.
func ExcessiveCapsRule(c *moderation.MessageContext) error {
	runes := []rune(c.Text)
	if len(runes) <= capsMinLength {
		return nil
	}
	var upper int
	for _, r := range runes {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if float64(upper)/float64(len(runes)) > capsRatio {
		c.Flag("excessive_caps")
	}
	return nil
}

var _ moderation.MessageRuleFunc = MessageLengthRule

// MessageLengthRule flags messages longer than the gate accepts. The message
// still gets logged (truncated), this only drives the verdict.
func MessageLengthRule(c *moderation.MessageContext) error {
	if len([]rune(c.Text)) > maxMessageRunes {
		c.Flag("message_too_long")
	}
	return nil
}

var _ moderation.MessageRuleFunc = RepeatedCharsRule

// RepeatedCharsRule flags any run of identical runes at or above the limit.
// Run-length scan over the original (un-lowercased) text.
func RepeatedCharsRule(c *moderation.MessageContext) error {
	var prev rune
	run := 0
	for _, r := range c.Text {
		if r == prev {
			run++
			if run >= repeatRunLength {
				c.Flag("excessive_repetition")
				return nil
			}
		} else {
			prev = r
			run = 1
		}
	}
	return nil
}
