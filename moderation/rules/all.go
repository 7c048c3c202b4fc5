// Package rules contains the individual message classification rules run by
// the moderation gate, and the default set wiring them together.
package rules

import (
	"github.com/ihub-edu/hallpass/moderation"
)

func DefaultRules() moderation.RuleSet {
	rules := moderation.RuleSet{
		MessageRules: []moderation.MessageRuleFunc{
			DenylistWordRule,
			DenylistPatternRule,
			ExcessiveCapsRule,
			MessageLengthRule,
			RepeatedCharsRule,
		},
	}
	return rules
}
