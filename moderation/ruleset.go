package moderation

// MessageRuleFunc is the function signature for message classification rules.
// Rules inspect the context and record flags on it; a returned error aborts
// the whole evaluation (and the gate fails closed).
type MessageRuleFunc = func(c *MessageContext) error

// RuleSet is the collection of rules the gate runs against every inbound
// message.
type RuleSet struct {
	MessageRules []MessageRuleFunc
}

// CallMessageRules dispatches all message rules in order. Flag de-duplication
// happens in the context, not here.
func (r *RuleSet) CallMessageRules(c *MessageContext) error {
	for _, f := range r.MessageRules {
		if err := f(c); err != nil {
			return err
		}
	}
	return nil
}
