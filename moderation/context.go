package moderation

import (
	"github.com/ihub-edu/hallpass/moderation/wordsets"
)

// MessageContext is the mutable container passed to every classification rule
// for a single inbound message. Rules read the message text and the current
// denylist snapshot, and record flags for anything objectionable they find.
type MessageContext struct {
	// Text is the raw message content, un-truncated and un-normalized.
	Text string

	sets  *wordsets.Sets
	flags []string
}

// NewMessageContext builds a context around the message text and a denylist
// snapshot. The snapshot is fixed for the lifetime of the context; concurrent
// denylist updates apply to later messages only.
func NewMessageContext(text string, sets *wordsets.Sets) MessageContext {
	if sets == nil {
		sets = &wordsets.Sets{}
	}
	return MessageContext{
		Text: text,
		sets: sets,
	}
}

// Flag records the provided flag (string value) against the message. Repeat
// flags are dropped; first occurrence wins, and ordering otherwise follows
// rule execution order.
func (c *MessageContext) Flag(val string) {
	for _, v := range c.flags {
		if v == val {
			return
		}
	}
	c.flags = append(c.flags, val)
}

// Flags returns all flags recorded so far, in the order they were first added.
func (c *MessageContext) Flags() []string {
	return c.flags
}

// Flagged indicates whether any rule has recorded a flag.
func (c *MessageContext) Flagged() bool {
	return len(c.flags) > 0
}

// DenylistWords returns the configured denylist words for this evaluation.
func (c *MessageContext) DenylistWords() []string {
	return c.sets.Words
}

// DenylistPatterns returns the configured compiled denylist patterns for this
// evaluation.
func (c *MessageContext) DenylistPatterns() []wordsets.Pattern {
	return c.sets.Patterns
}
