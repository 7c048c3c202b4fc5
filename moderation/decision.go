package moderation

import (
	"errors"
	"strings"

	"github.com/ihub-edu/hallpass/moderation/sessionstore"
)

// Reason identifies which stage of the gate decided a message's fate.
type Reason string

const (
	ReasonApproved       Reason = "approved"
	ReasonUserBlocked    Reason = "user_blocked"
	ReasonRateLimited    Reason = "rate_limited"
	ReasonContentFlagged Reason = "content_flagged"
)

var (
	ErrEmptyIdentity = errors.New("empty identity")
	ErrEmptyMessage  = errors.New("empty message")
)

// IdentityContext carries what the request layer knows about the sender.
type IdentityContext struct {
	// Identity is the stable key sessions hang off, usually a client IP.
	Identity string
	// UserAgent is advisory, stored truncated for the admin view.
	UserAgent string
}

// Decision is the gate's verdict on one message.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
	// Message is the text shown to the end user on a denial.
	Message string `json:"message,omitempty"`
	// RetryAfter is a retry hint in seconds, only set for rate_limited.
	RetryAfter *int `json:"retry_after,omitempty"`
	// Flags holds sanitized tag categories only, never the matched words or
	// patterns.
	Flags []string `json:"flags,omitempty"`
	// Session is the post-decision session snapshot, set on approvals.
	Session *sessionstore.Session `json:"session_info,omitempty"`
}

// PublicFlagCategories reduces raw rule tags to their category part before
// the first colon, deduped in order. Deny responses carry these so callers
// learn what kind of rule tripped without the denylist leaking.
func PublicFlagCategories(tags []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tag := range tags {
		cat, _, _ := strings.Cut(tag, ":")
		if cat == "" || seen[cat] {
			continue
		}
		seen[cat] = true
		out = append(out, cat)
	}
	return out
}
