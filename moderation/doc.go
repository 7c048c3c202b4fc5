// Package moderation is the abuse-prevention gate in front of the chat
// endpoint: per-identity sessions, sliding-window rate limits, content
// classification rules, and block escalation with an append-only audit
// ledger.
//
// The Engine is the only type the HTTP layer calls for message decisions;
// everything else (stores, rules, word sets) hangs off it via explicit
// construction. Subpackages hold the individual stores, each an interface
// with an in-memory implementation plus a durable one (GORM or Redis).
package moderation
