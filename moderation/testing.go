package moderation

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ihub-edu/hallpass/moderation/actionlog"
	"github.com/ihub-edu/hallpass/moderation/cachestore"
	"github.com/ihub-edu/hallpass/moderation/countstore"
	"github.com/ihub-edu/hallpass/moderation/flagstore"
	"github.com/ihub-edu/hallpass/moderation/msglog"
	"github.com/ihub-edu/hallpass/moderation/sessionstore"
	"github.com/ihub-edu/hallpass/moderation/wordsets"
)

var _ MessageRuleFunc = simpleWordRule

// minimal stand-in for the real denylist rule, so engine fixtures don't need
// the rules package (which imports this one)
func simpleWordRule(c *MessageContext) error {
	lower := strings.ToLower(c.Text)
	for _, word := range c.DenylistWords() {
		if strings.Contains(lower, strings.ToLower(word)) {
			c.Flag(fmt.Sprintf("inappropriate_language:%s", word))
		}
	}
	return nil
}

// EngineTestFixture builds a fully wired Engine on in-memory stores, with the
// default word sets and config, a fixed starting clock, and a single denylist
// rule. Tests reach into the fixture's stores to assert on persisted state.
type EngineTestFixture struct {
	Engine   *Engine
	Sessions *sessionstore.MemSessionStore
	Messages *msglog.MemMessageLog
	Actions  *actionlog.MemActionLog
	Counters *countstore.MemCountStore
	Flags    *flagstore.MemFlagStore
	Words    *wordsets.Provider
	Config   *ConfigStore

	// Clock is the fixture's current time; AdvanceClock moves it.
	Clock time.Time
}

func NewEngineTestFixture() *EngineTestFixture {
	fix := &EngineTestFixture{
		Sessions: sessionstore.NewMemSessionStore(),
		Messages: msglog.NewMemMessageLog(),
		Actions:  actionlog.NewMemActionLog(),
		Counters: countstore.NewMemCountStore(),
		Flags:    flagstore.NewMemFlagStore(),
		Words:    wordsets.NewProvider("", slog.Default()),
		Config:   NewConfigStore("", slog.Default()),
		Clock:    time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return fix.Clock }
	fix.Sessions.Now = now
	fix.Counters.Now = now

	eng, err := NewEngine(EngineConfig{
		Logger:   slog.Default(),
		Sessions: fix.Sessions,
		Messages: fix.Messages,
		Actions:  fix.Actions,
		Rules:    RuleSet{MessageRules: []MessageRuleFunc{simpleWordRule}},
		Words:    fix.Words,
		Config:   fix.Config,
		Counters: fix.Counters,
		Flags:    fix.Flags,
		Cache:    cachestore.NewMemCacheStore(10, time.Hour),
		Now:      now,
	})
	if err != nil {
		panic(err)
	}
	fix.Engine = eng
	return fix
}

// AdvanceClock moves the fixture's injected clock forward.
func (f *EngineTestFixture) AdvanceClock(d time.Duration) {
	f.Clock = f.Clock.Add(d)
}
