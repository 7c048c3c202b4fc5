package wordsets

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"sync/atomic"
)

var ErrBadPattern = errors.New("unparseable denylist pattern")

// Pattern is a single compiled denylist regex. The raw text is kept for
// admin round-trips and for the tag emitted on match.
type Pattern struct {
	Raw string
	re  *regexp.Regexp
}

func (p Pattern) MatchString(s string) bool {
	return p.re.MatchString(s)
}

// CompilePattern compiles a denylist regex. Matching is case-insensitive.
func CompilePattern(raw string) (Pattern, error) {
	re, err := regexp.Compile("(?i)" + raw)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %q: %v", ErrBadPattern, raw, err)
	}
	return Pattern{Raw: raw, re: re}, nil
}

// Sets is an immutable snapshot of the configured denylist. Classifier rules
// read one snapshot per message; updates swap in a whole new snapshot.
type Sets struct {
	Words    []string
	Patterns []Pattern
}

func (s *Sets) PatternStrings() []string {
	out := make([]string, len(s.Patterns))
	for i, p := range s.Patterns {
		out[i] = p.Raw
	}
	return out
}

func DefaultWords() []string {
	return []string{
		// profanity
		"fuck", "shit", "damn", "bitch", "asshole", "bastard",
		// hate speech indicators
		"hate", "stupid", "idiot", "retard", "kill yourself",
		// spam indicators
		"buy now", "click here", "free money", "viagra",
		// inappropriate requests
		"hack", "break", "destroy", "damage", "illegal",
	}
}

func DefaultPatterns() []string {
	return []string{
		`\b(fuck|shit|damn)\w*\b`,
		`\b(kill\s+yourself)\b`,
		`\b(hack\s+into)\b`,
	}
}

// NewSets compiles raw pattern strings into a usable snapshot. Any pattern
// failing to compile rejects the whole set.
func NewSets(words []string, patterns []string) (*Sets, error) {
	compiled := make([]Pattern, 0, len(patterns))
	for _, raw := range patterns {
		p, err := CompilePattern(raw)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, p)
	}
	return &Sets{Words: words, Patterns: compiled}, nil
}

type setsFileBody struct {
	Words    []string `json:"words"`
	Patterns []string `json:"patterns"`
}

// Provider holds the live denylist and hands out consistent snapshots.
// Updates are validated, swapped atomically, and persisted back to the
// backing file (when one is configured) so they survive restarts.
type Provider struct {
	logger *slog.Logger
	path   string

	writeLk sync.Mutex
	current atomic.Pointer[Sets]
}

// NewProvider loads the denylist from path, or installs the default lists
// when the path is empty or the file does not exist yet (persisting the
// defaults in the latter case). A malformed file is logged and skipped in
// favor of the defaults; it never aborts startup.
func NewProvider(path string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		logger: logger.With("subsystem", "wordsets"),
		path:   path,
	}
	defaults, _ := NewSets(DefaultWords(), DefaultPatterns())
	p.current.Store(defaults)

	if path == "" {
		return p
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := p.persist(defaults); err != nil {
			p.logger.Error("failed to write default denylist file", "path", path, "err", err)
		}
		return p
	}
	if err := p.loadFile(); err != nil {
		p.logger.Error("failed to load denylist file, keeping defaults", "path", path, "err", err)
	}
	return p
}

// Current returns the live snapshot. Callers must not mutate it.
func (p *Provider) Current() *Sets {
	return p.current.Load()
}

// Replace validates and installs a new word and pattern list, then persists
// it. On any error the previous snapshot stays in effect.
func (p *Provider) Replace(words []string, patterns []string) error {
	next, err := NewSets(words, patterns)
	if err != nil {
		return err
	}
	p.writeLk.Lock()
	defer p.writeLk.Unlock()
	if err := p.persist(next); err != nil {
		return err
	}
	p.current.Store(next)
	return nil
}

func (p *Provider) loadFile() error {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return err
	}
	var body setsFileBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("parsing denylist file: %w", err)
	}
	next, err := NewSets(body.Words, body.Patterns)
	if err != nil {
		return err
	}
	p.current.Store(next)
	return nil
}

func (p *Provider) persist(s *Sets) error {
	if p.path == "" {
		return nil
	}
	body := setsFileBody{Words: s.Words, Patterns: s.PatternStrings()}
	raw, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.path, raw, 0664)
}
