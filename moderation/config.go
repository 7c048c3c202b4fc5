package moderation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var ErrInvalidConfig = errors.New("invalid moderation config")

// Config holds the runtime-tunable gate thresholds. Admins patch these over
// the admin API; changes apply to the next message with no restart.
type Config struct {
	MaxMessagesPerWindow int `json:"max_messages_per_window"`
	WindowMinutes        int `json:"window_minutes"`
	AutoBlockThreshold   int `json:"auto_block_threshold"`
	BlockDurationHours   int `json:"block_duration_hours"`
	// reserved threshold for a warning step that has no trigger path yet
	WarningThreshold int `json:"warning_threshold"`
}

func DefaultConfig() Config {
	return Config{
		MaxMessagesPerWindow: 60,
		WindowMinutes:        60,
		AutoBlockThreshold:   5,
		BlockDurationHours:   24,
		WarningThreshold:     2,
	}
}

func (c Config) Validate() error {
	if c.MaxMessagesPerWindow <= 0 {
		return fmt.Errorf("%w: max_messages_per_window must be positive", ErrInvalidConfig)
	}
	if c.WindowMinutes <= 0 {
		return fmt.Errorf("%w: window_minutes must be positive", ErrInvalidConfig)
	}
	if c.AutoBlockThreshold <= 0 {
		return fmt.Errorf("%w: auto_block_threshold must be positive", ErrInvalidConfig)
	}
	if c.BlockDurationHours <= 0 {
		return fmt.Errorf("%w: block_duration_hours must be positive", ErrInvalidConfig)
	}
	if c.WarningThreshold <= 0 {
		return fmt.Errorf("%w: warning_threshold must be positive", ErrInvalidConfig)
	}
	return nil
}

// Window is the rate-limit lookback.
func (c Config) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

// ConfigPatch is a partial admin update. Nil fields keep their current value.
type ConfigPatch struct {
	MaxMessagesPerWindow *int `json:"max_messages_per_window"`
	WindowMinutes        *int `json:"window_minutes"`
	AutoBlockThreshold   *int `json:"auto_block_threshold"`
	BlockDurationHours   *int `json:"block_duration_hours"`
	WarningThreshold     *int `json:"warning_threshold"`
}

func (c Config) Apply(p ConfigPatch) Config {
	if p.MaxMessagesPerWindow != nil {
		c.MaxMessagesPerWindow = *p.MaxMessagesPerWindow
	}
	if p.WindowMinutes != nil {
		c.WindowMinutes = *p.WindowMinutes
	}
	if p.AutoBlockThreshold != nil {
		c.AutoBlockThreshold = *p.AutoBlockThreshold
	}
	if p.BlockDurationHours != nil {
		c.BlockDurationHours = *p.BlockDurationHours
	}
	if p.WarningThreshold != nil {
		c.WarningThreshold = *p.WarningThreshold
	}
	return c
}

// ConfigStore holds the live config and hands out consistent copies. Updates
// validate, persist to the backing file (when configured), then swap; on any
// failure the previous config stays in effect.
type ConfigStore struct {
	logger *slog.Logger
	path   string

	writeLk sync.Mutex
	current atomic.Pointer[Config]
}

// NewConfigStore loads config from path, or installs the defaults when the
// path is empty or the file does not exist yet (persisting the defaults in
// the latter case). A malformed or invalid file is logged and skipped in
// favor of the defaults; it never aborts startup.
func NewConfigStore(path string, logger *slog.Logger) *ConfigStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ConfigStore{
		logger: logger.With("subsystem", "modconfig"),
		path:   path,
	}
	defaults := DefaultConfig()
	s.current.Store(&defaults)

	if path == "" {
		return s
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.persist(defaults); err != nil {
			s.logger.Error("failed to write default config file", "path", path, "err", err)
		}
		return s
	}
	if err := s.loadFile(); err != nil {
		s.logger.Error("failed to load config file, keeping defaults", "path", path, "err", err)
	}
	return s
}

// Current returns a copy of the live config.
func (s *ConfigStore) Current() Config {
	return *s.current.Load()
}

// Update applies a partial patch, validates the result, persists it, and
// makes it live.
func (s *ConfigStore) Update(p ConfigPatch) (Config, error) {
	s.writeLk.Lock()
	defer s.writeLk.Unlock()
	next := s.Current().Apply(p)
	if err := next.Validate(); err != nil {
		return s.Current(), err
	}
	if err := s.persist(next); err != nil {
		return s.Current(), err
	}
	s.current.Store(&next)
	return next, nil
}

func (s *ConfigStore) loadFile() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.current.Store(&cfg)
	return nil
}

func (s *ConfigStore) persist(cfg Config) error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0664)
}
