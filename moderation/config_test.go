package moderation

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStoreDefaults(t *testing.T) {
	assert := assert.New(t)

	s := NewConfigStore("", slog.Default())
	cfg := s.Current()
	assert.Equal(60, cfg.MaxMessagesPerWindow)
	assert.Equal(60, cfg.WindowMinutes)
	assert.Equal(5, cfg.AutoBlockThreshold)
	assert.Equal(24, cfg.BlockDurationHours)
	assert.Equal(2, cfg.WarningThreshold)
}

func TestConfigStorePatchValidation(t *testing.T) {
	assert := assert.New(t)

	s := NewConfigStore("", slog.Default())
	cfg, err := s.Update(ConfigPatch{AutoBlockThreshold: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(3, cfg.AutoBlockThreshold)
	// untouched fields keep their values
	assert.Equal(60, cfg.MaxMessagesPerWindow)

	// an invalid patch is rejected and the live config stays put
	_, err = s.Update(ConfigPatch{WindowMinutes: intPtr(0)})
	assert.ErrorIs(err, ErrInvalidConfig)
	assert.Equal(60, s.Current().WindowMinutes)
	assert.Equal(3, s.Current().AutoBlockThreshold)
}

func TestConfigStoreFileRoundTrip(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "moderation.json")

	// first boot persists the defaults
	s := NewConfigStore(path, slog.Default())
	_, err := os.Stat(path)
	require.NoError(t, err)

	_, err = s.Update(ConfigPatch{BlockDurationHours: intPtr(48)})
	require.NoError(t, err)

	// a fresh store picks the edit back up
	s2 := NewConfigStore(path, slog.Default())
	assert.Equal(48, s2.Current().BlockDurationHours)
}

func TestConfigStoreMalformedFileKeepsDefaults(t *testing.T) {
	assert := assert.New(t)
	path := filepath.Join(t.TempDir(), "moderation.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0664))

	s := NewConfigStore(path, slog.Default())
	assert.Equal(DefaultConfig(), s.Current())
}
