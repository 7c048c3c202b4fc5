package actionlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testLedgers(t *testing.T) map[string]ActionLog {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.sqlite")), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Action{}))
	return map[string]ActionLog{
		"mem":  NewMemActionLog(),
		"gorm": NewGormActionLog(db),
	}
}

func TestActionLogOrdering(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Second)
	for name, ledger := range testLedgers(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			ctx := context.Background()

			expires := base.Add(24 * time.Hour)
			fixtures := []Action{
				{Identity: "10.0.0.1", Kind: KindBlock, Reason: "Auto-blocked after 5 flagged messages", Actor: "system", ExpiresAt: &expires, CreatedAt: base.Add(-2 * time.Hour)},
				{Identity: "10.0.0.1", Kind: KindUnblock, Reason: "Block expired", Actor: "auto_expire", CreatedAt: base.Add(-time.Hour)},
				{Identity: "10.0.0.2", Kind: KindBlock, Reason: "Manual block by admin", Actor: "admin", CreatedAt: base.Add(-time.Minute)},
			}
			for i := range fixtures {
				require.NoError(t, ledger.Append(ctx, &fixtures[i]))
			}

			actions, err := ledger.ListForIdentity(ctx, "10.0.0.1", 10)
			require.NoError(t, err)
			require.Len(t, actions, 2)
			assert.Equal(KindUnblock, actions[0].Kind)
			assert.Equal("auto_expire", actions[0].Actor)
			assert.Equal(KindBlock, actions[1].Kind)
			require.NotNil(t, actions[1].ExpiresAt)
			assert.WithinDuration(expires, *actions[1].ExpiresAt, time.Second)

			recent, err := ledger.ListRecent(ctx, 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal("10.0.0.2", recent[0].Identity)
			assert.Equal("10.0.0.1", recent[1].Identity)
		})
	}
}

func TestActionLogSameInstantOrdering(t *testing.T) {
	// actions written at the same timestamp come back in insert order,
	// newest first
	at := time.Now().UTC().Truncate(time.Second)
	for name, ledger := range testLedgers(t) {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			ctx := context.Background()

			first := Action{Identity: "10.0.0.3", Kind: KindBlock, Reason: "spam", Actor: "admin", CreatedAt: at}
			second := Action{Identity: "10.0.0.3", Kind: KindUnblock, Reason: "Manual unblock", Actor: "admin", CreatedAt: at}
			require.NoError(t, ledger.Append(ctx, &first))
			require.NoError(t, ledger.Append(ctx, &second))

			actions, err := ledger.ListForIdentity(ctx, "10.0.0.3", 10)
			require.NoError(t, err)
			require.Len(t, actions, 2)
			assert.Equal(KindUnblock, actions[0].Kind)
			assert.Equal(KindBlock, actions[1].Kind)
		})
	}
}
