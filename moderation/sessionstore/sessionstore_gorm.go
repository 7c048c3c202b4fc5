package sessionstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSessionStore keeps sessions in a relational database. All mutations are
// single statements or row-locked transactions, so concurrent calls for the
// same identity serialize in the database instead of losing updates.
type GormSessionStore struct {
	DB *gorm.DB

	// Now is the clock used for session timestamps. Defaults to UTC wall time.
	Now func() time.Time
}

var _ SessionStore = (*GormSessionStore)(nil)

func NewGormSessionStore(db *gorm.DB) *GormSessionStore {
	return &GormSessionStore{DB: db}
}

func (s *GormSessionStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *GormSessionStore) GetOrCreate(ctx context.Context, identity string) (*Session, error) {
	now := s.now()
	sess := Session{
		Identity:     identity,
		SessionStart: now,
		LastActivity: now,
	}
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&sess).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, identity)
}

func (s *GormSessionStore) Get(ctx context.Context, identity string) (*Session, error) {
	var sess Session
	if err := s.DB.WithContext(ctx).First(&sess, "identity = ?", identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *GormSessionStore) RecordMessage(ctx context.Context, identity string, userAgent string) (*Session, error) {
	now := s.now()
	sess := Session{
		Identity:      identity,
		SessionStart:  now,
		MessagesSent:  1,
		LastActivity:  now,
		LastUserAgent: userAgent,
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "identity"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"messages_sent":   gorm.Expr("messages_sent + 1"),
			"last_activity":   now,
			"last_user_agent": userAgent,
		}),
	}).Create(&sess).Error
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, identity)
}

func (s *GormSessionStore) RecordFlag(ctx context.Context, identity string) (int64, error) {
	var total int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Session{}).Where("identity = ?", identity).
			UpdateColumn("flagged_messages", gorm.Expr("flagged_messages + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		// read back inside the transaction so the total is exactly this
		// increment's result, even with writers racing on the same row
		return tx.Model(&Session{}).Select("flagged_messages").
			Where("identity = ?", identity).Scan(&total).Error
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *GormSessionStore) SetBlock(ctx context.Context, identity string, reason string, expires *time.Time) error {
	now := s.now()
	sess := Session{
		Identity:     identity,
		SessionStart: now,
		LastActivity: now,
		IsBlocked:    true,
		BlockReason:  reason,
		BlockExpires: expires,
	}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "identity"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_blocked":    true,
			"block_reason":  reason,
			"block_expires": expires,
		}),
	}).Create(&sess).Error
}

func (s *GormSessionStore) ClearBlock(ctx context.Context, identity string) error {
	return s.DB.WithContext(ctx).Model(&Session{}).Where("identity = ?", identity).
		Updates(map[string]interface{}{
			"is_blocked":    false,
			"block_reason":  "",
			"block_expires": nil,
		}).Error
}

func (s *GormSessionStore) ClearExpiredBlock(ctx context.Context, identity string, now time.Time) (bool, error) {
	res := s.DB.WithContext(ctx).Model(&Session{}).
		Where("identity = ? AND is_blocked = ? AND block_expires IS NOT NULL AND block_expires <= ?", identity, true, now).
		Updates(map[string]interface{}{
			"is_blocked":    false,
			"block_reason":  "",
			"block_expires": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormSessionStore) TotalCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&Session{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *GormSessionStore) BlockedCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&Session{}).Where("is_blocked = ?", true).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
