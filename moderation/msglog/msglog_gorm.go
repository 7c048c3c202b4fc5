package msglog

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type GormMessageLog struct {
	DB *gorm.DB
}

var _ MessageLog = (*GormMessageLog)(nil)

func NewGormMessageLog(db *gorm.DB) *GormMessageLog {
	return &GormMessageLog{DB: db}
}

func (l *GormMessageLog) Append(ctx context.Context, entry *Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return l.DB.WithContext(ctx).Create(entry).Error
}

func (l *GormMessageLog) CountSince(ctx context.Context, identity string, since time.Time) (int64, error) {
	var count int64
	err := l.DB.WithContext(ctx).Model(&Entry{}).
		Where("identity = ? AND created_at > ?", identity, since).
		Count(&count).Error
	return count, err
}

func (l *GormMessageLog) ListSince(ctx context.Context, since time.Time, limit int) ([]Entry, error) {
	var entries []Entry
	err := l.DB.WithContext(ctx).
		Where("created_at > ?", since).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (l *GormMessageLog) IdentityCounts(ctx context.Context, identity string) (int64, int64, error) {
	var total, flagged int64
	if err := l.DB.WithContext(ctx).Model(&Entry{}).
		Where("identity = ?", identity).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := l.DB.WithContext(ctx).Model(&Entry{}).
		Where("identity = ? AND flagged = ?", identity, true).Count(&flagged).Error; err != nil {
		return 0, 0, err
	}
	return total, flagged, nil
}

func (l *GormMessageLog) TotalCounts(ctx context.Context) (int64, int64, error) {
	var total, flagged int64
	if err := l.DB.WithContext(ctx).Model(&Entry{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := l.DB.WithContext(ctx).Model(&Entry{}).
		Where("flagged = ?", true).Count(&flagged).Error; err != nil {
		return 0, 0, err
	}
	return total, flagged, nil
}

func (l *GormMessageLog) TrimBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := l.DB.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Entry{})
	return res.RowsAffected, res.Error
}
