package actionlog

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type GormActionLog struct {
	DB *gorm.DB
}

var _ ActionLog = (*GormActionLog)(nil)

func NewGormActionLog(db *gorm.DB) *GormActionLog {
	return &GormActionLog{DB: db}
}

func (l *GormActionLog) Append(ctx context.Context, act *Action) error {
	if act.CreatedAt.IsZero() {
		act.CreatedAt = time.Now().UTC()
	}
	return l.DB.WithContext(ctx).Create(act).Error
}

func (l *GormActionLog) ListForIdentity(ctx context.Context, identity string, limit int) ([]Action, error) {
	var actions []Action
	err := l.DB.WithContext(ctx).
		Where("identity = ?", identity).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&actions).Error
	return actions, err
}

func (l *GormActionLog) ListRecent(ctx context.Context, limit int) ([]Action, error) {
	var actions []Action
	err := l.DB.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&actions).Error
	return actions, err
}
