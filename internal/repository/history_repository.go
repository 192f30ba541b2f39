package repository

import (
	"context"

	"crew/internal/model"

	"gorm.io/gorm"
)

// HistoryRepository 只追加的审计记录
type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) WithTx(tx *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: tx}
}

func (r *HistoryRepository) Create(ctx context.Context, event *model.HistoryEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *HistoryRepository) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]model.HistoryEvent, error) {
	return r.list(ctx, "group_id = ?", groupID, limit, offset)
}

func (r *HistoryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.HistoryEvent, error) {
	return r.list(ctx, "user_id = ?", userID, limit, offset)
}

func (r *HistoryRepository) list(ctx context.Context, cond string, arg any, limit, offset int) ([]model.HistoryEvent, error) {
	var events []model.HistoryEvent
	err := r.db.WithContext(ctx).
		Where(cond, arg).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&events).Error
	return events, err
}
