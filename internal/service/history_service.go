package service

import (
	"context"
	"fmt"

	"crew/internal/metrics"
	"crew/internal/model"
	"crew/internal/repository"
	"crew/pkg/logger"
	"crew/pkg/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Publisher 推送已提交的历史记录到实时订阅
// websocket.Hub 和 websocket.KafkaHub 实现
type Publisher interface {
	PublishHistory(event *model.HistoryEvent) error
}

// Change 一次写操作的审计输入，Before/After 为完整快照，由 Record 计算差异
type Change struct {
	Actor   string
	Action  model.HistoryAction
	GroupID *string
	UserID  *string
	Before  map[string]any
	After   map[string]any
}

type HistoryService struct {
	repo      *repository.HistoryRepository
	publisher Publisher
}

func NewHistoryService(repo *repository.HistoryRepository, publisher Publisher) *HistoryService {
	return &HistoryService{repo: repo, publisher: publisher}
}

// Record 在调用方的事务中写入历史记录，返回的事件需在提交后交给 Publish
func (s *HistoryService) Record(ctx context.Context, tx *gorm.DB, c Change) (*model.HistoryEvent, error) {
	before, after := utils.Diff(c.Before, c.After)
	event := &model.HistoryEvent{
		ActingUserID: c.Actor,
		Action:       c.Action,
		GroupID:      c.GroupID,
		UserID:       c.UserID,
		Before:       before,
		After:        after,
	}
	if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", c.Action, err)
	}
	return event, nil
}

// Publish 推送失败只记录日志，不影响已提交的写操作
func (s *HistoryService) Publish(events ...*model.HistoryEvent) {
	if s.publisher == nil {
		return
	}
	for _, ev := range events {
		if ev == nil {
			continue
		}
		if err := s.publisher.PublishHistory(ev); err != nil {
			metrics.IncHistoryPublishFailure()
			logger.L.Warn("Failed to publish history event",
				zap.String("eventID", ev.ID),
				zap.String("action", string(ev.Action)),
				zap.Error(err))
		}
	}
}

func (s *HistoryService) ListByGroup(ctx context.Context, groupID string, limit, offset int) ([]model.HistoryEvent, error) {
	return s.repo.ListByGroup(ctx, groupID, clampLimit(limit), max(offset, 0))
}

func (s *HistoryService) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.HistoryEvent, error) {
	return s.repo.ListByUser(ctx, userID, clampLimit(limit), max(offset, 0))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
