package service

import (
	"context"
	"fmt"
	"time"

	"crew/internal/metrics"
	"crew/internal/model"
	"crew/internal/repository"
	"crew/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserService 直接创建用户（运维入口），正常流程走 UserRequestService
type UserService struct {
	db      *gorm.DB
	users   *repository.UserRepository
	history *HistoryService
}

func NewUserService(db *gorm.DB, users *repository.UserRepository, history *HistoryService) *UserService {
	return &UserService{db: db, users: users, history: history}
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, notFound("user", id)
	}
	return user, nil
}

func (s *UserService) Create(ctx context.Context, actor, name, email string) (user *model.User, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("user.create", start, err) }()

	var event *model.HistoryEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		existing, err := users.FindByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if existing != nil {
			return invalid("user with email %s already exists", email)
		}

		u := &model.User{Name: name, Email: email, Active: true}
		if err := users.Create(ctx, u); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		event, err = s.history.Record(ctx, tx, Change{
			Actor:  actor,
			Action: model.ActionCreateUser,
			UserID: &u.ID,
			After:  u.AuditFields(),
		})
		user = u
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(event)
	logger.L.Info("User created", zap.String("userID", user.ID), zap.String("actor", actor))
	return user, nil
}
