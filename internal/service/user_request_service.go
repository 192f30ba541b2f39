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

// UserRequestService 新用户申请：PENDING -> APPROVED | DENIED
type UserRequestService struct {
	db          *gorm.DB
	requests    *repository.UserRequestRepository
	users       *repository.UserRepository
	groups      *repository.GroupRepository
	memberships *MembershipService
	history     *HistoryService
}

func NewUserRequestService(
	db *gorm.DB,
	requests *repository.UserRequestRepository,
	users *repository.UserRepository,
	groups *repository.GroupRepository,
	memberships *MembershipService,
	history *HistoryService,
) *UserRequestService {
	return &UserRequestService{
		db:          db,
		requests:    requests,
		users:       users,
		groups:      groups,
		memberships: memberships,
		history:     history,
	}
}

func (s *UserRequestService) List(ctx context.Context, status model.UserRequestStatus) ([]model.UserCreationRequest, error) {
	return s.requests.List(ctx, status)
}

func (s *UserRequestService) Create(ctx context.Context, actor string, req CreateUserRequestRequest) (request *model.UserCreationRequest, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("userRequest.create", start, err) }()

	var event *model.HistoryEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := s.groups.WithTx(tx).FindByID(ctx, req.GroupID)
		if err != nil {
			return fmt.Errorf("failed to find group: %w", err)
		}
		if group == nil {
			return notFound("group", req.GroupID)
		}
		existing, err := s.users.WithTx(tx).FindByEmail(ctx, req.Email)
		if err != nil {
			return fmt.Errorf("failed to check email: %w", err)
		}
		if existing != nil {
			return invalid("user with email %s already exists", req.Email)
		}

		r := &model.UserCreationRequest{
			Name:          req.Name,
			Email:         req.Email,
			GroupID:       req.GroupID,
			Percentage:    req.Percentage,
			Status:        model.UserRequestPending,
			RequestedByID: actor,
		}
		if err := s.requests.WithTx(tx).Create(ctx, r); err != nil {
			return fmt.Errorf("failed to create user request: %w", err)
		}

		event, err = s.history.Record(ctx, tx, Change{
			Actor:   actor,
			Action:  model.ActionCreateUserCreationRequest,
			GroupID: &r.GroupID,
			After:   r.AuditFields(),
		})
		request = r
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(event)
	return request, nil
}

// Approve 在一个事务中创建用户及其初始成员记录
func (s *UserRequestService) Approve(ctx context.Context, actor, id string) (request *model.UserCreationRequest, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("userRequest.approve", start, err) }()

	var events []*model.HistoryEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		r, err := s.pending(ctx, requests, id)
		if err != nil {
			return err
		}
		before := r.AuditFields()

		user := &model.User{Name: r.Name, Email: r.Email, Active: true}
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		userEvent, err := s.history.Record(ctx, tx, Change{
			Actor:  actor,
			Action: model.ActionCreateUser,
			UserID: &user.ID,
			After:  user.AuditFields(),
		})
		if err != nil {
			return err
		}

		_, memberEvent, err := s.memberships.addInTx(ctx, tx, actor, AddMembershipRequest{
			UserID:     user.ID,
			GroupID:    r.GroupID,
			Percentage: r.Percentage,
		})
		if err != nil {
			return err
		}

		r.Status = model.UserRequestApproved
		r.CreatedUserID = &user.ID
		r.DecidedByID = &actor
		if err := requests.Save(ctx, r); err != nil {
			return fmt.Errorf("failed to save user request: %w", err)
		}
		requestEvent, err := s.history.Record(ctx, tx, Change{
			Actor:   actor,
			Action:  model.ActionApproveUserCreationRequest,
			GroupID: &r.GroupID,
			UserID:  &user.ID,
			Before:  before,
			After:   r.AuditFields(),
		})
		if err != nil {
			return err
		}

		events = []*model.HistoryEvent{userEvent, memberEvent, requestEvent}
		request = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(events...)
	logger.L.Info("User creation request approved",
		zap.String("requestID", id),
		zap.Stringp("userID", request.CreatedUserID),
		zap.String("actor", actor))
	return request, nil
}

func (s *UserRequestService) Deny(ctx context.Context, actor, id string, comment *string) (request *model.UserCreationRequest, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("userRequest.deny", start, err) }()

	var event *model.HistoryEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := s.requests.WithTx(tx)
		r, err := s.pending(ctx, requests, id)
		if err != nil {
			return err
		}
		before := r.AuditFields()

		r.Status = model.UserRequestDenied
		r.Comment = comment
		r.DecidedByID = &actor
		if err := requests.Save(ctx, r); err != nil {
			return fmt.Errorf("failed to save user request: %w", err)
		}

		event, err = s.history.Record(ctx, tx, Change{
			Actor:   actor,
			Action:  model.ActionDenyUserCreationRequest,
			GroupID: &r.GroupID,
			Before:  before,
			After:   r.AuditFields(),
		})
		request = r
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(event)
	return request, nil
}

func (s *UserRequestService) pending(ctx context.Context, requests *repository.UserRequestRepository, id string) (*model.UserCreationRequest, error) {
	r, err := requests.ForUpdate().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user request: %w", err)
	}
	if r == nil {
		return nil, notFound("user request", id)
	}
	if r.Status != model.UserRequestPending {
		return nil, invalid("user request %s is already %s", id, r.Status)
	}
	return r, nil
}
