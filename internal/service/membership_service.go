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

const maxPercentage = 100

type MembershipService struct {
	db          *gorm.DB
	memberships *repository.MembershipRepository
	users       *repository.UserRepository
	groups      *repository.GroupRepository
	roles       *repository.RoleRepository
	history     *HistoryService
}

func NewMembershipService(
	db *gorm.DB,
	memberships *repository.MembershipRepository,
	users *repository.UserRepository,
	groups *repository.GroupRepository,
	roles *repository.RoleRepository,
	history *HistoryService,
) *MembershipService {
	return &MembershipService{
		db:          db,
		memberships: memberships,
		users:       users,
		groups:      groups,
		roles:       roles,
		history:     history,
	}
}

// GetAvailablePercentage 100 减去有效成员记录的百分比之和，最小为 0
func (s *MembershipService) GetAvailablePercentage(ctx context.Context, userID string) (int, error) {
	sum, err := s.memberships.SumActivePercentage(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum percentages: %w", err)
	}
	return max(maxPercentage-sum, 0), nil
}

func (s *MembershipService) ListByUser(ctx context.Context, userID string, includeArchived bool) ([]model.Membership, error) {
	return s.memberships.ListByUser(ctx, userID, includeArchived)
}

func (s *MembershipService) Get(ctx context.Context, id string) (*model.Membership, error) {
	m, err := s.memberships.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	if m == nil {
		return nil, notFound("membership", id)
	}
	return m, nil
}

// lockUser 锁定用户行，同一用户的成员记录写操作在此排队
// 仅锁已有成员记录挡不住并发插入的新记录
func (s *MembershipService) lockUser(ctx context.Context, tx *gorm.DB, userID string) error {
	user, err := s.users.WithTx(tx).ForUpdate().FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}
	if user == nil {
		return notFound("user", userID)
	}
	return nil
}

// checkBudget 锁定用户的有效成员记录，校验加上 percentage 后不超过 100
// excludeID 为正在更新的成员记录，不计入已分配
func checkBudget(ctx context.Context, memberships *repository.MembershipRepository, userID, excludeID string, percentage *int) error {
	if percentage == nil {
		return nil
	}
	if *percentage < 0 || *percentage > maxPercentage {
		return invalid("percentage %d is outside 0..%d", *percentage, maxPercentage)
	}

	active, err := memberships.ForUpdate().ListActiveByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load memberships: %w", err)
	}
	used := 0
	for i := range active {
		if active[i].ID == excludeID {
			continue
		}
		used += active[i].Allocated()
	}
	if used+*percentage > maxPercentage {
		return &BudgetExceededError{Available: max(maxPercentage-used, 0), Requested: *percentage}
	}
	return nil
}

func (s *MembershipService) UpdatePercentage(ctx context.Context, actor, id string, percentage int) (membership *model.Membership, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("membership.updatePercentage", start, err) }()

	var event *model.HistoryEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		memberships := s.memberships.WithTx(tx)
		current, err := memberships.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to find membership: %w", err)
		}
		if current == nil {
			return notFound("membership", id)
		}
		if err := s.lockUser(ctx, tx, current.UserID); err != nil {
			return err
		}
		m, err := memberships.ForUpdate().FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to find membership: %w", err)
		}
		if m == nil {
			return notFound("membership", id)
		}
		if m.Archived {
			return invalid("membership %s is archived", id)
		}
		if err := checkBudget(ctx, memberships, m.UserID, m.ID, &percentage); err != nil {
			return err
		}

		before := m.AuditFields()
		m.Percentage = &percentage
		if err := memberships.Save(ctx, m); err != nil {
			return fmt.Errorf("failed to save membership: %w", err)
		}

		event, err = s.history.Record(ctx, tx, Change{
			Actor:   actor,
			Action:  model.ActionUpdatePercentage,
			GroupID: &m.GroupID,
			UserID:  &m.UserID,
			Before:  before,
			After:   m.AuditFields(),
		})
		membership = m
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(event)
	logger.L.Info("Membership percentage updated",
		zap.String("membershipID", id),
		zap.Int("percentage", percentage),
		zap.String("actor", actor))
	return membership, nil
}

func (s *MembershipService) AddToGroup(ctx context.Context, actor string, req AddMembershipRequest) (membership *model.Membership, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("membership.add", start, err) }()

	var event *model.HistoryEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		membership, event, err = s.addInTx(ctx, tx, actor, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(event)
	logger.L.Info("User added to group",
		zap.String("userID", req.UserID),
		zap.String("groupID", req.GroupID),
		zap.String("actor", actor))
	return membership, nil
}

// addInTx 供审批流程在同一事务中创建初始成员记录
func (s *MembershipService) addInTx(ctx context.Context, tx *gorm.DB, actor string, req AddMembershipRequest) (*model.Membership, *model.HistoryEvent, error) {
	if err := s.lockUser(ctx, tx, req.UserID); err != nil {
		return nil, nil, err
	}
	group, err := s.groups.WithTx(tx).FindByID(ctx, req.GroupID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find group: %w", err)
	}
	if group == nil {
		return nil, nil, notFound("group", req.GroupID)
	}

	memberships := s.memberships.WithTx(tx)
	existing, err := memberships.FindActive(ctx, req.UserID, req.GroupID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if existing != nil {
		return nil, nil, invalid("user %s is already a member of group %s", req.UserID, req.GroupID)
	}
	if err := checkBudget(ctx, memberships, req.UserID, "", req.Percentage); err != nil {
		return nil, nil, err
	}

	m := &model.Membership{UserID: req.UserID, GroupID: req.GroupID, Percentage: req.Percentage}
	if err := memberships.Create(ctx, m); err != nil {
		return nil, nil, fmt.Errorf("failed to create membership: %w", err)
	}

	event, err := s.history.Record(ctx, tx, Change{
		Actor:   actor,
		Action:  model.ActionAddUserToGroup,
		GroupID: &m.GroupID,
		UserID:  &m.UserID,
		After:   m.AuditFields(),
	})
	if err != nil {
		return nil, nil, err
	}
	return m, event, nil
}

// Archive 将成员移出组，记录保留
func (s *MembershipService) Archive(ctx context.Context, actor, id string) (membership *model.Membership, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("membership.archive", start, err) }()

	var event *model.HistoryEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		memberships := s.memberships.WithTx(tx)
		m, err := memberships.ForUpdate().FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to find membership: %w", err)
		}
		if m == nil {
			return notFound("membership", id)
		}
		if m.Archived {
			return invalid("membership %s is already archived", id)
		}

		before := m.AuditFields()
		m.Archived = true
		if err := memberships.Save(ctx, m); err != nil {
			return fmt.Errorf("failed to save membership: %w", err)
		}

		event, err = s.history.Record(ctx, tx, Change{
			Actor:   actor,
			Action:  model.ActionRemoveUserFromGroup,
			GroupID: &m.GroupID,
			UserID:  &m.UserID,
			Before:  before,
			After:   m.AuditFields(),
		})
		membership = m
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(event)
	return membership, nil
}

func (s *MembershipService) AddRole(ctx context.Context, actor, id, roleName string) (membership *model.Membership, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("membership.addRole", start, err) }()

	var event *model.HistoryEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		memberships := s.memberships.WithTx(tx)
		m, err := memberships.ForUpdate().FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to find membership: %w", err)
		}
		if m == nil {
			return notFound("membership", id)
		}
		if m.Archived {
			return invalid("membership %s is archived", id)
		}
		role, err := s.roles.WithTx(tx).FindOrCreate(ctx, roleName)
		if err != nil {
			return fmt.Errorf("failed to resolve role: %w", err)
		}
		for _, r := range m.Roles {
			if r.ID == role.ID {
				return invalid("membership %s already has role %s", id, roleName)
			}
		}
		if err := memberships.AddRole(ctx, m, role); err != nil {
			return fmt.Errorf("failed to add role: %w", err)
		}

		event, err = s.history.Record(ctx, tx, Change{
			Actor:   actor,
			Action:  model.ActionAddRole,
			GroupID: &m.GroupID,
			UserID:  &m.UserID,
			After:   map[string]any{"roleId": role.ID, "roleName": role.Name},
		})
		membership = m
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(event)
	return membership, nil
}

func (s *MembershipService) RemoveRole(ctx context.Context, actor, id, roleID string) (membership *model.Membership, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("membership.removeRole", start, err) }()

	var event *model.HistoryEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		memberships := s.memberships.WithTx(tx)
		m, err := memberships.ForUpdate().FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to find membership: %w", err)
		}
		if m == nil {
			return notFound("membership", id)
		}

		var role *model.Role
		for i := range m.Roles {
			if m.Roles[i].ID == roleID {
				r := m.Roles[i]
				role = &r
				break
			}
		}
		if role == nil {
			return notFound("role on membership", roleID)
		}
		if err := memberships.RemoveRole(ctx, m, role); err != nil {
			return fmt.Errorf("failed to remove role: %w", err)
		}

		event, err = s.history.Record(ctx, tx, Change{
			Actor:   actor,
			Action:  model.ActionRemoveRole,
			GroupID: &m.GroupID,
			UserID:  &m.UserID,
			Before:  map[string]any{"roleId": role.ID, "roleName": role.Name},
		})
		membership = m
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(event)
	return membership, nil
}
