package repository

import (
	"context"
	"errors"

	"crew/internal/model"
	"crew/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipRepository struct {
	db   *gorm.DB
	lock bool
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

func (r *MembershipRepository) WithTx(tx *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: tx, lock: r.lock}
}

func (r *MembershipRepository) ForUpdate() *MembershipRepository {
	return &MembershipRepository{db: r.db, lock: true}
}

func (r *MembershipRepository) Create(ctx context.Context, m *model.Membership) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error
}

func (r *MembershipRepository) Save(ctx context.Context, m *model.Membership) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(m).Error
}

// 查找成员记录并预加载角色，不存在时返回 nil, nil
func (r *MembershipRepository) FindByID(ctx context.Context, id string) (*model.Membership, error) {
	var m model.Membership
	err := lockRows(r.db.WithContext(ctx), r.lock).Preload("Roles").Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// 用户在某组中的有效成员记录
func (r *MembershipRepository) FindActive(ctx context.Context, userID, groupID string) (*model.Membership, error) {
	var m model.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ? AND archived = ?", userID, groupID, false).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// 用户全部有效成员记录；ForUpdate 时加锁，用于预算检查
func (r *MembershipRepository) ListActiveByUser(ctx context.Context, userID string) ([]model.Membership, error) {
	var ms []model.Membership
	err := lockRows(r.db.WithContext(ctx), r.lock).
		Where("user_id = ? AND archived = ?", userID, false).
		Order("created_at ASC").
		Find(&ms).Error
	return ms, err
}

// 用户有效成员记录的百分比之和，nil 计为 0
func (r *MembershipRepository) SumActivePercentage(ctx context.Context, userID string) (int, error) {
	var sum int64
	err := r.db.WithContext(ctx).Model(&model.Membership{}).
		Select("COALESCE(SUM(percentage), 0)").
		Where("user_id = ? AND archived = ?", userID, false).
		Scan(&sum).Error
	return int(sum), err
}

// 组内有效成员，预加载用户和角色
func (r *MembershipRepository) ListActiveByGroup(ctx context.Context, groupID string) ([]model.Membership, error) {
	var ms []model.Membership
	err := r.db.WithContext(ctx).
		Preload("User").Preload("Roles").
		Where("group_id = ? AND archived = ?", groupID, false).
		Order("created_at ASC").
		Find(&ms).Error
	return ms, err
}

func (r *MembershipRepository) ListByUser(ctx context.Context, userID string, includeArchived bool) ([]model.Membership, error) {
	var ms []model.Membership
	q := r.db.WithContext(ctx).Preload("Group").Preload("Roles").Where("user_id = ?", userID)
	if !includeArchived {
		q = q.Where("archived = ?", false)
	}
	err := q.Order("created_at ASC").Find(&ms).Error
	return ms, err
}

// 归档组内全部有效成员记录，返回受影响行数
func (r *MembershipRepository) ArchiveByGroup(ctx context.Context, groupID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Membership{}).
		Where("group_id = ? AND archived = ?", groupID, false).
		Update("archived", true)
	return res.RowsAffected, res.Error
}

func (r *MembershipRepository) AddRole(ctx context.Context, m *model.Membership, role *model.Role) error {
	return r.db.WithContext(ctx).Model(m).Association("Roles").Append(role)
}

func (r *MembershipRepository) RemoveRole(ctx context.Context, m *model.Membership, role *model.Role) error {
	if err := r.db.WithContext(ctx).Model(m).Association("Roles").Delete(role); err != nil {
		logger.L.Error("RemoveRole: failed to delete association",
			zap.String("membershipID", m.ID),
			zap.String("roleID", role.ID),
			zap.Error(err))
		return err
	}
	return nil
}
