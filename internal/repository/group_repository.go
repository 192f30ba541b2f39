package repository

import (
	"context"
	"errors"

	"crew/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupRepository struct {
	db   *gorm.DB
	lock bool
}

func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// WithTx 返回绑定到事务的仓库
func (r *GroupRepository) WithTx(tx *gorm.DB) *GroupRepository {
	return &GroupRepository{db: tx, lock: r.lock}
}

// ForUpdate 之后的读取对行加锁，只在事务中有意义
func (r *GroupRepository) ForUpdate() *GroupRepository {
	return &GroupRepository{db: r.db, lock: true}
}

func (r *GroupRepository) Create(ctx context.Context, group *model.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// 根据ID查找群组，不存在时返回 nil, nil
func (r *GroupRepository) FindByID(ctx context.Context, id string) (*model.Group, error) {
	var group model.Group
	err := lockRows(r.db.WithContext(ctx), r.lock).Where("id = ?", id).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

func (r *GroupRepository) Save(ctx context.Context, group *model.Group) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(group).Error
}

func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Group{}).Error
}

// 直接子节点数量
func (r *GroupRepository) CountChildren(ctx context.Context, id string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Group{}).Where("parent_id = ?", id).Count(&n).Error
	return n, err
}

// 查找父节点属于 parentIDs 的所有子节点，按名称排序
func (r *GroupRepository) FindChildren(ctx context.Context, parentIDs []string) ([]model.Group, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var groups []model.Group
	err := r.db.WithContext(ctx).
		Where("parent_id IN ?", parentIDs).
		Order("name ASC").Order("id ASC").
		Find(&groups).Error
	return groups, err
}

func (r *GroupRepository) ListRoots(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.WithContext(ctx).
		Where("parent_id IS NULL").
		Order("name ASC").Order("id ASC").
		Find(&groups).Error
	return groups, err
}
