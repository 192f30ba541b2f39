package repository

import (
	"context"
	"errors"

	"crew/internal/model"

	"gorm.io/gorm"
)

type UserRequestRepository struct {
	db   *gorm.DB
	lock bool
}

func NewUserRequestRepository(db *gorm.DB) *UserRequestRepository {
	return &UserRequestRepository{db: db}
}

func (r *UserRequestRepository) WithTx(tx *gorm.DB) *UserRequestRepository {
	return &UserRequestRepository{db: tx, lock: r.lock}
}

func (r *UserRequestRepository) ForUpdate() *UserRequestRepository {
	return &UserRequestRepository{db: r.db, lock: true}
}

func (r *UserRequestRepository) Create(ctx context.Context, req *model.UserCreationRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *UserRequestRepository) Save(ctx context.Context, req *model.UserCreationRequest) error {
	return r.db.WithContext(ctx).Save(req).Error
}

func (r *UserRequestRepository) FindByID(ctx context.Context, id string) (*model.UserCreationRequest, error) {
	var req model.UserCreationRequest
	if err := lockRows(r.db.WithContext(ctx), r.lock).Where("id = ?", id).First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// status 为空时返回全部
func (r *UserRequestRepository) List(ctx context.Context, status model.UserRequestStatus) ([]model.UserCreationRequest, error) {
	var reqs []model.UserCreationRequest
	q := r.db.WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("created_at DESC").Find(&reqs).Error
	return reqs, err
}
