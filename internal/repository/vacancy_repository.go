package repository

import (
	"context"
	"errors"

	"crew/internal/model"

	"gorm.io/gorm"
)

type VacancyRepository struct {
	db   *gorm.DB
	lock bool
}

func NewVacancyRepository(db *gorm.DB) *VacancyRepository {
	return &VacancyRepository{db: db}
}

func (r *VacancyRepository) WithTx(tx *gorm.DB) *VacancyRepository {
	return &VacancyRepository{db: tx, lock: r.lock}
}

func (r *VacancyRepository) ForUpdate() *VacancyRepository {
	return &VacancyRepository{db: r.db, lock: true}
}

func (r *VacancyRepository) Create(ctx context.Context, v *model.Vacancy) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *VacancyRepository) Save(ctx context.Context, v *model.Vacancy) error {
	return r.db.WithContext(ctx).Save(v).Error
}

func (r *VacancyRepository) FindByID(ctx context.Context, id string) (*model.Vacancy, error) {
	var v model.Vacancy
	if err := lockRows(r.db.WithContext(ctx), r.lock).Where("id = ?", id).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (r *VacancyRepository) ListByGroup(ctx context.Context, groupID string, includeArchived bool) ([]model.Vacancy, error) {
	var vs []model.Vacancy
	q := r.db.WithContext(ctx).Where("group_id = ?", groupID)
	if !includeArchived {
		q = q.Where("archived = ?", false)
	}
	err := q.Order("created_at DESC").Find(&vs).Error
	return vs, err
}

// 归档组内全部未归档的职位
func (r *VacancyRepository) ArchiveByGroup(ctx context.Context, groupID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Vacancy{}).
		Where("group_id = ? AND archived = ?", groupID, false).
		Update("archived", true)
	return res.RowsAffected, res.Error
}
