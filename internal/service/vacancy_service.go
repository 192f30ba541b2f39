package service

import (
	"context"
	"fmt"
	"time"

	"crew/internal/metrics"
	"crew/internal/model"
	"crew/internal/repository"

	"gorm.io/gorm"
)

type VacancyService struct {
	db        *gorm.DB
	vacancies *repository.VacancyRepository
	groups    *repository.GroupRepository
	history   *HistoryService
	now       func() time.Time
}

func NewVacancyService(
	db *gorm.DB,
	vacancies *repository.VacancyRepository,
	groups *repository.GroupRepository,
	history *HistoryService,
) *VacancyService {
	return &VacancyService{
		db:        db,
		vacancies: vacancies,
		groups:    groups,
		history:   history,
		now:       time.Now,
	}
}

// WithClock 替换时钟，测试用
func (s *VacancyService) WithClock(now func() time.Time) *VacancyService {
	cp := *s
	cp.now = now
	return &cp
}

func (s *VacancyService) Get(ctx context.Context, id string) (*model.Vacancy, error) {
	v, err := s.vacancies.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find vacancy: %w", err)
	}
	if v == nil {
		return nil, notFound("vacancy", id)
	}
	return v, nil
}

func (s *VacancyService) ListByGroup(ctx context.Context, groupID string, includeArchived bool) ([]model.Vacancy, error) {
	return s.vacancies.ListByGroup(ctx, groupID, includeArchived)
}

func (s *VacancyService) Create(ctx context.Context, actor string, req CreateVacancyRequest) (vacancy *model.Vacancy, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("vacancy.create", start, err) }()

	status := req.Status
	if status == "" {
		status = model.VacancyActive
	}
	if !status.Valid() {
		return nil, invalid("unknown vacancy status %q", status)
	}

	var event *model.HistoryEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		group, err := s.groups.WithTx(tx).FindByID(ctx, req.GroupID)
		if err != nil {
			return fmt.Errorf("failed to find group: %w", err)
		}
		if group == nil {
			return notFound("group", req.GroupID)
		}

		v := &model.Vacancy{
			Name:            req.Name,
			GroupID:         req.GroupID,
			HiringManagerID: req.HiringManagerID,
			HrID:            req.HrID,
			Grade:           req.Grade,
			Unit:            req.Unit,
		}
		applyStatusTransition(v, status, s.now())
		if err := s.vacancies.WithTx(tx).Create(ctx, v); err != nil {
			return fmt.Errorf("failed to create vacancy: %w", err)
		}

		event, err = s.history.Record(ctx, tx, Change{
			Actor:   actor,
			Action:  model.ActionCreateVacancy,
			GroupID: &v.GroupID,
			After:   v.AuditFields(),
		})
		vacancy = v
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(event)
	return vacancy, nil
}

func (s *VacancyService) Edit(ctx context.Context, actor, id string, req EditVacancyRequest) (*model.Vacancy, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, invalid("unknown vacancy status %q", *req.Status)
	}
	return s.update(ctx, actor, id, "vacancy.edit", model.ActionEditVacancy, func(v *model.Vacancy) {
		if req.Name != nil {
			v.Name = *req.Name
		}
		if req.HiringManagerID != nil {
			v.HiringManagerID = *req.HiringManagerID
		}
		if req.HrID != nil {
			v.HrID = *req.HrID
		}
		if req.Grade != nil {
			v.Grade = req.Grade
		}
		if req.Unit != nil {
			v.Unit = req.Unit
		}
		if req.Status != nil {
			applyStatusTransition(v, *req.Status, s.now())
		}
	})
}

func (s *VacancyService) Archive(ctx context.Context, actor, id string, archived bool) (*model.Vacancy, error) {
	return s.update(ctx, actor, id, "vacancy.archive", model.ActionArchiveVacancy, func(v *model.Vacancy) {
		v.Archived = archived
	})
}

func (s *VacancyService) update(
	ctx context.Context,
	actor, id, op string,
	action model.HistoryAction,
	mutate func(v *model.Vacancy),
) (vacancy *model.Vacancy, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation(op, start, err) }()

	var event *model.HistoryEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vacancies := s.vacancies.WithTx(tx)
		v, err := vacancies.ForUpdate().FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to find vacancy: %w", err)
		}
		if v == nil {
			return notFound("vacancy", id)
		}

		before := v.AuditFields()
		mutate(v)
		if err := vacancies.Save(ctx, v); err != nil {
			return fmt.Errorf("failed to save vacancy: %w", err)
		}

		event, err = s.history.Record(ctx, tx, Change{
			Actor:   actor,
			Action:  action,
			GroupID: &v.GroupID,
			Before:  before,
			After:   v.AuditFields(),
		})
		vacancy = v
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(event)
	return vacancy, nil
}

// applyStatusTransition 应用状态变化的副作用，prev 只读取一次
// 新建的职位 Status 为空，视为从无状态进入 next
func applyStatusTransition(v *model.Vacancy, next model.VacancyStatus, now time.Time) {
	prev := v.Status
	if prev == next {
		return
	}

	if prev == model.VacancyActive {
		if v.ActiveSince != nil {
			v.TimeAtWork += now.Sub(*v.ActiveSince).Milliseconds()
		}
		v.ActiveSince = nil
	}
	if next == model.VacancyActive {
		t := now
		v.ActiveSince = &t
	}
	if next == model.VacancyClosed {
		t := now
		v.ClosedAt = &t
	}
	if prev == model.VacancyClosed {
		v.ClosedAt = nil
	}
	v.Status = next
}
