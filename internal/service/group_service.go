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

const DefaultMaxDepth = 256

// Hierarchy 以某个组为根的子树
// AdjacencyList 中每个节点都有条目，叶子节点为空列表
type Hierarchy struct {
	AdjacencyList map[string][]string     `json:"adjacencyList"`
	Dict          map[string]*model.Group `json:"dict"`
}

type GroupService struct {
	db          *gorm.DB
	groups      *repository.GroupRepository
	memberships *repository.MembershipRepository
	vacancies   *repository.VacancyRepository
	history     *HistoryService
	maxDepth    int
}

func NewGroupService(
	db *gorm.DB,
	groups *repository.GroupRepository,
	memberships *repository.MembershipRepository,
	vacancies *repository.VacancyRepository,
	history *HistoryService,
	maxDepth int,
) *GroupService {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &GroupService{
		db:          db,
		groups:      groups,
		memberships: memberships,
		vacancies:   vacancies,
		history:     history,
		maxDepth:    maxDepth,
	}
}

func (s *GroupService) Get(ctx context.Context, id string) (*model.Group, error) {
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	if group == nil {
		return nil, notFound("group", id)
	}
	return group, nil
}

func (s *GroupService) Roots(ctx context.Context) ([]model.Group, error) {
	return s.groups.ListRoots(ctx)
}

// Members 返回组内有效成员
func (s *GroupService) Members(ctx context.Context, id string) ([]model.Membership, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.memberships.ListActiveByGroup(ctx, id)
}

func (s *GroupService) Add(ctx context.Context, actor string, req AddGroupRequest) (group *model.Group, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("group.add", start, err) }()

	var event *model.HistoryEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		groups := s.groups.WithTx(tx)
		if req.ParentID != nil {
			parent, err := groups.ForUpdate().FindByID(ctx, *req.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return notFound("parent group", *req.ParentID)
			}
			path, err := s.breadcrumbs(ctx, groups, parent.ID)
			if err != nil {
				return err
			}
			if len(path)+1 > s.maxDepth {
				return invalid("group would be at depth %d, limit is %d", len(path)+1, s.maxDepth)
			}
		}

		group = &model.Group{Name: req.Name, ParentID: req.ParentID, Description: req.Description}
		if err := groups.Create(ctx, group); err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}

		event, err = s.history.Record(ctx, tx, Change{
			Actor:   actor,
			Action:  model.ActionCreateGroup,
			GroupID: &group.ID,
			After:   group.AuditFields(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(event)
	logger.L.Info("Group created", zap.String("groupID", group.ID), zap.String("actor", actor))
	return group, nil
}

func (s *GroupService) Edit(ctx context.Context, actor, id string, req EditGroupRequest) (group *model.Group, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("group.edit", start, err) }()

	return s.update(ctx, actor, id, model.ActionEditGroup, func(g *model.Group) error {
		if req.Name != nil {
			g.Name = *req.Name
		}
		if req.Description != nil {
			g.Description = req.Description
		}
		return nil
	})
}

func (s *GroupService) Archive(ctx context.Context, actor, id string, archived bool) (group *model.Group, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("group.archive", start, err) }()

	return s.update(ctx, actor, id, model.ActionArchiveGroup, func(g *model.Group) error {
		g.Archived = archived
		return nil
	})
}

// Move 修改父节点；newParentID 为 nil 时成为根节点
func (s *GroupService) Move(ctx context.Context, actor, id string, newParentID *string) (group *model.Group, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("group.move", start, err) }()

	return s.update(ctx, actor, id, model.ActionMoveGroup, func(g *model.Group) error {
		g.ParentID = newParentID
		return nil
	}, func(tx *gorm.DB) error {
		return s.CanMove(ctx, tx, id, newParentID)
	})
}

// update 在事务内加锁读取、校验、修改并记录历史
func (s *GroupService) update(
	ctx context.Context,
	actor, id string,
	action model.HistoryAction,
	mutate func(g *model.Group) error,
	checks ...func(tx *gorm.DB) error,
) (*model.Group, error) {
	var (
		group *model.Group
		event *model.HistoryEvent
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		groups := s.groups.WithTx(tx)
		found, err := groups.ForUpdate().FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to find group: %w", err)
		}
		if found == nil {
			return notFound("group", id)
		}
		for _, check := range checks {
			if err := check(tx); err != nil {
				return err
			}
		}

		before := found.AuditFields()
		if err := mutate(found); err != nil {
			return err
		}
		if err := groups.Save(ctx, found); err != nil {
			return fmt.Errorf("failed to save group: %w", err)
		}

		event, err = s.history.Record(ctx, tx, Change{
			Actor:   actor,
			Action:  action,
			GroupID: &found.ID,
			Before:  before,
			After:   found.AuditFields(),
		})
		group = found
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(event)
	logger.L.Info("Group updated",
		zap.String("groupID", id),
		zap.String("action", string(action)),
		zap.String("actor", actor))
	return group, nil
}

// Delete 删除没有子节点的组，并归档其成员记录和职位
func (s *GroupService) Delete(ctx context.Context, actor, id string) (group *model.Group, err error) {
	start := time.Now()
	defer func() { metrics.ObserveMutation("group.delete", start, err) }()

	var event *model.HistoryEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		groups := s.groups.WithTx(tx)
		found, err := groups.ForUpdate().FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to find group: %w", err)
		}
		if found == nil {
			return notFound("group", id)
		}
		if err := s.CanDelete(ctx, tx, id); err != nil {
			return err
		}

		archivedMembers, err := s.memberships.WithTx(tx).ArchiveByGroup(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to archive memberships: %w", err)
		}
		archivedVacancies, err := s.vacancies.WithTx(tx).ArchiveByGroup(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to archive vacancies: %w", err)
		}
		if err := groups.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		logger.L.Debug("Group dependents archived",
			zap.String("groupID", id),
			zap.Int64("memberships", archivedMembers),
			zap.Int64("vacancies", archivedVacancies))

		event, err = s.history.Record(ctx, tx, Change{
			Actor:   actor,
			Action:  model.ActionDeleteGroup,
			GroupID: &found.ID,
			Before:  found.AuditFields(),
		})
		group = found
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(event)
	logger.L.Info("Group deleted", zap.String("groupID", id), zap.String("actor", actor))
	return group, nil
}

// CanMove 校验移动不会形成环且不超过深度上限，必须与写操作在同一事务中调用
func (s *GroupService) CanMove(ctx context.Context, tx *gorm.DB, groupID string, newParentID *string) error {
	groups := s.groups.WithTx(tx)
	group, err := groups.FindByID(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to find group: %w", err)
	}
	if group == nil {
		return notFound("group", groupID)
	}
	if newParentID == nil {
		return nil
	}
	if *newParentID == groupID {
		return invalid("group %s cannot be its own parent", groupID)
	}

	parent, err := groups.ForUpdate().FindByID(ctx, *newParentID)
	if err != nil {
		return fmt.Errorf("failed to find parent group: %w", err)
	}
	if parent == nil {
		return notFound("parent group", *newParentID)
	}

	path, err := s.breadcrumbs(ctx, groups, *newParentID)
	if err != nil {
		return err
	}
	for _, g := range path {
		if g.ID == groupID {
			return invalid("group %s is an ancestor of %s, move would create a cycle", groupID, *newParentID)
		}
	}

	height, err := s.subtreeHeight(ctx, groups, groupID)
	if err != nil {
		return err
	}
	if depth := len(path) + height; depth > s.maxDepth {
		return invalid("move would place groups at depth %d, limit is %d", depth, s.maxDepth)
	}
	return nil
}

// subtreeHeight 以 id 为根的子树层数，叶子为 1
func (s *GroupService) subtreeHeight(ctx context.Context, groups *repository.GroupRepository, id string) (int, error) {
	seen := map[string]struct{}{id: {}}
	level := []string{id}
	height := 0
	for len(level) > 0 {
		height++
		if height > s.maxDepth {
			return 0, invalid("hierarchy depth limit %d exceeded", s.maxDepth)
		}
		children, err := groups.FindChildren(ctx, level)
		if err != nil {
			return 0, fmt.Errorf("failed to load children: %w", err)
		}
		next := make([]string, 0, len(children))
		for _, child := range children {
			if _, ok := seen[child.ID]; ok {
				return 0, invalid("cycle detected at group %s", child.ID)
			}
			seen[child.ID] = struct{}{}
			next = append(next, child.ID)
		}
		level = next
	}
	return height, nil
}

// CanDelete 有子节点的组不能删除
func (s *GroupService) CanDelete(ctx context.Context, tx *gorm.DB, groupID string) error {
	n, err := s.groups.WithTx(tx).CountChildren(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to count children: %w", err)
	}
	if n > 0 {
		return invalid("group %s has %d child groups", groupID, n)
	}
	return nil
}

// GetBreadcrumbs 返回从根到该组的路径，根在前；id 不存在时返回空
func (s *GroupService) GetBreadcrumbs(ctx context.Context, id string) ([]model.Group, error) {
	return s.breadcrumbs(ctx, s.groups, id)
}

func (s *GroupService) breadcrumbs(ctx context.Context, groups *repository.GroupRepository, id string) ([]model.Group, error) {
	path := []model.Group{}
	seen := make(map[string]struct{})

	next := &id
	for next != nil {
		if _, ok := seen[*next]; ok {
			return nil, invalid("cycle detected at group %s", *next)
		}
		if len(path) >= s.maxDepth {
			return nil, invalid("hierarchy depth limit %d exceeded", s.maxDepth)
		}
		seen[*next] = struct{}{}

		g, err := groups.FindByID(ctx, *next)
		if err != nil {
			return nil, fmt.Errorf("failed to load ancestor %s: %w", *next, err)
		}
		if g == nil {
			// 起点不存在时为空路径；中途断链时路径从最后一个可达节点开始
			break
		}
		path = append(path, *g)
		next = g.ParentID
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// GetHierarchy 按层 BFS 读取子树，每层一次查询
func (s *GroupService) GetHierarchy(ctx context.Context, id string) (*Hierarchy, error) {
	h := &Hierarchy{
		AdjacencyList: map[string][]string{},
		Dict:          map[string]*model.Group{},
	}

	root, err := s.groups.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	if root == nil {
		return h, nil
	}
	h.Dict[root.ID] = root
	h.AdjacencyList[root.ID] = []string{}

	level := []string{root.ID}
	for depth := 0; len(level) > 0; depth++ {
		if depth >= s.maxDepth {
			return nil, invalid("hierarchy depth limit %d exceeded", s.maxDepth)
		}
		children, err := s.groups.FindChildren(ctx, level)
		if err != nil {
			return nil, fmt.Errorf("failed to load children: %w", err)
		}

		next := make([]string, 0, len(children))
		for i := range children {
			child := &children[i]
			if _, ok := h.Dict[child.ID]; ok {
				return nil, invalid("cycle detected at group %s", child.ID)
			}
			h.Dict[child.ID] = child
			h.AdjacencyList[child.ID] = []string{}
			h.AdjacencyList[*child.ParentID] = append(h.AdjacencyList[*child.ParentID], child.ID)
			next = append(next, child.ID)
		}
		level = next
	}
	return h, nil
}
