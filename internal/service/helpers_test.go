package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"crew/internal/model"
	"crew/internal/repository"
	"crew/pkg/db"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const actor = "actor-1"

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.HistoryEvent
	err    error
}

func (p *recordingPublisher) PublishHistory(event *model.HistoryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) actions() []model.HistoryAction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.HistoryAction, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Action)
	}
	return out
}

type testEnv struct {
	db          *gorm.DB
	publisher   *recordingPublisher
	users       *repository.UserRepository
	historyRepo *repository.HistoryRepository
	history     *HistoryService
	groups      *GroupService
	memberships *MembershipService
	vacancies   *VacancyService
	requests    *UserRequestService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithDepth(t, DefaultMaxDepth)
}

func newTestEnvWithDepth(t *testing.T, maxDepth int) *testEnv {
	t.Helper()

	gdb := db.NewTestDB(t)
	pub := &recordingPublisher{}

	groupRepo := repository.NewGroupRepository(gdb)
	userRepo := repository.NewUserRepository(gdb)
	membershipRepo := repository.NewMembershipRepository(gdb)
	vacancyRepo := repository.NewVacancyRepository(gdb)
	historyRepo := repository.NewHistoryRepository(gdb)

	history := NewHistoryService(historyRepo, pub)
	memberships := NewMembershipService(gdb, membershipRepo, userRepo, groupRepo, repository.NewRoleRepository(gdb), history)

	return &testEnv{
		db:          gdb,
		publisher:   pub,
		users:       userRepo,
		historyRepo: historyRepo,
		history:     history,
		groups:      NewGroupService(gdb, groupRepo, membershipRepo, vacancyRepo, history, maxDepth),
		memberships: memberships,
		vacancies:   NewVacancyService(gdb, vacancyRepo, groupRepo, history),
		requests:    NewUserRequestService(gdb, repository.NewUserRequestRepository(gdb), userRepo, groupRepo, memberships, history),
	}
}

func (e *testEnv) addGroup(t *testing.T, name string, parent *model.Group) *model.Group {
	t.Helper()
	req := AddGroupRequest{Name: name}
	if parent != nil {
		req.ParentID = &parent.ID
	}
	g, err := e.groups.Add(context.Background(), actor, req)
	require.NoError(t, err)
	return g
}

func (e *testEnv) addUser(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: name + "@example.com", Active: true}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *testEnv) addMember(t *testing.T, u *model.User, g *model.Group, percentage *int) *model.Membership {
	t.Helper()
	m, err := e.memberships.AddToGroup(context.Background(), actor, AddMembershipRequest{
		UserID:     u.ID,
		GroupID:    g.ID,
		Percentage: percentage,
	})
	require.NoError(t, err)
	return m
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func ids(groups []model.Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.ID
	}
	return out
}

var errPublish = errors.New("feed unavailable")
