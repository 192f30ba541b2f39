package app

import (
	"crew/internal/repository"
	"crew/internal/service"
	"crew/pkg/config"

	"gorm.io/gorm"
)

// Services 一个数据库连接上的全部仓库和服务
type Services struct {
	// UserRepo 供认证中间件查询用户
	UserRepo *repository.UserRepository

	Users        *service.UserService
	History      *service.HistoryService
	Groups       *service.GroupService
	Memberships  *service.MembershipService
	Vacancies    *service.VacancyService
	UserRequests *service.UserRequestService
}

// NewServices publisher 为 nil 时历史事件只落库不推送
func NewServices(gdb *gorm.DB, hierarchy config.HierarchyConfig, publisher service.Publisher) *Services {
	groupRepo := repository.NewGroupRepository(gdb)
	userRepo := repository.NewUserRepository(gdb)
	membershipRepo := repository.NewMembershipRepository(gdb)
	vacancyRepo := repository.NewVacancyRepository(gdb)

	history := service.NewHistoryService(repository.NewHistoryRepository(gdb), publisher)
	memberships := service.NewMembershipService(gdb, membershipRepo, userRepo, groupRepo, repository.NewRoleRepository(gdb), history)

	return &Services{
		UserRepo:     userRepo,
		Users:        service.NewUserService(gdb, userRepo, history),
		History:      history,
		Groups:       service.NewGroupService(gdb, groupRepo, membershipRepo, vacancyRepo, history, hierarchy.MaxDepth),
		Memberships:  memberships,
		Vacancies:    service.NewVacancyService(gdb, vacancyRepo, groupRepo, history),
		UserRequests: service.NewUserRequestService(gdb, repository.NewUserRequestRepository(gdb), userRepo, groupRepo, memberships, history),
	}
}
