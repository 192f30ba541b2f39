package api

import (
	"net/http"

	"crew/internal/metrics"
	"crew/internal/middleware"
	"crew/pkg/logger"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Group       *GroupHandler
	Membership  *MembershipHandler
	Vacancy     *VacancyHandler
	UserRequest *UserRequestHandler
	WS          *WSHandler
}

// SetupRouter 注册全部路由，auth 为认证中间件
func SetupRouter(h Handlers, auth gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(ginzap.RecoveryWithZap(logger.L, true))
	router.Use(metrics.GinMiddleware)
	router.Use(middleware.GinZapLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api", auth)

	groups := api.Group("/groups")
	{
		groups.POST("", h.Group.Create)
		groups.GET("/roots", h.Group.Roots)
		groups.GET("/:id", h.Group.Get)
		groups.PATCH("/:id", h.Group.Edit)
		groups.POST("/:id/move", h.Group.Move)
		groups.POST("/:id/archive", h.Group.Archive)
		groups.DELETE("/:id", h.Group.Delete)
		groups.GET("/:id/breadcrumbs", h.Group.Breadcrumbs)
		groups.GET("/:id/hierarchy", h.Group.Hierarchy)
		groups.GET("/:id/members", h.Group.Members)
		groups.GET("/:id/vacancies", h.Group.Vacancies)
		groups.GET("/:id/history", h.Group.History)
	}

	memberships := api.Group("/memberships")
	{
		memberships.POST("", h.Membership.Create)
		memberships.PATCH("/:id/percentage", h.Membership.UpdatePercentage)
		memberships.DELETE("/:id", h.Membership.Archive)
		memberships.POST("/:id/roles", h.Membership.AddRole)
		memberships.DELETE("/:id/roles/:role_id", h.Membership.RemoveRole)
	}

	users := api.Group("/users")
	{
		users.GET("/:id/available-percentage", h.Membership.AvailablePercentage)
		users.GET("/:id/memberships", h.Membership.ListByUser)
		users.GET("/:id/history", h.Membership.UserHistory)
	}

	vacancies := api.Group("/vacancies")
	{
		vacancies.POST("", h.Vacancy.Create)
		vacancies.GET("/:id", h.Vacancy.Get)
		vacancies.PATCH("/:id", h.Vacancy.Edit)
		vacancies.POST("/:id/archive", h.Vacancy.Archive)
	}

	requests := api.Group("/user-requests")
	{
		requests.POST("", h.UserRequest.Create)
		requests.GET("", h.UserRequest.List)
		requests.POST("/:id/approve", h.UserRequest.Approve)
		requests.POST("/:id/deny", h.UserRequest.Deny)
	}

	api.GET("/history/ws", h.WS.HandleConnection)

	return router
}
