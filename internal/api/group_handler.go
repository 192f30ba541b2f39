package api

import (
	"net/http"

	"crew/internal/service"

	"github.com/gin-gonic/gin"
)

type GroupHandler struct {
	groups    *service.GroupService
	vacancies *service.VacancyService
	history   *service.HistoryService
}

func NewGroupHandler(groups *service.GroupService, vacancies *service.VacancyService, history *service.HistoryService) *GroupHandler {
	return &GroupHandler{groups: groups, vacancies: vacancies, history: history}
}

func (h *GroupHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.AddGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	group, err := h.groups.Add(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *GroupHandler) Roots(c *gin.Context) {
	groups, err := h.groups.Roots(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *GroupHandler) Get(c *gin.Context) {
	group, err := h.groups.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) Edit(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.EditGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	group, err := h.groups.Edit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) Move(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.MoveGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	group, err := h.groups.Move(c.Request.Context(), actor, c.Param("id"), req.ParentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) Archive(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	group, err := h.groups.Archive(c.Request.Context(), actor, c.Param("id"), *req.Archived)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) Delete(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	group, err := h.groups.Delete(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *GroupHandler) Breadcrumbs(c *gin.Context) {
	path, err := h.groups.GetBreadcrumbs(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, path)
}

func (h *GroupHandler) Hierarchy(c *gin.Context) {
	hierarchy, err := h.groups.GetHierarchy(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hierarchy)
}

func (h *GroupHandler) Members(c *gin.Context) {
	members, err := h.groups.Members(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *GroupHandler) Vacancies(c *gin.Context) {
	includeArchived, err := boolQuery(c, "includeArchived")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	vacancies, err := h.vacancies.ListByGroup(c.Request.Context(), c.Param("id"), includeArchived)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, vacancies)
}

func (h *GroupHandler) History(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	events, err := h.history.ListByGroup(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
