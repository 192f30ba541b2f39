package api

import (
	"net/http"

	"crew/internal/service"

	"github.com/gin-gonic/gin"
)

type MembershipHandler struct {
	memberships *service.MembershipService
	history     *service.HistoryService
}

func NewMembershipHandler(memberships *service.MembershipService, history *service.HistoryService) *MembershipHandler {
	return &MembershipHandler{memberships: memberships, history: history}
}

func (h *MembershipHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.AddMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	membership, err := h.memberships.AddToGroup(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, membership)
}

func (h *MembershipHandler) UpdatePercentage(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.UpdatePercentageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	membership, err := h.memberships.UpdatePercentage(c.Request.Context(), actor, c.Param("id"), *req.Percentage)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, membership)
}

func (h *MembershipHandler) Archive(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	membership, err := h.memberships.Archive(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, membership)
}

func (h *MembershipHandler) AddRole(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.AddRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	membership, err := h.memberships.AddRole(c.Request.Context(), actor, c.Param("id"), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, membership)
}

func (h *MembershipHandler) RemoveRole(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	membership, err := h.memberships.RemoveRole(c.Request.Context(), actor, c.Param("id"), c.Param("role_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, membership)
}

// 以下为 /users/:id 下的只读接口

func (h *MembershipHandler) AvailablePercentage(c *gin.Context) {
	userID := c.Param("id")
	available, err := h.memberships.GetAvailablePercentage(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "available": available})
}

func (h *MembershipHandler) ListByUser(c *gin.Context) {
	includeArchived, err := boolQuery(c, "includeArchived")
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	memberships, err := h.memberships.ListByUser(c.Request.Context(), c.Param("id"), includeArchived)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, memberships)
}

func (h *MembershipHandler) UserHistory(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		writeBadRequest(c, err)
		return
	}
	events, err := h.history.ListByUser(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
