package api

import (
	"fmt"
	"net/http"

	"crew/internal/model"
	"crew/internal/service"

	"github.com/gin-gonic/gin"
)

type UserRequestHandler struct {
	requests *service.UserRequestService
}

func NewUserRequestHandler(requests *service.UserRequestService) *UserRequestHandler {
	return &UserRequestHandler{requests: requests}
}

func (h *UserRequestHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.CreateUserRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	request, err := h.requests.Create(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

func (h *UserRequestHandler) List(c *gin.Context) {
	status := model.UserRequestStatus(c.Query("status"))
	switch status {
	case "", model.UserRequestPending, model.UserRequestApproved, model.UserRequestDenied:
	default:
		writeBadRequest(c, fmt.Errorf("invalid status %q", status))
		return
	}

	requests, err := h.requests.List(c.Request.Context(), status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *UserRequestHandler) Approve(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	request, err := h.requests.Approve(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *UserRequestHandler) Deny(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	// 请求体可选
	var req service.DenyUserRequestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBadRequest(c, err)
			return
		}
	}

	request, err := h.requests.Deny(c.Request.Context(), actor, c.Param("id"), req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}
