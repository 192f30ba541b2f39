package api

import (
	"net/http"

	"crew/internal/service"

	"github.com/gin-gonic/gin"
)

type VacancyHandler struct {
	vacancies *service.VacancyService
}

func NewVacancyHandler(vacancies *service.VacancyService) *VacancyHandler {
	return &VacancyHandler{vacancies: vacancies}
}

func (h *VacancyHandler) Create(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.CreateVacancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	vacancy, err := h.vacancies.Create(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vacancy)
}

func (h *VacancyHandler) Get(c *gin.Context) {
	vacancy, err := h.vacancies.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, vacancy)
}

func (h *VacancyHandler) Edit(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.EditVacancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	vacancy, err := h.vacancies.Edit(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, vacancy)
}

func (h *VacancyHandler) Archive(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err)
		return
	}

	vacancy, err := h.vacancies.Archive(c.Request.Context(), actor, c.Param("id"), *req.Archived)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, vacancy)
}
