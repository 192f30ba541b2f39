package api

import (
	"errors"
	"net/http"

	"crew/internal/service"
	"crew/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Available *int   `json:"available,omitempty"`
}

type ErrResponse struct {
	Error APIError `json:"error"`
}

const (
	CodeBadRequest       = "INVALID_REQUEST"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidOperation = "INVALID_OPERATION"
	CodeBudgetExceeded   = "BUDGET_EXCEEDED"
	CodeConflict         = "CONFLICT"
	CodeInternal         = "INTERNAL"
)

// MapError 领域错误到HTTP响应的唯一映射
func MapError(err error) (int, APIError) {
	var budget *service.BudgetExceededError
	switch {
	case errors.As(err, &budget):
		available := budget.Available
		return http.StatusConflict, APIError{Code: CodeBudgetExceeded, Message: err.Error(), Available: &available}
	case errors.Is(err, service.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, APIError{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, service.ErrInvalidOperation):
		return http.StatusUnprocessableEntity, APIError{Code: CodeInvalidOperation, Message: err.Error()}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict, APIError{Code: CodeConflict, Message: "resource already exists"}
	default:
		return http.StatusInternalServerError, APIError{Code: CodeInternal, Message: "internal server error"}
	}
}

func writeError(c *gin.Context, err error) {
	status, apiErr := MapError(err)
	if status >= http.StatusInternalServerError {
		logger.L.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		logger.L.Debug("Request rejected", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, ErrResponse{Error: apiErr})
}

func writeBadRequest(c *gin.Context, err error) {
	logger.L.Warn("Failed to bind request", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrResponse{Error: APIError{Code: CodeBadRequest, Message: err.Error()}})
}
