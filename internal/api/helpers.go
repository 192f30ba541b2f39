package api

import (
	"fmt"
	"net/http"
	"strconv"

	"crew/internal/middleware"

	"github.com/gin-gonic/gin"
)

// 从上下文获取操作人，缺失时写入401
func actorFrom(c *gin.Context) (string, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrResponse{Error: APIError{Code: CodeUnauthorized, Message: "user not authenticated"}})
		return "", false
	}
	return userID, true
}

func pagination(c *gin.Context) (limit, offset int, err error) {
	if limit, err = intQuery(c, "limit", 50); err != nil {
		return 0, 0, err
	}
	if offset, err = intQuery(c, "offset", 0); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func boolQuery(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}
