// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"study-with-speech/internal/middleware"
	"study-with-speech/internal/model"
	"study-with-speech/internal/service"
	"study-with-speech/pkg/log"

	"github.com/gin-gonic/gin"
)

// errorStatus 把业务错误映射为 HTTP 状态码与对外的错误信息。
// 5xx 只返回通用信息，细节只写日志。
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, service.ErrInvalidCredentials.Error()
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusUnauthorized, service.ErrInvalidToken.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, service.ErrForbidden.Error()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, service.ErrNotFound.Error()
	case errors.Is(err, service.ErrDuplicateEmail):
		return http.StatusConflict, service.ErrDuplicateEmail.Error()
	case errors.Is(err, service.ErrAlreadySaved):
		return http.StatusConflict, service.ErrAlreadySaved.Error()
	case errors.Is(err, service.ErrMessageCreationFailed):
		return http.StatusInternalServerError, service.ErrMessageCreationFailed.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// writeError 统一输出 {"error": "..."} 格式的错误响应。
func writeError(c *gin.Context, op string, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s: %v", op, err)
	} else {
		log.Warnf("%s: %v", op, err)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// currentUser 返回 AuthMiddleware 放入上下文的用户。
func currentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

// mustUser 在上下文缺少用户时直接返回 401。
func mustUser(c *gin.Context) (*model.User, bool) {
	user, ok := currentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return user, ok
}

// idParam 解析路径中的正整数 ID。
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
