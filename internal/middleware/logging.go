package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"study-with-speech/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader 用于串联客户端与服务端日志。
const RequestIDHeader = "X-Request-ID"

const maxLoggedBody = 4 << 10

const chatPathPrefix = "/chat/"

// 这些路由的请求体包含密码或 token，不记录。
var sensitivePaths = map[string]struct{}{
	"/register":     {},
	"/login":        {},
	"/auth/refresh": {},
	"/logout":       {},
}

// RequestLogger 是一个 Gin 中间件，记录每个请求的状态码、耗时与请求 ID。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("requestId", requestID)
		c.Header(RequestIDHeader, requestID)

		path := c.Request.URL.Path
		var requestBody []byte
		if _, sensitive := sensitivePaths[path]; !sensitive && c.Request.Body != nil && isJSON(c.ContentType()) {
			// 读取并重新缓存请求体，以便后续处理函数可以正常读取
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(requestBody))
		}

		c.Next()

		fields := []interface{}{
			"requestId", requestID,
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", loggedPath(c, path),
		}
		if len(requestBody) > 0 {
			if len(requestBody) > maxLoggedBody {
				requestBody = requestBody[:maxLoggedBody]
			}
			fields = append(fields, "requestBody", string(requestBody))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}
		log.Infow("HTTP Request Log", fields...)
	}
}

// /chat/:token 的路径里带有 access token，只记录路由模板。
func loggedPath(c *gin.Context, path string) string {
	if !strings.HasPrefix(path, chatPathPrefix) {
		return path
	}
	if route := c.FullPath(); route != "" {
		return route
	}
	return chatPathPrefix + ":token"
}

func isJSON(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}
