package shared

import (
	"context"

	"github.com/melodiemoment/api/internal/logger"

	"github.com/gin-gonic/gin"
)

// 路由中间件写入的上下文 key
const (
	ContextKeyRequestID = "request_id"
	ContextKeyAdmin     = "admin_authenticated"
)

// RequestID 获取请求 ID
func RequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if value, ok := c.Get(ContextKeyRequestID); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}

// RequestContext 返回携带请求日志的 context，服务层日志带同一个 request_id
func RequestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return logger.WithContext(c.Request.Context(), RequestLog(c))
}

// AdminSessionCookie 管理员会话 cookie 名
const AdminSessionCookie = "admin_session"
