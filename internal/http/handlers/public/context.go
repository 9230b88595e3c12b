package public

import (
	"context"

	handlershared "github.com/melodiemoment/api/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func requestContext(c *gin.Context) context.Context {
	return handlershared.RequestContext(c)
}

// respondError 前台错误响应，不返回 details
func respondError(c *gin.Context, err error) {
	handlershared.RespondPublicError(c, err)
}
