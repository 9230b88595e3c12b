package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	handlershared "github.com/melodiemoment/api/internal/http/handlers/shared"
	"github.com/melodiemoment/api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func requestContext(c *gin.Context) context.Context {
	return handlershared.RequestContext(c)
}

func respondError(c *gin.Context, err error) {
	handlershared.RespondError(c, err)
}

func bindError(err error) error {
	return handlershared.BindError(err)
}

func pagination(c *gin.Context) (int, int) {
	return handlershared.QueryPagination(c)
}

// parseTimeNullable 解析 RFC3339 或日期格式
func parseTimeNullable(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: time %q", service.ErrInvalidInput, raw)
	}
	return &t, nil
}
