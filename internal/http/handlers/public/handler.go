package public

import "github.com/melodiemoment/api/internal/provider"

// Handler 前台/公开接口处理器入口
// 说明：订单表单、状态页与支付回调。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
