package public

import (
	"strings"

	handlershared "github.com/melodiemoment/api/internal/http/handlers/shared"
	"github.com/melodiemoment/api/internal/http/response"
	"github.com/melodiemoment/api/internal/service"

	"github.com/gin-gonic/gin"
)

// PricingRequest 价格相关字段
type PricingRequest struct {
	PackageType     string `json:"packageType" binding:"omitempty,package_type"`
	SelectedBundle  string `json:"selectedBundle" binding:"omitempty,bundle"`
	BumpKaraoke     bool   `json:"bumpKaraoke"`
	BumpRush        bool   `json:"bumpRush"`
	BumpGift        bool   `json:"bumpGift"`
	HasCustomLyrics bool   `json:"hasCustomLyrics"`
	CustomLyrics    string `json:"customLyrics" binding:"max=5000"`
}

func (r PricingRequest) toService() service.PricingInput {
	return service.PricingInput{
		PackageType:     strings.ToLower(strings.TrimSpace(r.PackageType)),
		SelectedBundle:  strings.ToLower(strings.TrimSpace(r.SelectedBundle)),
		BumpKaraoke:     r.BumpKaraoke,
		BumpRush:        r.BumpRush,
		BumpGift:        r.BumpGift,
		HasCustomLyrics: r.HasCustomLyrics,
		CustomLyrics:    r.CustomLyrics,
	}
}

// CreateOrderRequest 下单表单
type CreateOrderRequest struct {
	PricingRequest
	handlershared.CaptchaPayloadRequest
	RecipientName string `json:"recipientName" binding:"required"`
	Occasion      string `json:"occasion" binding:"required,occasion"`
	Relationship  string `json:"relationship"`
	Story         string `json:"story" binding:"required"`
	Genre         string `json:"genre"`
	Mood          int    `json:"mood" binding:"required,min=1,max=5"`
	CustomerName  string `json:"customerName" binding:"required"`
	CustomerEmail string `json:"customerEmail" binding:"required,email"`
}

// PreviewOrder 订单金额预览
func (h *Handler) PreviewOrder(c *gin.Context) {
	var req PricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, handlershared.BindError(err))
		return
	}
	preview, err := h.OrderService.Preview(req.toService())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, preview)
}

// CreateOrder 创建订单并返回支付链接
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, handlershared.BindError(err))
		return
	}
	result, err := h.OrderService.Create(requestContext(c), service.CreateOrderInput{
		PricingInput:  req.PricingRequest.toService(),
		RecipientName: req.RecipientName,
		Occasion:      req.Occasion,
		Relationship:  req.Relationship,
		Story:         req.Story,
		Genre:         req.Genre,
		Mood:          req.Mood,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Captcha:       req.CaptchaPayloadRequest.ToServicePayload(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, result)
}

// GetOrderStatus 公开订单状态，交付前不返回下载链接
func (h *Handler) GetOrderStatus(c *gin.Context) {
	view, err := h.OrderService.GetStatus(c.Param("orderNumber"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}

// GetOrderStatusBySession 支付完成跳转页
func (h *Handler) GetOrderStatusBySession(c *gin.Context) {
	view, err := h.OrderService.GetStatusBySession(c.Query("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, view)
}
