package admin

import (
	"strings"
	"time"

	"github.com/melodiemoment/api/internal/http/response"
	"github.com/melodiemoment/api/internal/repository"
	"github.com/melodiemoment/api/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateOrderRequest 手动修正订单，字段缺省表示不修改
type UpdateOrderRequest struct {
	Status      *string    `json:"status"`
	DeliveryURL *string    `json:"delivery_url"`
	DeliveredAt *time.Time `json:"delivered_at"`
}

// PrioritizeRequest 指定订单优先级分析
type PrioritizeRequest struct {
	OrderIDs []string `json:"orderIds" binding:"required"`
}

// BatchRequest 批量操作
type BatchRequest struct {
	Action   string   `json:"action" binding:"required"`
	OrderIDs []string `json:"orderIds" binding:"required"`
	Status   string   `json:"status"`
}

// DeliverRequest 单笔交付
type DeliverRequest struct {
	OrderNumber string `json:"orderNumber" binding:"required"`
}

// ListOrders 管理端订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	page, pageSize := pagination(c)
	createdFrom, err := parseTimeNullable(c.Query("created_from"))
	if err != nil {
		respondError(c, err)
		return
	}
	createdTo, err := parseTimeNullable(c.Query("created_to"))
	if err != nil {
		respondError(c, err)
		return
	}
	orders, total, err := h.OrderService.ListOrdersForAdmin(repository.OrderListFilter{
		Page:        page,
		PageSize:    pageSize,
		Status:      strings.TrimSpace(c.Query("status")),
		Priority:    strings.TrimSpace(c.Query("priority")),
		Search:      strings.TrimSpace(c.Query("search")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessWithPage(c, orders, response.NewPagination(page, pageSize, total))
}

// GetOrder 订单详情，含交付文件与价格明细
func (h *Handler) GetOrder(c *gin.Context) {
	detail, err := h.OrderService.GetOrderForAdmin(c.Param("orderNumber"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, detail)
}

// UpdateOrder 手动修正状态，不做流转校验
func (h *Handler) UpdateOrder(c *gin.Context) {
	var req UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		req.Status = &status
	}
	order, err := h.OrderStateService.OverrideStatus(c.Param("orderNumber"), service.OverrideInput{
		Status:      req.Status,
		DeliveryURL: req.DeliveryURL,
		DeliveredAt: req.DeliveredAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, order)
}

// PrioritizeOrders 分析指定订单
func (h *Handler) PrioritizeOrders(c *gin.Context) {
	var req PrioritizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	results, err := h.PriorityService.AnalyzeOrders(requestContext(c), req.OrderIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"analyzed": len(results), "analyses": results})
}

// PrioritizeUnanalyzed 自动选择尚未分析的进行中订单
func (h *Handler) PrioritizeUnanalyzed(c *gin.Context) {
	results, err := h.PriorityService.AnalyzeUnprioritized(requestContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"analyzed": len(results), "analyses": results})
}

// BatchOrders 批量操作，逐单独立处理
func (h *Handler) BatchOrders(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	result, err := h.FulfillmentService.RunBatch(requestContext(c), service.BatchInput{
		Action:   req.Action,
		OrderIDs: req.OrderIDs,
		Status:   strings.TrimSpace(req.Status),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	requestLog(c).Infow("admin_batch_done",
		"action", result.Action,
		"total", result.Total,
		"success_count", result.SuccessCount,
		"failed_count", result.FailedCount,
	)
	response.Success(c, result)
}

// DeliverOrder 单笔交付
func (h *Handler) DeliverOrder(c *gin.Context) {
	var req DeliverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	result, err := h.FulfillmentService.DeliverOrder(requestContext(c), strings.TrimSpace(req.OrderNumber))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"success":     true,
		"deliveryUrl": result.DeliveryURL,
		"emailSent":   result.EmailSent,
	})
}
