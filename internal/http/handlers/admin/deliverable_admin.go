package admin

import (
	"fmt"
	"strings"

	handlershared "github.com/melodiemoment/api/internal/http/handlers/shared"
	"github.com/melodiemoment/api/internal/http/response"
	"github.com/melodiemoment/api/internal/service"

	"github.com/gin-gonic/gin"
)

// UploadDeliverable 上传交付文件 (multipart: file, orderId, type)
func (h *Handler) UploadDeliverable(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		handlershared.RespondErrorWithMsg(c, response.CodeBadRequest, "Keine Datei hochgeladen", err)
		return
	}
	orderID := strings.TrimSpace(c.PostForm("orderId"))
	if orderID == "" {
		respondError(c, fmt.Errorf("%w: orderId missing", service.ErrInvalidInput))
		return
	}
	deliverable, err := h.DeliverableService.Upload(requestContext(c), orderID, c.PostForm("type"), file)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, deliverable)
}

// DeleteDeliverable 删除交付文件
func (h *Handler) DeleteDeliverable(c *gin.Context) {
	if err := h.DeliverableService.Delete(requestContext(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"success": true})
}

// ListDeliverables 订单的交付文件
func (h *Handler) ListDeliverables(c *gin.Context) {
	items, err := h.DeliverableService.ListByOrderNumber(c.Param("orderNumber"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, items)
}
