package public

import (
	"errors"
	"io"
	"net/http"

	"github.com/melodiemoment/api/internal/http/response"
	"github.com/melodiemoment/api/internal/service"

	"github.com/gin-gonic/gin"
)

const maxWebhookBodyBytes = 1 << 20

// StripeWebhook Stripe 事件回调。签名校验失败返回 400，内部错误返回 500
// 以便 Stripe 重试，其余事件一律确认接收。
func (h *Handler) StripeWebhook(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		log.Warnw("stripe_webhook_body_read_failed", "error", err)
		response.BadRequest(c, response.MsgBadRequest)
		return
	}
	signature := c.GetHeader("Stripe-Signature")
	log.Infow("stripe_webhook_received", "client_ip", c.ClientIP(), "body_size", len(body), "has_signature", signature != "")

	outcome, err := h.WebhookService.Handle(requestContext(c), signature, body)
	if err != nil {
		if errors.Is(err, service.ErrWebhookSignature) || errors.Is(err, service.ErrWebhookPayload) {
			respondError(c, err)
			return
		}
		log.Errorw("stripe_webhook_handle_failed", "error", err)
		response.Error(c, response.CodeInternal, response.MsgInternal)
		return
	}
	log.Infow("stripe_webhook_handled",
		"event_id", outcome.EventID,
		"event_type", outcome.EventType,
		"duplicate", outcome.Duplicate,
		"ignored", outcome.Ignored,
		"transitioned", outcome.Transitioned,
	)
	response.Success(c, gin.H{"received": true})
}
