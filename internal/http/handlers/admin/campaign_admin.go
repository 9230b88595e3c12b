package admin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/melodiemoment/api/internal/http/response"
	"github.com/melodiemoment/api/internal/service"

	"github.com/gin-gonic/gin"
)

// CampaignStepRequest 活动步骤
type CampaignStepRequest struct {
	Subject    string `json:"subject" binding:"required"`
	Body       string `json:"body" binding:"required"`
	DelayDays  int    `json:"delayDays" binding:"min=0"`
	DelayHours int    `json:"delayHours" binding:"min=0"`
}

// CreateCampaignRequest 创建邮件活动
type CreateCampaignRequest struct {
	Name        string                `json:"name" binding:"required"`
	Description string                `json:"description"`
	Trigger     string                `json:"trigger" binding:"required"`
	IsActive    bool                  `json:"isActive"`
	Steps       []CampaignStepRequest `json:"steps" binding:"required,dive"`
}

// EnrollRequest 手动加入活动
type EnrollRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

// ListCampaigns 邮件活动列表
func (h *Handler) ListCampaigns(c *gin.Context) {
	campaigns, err := h.CampaignService.List()
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, campaigns)
}

// CreateCampaign 创建邮件活动
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	steps := make([]service.CreateCampaignStepInput, 0, len(req.Steps))
	for _, step := range req.Steps {
		steps = append(steps, service.CreateCampaignStepInput{
			Subject:    step.Subject,
			Body:       step.Body,
			DelayDays:  step.DelayDays,
			DelayHours: step.DelayHours,
		})
	}
	campaign, err := h.CampaignService.Create(service.CreateCampaignInput{
		Name:        req.Name,
		Description: req.Description,
		Trigger:     strings.TrimSpace(req.Trigger),
		IsActive:    req.IsActive,
		Steps:       steps,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, campaign)
}

// EnrollOrder 将订单加入活动
func (h *Handler) EnrollOrder(c *gin.Context) {
	campaignID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || campaignID == 0 {
		respondError(c, fmt.Errorf("%w: campaign id", service.ErrInvalidInput))
		return
	}
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	enrollment, err := h.CampaignService.Enroll(requestContext(c), uint(campaignID), strings.TrimSpace(req.OrderID))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, enrollment)
}
