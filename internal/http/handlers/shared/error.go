package shared

import (
	"errors"

	"github.com/melodiemoment/api/internal/http/response"
	"github.com/melodiemoment/api/internal/logger"
	"github.com/melodiemoment/api/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusRule 服务层错误到 HTTP 状态码的映射
type statusRule struct {
	target error
	code   int
}

var statusRules = []statusRule{
	{target: service.ErrOrderConcurrentUpdate, code: response.CodeConflict},

	{target: service.ErrUnauthorized, code: response.CodeUnauthorized},
	{target: service.ErrInvalidPassword, code: response.CodeUnauthorized},

	{target: service.ErrOrderNotFound, code: response.CodeNotFound},
	{target: service.ErrDeliverableNotFound, code: response.CodeNotFound},
	{target: service.ErrCampaignNotFound, code: response.CodeNotFound},

	{target: service.ErrInvalidInput, code: response.CodeBadRequest},
	{target: service.ErrPackageInvalid, code: response.CodeBadRequest},
	{target: service.ErrBundleInvalid, code: response.CodeBadRequest},
	{target: service.ErrOccasionInvalid, code: response.CodeBadRequest},
	{target: service.ErrStatusInvalid, code: response.CodeBadRequest},
	{target: service.ErrDeliverableType, code: response.CodeBadRequest},
	{target: service.ErrFileTooLarge, code: response.CodeBadRequest},
	{target: service.ErrBatchActionInvalid, code: response.CodeBadRequest},
	{target: service.ErrCaptchaRequired, code: response.CodeBadRequest},
	{target: service.ErrCaptchaInvalid, code: response.CodeBadRequest},
	{target: service.ErrOrderStatusInvalid, code: response.CodeBadRequest},
	{target: service.ErrOrderAlreadyDelivered, code: response.CodeBadRequest},
	{target: service.ErrDeliverableMissing, code: response.CodeBadRequest},
	{target: service.ErrMP3Missing, code: response.CodeBadRequest},
	{target: service.ErrCampaignInactive, code: response.CodeBadRequest},
	{target: service.ErrCampaignHasNoSteps, code: response.CodeBadRequest},
	{target: service.ErrAlreadyEnrolled, code: response.CodeBadRequest},
	{target: service.ErrWebhookSignature, code: response.CodeBadRequest},
	{target: service.ErrWebhookPayload, code: response.CodeBadRequest},

	{target: service.ErrAdminNotConfigured, code: response.CodeUnavailable},
	{target: service.ErrGenerationUnavailable, code: response.CodeUnavailable},
}

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if id := RequestID(c); id != "" {
		return logger.SW("request_id", id)
	}
	return logger.S()
}

// MapError 将错误映射为状态码与德语提示，未知错误返回 500
func MapError(err error) *response.AppError {
	code := response.CodeInternal
	for _, rule := range statusRules {
		if errors.Is(err, rule.target) {
			code = rule.code
			break
		}
	}
	msg, ok := service.UserMessage(err)
	if !ok {
		msg = response.MsgInternal
	}
	return response.WrapError(code, msg, err)
}

// RespondError 后台错误响应，details 携带原始错误
func RespondError(c *gin.Context, err error) {
	appErr := MapError(err)
	if appErr.Code == response.CodeUnauthorized {
		response.Unauthorized(c)
		return
	}
	logHandlerError(c, appErr)
	response.ErrorWithDetails(c, appErr.Code, appErr.Message, appErr.Details())
}

// RespondPublicError 前台错误响应，不暴露内部细节
func RespondPublicError(c *gin.Context, err error) {
	appErr := MapError(err)
	logHandlerError(c, appErr)
	response.Error(c, appErr.Code, appErr.Message)
}

// RespondErrorWithMsg 返回自定义消息错误响应，并在有原始错误时记录日志。
func RespondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	appErr := response.WrapError(code, msg, err)
	if err != nil {
		logHandlerError(c, appErr)
	}
	response.Error(c, appErr.Code, appErr.Message)
}

func logHandlerError(c *gin.Context, appErr *response.AppError) {
	log := RequestLog(c)
	if appErr.Code >= response.CodeInternal {
		log.Errorw("handler_error", "code", appErr.Code, "message", appErr.Message, "error", appErr.Err)
		return
	}
	log.Debugw("handler_rejected", "code", appErr.Code, "error", appErr.Err)
}
