package public

import (
	"github.com/melodiemoment/api/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetImageCaptcha 获取图片验证码挑战
func (h *Handler) GetImageCaptcha(c *gin.Context) {
	if !h.CaptchaService.Enabled() {
		response.Success(c, gin.H{"enabled": false})
		return
	}
	challenge, err := h.CaptchaService.GenerateImageChallenge()
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{
		"enabled":     true,
		"captchaId":   challenge.CaptchaID,
		"imageBase64": challenge.ImageBase64,
	})
}
