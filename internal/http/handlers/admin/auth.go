package admin

import (
	"net/http"
	"time"

	handlershared "github.com/melodiemoment/api/internal/http/handlers/shared"
	"github.com/melodiemoment/api/internal/http/response"

	"github.com/gin-gonic/gin"
)

// LoginRequest 管理员登录
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login 校验密码并下发会话 cookie
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindError(err))
		return
	}
	token, expiresAt, err := h.AuthService.Login(req.Password)
	if err != nil {
		requestLog(c).Warnw("admin_login_failed", "client_ip", c.ClientIP(), "error", err)
		respondError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(handlershared.AdminSessionCookie, token, int(time.Until(expiresAt).Seconds()), "/", "", h.AuthService.CookieSecure(), true)
	requestLog(c).Infow("admin_login", "client_ip", c.ClientIP())
	response.Success(c, gin.H{"success": true, "expiresAt": expiresAt})
}

// Logout 清除会话 cookie
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(handlershared.AdminSessionCookie, "", -1, "/", "", h.AuthService.CookieSecure(), true)
	response.Success(c, gin.H{"success": true})
}
