package admin

import (
	"github.com/melodiemoment/api/internal/http/response"

	"github.com/gin-gonic/gin"
)

// LyricsPDFRequest 可选的歌词文本
type LyricsPDFRequest struct {
	Lyrics string `json:"lyrics" binding:"max=5000"`
}

// GenerateSongPrompt 生成音乐提示词
func (h *Handler) GenerateSongPrompt(c *gin.Context) {
	result, err := h.GenerationService.GenerateSongPrompt(requestContext(c), c.Param("orderNumber"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// GenerateCover 生成封面并保存为 png
func (h *Handler) GenerateCover(c *gin.Context) {
	deliverable, err := h.GenerationService.GenerateCover(requestContext(c), c.Param("orderNumber"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, deliverable)
}

// GenerateLyricsPDF 生成歌词 PDF
func (h *Handler) GenerateLyricsPDF(c *gin.Context) {
	var req LyricsPDFRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, bindError(err))
			return
		}
	}
	deliverable, err := h.GenerationService.GenerateLyricsPDF(requestContext(c), c.Param("orderNumber"), req.Lyrics)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, deliverable)
}
