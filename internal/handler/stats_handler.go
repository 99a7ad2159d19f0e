package handler

import (
	"net/http"

	"hanna-chat-go/internal/model"
	"hanna-chat-go/internal/service"
	"hanna-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// StatsHandler 暴露交换统计。statsService 为 nil 表示未启用。
type StatsHandler struct {
	statsService service.StatsService
}

// NewStatsHandler 创建一个新的 StatsHandler。
func NewStatsHandler(statsService service.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// Stats 处理 GET /api/stats。
func (h *StatsHandler) Stats(c *gin.Context) {
	if h.statsService == nil {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: "stats disabled"})
		return
	}
	stats, err := h.statsService.Snapshot(c.Request.Context())
	if err != nil {
		log.Error("读取统计失败", err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Health 处理 GET /health。
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
