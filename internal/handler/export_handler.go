package handler

import (
	"net/http"

	"hanna-chat-go/internal/model"
	"hanna-chat-go/internal/service"
	"hanna-chat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ExportRequest 是 POST /api/export 的请求体。
type ExportRequest struct {
	Messages []model.WireMessage `json:"messages"`
}

// ExportHandler 处理会话导出。
type ExportHandler struct {
	exportService service.ExportService
}

// NewExportHandler 创建一个新的 ExportHandler。
func NewExportHandler(exportService service.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService}
}

// Export 上传成功时返回 {url, object}；未配置对象存储时直接返回 Markdown。
func (h *ExportHandler) Export(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: InvalidBodyMessage})
		return
	}
	res, err := h.exportService.Export(c.Request.Context(), req.Messages)
	if err != nil {
		log.Error("导出会话失败", err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "failed to export transcript"})
		return
	}
	if res.URL == "" {
		c.Header("Content-Disposition", `attachment; filename="`+res.Object+`"`)
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(res.Markdown))
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": res.URL, "object": res.Object})
}
