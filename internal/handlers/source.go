package handlers

import (
	"net/http"
	"xinzhi/internal/db"
	"xinzhi/internal/models"

	"github.com/gin-gonic/gin"
)

type SourceHandler struct{}

func NewSourceHandler() *SourceHandler {
	return &SourceHandler{}
}

// List GET /api/sources 订阅源列表及抓取状态
func (h *SourceHandler) List(c *gin.Context) {
	var sources []models.Source
	if err := db.DB.Order("id ASC").Find(&sources).Error; err != nil {
		RespondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "查询订阅源失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sources})
}
