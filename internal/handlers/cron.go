package handlers

import (
	"net/http"
	"xinzhi/internal/services"

	"github.com/gin-gonic/gin"
)

// CronHandler 批处理驱动的 HTTP 边界
// 外部定时器带共享密钥反复调用，直到 has_more_work 为 false
type CronHandler struct {
	scheduler *services.BatchScheduler
	secret    string
}

func NewCronHandler(scheduler *services.BatchScheduler, secret string) *CronHandler {
	return &CronHandler{scheduler: scheduler, secret: secret}
}

type cronFetchRequest struct {
	SourceBudget int `json:"source_budget"`
}

// Fetch POST /internal/cron/fetch 执行一轮 抓取→入库→分析
func (h *CronHandler) Fetch(c *gin.Context) {
	if h.secret == "" || c.GetHeader("X-Cron-Secret") != h.secret {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "密钥错误")
		return
	}

	// 请求体可选，允许临时调小预算
	var req cronFetchRequest
	_ = c.ShouldBindJSON(&req)

	report := h.scheduler.RunOnce(req.SourceBudget)
	c.JSON(http.StatusOK, report)
}
