package handlers

import (
	"errors"
	"net/http"
	"xinzhi/internal/middleware"
	"xinzhi/internal/models"
	"xinzhi/internal/services"
	"xinzhi/internal/utils"

	"github.com/gin-gonic/gin"
)

type ArticleHandler struct {
	query *services.ArticleQueryService
}

func NewArticleHandler(query *services.ArticleQueryService) *ArticleHandler {
	return &ArticleHandler{query: query}
}

// List GET /api/articles 分页文章列表，可选个性化过滤
func (h *ArticleHandler) List(c *gin.Context) {
	params, ok := parseListParams(c)
	if !ok {
		return // parseListParams 已经写了 400 响应
	}

	result, err := h.query.GetArticles(params, middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			RespondError(c, http.StatusNotFound, "PROFILE_NOT_FOUND", "请先创建个性化配置")
			return
		}
		RespondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "查询文章失败")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Detail GET /api/articles/:id 单篇文章
func (h *ArticleHandler) Detail(c *gin.Context) {
	id := utils.StringToUint(c.Param("id"))
	if id == 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_PARAMETER", "无效的文章 ID")
		return
	}

	view, err := h.query.GetArticle(id)
	if err != nil {
		if errors.Is(err, services.ErrArticleNotFound) {
			RespondError(c, http.StatusNotFound, "ARTICLE_NOT_FOUND", "文章不存在")
			return
		}
		RespondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "查询文章失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": view})
}

// parseListParams 解析并校验列表查询参数，非法时直接写 400 并返回 false
func parseListParams(c *gin.Context) (services.ArticleQueryParams, bool) {
	params := services.ArticleQueryParams{
		Limit:                utils.StringToIntDefault(c.Query("limit"), 20),
		Offset:               utils.StringToIntDefault(c.Query("offset"), 0),
		Sentiment:            c.Query("sentiment"),
		TopicID:              utils.StringToUint(c.Query("topic_id")),
		SourceID:             utils.StringToUint(c.Query("source_id")),
		SortBy:               c.DefaultQuery("sort_by", "publication_date"),
		SortOrder:            c.DefaultQuery("sort_order", "desc"),
		ApplyPersonalization: c.Query("apply_personalization") == "true",
	}

	if params.Sentiment != "" && !models.ValidSentiment(params.Sentiment) {
		RespondError(c, http.StatusBadRequest, "INVALID_PARAMETER", "sentiment 只能是 positive/neutral/negative")
		return params, false
	}
	if params.SortBy != "publication_date" && params.SortBy != "created_at" {
		RespondError(c, http.StatusBadRequest, "INVALID_PARAMETER", "sort_by 只能是 publication_date/created_at")
		return params, false
	}
	if params.SortOrder != "asc" && params.SortOrder != "desc" {
		RespondError(c, http.StatusBadRequest, "INVALID_PARAMETER", "sort_order 只能是 asc/desc")
		return params, false
	}
	return params, true
}
