package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"xinzhi/internal/db"
	"xinzhi/internal/models"
	"xinzhi/internal/utils"

	"gorm.io/gorm"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	profileCacheTTL  = time.Minute
)

// 调用方契约错误
var (
	ErrProfileNotFound = errors.New("个性化配置不存在")
	ErrArticleNotFound = errors.New("文章不存在")
)

// ArticleQueryParams 列表查询参数，所有可选过滤在这里静态枚举
// 不做动态拼链，每条代码路径都可单独测试
type ArticleQueryParams struct {
	Limit                int
	Offset               int
	Sentiment            string
	TopicID              uint
	SourceID             uint
	SortBy               string // publication_date / created_at
	SortOrder            string // asc / desc
	ApplyPersonalization bool
}

type SourceView struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type TopicView struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// ArticleView 对外输出的文章形状
type ArticleView struct {
	ID              uint        `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Link            string      `json:"link"`
	PublicationDate time.Time   `json:"publication_date"`
	Sentiment       *string     `json:"sentiment"`
	Source          SourceView  `json:"source"`
	Topics          []TopicView `json:"topics"`
	CreatedAt       time.Time   `json:"created_at"`
}

type PaginationMeta struct {
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	Total   int64 `json:"total"` // 屏蔽词过滤前的总数
	HasMore bool  `json:"has_more"`
}

type FiltersApplied struct {
	Sentiment              string `json:"sentiment,omitempty"`
	PersonalizationApplied bool   `json:"personalization_applied"`
	BlockedItemsCount      int    `json:"blocked_items_count,omitempty"`
}

type ArticleListResult struct {
	Data           []ArticleView  `json:"data"`
	Pagination     PaginationMeta `json:"pagination"`
	FiltersApplied FiltersApplied `json:"filters_applied"`
}

// ArticleQueryService 个性化文章检索（只读）
type ArticleQueryService struct {
	cache *utils.GlobalCache
}

func NewArticleQueryService() *ArticleQueryService {
	return &ArticleQueryService{cache: utils.GetCache()}
}

// GetArticles 分页查询文章列表，可选按读者身份做个性化过滤
//
// 屏蔽词是库外过滤（子串匹配没法下推成简单的等值条件），所以有屏蔽词时
// 按 2×limit 超量取数，过滤后再裁回 limit。这是启发式补偿：同一页里被
// 屏蔽的超过 limit 条时页面仍可能不满，属于已记录的边界而不是缺陷。
func (s *ArticleQueryService) GetArticles(params ArticleQueryParams, userID string) (ArticleListResult, error) {
	params = normalizeQueryParams(params)

	// 要求个性化但还没建配置，是调用方契约错误，不做静默降级
	var profile *models.Profile
	personalizing := false
	if params.ApplyPersonalization && userID != "" {
		p, err := s.loadProfile(userID)
		if err != nil {
			return ArticleListResult{}, err
		}
		if p.PersonalizationEnabled {
			profile = p
			personalizing = true
		}
	}

	var blocklist []string
	if personalizing {
		blocklist = normalizeBlocklist(profile.Blocklist)
	}
	fetchSize := fetchSizeFor(params.Limit, blocklist)

	// 显式情感过滤优先；否则个性化时把心情当隐式情感过滤
	effectiveSentiment := params.Sentiment
	if effectiveSentiment == "" && personalizing && profile.Mood != nil && *profile.Mood != "" {
		effectiveSentiment = *profile.Mood
	}

	filters := FiltersApplied{Sentiment: effectiveSentiment, PersonalizationApplied: personalizing}

	query := db.DB.Model(&models.Article{})
	if effectiveSentiment != "" {
		query = query.Where("sentiment = ?", effectiveSentiment)
	}
	if params.SourceID != 0 {
		query = query.Where("source_id = ?", params.SourceID)
	}
	if params.TopicID != 0 {
		var ids []uint
		if err := db.DB.Model(&models.ArticleTopic{}).
			Where("topic_id = ?", params.TopicID).
			Pluck("article_id", &ids).Error; err != nil {
			return ArticleListResult{}, fmt.Errorf("查询话题关联失败: %w", err)
		}
		// 话题下没有任何文章，直接短路返回空页，省一次必然为空的查询
		if len(ids) == 0 {
			return ArticleListResult{
				Data:           []ArticleView{},
				Pagination:     paginationMeta(params.Limit, params.Offset, 0),
				FiltersApplied: filters,
			}, nil
		}
		query = query.Where("id IN ?", ids)
	}

	// hasMore 基于屏蔽词过滤前的总数
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return ArticleListResult{}, fmt.Errorf("统计文章总数失败: %w", err)
	}

	var rows []models.Article
	if err := query.
		Preload("Source").
		Preload("Topics").
		Order(orderClause(params.SortBy, params.SortOrder)).
		Offset(params.Offset).
		Limit(fetchSize).
		Find(&rows).Error; err != nil {
		return ArticleListResult{}, fmt.Errorf("查询文章失败: %w", err)
	}

	kept, blocked := applyBlocklist(rows, blocklist)
	if len(kept) > params.Limit {
		kept = kept[:params.Limit] // 绝不超过调用方要的数量
	}
	if blocked > 0 {
		filters.BlockedItemsCount = blocked
	}

	data := make([]ArticleView, 0, len(kept))
	for i := range kept {
		view, err := toArticleView(&kept[i])
		if err != nil {
			// 单条映射失败只丢那一条，不让整页报错
			log.Printf("文章 %d 映射失败（跳过）: %v", kept[i].ID, err)
			continue
		}
		data = append(data, view)
	}

	return ArticleListResult{
		Data:           data,
		Pagination:     paginationMeta(params.Limit, params.Offset, total),
		FiltersApplied: filters,
	}, nil
}

// GetArticle 文章详情，带订阅源与话题
func (s *ArticleQueryService) GetArticle(id uint) (ArticleView, error) {
	var article models.Article
	if err := db.DB.Preload("Source").Preload("Topics").First(&article, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ArticleView{}, ErrArticleNotFound
		}
		return ArticleView{}, fmt.Errorf("查询文章失败: %w", err)
	}
	return toArticleView(&article)
}

func normalizeQueryParams(p ArticleQueryParams) ArticleQueryParams {
	if p.Limit <= 0 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.SortBy == "" {
		p.SortBy = "publication_date"
	}
	if p.SortOrder == "" {
		p.SortOrder = "desc"
	}
	return p
}

// orderClause 排序字段与方向都走白名单，不拼接用户输入
func orderClause(sortBy, sortOrder string) string {
	column := "publication_date"
	if sortBy == "created_at" {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}
	return column + " " + direction
}

func paginationMeta(limit, offset int, total int64) PaginationMeta {
	return PaginationMeta{
		Limit:   limit,
		Offset:  offset,
		Total:   total,
		HasMore: int64(offset+limit) < total,
	}
}

// fetchSizeFor 有屏蔽词时按两倍取数，补偿库外过滤的损耗
func fetchSizeFor(limit int, blocklist []string) int {
	if len(blocklist) > 0 {
		return limit * 2
	}
	return limit
}

func normalizeBlocklist(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// articleBlocked 任一屏蔽词命中标题、摘要或链接任一字段即屏蔽（大小写不敏感子串）
func articleBlocked(a *models.Article, lowerTerms []string) bool {
	title := strings.ToLower(a.Title)
	desc := strings.ToLower(a.Description)
	link := strings.ToLower(a.Link)
	for _, term := range lowerTerms {
		if strings.Contains(title, term) || strings.Contains(desc, term) || strings.Contains(link, term) {
			return true
		}
	}
	return false
}

func applyBlocklist(rows []models.Article, lowerTerms []string) ([]models.Article, int) {
	if len(lowerTerms) == 0 {
		return rows, 0
	}
	kept := make([]models.Article, 0, len(rows))
	blocked := 0
	for i := range rows {
		if articleBlocked(&rows[i], lowerTerms) {
			blocked++
			continue
		}
		kept = append(kept, rows[i])
	}
	return kept, blocked
}

func toArticleView(a *models.Article) (ArticleView, error) {
	if a.Source.ID == 0 {
		return ArticleView{}, errors.New("订阅源关联缺失")
	}
	topics := make([]TopicView, 0, len(a.Topics))
	for _, t := range a.Topics {
		topics = append(topics, TopicView{ID: t.ID, Name: t.Name})
	}
	return ArticleView{
		ID:              a.ID,
		Title:           a.Title,
		Description:     a.Description,
		Link:            a.Link,
		PublicationDate: a.PublicationDate,
		Sentiment:       a.Sentiment,
		Source:          SourceView{ID: a.Source.ID, Name: a.Source.Name},
		Topics:          topics,
		CreatedAt:       a.CreatedAt,
	}, nil
}

// loadProfile 读个性化配置，短 TTL 缓存；行不存在属于调用方契约错误
func (s *ArticleQueryService) loadProfile(userID string) (*models.Profile, error) {
	v, err := s.cache.Remember("profile:"+userID, profileCacheTTL, func() (interface{}, error) {
		var p models.Profile
		if err := db.DB.First(&p, "user_id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrProfileNotFound
			}
			return nil, fmt.Errorf("查询个性化配置失败: %w", err)
		}
		return &p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Profile), nil
}
