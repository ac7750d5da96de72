package services

import (
	"errors"
	"fmt"
	"xinzhi/internal/db"
	"xinzhi/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// 调用方契约错误，由 API 边界映射成明确的响应码
var (
	ErrSourceNotFound = errors.New("订阅源不存在")
	ErrSourceInactive = errors.New("订阅源已停用")
)

// IngestResult 一批条目的入库结果
type IngestResult struct {
	Created           []models.Article
	DuplicatesSkipped int
}

// IngestService 文章入库与去重
// 去重走"直接插入、捕获唯一约束冲突"，不做先查后插——并发入库时先查后插有竞态
type IngestService struct{}

func NewIngestService() *IngestService {
	return &IngestService{}
}

// Ingest 将一批候选条目写入同一个订阅源
// 链接重复按跳过计数；其他数据库错误立即中止剩余条目并上抛
func (s *IngestService) Ingest(sourceID uint, items []ParsedItem) (IngestResult, error) {
	var result IngestResult

	// 订阅源校验按批做一次，不按条目做
	var source models.Source
	if err := db.DB.First(&source, sourceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return result, ErrSourceNotFound
		}
		return result, fmt.Errorf("查询订阅源失败: %w", err)
	}
	if !source.IsActive {
		return result, ErrSourceInactive
	}

	for _, item := range items {
		article := models.Article{
			SourceID:        sourceID,
			Title:           item.Title,
			Description:     item.Description,
			Link:            item.Link,
			PublicationDate: item.PublishedAt,
		}

		if err := db.DB.Create(&article).Error; err != nil {
			if IsUniqueViolation(err) {
				result.DuplicatesSkipped++
				continue
			}
			// 真实错误不容忍，带着已完成的部分结果上抛
			return result, fmt.Errorf("写入文章失败: %w", err)
		}
		result.Created = append(result.Created, article)
	}

	return result, nil
}

// IsUniqueViolation 判断是否为唯一约束冲突（去重与并发写入都依赖它）
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
