package services

import (
	"fmt"
	"log"
	"time"
	"xinzhi/internal/config"
	"xinzhi/internal/db"
	"xinzhi/internal/models"
)

// BatchReport 一次批处理调用的汇总，交给外部定时器决定是否继续调
type BatchReport struct {
	SourcesProcessed   int  `json:"sources_processed"`
	SourcesFailed      int  `json:"sources_failed"`
	ArticlesCreated    int  `json:"articles_created"`
	DuplicatesSkipped  int  `json:"duplicates_skipped"`
	ArticlesClassified int  `json:"articles_classified"`
	ClassifyFailed     int  `json:"classify_failed"`
	HasMoreWork        bool `json:"has_more_work"`
}

// BatchScheduler 批处理驱动：抓取 → 入库 → 分析，逐源顺序执行
// 进程内不做并发，吞吐靠外部定时器反复调用堆出来，
// 这样单次调用的对外请求数有上界（托管平台常有子请求配额）
type BatchScheduler struct {
	fetcher    *FeedFetcher
	ingest     *IngestService
	classifier *ClassifierService
	cfg        config.CronConfig
}

func NewBatchScheduler(fetcher *FeedFetcher, ingest *IngestService, classifier *ClassifierService, cfg config.CronConfig) *BatchScheduler {
	return &BatchScheduler{
		fetcher:    fetcher,
		ingest:     ingest,
		classifier: classifier,
		cfg:        cfg,
	}
}

// RunOnce 处理一批过期订阅源，直到数量预算或时间预算耗尽
// sourceBudget <= 0 时用配置的默认预算
// 按最久未抓取优先（NULL 最前），保证多次调用之间的轮转公平
func (s *BatchScheduler) RunOnce(sourceBudget int) BatchReport {
	start := time.Now()
	if sourceBudget <= 0 {
		sourceBudget = s.cfg.SourceBudget
	}

	cutoff := start.Add(-s.cfg.RefreshInterval)
	var stale []models.Source
	if err := db.DB.
		Where("is_active = ?", true).
		Where("last_fetched_at IS NULL OR last_fetched_at < ?", cutoff).
		Order("last_fetched_at ASC NULLS FIRST").
		Find(&stale).Error; err != nil {
		log.Printf("查询待抓取订阅源失败: %v", err)
		return BatchReport{}
	}

	var report BatchReport
	processed := 0
	for i := range stale {
		if processed >= sourceBudget {
			break
		}
		if time.Since(start) > s.cfg.TimeBudget {
			log.Printf("时间预算耗尽，本次处理 %d 个订阅源后退出", processed)
			break
		}
		s.processSource(&stale[i], &report)
		processed++
	}

	report.SourcesProcessed = processed
	report.HasMoreWork = len(stale) > processed

	log.Printf("批处理完成: 处理 %d 源（失败 %d），新增 %d 篇，跳过重复 %d，分析成功 %d（失败 %d），剩余工作: %v",
		report.SourcesProcessed, report.SourcesFailed, report.ArticlesCreated,
		report.DuplicatesSkipped, report.ArticlesClassified, report.ClassifyFailed, report.HasMoreWork)
	return report
}

// processSource 单个订阅源的抓取 → 入库 → 分析
// 任何失败都记在订阅源和报表上，绝不向上抛
func (s *BatchScheduler) processSource(source *models.Source, report *BatchReport) {
	fetched := s.fetcher.Fetch(source.URL)
	now := time.Now()

	if !fetched.Success {
		s.markFetched(source, now, fmt.Sprintf("%v", fetched.Err))
		report.SourcesFailed++
		log.Printf("订阅源 %s 抓取失败: %v", source.Name, fetched.Err)
		return
	}

	ingested, err := s.ingest.Ingest(source.ID, fetched.Items)
	report.ArticlesCreated += len(ingested.Created)
	report.DuplicatesSkipped += ingested.DuplicatesSkipped
	if err != nil {
		s.markFetched(source, now, fmt.Sprintf("入库失败: %v", err))
		report.SourcesFailed++
		log.Printf("订阅源 %s 入库失败: %v", source.Name, err)
		return
	}

	s.markFetched(source, now, "")

	// 把该源尚未分析的文章送去分类，按入库顺序
	var pending []models.Article
	if err := db.DB.
		Where("source_id = ? AND sentiment IS NULL", source.ID).
		Order("id ASC").
		Limit(s.cfg.ClassifyLimit).
		Find(&pending).Error; err != nil {
		log.Printf("查询待分析文章失败: %v", err)
		return
	}

	for _, r := range s.classifier.ClassifyBatch(pending) {
		if r.Success {
			report.ArticlesClassified++
		} else {
			report.ClassifyFailed++
		}
	}
}

// markFetched 更新抓取时间戳与最近错误（成功时清空错误）
func (s *BatchScheduler) markFetched(source *models.Source, at time.Time, fetchErr string) {
	updates := map[string]interface{}{
		"last_fetched_at":  at,
		"last_fetch_error": fetchErr,
	}
	if err := db.DB.Model(source).Updates(updates).Error; err != nil {
		log.Printf("更新订阅源 %s 抓取状态失败: %v", source.Name, err)
	}
}
