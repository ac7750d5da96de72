package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
	"xinzhi/internal/config"
	"xinzhi/internal/db"
	"xinzhi/internal/models"
	"xinzhi/internal/utils"

	"gorm.io/gorm"
)

// 分析输入上限，粗略对应模型的安全 token 长度
const maxAnalysisChars = 4000

// AI 调用失败的封闭分类
var (
	ErrAIRateLimited    = errors.New("AI 接口限流")  // HTTP 429，下个周期再试
	ErrAIQuotaExhausted = errors.New("AI 配额耗尽")  // HTTP 402，短期内不要重试
	ErrAITimeout        = errors.New("AI 请求超时")  // 瞬时故障，可重试
)

// ClassificationResult 一次 AI 调用解析出的结构化结果，即用即弃，不单独落库
type ClassificationResult struct {
	Sentiment string   `json:"sentiment"`
	Topics    []string `json:"topics"`
}

// AIClient 外部文本分析服务
type AIClient interface {
	Analyze(ctx context.Context, text string) (ClassificationResult, error)
}

// ChatResponse Chat Completion 响应里我们关心的部分
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatAIClient 走 Chat Completion 协议的实现（OpenAI 兼容接口）
type ChatAIClient struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

func NewChatAIClient(cfg config.AIConfig) *ChatAIClient {
	return &ChatAIClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

const classifySystemPrompt = `你是新闻分类助手。对给定文章输出一个 JSON 对象：` +
	`{"sentiment":"positive|neutral|negative","topics":["话题1","话题2"]}。` +
	`sentiment 必须是三个值之一，topics 为 0 到 5 个简短的话题名。只输出 JSON。`

// Analyze 请求结构化分类结果
// 非 2xx 映射到封闭的失败分类：429 限流、402 配额耗尽、超时、其余归为一般失败
func (c *ChatAIClient) Analyze(ctx context.Context, text string) (ClassificationResult, error) {
	var zero ClassificationResult

	payload, err := json.Marshal(map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": classifySystemPrompt},
			{"role": "user", "content": text},
		},
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return zero, fmt.Errorf("构造请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return zero, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeoutErr(err) {
			return zero, ErrAITimeout
		}
		return zero, fmt.Errorf("请求 AI 服务失败: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return zero, ErrAIRateLimited
	case resp.StatusCode == http.StatusPaymentRequired:
		return zero, ErrAIQuotaExhausted
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return zero, fmt.Errorf("AI 服务返回 %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var chat ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return zero, fmt.Errorf("解析 AI 响应失败: %w", err)
	}
	if len(chat.Choices) == 0 {
		return zero, errors.New("AI 响应没有内容")
	}

	var result ClassificationResult
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &result); err != nil {
		return zero, fmt.Errorf("AI 返回的不是合法 JSON: %w", err)
	}
	result.Sentiment = strings.ToLower(strings.TrimSpace(result.Sentiment))
	if !models.ValidSentiment(result.Sentiment) {
		return zero, fmt.Errorf("AI 返回了未知的情感值: %q", result.Sentiment)
	}
	return result, nil
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ClassifyResult 单篇文章的分析结果
type ClassifyResult struct {
	Success          bool
	SentimentUpdated bool
	TopicsUpdated    int
	Err              error
}

// ClassifierService AI 分析编排
// 任何失败都以结果对象返回，绝不让错误越过这层边界拖垮批处理
type ClassifierService struct {
	ai      AIClient
	timeout time.Duration
	delay   time.Duration
}

func NewClassifierService(ai AIClient, cfg config.Config) *ClassifierService {
	return &ClassifierService{
		ai:      ai,
		timeout: cfg.AI.Timeout,
		delay:   cfg.Cron.ClassifyDelay,
	}
}

// Classify 分析一篇文章并写回情感与话题
// 情感先写且写入后不回滚；话题阶段的失败只损失话题，部分成功可接受并记录日志
func (s *ClassifierService) Classify(article *models.Article) ClassifyResult {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.ai.Analyze(ctx, buildAnalysisInput(article))
	if err != nil {
		return ClassifyResult{Err: err} // 文章保持未分析状态
	}

	// 情感无条件覆盖写，重跑分析是幂等的
	if err := db.DB.Model(article).Update("sentiment", result.Sentiment).Error; err != nil {
		return ClassifyResult{Err: fmt.Errorf("写入情感失败: %w", err)}
	}
	article.Sentiment = &result.Sentiment

	out := ClassifyResult{Success: true, SentimentUpdated: true}
	for _, name := range normalizeTopicNames(result.Topics) {
		topic, err := s.findOrCreateTopic(name)
		if err != nil {
			log.Printf("话题 %q 处理失败（跳过）: %v", name, err)
			continue
		}
		if err := db.DB.Create(&models.ArticleTopic{ArticleID: article.ID, TopicID: topic.ID}).Error; err != nil {
			// 重复关联是并发分析的正常结果，静默吸收
			if !IsUniqueViolation(err) {
				log.Printf("关联话题 %q 失败（跳过）: %v", name, err)
			}
			continue
		}
		out.TopicsUpdated++
	}
	return out
}

// ClassifyBatch 顺序分析一批文章，一篇失败不影响后续
// 刻意单线程：免费额度下并发调用只会放大 429；调用间隔由配置控制
func (s *ClassifierService) ClassifyBatch(articles []models.Article) []ClassifyResult {
	results := make([]ClassifyResult, 0, len(articles))
	for i := range articles {
		if i > 0 {
			time.Sleep(s.delay)
		}
		r := s.Classify(&articles[i])
		if r.Err != nil {
			log.Printf("文章 %d 分析失败: %v", articles[i].ID, r.Err)
		}
		results = append(results, r)
	}
	return results
}

// normalizeTopicNames 去空白、丢弃空名，批内大小写不敏感去重（保留首个写法）
func normalizeTopicNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// findOrCreateTopic 大小写不敏感地查找话题，不存在则创建
// 并发创建撞上唯一索引时回头再查一次
func (s *ClassifierService) findOrCreateTopic(name string) (models.Topic, error) {
	var topic models.Topic
	err := db.DB.Where("LOWER(name) = LOWER(?)", name).First(&topic).Error
	if err == nil {
		return topic, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return topic, err
	}

	topic = models.Topic{Name: name}
	if cerr := db.DB.Create(&topic).Error; cerr != nil {
		if IsUniqueViolation(cerr) {
			if rerr := db.DB.Where("LOWER(name) = LOWER(?)", name).First(&topic).Error; rerr == nil {
				return topic, nil
			}
		}
		return topic, cerr
	}
	return topic, nil
}

// buildAnalysisInput 标题 + 摘要拼成有界的分析输入
func buildAnalysisInput(article *models.Article) string {
	input := article.Title
	if article.Description != "" {
		input += "\n\n" + article.Description
	}
	return utils.TruncateRunes(input, maxAnalysisChars)
}
