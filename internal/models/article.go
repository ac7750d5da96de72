package models

import (
	"time"
)

// 情感分类的三个取值，由外部 AI 服务给出
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// ValidSentiment 判断是否为合法的情感取值
func ValidSentiment(s string) bool {
	return s == SentimentPositive || s == SentimentNeutral || s == SentimentNegative
}

// Article 一条已入库、已去重的文章
// Link 全局唯一，是去重的依据；Sentiment 为空表示尚未分析
type Article struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SourceID        uint      `gorm:"not null;index" json:"source_id"`
	Source          Source    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"source"`
	Title           string    `gorm:"not null" json:"title"`
	Description     string    `gorm:"type:text" json:"description"` // 纯文本摘要，最长 5000 字符
	Link            string    `gorm:"uniqueIndex;not null" json:"link"`
	PublicationDate time.Time `gorm:"not null;index" json:"publication_date"`
	Sentiment       *string   `gorm:"size:20" json:"sentiment"` // positive / neutral / negative，未分析时为 NULL
	Topics          []Topic   `gorm:"many2many:article_topics;constraint:OnDelete:CASCADE" json:"topics"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Analyzed 文章是否已完成 AI 分析
func (a *Article) Analyzed() bool {
	return a.Sentiment != nil
}

// Topic 话题标签，名称大小写不敏感唯一
// 由分析流程按需创建（find-or-create）
type Topic struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ArticleTopic 文章与话题的关联表，复合主键保证同一对只出现一次
// 删除文章或话题时级联删除关联
type ArticleTopic struct {
	ArticleID uint `gorm:"primaryKey" json:"article_id"`
	TopicID   uint `gorm:"primaryKey" json:"topic_id"`
}
