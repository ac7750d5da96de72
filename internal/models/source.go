package models

import (
	"time"
)

// Source 订阅源（RSS/Atom），由种子配置创建
// 核心只会更新抓取状态字段，不会删除订阅源
type Source struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Name           string     `gorm:"not null" json:"name"`
	URL            string     `gorm:"uniqueIndex;not null" json:"url"` // 订阅源地址
	IsActive       bool       `gorm:"default:true;index" json:"is_active"`
	LastFetchedAt  *time.Time `json:"last_fetched_at"`                      // 最后抓取时间（为空表示从未抓取）
	LastFetchError string     `gorm:"type:text" json:"last_fetch_error"`    // 最近一次抓取失败原因，成功后清空
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
