package models

import (
	"time"
)

// Profile 读者个性化配置，归外部系统所有，核心只读不写
// Blocklist 以 JSON 形式存储（子串屏蔽词列表）
type Profile struct {
	UserID                 string    `gorm:"primaryKey;size:64" json:"user_id"`
	Mood                   *string   `gorm:"size:20" json:"mood"` // positive / neutral / negative，为空表示无偏好
	Blocklist              []string  `gorm:"serializer:json;type:jsonb" json:"blocklist"`
	PersonalizationEnabled bool      `gorm:"default:false" json:"personalization_enabled"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// TableName 外部系统已有的表名
func (Profile) TableName() string {
	return "profiles"
}
