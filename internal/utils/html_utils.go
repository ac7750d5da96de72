package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// 全局清洗策略：去掉一切标签，只留文本
var stripPolicy = bluemonday.StrictPolicy()

// StripCDATA 去掉 CDATA 包裹标记，保留内部文本
func StripCDATA(s string) string {
	s = strings.ReplaceAll(s, "<![CDATA[", "")
	s = strings.ReplaceAll(s, "]]>", "")
	return s
}

// UnescapeEntities 还原常见 HTML 实体
// 只处理订阅源里高频出现的几个，不追求完整实体表
func UnescapeEntities(s string) string {
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "\u00a0", " ") // bluemonday 会把 &nbsp; 解析成不换行空格
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", "\"")
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

// CleanFeedText 订阅源字段的统一清洗：去 CDATA、去标签、还原实体、去首尾空白
func CleanFeedText(s string) string {
	if s == "" {
		return ""
	}
	s = StripCDATA(s)
	s = stripPolicy.Sanitize(s)
	s = UnescapeEntities(s)
	return strings.TrimSpace(s)
}

// TruncateRunes 按字符数截断，避免把多字节字符切坏
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
