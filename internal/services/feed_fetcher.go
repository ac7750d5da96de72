package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"
	"xinzhi/internal/config"
	"xinzhi/internal/utils"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"
)

const (
	maxDescriptionChars = 5000    // 摘要入库上限
	maxFeedBodyBytes    = 10 << 20
	encodingSniffBytes  = 100 // 只在开头这段里找 XML 声明的 encoding
)

// ParsedItem 从订阅源解析出的候选条目（尚未入库）
type ParsedItem struct {
	Title       string
	Link        string
	Description string
	PublishedAt time.Time
}

// FetchResult 单个订阅源一次抓取的结果
// 条目级的问题只会丢弃单条，不会让整个源失败
type FetchResult struct {
	Success bool
	Items   []ParsedItem
	Err     error
}

// FeedFetcher 订阅源抓取与解析服务
type FeedFetcher struct {
	client    *http.Client
	parser    *gofeed.Parser
	userAgent string
}

// NewFeedFetcher 创建抓取服务实例
func NewFeedFetcher(cfg config.FetchConfig) *FeedFetcher {
	// 自定义 HTTP 客户端，设置超时
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			DisableCompression:  false,
			DisableKeepAlives:   false,
			MaxIdleConnsPerHost: 2,
		},
	}

	return &FeedFetcher{
		client:    httpClient,
		parser:    gofeed.NewParser(),
		userAgent: cfg.UserAgent,
	}
}

// Fetch 抓取并解析一个订阅源
// 网络错误、非 2xx、两条解析路径都提取不到条目时返回失败
func (f *FeedFetcher) Fetch(url string) FetchResult {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{Err: fmt.Errorf("创建请求失败: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{Err: fmt.Errorf("请求订阅源失败: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return FetchResult{Err: fmt.Errorf("订阅源返回 HTTP %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodyBytes))
	if err != nil {
		return FetchResult{Err: fmt.Errorf("读取响应失败: %w", err)}
	}

	body := decodeFeedBody(raw, resp.Header.Get("Content-Type"))

	// 主路径：gofeed，同时覆盖 RSS 的 item 与 Atom 的 entry
	items, perr := f.parseWithGofeed(body)
	if len(items) > 0 {
		return FetchResult{Success: true, Items: items}
	}

	// 备用路径：容错的正则提取，上游 XML 破损并不少见
	if fallback := parseWithRegex(body); len(fallback) > 0 {
		return FetchResult{Success: true, Items: fallback}
	}

	if perr == nil {
		perr = errors.New("订阅源中没有可提取的条目")
	}
	return FetchResult{Err: fmt.Errorf("解析订阅源失败: %w", perr)}
}

var xmlEncodingRe = regexp.MustCompile(`(?i)<\?xml[^>]*encoding=["']([A-Za-z0-9._-]+)["']`)

// decodeFeedBody 把原始字节解码成 UTF-8 文本
// 优先级：XML 声明里的 encoding > Content-Type 的 charset > UTF-8
// 解码永远不失败，坏字节用替换符顶上
func decodeFeedBody(raw []byte, contentType string) string {
	head := raw
	if len(head) > encodingSniffBytes {
		head = head[:encodingSniffBytes]
	}

	label := ""
	if m := xmlEncodingRe.FindSubmatch(head); m != nil {
		label = string(m[1])
	}
	if label == "" {
		label = charsetFromContentType(contentType)
	}

	if label != "" && !strings.EqualFold(label, "utf-8") {
		if reader, err := charset.NewReaderLabel(label, bytes.NewReader(raw)); err == nil {
			if decoded, rerr := io.ReadAll(reader); rerr == nil {
				// 声明改写成 UTF-8，避免下游解析器按旧声明二次解码
				return xmlEncodingAttrRe.ReplaceAllString(string(decoded), `${1}UTF-8${2}`)
			}
		}
	}

	return strings.ToValidUTF8(string(raw), "�")
}

var xmlEncodingAttrRe = regexp.MustCompile(`(?i)(<\?xml[^>]*encoding=["'])[A-Za-z0-9._-]+(["'])`)

func charsetFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func (f *FeedFetcher) parseWithGofeed(body string) ([]ParsedItem, error) {
	feed, err := f.parser.ParseString(body)
	if err != nil {
		return nil, err
	}

	items := make([]ParsedItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		item, ok := buildItem(it.Title, pickLink(it.Link, it.GUID), it.Description)
		if !ok {
			continue // 标题或链接缺失，丢弃整条，不产出残缺条目
		}

		// 发布时间：published > updated > 当前时间兜底
		switch {
		case it.PublishedParsed != nil:
			item.PublishedAt = *it.PublishedParsed
		case it.UpdatedParsed != nil:
			item.PublishedAt = *it.UpdatedParsed
		default:
			item.PublishedAt = time.Now()
		}

		items = append(items, item)
	}
	return items, nil
}

// pickLink 取链接，link 缺失时退回到形如 URL 的 guid
func pickLink(link, guid string) string {
	link = strings.TrimSpace(utils.StripCDATA(link))
	if link != "" {
		return link
	}
	guid = strings.TrimSpace(utils.StripCDATA(guid))
	if strings.HasPrefix(guid, "http://") || strings.HasPrefix(guid, "https://") {
		return guid
	}
	return ""
}

// buildItem 统一清洗并校验必填字段
func buildItem(title, link, description string) (ParsedItem, bool) {
	t := utils.CleanFeedText(title)
	l := utils.CleanFeedText(link)
	if t == "" || l == "" {
		return ParsedItem{}, false
	}
	d := utils.TruncateRunes(utils.CleanFeedText(description), maxDescriptionChars)
	return ParsedItem{Title: t, Link: l, Description: d}, true
}

var (
	feedItemBlockRe = regexp.MustCompile(`(?is)<(?:item|entry)(?:\s[^>]*)?>(.*?)</(?:item|entry)>`)
	atomLinkHrefRe  = regexp.MustCompile(`(?is)<link[^>]*href=["']([^"']+)["']`)

	// 常见的发布时间标签，含 Dublin Core 变体
	fallbackDateTags = []string{"pubDate", "published", "updated", "dc:date", "date"}
)

// parseWithRegex 对破损 XML 的容错提取：逐块找 <item>/<entry>，块内用正则挖字段
func parseWithRegex(body string) []ParsedItem {
	blocks := feedItemBlockRe.FindAllStringSubmatch(body, -1)
	items := make([]ParsedItem, 0, len(blocks))
	for _, m := range blocks {
		block := m[1]
		item, ok := buildItem(tagText(block, "title"), fallbackLink(block), fallbackDescription(block))
		if !ok {
			continue
		}
		item.PublishedAt = fallbackDate(block)
		items = append(items, item)
	}
	return items
}

// tagText 提取第一个 <tag>...</tag> 的内部文本，找不到返回空串
func tagText(block, tag string) string {
	re := regexp.MustCompile(`(?is)<` + regexp.QuoteMeta(tag) + `(?:\s[^>]*)?>(.*?)</` + regexp.QuoteMeta(tag) + `>`)
	if m := re.FindStringSubmatch(block); m != nil {
		return m[1]
	}
	return ""
}

// fallbackLink RSS 的 <link> 文本、Atom 的 <link href> 属性、可解析为 URL 的 <guid>，按序尝试
func fallbackLink(block string) string {
	if l := pickLink(tagText(block, "link"), ""); l != "" {
		return l
	}
	if m := atomLinkHrefRe.FindStringSubmatch(block); m != nil {
		return m[1]
	}
	return pickLink("", tagText(block, "guid"))
}

func fallbackDescription(block string) string {
	for _, tag := range []string{"description", "summary", "content"} {
		if d := tagText(block, tag); d != "" {
			return d
		}
	}
	return ""
}

// fallbackDate 依次尝试常见时间标签，都解析不动就用当前时间兜底
func fallbackDate(block string) time.Time {
	for _, tag := range fallbackDateTags {
		raw := strings.TrimSpace(utils.StripCDATA(tagText(block, tag)))
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t
		}
	}
	return time.Now()
}
