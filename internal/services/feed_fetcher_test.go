package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"xinzhi/internal/config"
)

func newTestFetcher() *FeedFetcher {
	return NewFeedFetcher(config.FetchConfig{
		Timeout:   5 * time.Second,
		UserAgent: "XinzhiBot-Test/1.0",
	})
}

func serveBody(t *testing.T, contentType string, body []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "XinzhiBot-Test/1.0" {
			t.Errorf("期望自定义 User-Agent, got %s", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", contentType)
		w.Write(body)
	}))
}

func TestFetchRSS(t *testing.T) {
	// 两条 item，其中一条缺链接，必须被整条丢弃
	body := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>测试源</title>
<item>
  <title><![CDATA[<b>第一条</b>新闻]]></title>
  <link>https://example.com/a</link>
  <description><![CDATA[<p>摘要 &amp; 内容</p>]]></description>
  <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
</item>
<item>
  <title>没有链接的条目</title>
  <description>应当被丢弃</description>
</item>
</channel></rss>`

	server := serveBody(t, "application/rss+xml", []byte(body))
	defer server.Close()

	result := newTestFetcher().Fetch(server.URL)
	if !result.Success {
		t.Fatalf("Fetch 失败: %v", result.Err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("期望 1 条, got %d", len(result.Items))
	}

	item := result.Items[0]
	if item.Title != "第一条新闻" {
		t.Errorf("标题清洗结果 = %q", item.Title)
	}
	if item.Link != "https://example.com/a" {
		t.Errorf("链接 = %q", item.Link)
	}
	if item.Description != "摘要 & 内容" {
		t.Errorf("摘要 = %q", item.Description)
	}
	if item.PublishedAt.Year() != 2006 {
		t.Errorf("发布时间 = %v", item.PublishedAt)
	}
}

func TestFetchAtom(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom 源</title>
  <entry>
    <title>Atom 条目</title>
    <link href="https://example.com/atom-entry"/>
    <summary>atom 摘要</summary>
    <updated>2023-05-01T10:00:00Z</updated>
  </entry>
</feed>`

	server := serveBody(t, "application/atom+xml", []byte(body))
	defer server.Close()

	result := newTestFetcher().Fetch(server.URL)
	if !result.Success {
		t.Fatalf("Fetch 失败: %v", result.Err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("期望 1 条, got %d", len(result.Items))
	}
	if result.Items[0].Link != "https://example.com/atom-entry" {
		t.Errorf("Atom href 链接 = %q", result.Items[0].Link)
	}
}

func TestFetchMissingDateDefaultsToNow(t *testing.T) {
	body := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>t</title>
<item><title>无时间</title><link>https://example.com/nodate</link></item>
</channel></rss>`

	server := serveBody(t, "text/xml", []byte(body))
	defer server.Close()

	before := time.Now().Add(-time.Minute)
	result := newTestFetcher().Fetch(server.URL)
	if !result.Success || len(result.Items) != 1 {
		t.Fatalf("Fetch 结果异常: %+v", result)
	}
	if result.Items[0].PublishedAt.Before(before) {
		t.Errorf("缺失时间应兜底为当前时间, got %v", result.Items[0].PublishedAt)
	}
}

func TestFetchMalformedXMLFallback(t *testing.T) {
	// 顶层结构完全损坏（没有 rss/feed 根），主解析必然失败
	// 但完整的 <item> 块还在，备用正则路径要能抢救出来
	body := `garbage not xml at all <<<
<item><title><![CDATA[坏源里的好条目]]></title><link>https://example.com/rescued</link>
<description>还能抢救</description><pubDate>Tue, 03 Jan 2006 10:00:00 GMT</pubDate></item>
<item><title>没有链接</title></item>
more garbage`

	server := serveBody(t, "text/xml", []byte(body))
	defer server.Close()

	result := newTestFetcher().Fetch(server.URL)
	if !result.Success {
		t.Fatalf("备用路径应当成功: %v", result.Err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("期望抢救出 1 条, got %d", len(result.Items))
	}
	if result.Items[0].Title != "坏源里的好条目" {
		t.Errorf("标题 = %q", result.Items[0].Title)
	}
	if result.Items[0].PublishedAt.Year() != 2006 {
		t.Errorf("备用路径时间解析 = %v", result.Items[0].PublishedAt)
	}
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	result := newTestFetcher().Fetch(server.URL)
	if result.Success {
		t.Fatal("非 2xx 应返回失败")
	}
	if result.Err == nil {
		t.Fatal("失败时应带错误")
	}
	if len(result.Items) != 0 {
		t.Errorf("失败时不应有条目")
	}
}

func TestFetchEmptyFeedIsFailure(t *testing.T) {
	// 合法但零条目的源按失败处理（两条路径都提取不到）
	body := `<?xml version="1.0"?><rss version="2.0"><channel><title>空</title></channel></rss>`
	server := serveBody(t, "text/xml", []byte(body))
	defer server.Close()

	result := newTestFetcher().Fetch(server.URL)
	if result.Success {
		t.Fatal("零条目应返回失败")
	}
}

func TestFetchLatin1Encoding(t *testing.T) {
	// XML 声明里的 encoding 优先生效：0xE9 在 ISO-8859-1 里是 é
	body := []byte(`<?xml version="1.0" encoding="ISO-8859-1"?>
<rss version="2.0"><channel><title>t</title>
<item><title>Caf` + "\xe9" + `</title><link>https://example.com/cafe</link></item>
</channel></rss>`)

	server := serveBody(t, "application/xml", body)
	defer server.Close()

	result := newTestFetcher().Fetch(server.URL)
	if !result.Success || len(result.Items) != 1 {
		t.Fatalf("Fetch 结果异常: %+v", result)
	}
	if result.Items[0].Title != "Café" {
		t.Errorf("解码后的标题 = %q, want Café", result.Items[0].Title)
	}
}

func TestFetchDescriptionTruncated(t *testing.T) {
	long := strings.Repeat("很长的摘要", 2000) // 10000 字符
	body := `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>
<item><title>长摘要</title><link>https://example.com/long</link><description>` + long + `</description></item>
</channel></rss>`

	server := serveBody(t, "text/xml", []byte(body))
	defer server.Close()

	result := newTestFetcher().Fetch(server.URL)
	if !result.Success || len(result.Items) != 1 {
		t.Fatalf("Fetch 结果异常: %+v", result)
	}
	if n := len([]rune(result.Items[0].Description)); n > maxDescriptionChars {
		t.Errorf("摘要长度 %d 超过上限 %d", n, maxDescriptionChars)
	}
}

func TestDecodeFeedBodyContentTypeFallback(t *testing.T) {
	// 没有 XML 声明时退回到 Content-Type 的 charset
	raw := []byte("<rss><channel><item><title>Caf\xe9</title></item></channel></rss>")
	decoded := decodeFeedBody(raw, "text/xml; charset=ISO-8859-1")
	if !strings.Contains(decoded, "Café") {
		t.Errorf("Content-Type charset 未生效: %q", decoded)
	}

	// 两头都没有时按 UTF-8 处理，坏字节替换不报错
	decoded = decodeFeedBody([]byte("ok \xff bad"), "")
	if !strings.Contains(decoded, "ok") {
		t.Errorf("UTF-8 兜底解码异常: %q", decoded)
	}
}

func TestPickLink(t *testing.T) {
	if got := pickLink("https://example.com/a", "guid-1"); got != "https://example.com/a" {
		t.Errorf("有 link 时应直接用 link, got %q", got)
	}
	if got := pickLink("", "https://example.com/from-guid"); got != "https://example.com/from-guid" {
		t.Errorf("link 缺失时应退回 URL 形式的 guid, got %q", got)
	}
	if got := pickLink("", "not-a-url"); got != "" {
		t.Errorf("非 URL 的 guid 不能当链接, got %q", got)
	}
}
