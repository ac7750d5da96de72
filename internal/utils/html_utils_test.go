package utils

import (
	"strings"
	"testing"
)

func TestCleanFeedText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"去除标签", "<p>Hello <b>world</b></p>", "Hello world"},
		{"CDATA 包裹", "<![CDATA[新闻标题]]>", "新闻标题"},
		{"CDATA 内带标签", "<![CDATA[<h1>标题</h1>]]>", "标题"},
		{"还原实体", "Tom &amp; Jerry &lt;TV&gt;", "Tom & Jerry <TV>"},
		{"引号实体", "&quot;quoted&quot; it&#39;s", "\"quoted\" it's"},
		{"首尾空白", "  带空格的标题  ", "带空格的标题"},
		{"空串", "", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CleanFeedText(c.in); got != c.want {
				t.Errorf("CleanFeedText(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestCleanFeedTextNbsp(t *testing.T) {
	got := CleanFeedText("a&nbsp;b")
	if got != "a b" {
		t.Errorf("期望 nbsp 被还原成空格, got %q", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	// 多字节字符不能被切坏
	s := strings.Repeat("新", 10)
	got := TruncateRunes(s, 3)
	if got != "新新新" {
		t.Errorf("TruncateRunes = %q, want 新新新", got)
	}

	if got := TruncateRunes("short", 100); got != "short" {
		t.Errorf("长度不足时应原样返回, got %q", got)
	}

	if got := TruncateRunes("abc", 0); got != "" {
		t.Errorf("max=0 应返回空串, got %q", got)
	}

	// 入库上限场景：5000 字符封顶
	long := strings.Repeat("a", 6000)
	if got := TruncateRunes(long, 5000); len([]rune(got)) != 5000 {
		t.Errorf("截断后长度 = %d, want 5000", len([]rune(got)))
	}
}
