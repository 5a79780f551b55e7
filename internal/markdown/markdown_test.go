package markdown

import (
	"strings"
	"testing"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/milk137592000/ebook-new/internal/chapters"
)

type heading struct {
	level int
	text  string
}

// splitFrontMatter returns the YAML block and the Markdown after it.
func splitFrontMatter(t *testing.T, doc string) (string, string) {
	t.Helper()
	if !strings.HasPrefix(doc, "---\n") {
		t.Fatalf("document does not start with front matter:\n%s", doc)
	}
	rest := doc[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		t.Fatalf("unterminated front matter:\n%s", doc)
	}
	return rest[:end+1], rest[end+len("\n---\n"):]
}

func headings(t *testing.T, md string) []heading {
	t.Helper()
	src := []byte(md)
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var out []heading
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, ok := n.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		for c := h.FirstChild(); c != nil; c = c.NextSibling() {
			if tx, ok := c.(*ast.Text); ok {
				b.Write(tx.Segment.Value(src))
			}
		}
		out = append(out, heading{level: h.Level, text: b.String()})
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		t.Fatalf("ast.Walk() error = %v", err)
	}
	return out
}

func TestFromChapters_EPUB(t *testing.T) {
	chs := []chapters.Chapter{
		{Title: "第一章", Kind: chapters.BodyMarkup, Index: 0,
			Body: `<?xml version="1.0" encoding="UTF-8"?><html xmlns="http://www.w3.org/1999/xhtml"><head><title>x</title><style>p{}</style></head><body><h1>第一章</h1><p>這是<b>粗體</b>文字。</p></body></html>`},
		{Title: "cover", Kind: chapters.BodyMarkup, Index: 1, Body: "  "},
		{Title: "第二章", Kind: chapters.BodyMarkup, Index: 2,
			Body: `<html><body><p>第二章內容 &amp; 更多</p></body></html>`},
	}
	meta := Metadata{
		Title:       "測試書",
		Author:      "作者甲",
		Language:    "zh-TW",
		LineHeight:  1.6,
		GeneratedAt: time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
	}

	doc := FromChapters(chs, meta)
	fm, body := splitFrontMatter(t, doc)

	var got frontMatter
	if err := yaml.Unmarshal([]byte(fm), &got); err != nil {
		t.Fatalf("front matter: %v", err)
	}
	if got.Title != "測試書" || got.Source != SourceEPUB || got.Chapters != 2 || got.LineHeight != 1.6 {
		t.Errorf("front matter = %+v", got)
	}
	if got.Converted != "2024-05-01 08:30:00" {
		t.Errorf("converted = %q", got.Converted)
	}

	for _, want := range []string{
		"- **作者**: 作者甲",
		"- **語言**: zh-TW",
		"- **行距**: 1.6",
		"- **轉換時間**: 2024-05-01 08:30:00",
		`<div style="line-height: 1.6;">`,
		"這是**粗體**文字。",
		"第二章內容 & 更多",
		"*本檔案由EPUB轉換器自動生成*",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "p{}") || strings.Contains(body, "<p>") {
		t.Errorf("markup leaked into output:\n%s", body)
	}

	var h2 []string
	hs := headings(t, body)
	for _, h := range hs {
		if h.level == 2 {
			h2 = append(h2, h.text)
		}
	}
	want := []string{"書籍資訊", "第一章", "第二章"}
	if strings.Join(h2, "|") != strings.Join(want, "|") {
		t.Errorf("level-2 headings = %q, want %q", h2, want)
	}
	if hs[0].level != 1 || hs[0].text != "測試書" {
		t.Errorf("first heading = %+v", hs[0])
	}
	for _, h := range hs {
		if h.text == "第一章" && h.level == 3 {
			return
		}
	}
	t.Errorf("body h1 should be demoted to level 3, headings = %+v", hs)
}

func TestFromChapters_PDF(t *testing.T) {
	chs := []chapters.Chapter{
		{Title: "第一章", Kind: chapters.BodyText, Body: "第一段。\n\n第二段。"},
		{Title: "第二章", Kind: chapters.BodyText},
	}
	doc := FromChapters(chs, Metadata{Title: "Unknown", Source: SourcePDF, PageCount: 12, LineHeight: 2})
	_, body := splitFrontMatter(t, doc)

	for _, want := range []string{
		"# PDF Document",
		"## 文件資訊",
		"- **作者**: Unknown",
		"- **主題**: N/A",
		"- **頁數**: 12",
		"- **行距**: 2",
		"## 第一章\n\n第一段。\n\n第二段。\n\n---",
		"## 第二章",
		"*本檔案由PDF轉換器自動生成*",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q:\n%s", want, body)
		}
	}
}

func TestFromChapters_Defaults(t *testing.T) {
	doc := FromChapters(nil, Metadata{})
	_, body := splitFrontMatter(t, doc)
	for _, want := range []string{"# Unknown Book", "- **行距**: 1.6", "- **語言**: Unknown"} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q:\n%s", want, body)
		}
	}
}

func TestFromMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paragraphs", `<body><p>one</p><p>two</p></body>`, "one\n\ntwo"},
		{"headings", `<h2>Part</h2><h5>Deep</h5>`, "#### Part\n\n###### Deep"},
		{"emphasis", `<p>a <em>b</em><strong> c </strong></p>`, "a *b* **c**"},
		{"stripped", `<div><span>kept</span><script>var x;</script></div>`, "kept"},
		{"entities", `<p>&lt;tag&gt; &#x4E2D;</p>`, "<tag> 中"},
		{"break", `<p>line<br/>next</p>`, "line\nnext"},
		{"blank runs", "<p>a</p>\n\n\n<p></p>\n\n<p>b</p>", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromMarkup(tt.in); got != tt.want {
				t.Fatalf("FromMarkup() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Book: Part 1", "My_Book__Part_1"},
		{`a/b\c|d?e*f"g<h>`, "a_b_c_d_e_f_g_h"},
		{"  .hidden_ ", "hidden"},
		{"三體", "三體"},
		{"", "untitled"},
		{"...", "untitled"},
		{strings.Repeat("長", 60), strings.Repeat("長", 50)},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
