package converter

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func parseDoc(t *testing.T, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func renderDoc(t *testing.T, doc *goquery.Document) string {
	t.Helper()
	out, err := doc.Html()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return out
}

func TestInjectStylesheet(t *testing.T) {
	doc := parseDoc(t, `<html><head><title>T</title></head><body><p>x</p></body></html>`)

	if err := InjectStylesheet(doc, "../styles/horizontal.css"); err != nil {
		t.Fatalf("InjectStylesheet() error = %v", err)
	}

	link := doc.Find("head > link")
	if link.Length() != 1 {
		t.Fatalf("head links = %d, want 1", link.Length())
	}
	if v, _ := link.Attr("rel"); v != "stylesheet" {
		t.Errorf("rel = %q", v)
	}
	if v, _ := link.Attr("type"); v != "text/css" {
		t.Errorf("type = %q", v)
	}
	if v, _ := link.Attr("href"); v != "../styles/horizontal.css" {
		t.Errorf("href = %q", v)
	}
	if !doc.Find("head").Children().Last().Is("link") {
		t.Error("link should be appended after existing head children")
	}
}

func TestInjectStylesheet_Idempotent(t *testing.T) {
	doc := parseDoc(t, `<html><head></head><body></body></html>`)

	for i := 0; i < 2; i++ {
		if err := InjectStylesheet(doc, "horizontal.css"); err != nil {
			t.Fatalf("InjectStylesheet() #%d error = %v", i, err)
		}
	}
	once := renderDoc(t, doc)
	if err := InjectStylesheet(doc, "horizontal.css"); err != nil {
		t.Fatalf("InjectStylesheet() error = %v", err)
	}
	if renderDoc(t, doc) != once {
		t.Fatal("second injection changed the document")
	}
	if n := doc.Find("link").Length(); n != 1 {
		t.Fatalf("links = %d, want 1", n)
	}
}

func TestInjectStylesheet_CreatesHead(t *testing.T) {
	root := &html.Node{Type: html.DocumentNode}
	htmlEl := &html.Node{Type: html.ElementNode, DataAtom: atom.Html, Data: "html"}
	body := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	root.AppendChild(htmlEl)
	htmlEl.AppendChild(body)
	doc := goquery.NewDocumentFromNode(root)

	if err := InjectStylesheet(doc, "s.css"); err != nil {
		t.Fatalf("InjectStylesheet() error = %v", err)
	}

	if htmlEl.FirstChild == nil || htmlEl.FirstChild.Data != "head" {
		t.Fatalf("head not inserted as first child of html: %s", renderDoc(t, doc))
	}
	if doc.Find("head > link[href='s.css']").Length() != 1 {
		t.Fatalf("link missing: %s", renderDoc(t, doc))
	}
}

func TestChapterTitle(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		href   string
		want   string
	}{
		{"h1", `<body><h1>第一章  開始</h1><h2>sub</h2></body>`, "text/ch1.xhtml", "第一章 開始"},
		{"first heading of any level", `<body><p>x</p><h3>Prologue</h3><h1>Later</h1></body>`, "a.xhtml", "Prologue"},
		{"empty heading skipped", `<body><h1> </h1><h2>Real</h2></body>`, "a.xhtml", "Real"},
		{"file name fallback", `<body><p>no heading</p></body>`, "OEBPS/text/chapter_007.xhtml", "chapter_007"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChapterTitle(parseDoc(t, tt.markup), tt.href); got != tt.want {
				t.Fatalf("ChapterTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStylesheetHref(t *testing.T) {
	tests := []struct {
		doc, css, want string
	}{
		{"OEBPS/text/ch1.xhtml", "OEBPS/styles/horizontal.css", "../styles/horizontal.css"},
		{"OEBPS/ch1.xhtml", "OEBPS/styles/horizontal.css", "styles/horizontal.css"},
		{"ch1.xhtml", "styles/horizontal.css", "styles/horizontal.css"},
	}
	for _, tt := range tests {
		if got := stylesheetHref(tt.doc, tt.css); got != tt.want {
			t.Errorf("stylesheetHref(%q, %q) = %q, want %q", tt.doc, tt.css, got, tt.want)
		}
	}
}
