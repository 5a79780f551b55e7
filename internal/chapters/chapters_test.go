package chapters

import (
	"reflect"
	"strings"
	"testing"

	"github.com/milk137592000/ebook-new/internal/pdfextract"
)

func TestIsChapterHeading(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"第一章 風起", true},
		{"第12章", true},
		{"第一百零三章 歸來", true},
		{"Chapter 3: The Return", true},
		{"CHAPTER 10", true},
		{"chapter  7", true},
		{"第三節 概述", true},
		{"1. Introduction", true},
		{"42.", true},
		{"三、研究方法", true},
		{"Chapter One", false},
		{"在第一章中我們提到", false},
		{"1 Introduction", false},
		{"第章", false},
		{"  第二章", true},
	}
	for _, tt := range tests {
		if got := IsChapterHeading(tt.text); got != tt.want {
			t.Errorf("IsChapterHeading(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func samplePages() []pdfextract.Page {
	return []pdfextract.Page{
		{Number: 1, Paragraphs: []pdfextract.Paragraph{
			{Text: "Preface text before any chapter."},
			{Text: "第一章", FontSize: 12},
			{Text: "第一段正文。"},
			{Text: "BIG HEADING", IsTitle: true},
		}},
		{Number: 2, Paragraphs: []pdfextract.Paragraph{
			{Text: "第二段正文。"},
			{Text: "Chapter 2"},
			{Text: "closing words"},
		}},
	}
}

func TestDetect(t *testing.T) {
	pages := Detect(samplePages())

	p1 := pages[0].Paragraphs
	if !p1[1].IsChapter || !p1[1].IsTitle {
		t.Errorf("第一章 flags = %+v, want chapter and title", p1[1])
	}
	if p1[0].IsChapter || p1[2].IsChapter {
		t.Error("body paragraphs flagged as chapters")
	}
	if p1[3].IsChapter || !p1[3].IsTitle {
		t.Errorf("non-matching title = %+v, want IsTitle kept and IsChapter false", p1[3])
	}
	if !pages[1].Paragraphs[1].IsChapter {
		t.Error("Chapter 2 not detected")
	}
}

func TestDetect_ClearsStaleChapterFlag(t *testing.T) {
	pages := []pdfextract.Page{{Paragraphs: []pdfextract.Paragraph{
		{Text: "plain", IsChapter: true, IsTitle: true},
	}}}
	Detect(pages)
	if pages[0].Paragraphs[0].IsChapter {
		t.Fatal("IsChapter should be reset")
	}
	if !pages[0].Paragraphs[0].IsTitle {
		t.Fatal("IsTitle should be left as it was")
	}
}

func TestDetect_Idempotent(t *testing.T) {
	once := Detect(samplePages())
	snapshot := make([]pdfextract.Page, len(once))
	for i, p := range once {
		snapshot[i] = pdfextract.Page{Number: p.Number, Paragraphs: append([]pdfextract.Paragraph(nil), p.Paragraphs...)}
	}
	twice := Detect(once)
	if !reflect.DeepEqual(snapshot, twice) {
		t.Fatalf("second Detect changed flags:\n once: %+v\ntwice: %+v", snapshot, twice)
	}
}

func TestFromPages(t *testing.T) {
	chs := FromPages(Detect(samplePages()))

	wantTitles := []string{IntroductionTitle, "第一章", "BIG HEADING", "Chapter 2"}
	if len(chs) != len(wantTitles) {
		t.Fatalf("len(chapters) = %d, want %d: %+v", len(chs), len(wantTitles), chs)
	}
	for i, want := range wantTitles {
		if chs[i].Title != want {
			t.Errorf("chapters[%d].Title = %q, want %q", i, chs[i].Title, want)
		}
		if chs[i].Index != i || chs[i].Kind != BodyText {
			t.Errorf("chapters[%d] index/kind = %d/%v", i, chs[i].Index, chs[i].Kind)
		}
	}
	if chs[0].Body != "Preface text before any chapter." {
		t.Errorf("introduction body = %q", chs[0].Body)
	}
	if chs[1].Body != "第一段正文。" {
		t.Errorf("chapter 1 body = %q", chs[1].Body)
	}
	if chs[2].Body != "第二段正文。" {
		t.Errorf("paragraphs on the next page should fold into the open chapter, got %q", chs[2].Body)
	}
}

func TestFromPages_LongTitle(t *testing.T) {
	long := "第一章 " + strings.Repeat("長", 60)
	chs := FromPages([]pdfextract.Page{{Paragraphs: []pdfextract.Paragraph{
		{Text: long, IsTitle: true, IsChapter: true},
		{Text: "body"},
	}}})

	if len(chs) != 1 {
		t.Fatalf("len(chapters) = %d", len(chs))
	}
	if !strings.HasSuffix(chs[0].Title, "...") || len([]rune(chs[0].Title)) != 53 {
		t.Errorf("Title = %q (%d runes)", chs[0].Title, len([]rune(chs[0].Title)))
	}
	if chs[0].Body != long+"\n\nbody" {
		t.Errorf("Body = %q, want full title text then body", chs[0].Body)
	}
}

func TestFromPages_Empty(t *testing.T) {
	if chs := FromPages(nil); len(chs) != 0 {
		t.Fatalf("FromPages(nil) = %+v", chs)
	}
}
