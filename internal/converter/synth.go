package converter

import (
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"

	"github.com/milk137592000/ebook-new/internal/chapters"
	"github.com/milk137592000/ebook-new/internal/epub"
)

const (
	synthOPFPath = "OEBPS/content.opf"
	synthNavPath = "OEBPS/nav.xhtml"
)

// SynthesisInfo is the metadata of a book built from extracted text.
type SynthesisInfo struct {
	Title    string
	Author   string
	Language string
}

// SynthesizeEPUB builds an EPUB 3 package with one document per chapter, a
// navigation document and a table of contents in chapter order. Text bodies
// become paragraphs; markup bodies are stored as they are.
func SynthesizeEPUB(chs []chapters.Chapter, info SynthesisInfo) *epub.Package {
	pkg := &epub.Package{
		Version: "3.0",
		OPFPath: synthOPFPath,
		Metadata: epub.Metadata{
			Title:      info.Title,
			Language:   info.Language,
			Identifier: "urn:uuid:" + uuid.NewString(),
		},
	}
	if pkg.Metadata.Title == "" {
		pkg.Metadata.Title = "Untitled"
	}
	if pkg.Metadata.Language == "" {
		pkg.Metadata.Language = "zh-TW"
	}
	if info.Author != "" && info.Author != "Unknown" {
		pkg.Metadata.Creators = []epub.Creator{{Name: info.Author, Role: "aut"}}
	}

	nav := &epub.Item{
		ID:         "nav",
		Href:       synthNavPath,
		MediaType:  epub.MediaTypeXHTML,
		Properties: []string{"nav"},
	}
	pkg.AddItem(nav)

	for i, ch := range chs {
		href := fmt.Sprintf("OEBPS/text/chapter_%03d.xhtml", i+1)
		title := ch.Title
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		body := []byte(ch.Body)
		if ch.Kind == chapters.BodyText {
			body = chapterDocument(title, ch.Body, pkg.Metadata.Language)
		}
		id := pkg.AddItem(&epub.Item{
			ID:        fmt.Sprintf("chapter_%03d", i+1),
			Href:      href,
			MediaType: epub.MediaTypeXHTML,
			Content:   body,
		})
		pkg.Spine = append(pkg.Spine, epub.SpineItem{IDRef: id, Linear: true})
		pkg.TOC = append(pkg.TOC, epub.NavPoint{
			ID:          fmt.Sprintf("navpoint_%d", i+1),
			PlayOrder:   i + 1,
			Label:       title,
			ContentPath: href,
		})
	}

	nav.Content = epub.RenderNav(pkg, synthNavPath)
	return pkg
}

// chapterDocument renders a text chapter as XHTML. Paragraphs are separated
// by blank lines; single newlines inside a paragraph become line breaks.
func chapterDocument(title, body, lang string) []byte {
	esc := html.EscapeString

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&b, `<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="%s" lang="%s">`+"\n", esc(lang), esc(lang))
	fmt.Fprintf(&b, "<head><title>%s</title></head>\n<body>\n", esc(title))
	fmt.Fprintf(&b, "<h1>%s</h1>\n", esc(title))
	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i := range lines {
			lines[i] = esc(strings.TrimSpace(lines[i]))
		}
		fmt.Fprintf(&b, "<p>%s</p>\n", strings.Join(lines, "<br/>"))
	}
	b.WriteString("</body>\n</html>\n")
	return []byte(b.String())
}
