package epub

import (
	"bytes"
	"fmt"
	"html"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// parseNAV reads the toc nav element of an EPUB 3 navigation document.
func parseNAV(data []byte, navPath string) ([]NavPoint, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(ExpandSelfClosing(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse nav document: %w", err)
	}

	nav := doc.Find("nav").FilterFunction(func(_ int, s *goquery.Selection) bool {
		t, _ := s.Attr("epub:type")
		return strings.Contains(t, "toc")
	}).First()
	if nav.Length() == 0 {
		nav = doc.Find("nav").First()
	}
	if nav.Length() == 0 {
		return nil, fmt.Errorf("no nav element in %s", navPath)
	}

	dir := path.Dir(navPath)
	counter := 0
	return navList(nav.ChildrenFiltered("ol").First(), dir, &counter), nil
}

func navList(ol *goquery.Selection, dir string, counter *int) []NavPoint {
	var out []NavPoint
	ol.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
		*counter++
		np := NavPoint{
			ID:        fmt.Sprintf("nav_%d", *counter),
			PlayOrder: *counter,
		}

		label := li.ChildrenFiltered("a").First()
		if label.Length() == 0 {
			label = li.ChildrenFiltered("span").First()
		}
		np.Label = strings.TrimSpace(label.Text())
		if href, ok := label.Attr("href"); ok && href != "" {
			src, frag := splitFragment(href)
			if src != "" {
				np.ContentPath = resolvePath(dir, src)
			}
			np.Fragment = frag
		}

		np.Children = navList(li.ChildrenFiltered("ol").First(), dir, counter)
		out = append(out, np)
	})
	return out
}

// RenderNav builds an EPUB 3 navigation document for the package TOC. navPath
// is the archive path the document will be stored at.
func RenderNav(pkg *Package, navPath string) []byte {
	title := pkg.Metadata.Title
	if title == "" {
		title = "Table of Contents"
	}
	lang := pkg.Metadata.Language
	if lang == "" {
		lang = "en"
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString("<!DOCTYPE html>\n")
	fmt.Fprintf(&b, `<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops" xml:lang="%s" lang="%s">`+"\n",
		html.EscapeString(lang), html.EscapeString(lang))
	fmt.Fprintf(&b, "<head><title>%s</title></head>\n", html.EscapeString(title))
	b.WriteString("<body>\n")
	b.WriteString(`<nav epub:type="toc" id="toc">`)
	fmt.Fprintf(&b, "<h1>%s</h1>", html.EscapeString(title))
	writeNavEntries(&b, pkg.TOC, path.Dir(navPath))
	b.WriteString("</nav>\n</body>\n</html>\n")
	return []byte(b.String())
}

// writeNavEntries recursively writes NavPoints as nested <ol>/<li> with links.
func writeNavEntries(b *strings.Builder, points []NavPoint, dir string) {
	b.WriteString("<ol>")
	for _, np := range points {
		b.WriteString("<li>")
		if np.ContentPath != "" {
			fmt.Fprintf(b, `<a href="%s">%s</a>`, html.EscapeString(navTarget(dir, np)), html.EscapeString(np.Label))
		} else {
			fmt.Fprintf(b, `<span>%s</span>`, html.EscapeString(np.Label))
		}
		if len(np.Children) > 0 {
			writeNavEntries(b, np.Children, dir)
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ol>")
}
