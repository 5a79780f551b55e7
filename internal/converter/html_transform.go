package converter

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// verticalClasses are class names books use for vertical text blocks.
var verticalClasses = map[string]bool{
	"vrtl":        true,
	"vertical":    true,
	"vertical-rl": true,
	"vertical-lr": true,
	"tate":        true,
}

// StripVerticalLayout removes vertical writing declarations from style
// attributes and embedded style elements, drops vertical class names and
// clears dir="rtl" on the root and body. It reports whether the document
// changed.
func StripVerticalLayout(doc *goquery.Document) bool {
	changed := false

	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		style, _ := s.Attr("style")
		cleaned := trimDeclarations(TransformCSS(style))
		if cleaned == trimDeclarations(style) {
			return
		}
		changed = true
		if cleaned == "" {
			s.RemoveAttr("style")
			return
		}
		s.SetAttr("style", cleaned)
	})

	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if out := TransformCSS(c.Data); out != c.Data {
				c.Data = out
				changed = true
			}
		}
	})

	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		fields := strings.Fields(class)
		kept := fields[:0]
		for _, f := range fields {
			if !verticalClasses[strings.ToLower(f)] {
				kept = append(kept, f)
			}
		}
		if len(kept) == len(strings.Fields(class)) {
			return
		}
		changed = true
		if len(kept) == 0 {
			s.RemoveAttr("class")
			return
		}
		s.SetAttr("class", strings.Join(kept, " "))
	})

	doc.Find("html[dir], body[dir]").Each(func(_ int, s *goquery.Selection) {
		if dir, _ := s.Attr("dir"); strings.EqualFold(dir, "rtl") {
			s.RemoveAttr("dir")
			changed = true
		}
	})

	return changed
}

func trimDeclarations(style string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(style), ";"))
}
