// Package chapters finds chapter boundaries in extracted PDF text and carries
// chapter bodies from either source format to the Markdown assembler.
package chapters

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/milk137592000/ebook-new/internal/pdfextract"
)

// Kind tells how a chapter body is encoded.
type Kind int

const (
	// BodyMarkup is a full XHTML document.
	BodyMarkup Kind = iota
	// BodyText is plain text with paragraphs separated by blank lines.
	BodyText
)

func (k Kind) String() string {
	if k == BodyMarkup {
		return "markup"
	}
	return "text"
}

// Chapter is one chapter in source order.
type Chapter struct {
	Title string
	Body  string
	Kind  Kind
	Index int
}

// IntroductionTitle names the chapter holding text that precedes the first title.
const IntroductionTitle = "Introduction"

// maxTitleRunes bounds a folded chapter title before "..." is appended.
const maxTitleRunes = 50

// patterns are tried in order; the first match wins.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^第[一二三四五六七八九十百千零〇\d]+章`),
	regexp.MustCompile(`(?i)^Chapter\s+\d+`),
	regexp.MustCompile(`(?i)^第[一二三四五六七八九十百千零〇\d]+節`),
	regexp.MustCompile(`(?i)^\d+\.`),
	regexp.MustCompile(`(?i)^[一二三四五六七八九十]+、`),
}

// IsChapterHeading reports whether text starts with a chapter marker.
func IsChapterHeading(text string) bool {
	text = strings.TrimSpace(text)
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Detect flags chapter headings in place. A matching paragraph gets IsChapter
// and IsTitle; any other paragraph gets IsChapter=false and keeps IsTitle.
// Applying Detect twice gives the same flags as applying it once.
func Detect(pages []pdfextract.Page) []pdfextract.Page {
	for pi := range pages {
		for i := range pages[pi].Paragraphs {
			p := &pages[pi].Paragraphs[i]
			if IsChapterHeading(p.Text) {
				p.IsChapter = true
				p.IsTitle = true
				continue
			}
			p.IsChapter = false
		}
	}
	return pages
}

// FromPages folds the paragraphs of all pages into chapters. Each title or
// chapter paragraph opens a new chapter; paragraphs before the first one form
// an "Introduction" chapter. A title longer than 50 runes is cut and marked
// with "..." and its full text opens the chapter body.
func FromPages(pages []pdfextract.Page) []Chapter {
	var (
		out  []Chapter
		cur  *Chapter
		body []string
	)
	closeChapter := func() {
		if cur == nil {
			return
		}
		cur.Body = strings.Join(body, "\n\n")
		out = append(out, *cur)
		cur, body = nil, nil
	}

	for _, pg := range pages {
		for _, p := range pg.Paragraphs {
			text := strings.TrimSpace(p.Text)
			if text == "" {
				continue
			}
			if p.IsTitle || p.IsChapter {
				closeChapter()
				title, truncated := truncateTitle(text)
				cur = &Chapter{Title: title, Kind: BodyText, Index: len(out)}
				if truncated {
					body = append(body, text)
				}
				continue
			}
			if cur == nil {
				cur = &Chapter{Title: IntroductionTitle, Kind: BodyText, Index: len(out)}
			}
			body = append(body, text)
		}
	}
	closeChapter()
	return out
}

func truncateTitle(text string) (string, bool) {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= maxTitleRunes {
		return text, false
	}
	r := []rune(text)
	return string(r[:maxTitleRunes]) + "...", true
}
