package pdfextract

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Default title heuristic thresholds.
const (
	DefaultTitleFontSize    = 14.0
	DefaultUpperTitleMaxLen = 100
	DefaultShortTitleMaxLen = 50
)

// terminalPunctuation ends a sentence; short lines ending with one are body text.
const terminalPunctuation = ".!?;:。！？；：…"

// Heuristics holds the thresholds of the title classifier.
type Heuristics struct {
	// TitleFontSize is the size a paragraph must exceed to be a title.
	TitleFontSize float64
	// UpperTitleMaxLen bounds all-upper-case titles (runes, exclusive).
	UpperTitleMaxLen int
	// ShortTitleMaxLen bounds unpunctuated titles (runes, exclusive).
	ShortTitleMaxLen int
}

func (h Heuristics) withDefaults() Heuristics {
	if h.TitleFontSize <= 0 {
		h.TitleFontSize = DefaultTitleFontSize
	}
	if h.UpperTitleMaxLen <= 0 {
		h.UpperTitleMaxLen = DefaultUpperTitleMaxLen
	}
	if h.ShortTitleMaxLen <= 0 {
		h.ShortTitleMaxLen = DefaultShortTitleMaxLen
	}
	return h
}

// markTitles sets IsTitle on every paragraph. With font metrics a title is
// larger than TitleFontSize and than the dominant body size; without metrics
// the text-shape rules apply.
func (h Heuristics) markTitles(pages []Page) {
	h = h.withDefaults()
	body, hasMetrics := bodyFontSize(pages)

	for pi := range pages {
		for i := range pages[pi].Paragraphs {
			p := &pages[pi].Paragraphs[i]
			if hasMetrics && p.FontSize > 0 {
				p.IsTitle = p.FontSize > h.TitleFontSize && halfPoint(p.FontSize) > body
				continue
			}
			p.IsTitle = h.looksLikeTitle(p.Text)
		}
	}
}

func (h Heuristics) looksLikeTitle(text string) bool {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return false
	}
	if n < h.UpperTitleMaxLen && isUpper(text) {
		return true
	}
	if n < h.ShortTitleMaxLen && !endsWithTerminal(text) {
		return true
	}
	return false
}

// isUpper reports whether text has at least one cased letter and no lower-case ones.
func isUpper(text string) bool {
	cased := false
	for _, r := range text {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

func endsWithTerminal(text string) bool {
	text = strings.TrimRightFunc(text, unicode.IsSpace)
	r, _ := utf8.DecodeLastRuneInString(text)
	return r != utf8.RuneError && strings.ContainsRune(terminalPunctuation, r)
}

// bodyFontSize returns the font size carrying the most text, rounded to half
// points. ok is false when no paragraph has metrics.
func bodyFontSize(pages []Page) (size float64, ok bool) {
	weights := make(map[float64]int)
	for _, pg := range pages {
		for _, p := range pg.Paragraphs {
			if p.FontSize <= 0 {
				continue
			}
			weights[halfPoint(p.FontSize)] += utf8.RuneCountInString(p.Text)
		}
	}
	best := -1
	for s, w := range weights {
		if w > best || (w == best && s < size) {
			size, best = s, w
		}
	}
	return size, best >= 0
}

func halfPoint(size float64) float64 {
	return math.Round(size*2) / 2
}
