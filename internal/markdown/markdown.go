// Package markdown assembles chapters into a single Markdown document with a
// YAML front matter block and a book information header.
package markdown

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/milk137592000/ebook-new/internal/chapters"
)

// Source selects the header layout.
type Source string

const (
	SourceEPUB Source = "epub"
	SourcePDF  Source = "pdf"
)

// Metadata describes the book being assembled.
type Metadata struct {
	Title      string
	Author     string
	Language   string
	Subject    string
	PageCount  int
	LineHeight float64
	Source     Source
	// GeneratedAt defaults to the current time.
	GeneratedAt time.Time
}

const timeLayout = "2006-01-02 15:04:05"

type frontMatter struct {
	Title      string  `yaml:"title"`
	Author     string  `yaml:"author,omitempty"`
	Language   string  `yaml:"language,omitempty"`
	Subject    string  `yaml:"subject,omitempty"`
	Pages      int     `yaml:"pages,omitempty"`
	Source     Source  `yaml:"source"`
	LineHeight float64 `yaml:"line_height"`
	Chapters   int     `yaml:"chapters"`
	Converted  string  `yaml:"converted"`
}

// FromChapters renders chapters in order. Markup bodies are degraded to
// Markdown; text bodies are written verbatim. A markup chapter with an empty
// body is skipped.
func FromChapters(chs []chapters.Chapter, meta Metadata) string {
	meta = meta.withDefaults()
	generated := meta.GeneratedAt.Format(timeLayout)
	lh := strconv.FormatFloat(meta.LineHeight, 'f', -1, 64)

	var sections []string
	for _, ch := range chs {
		title := singleLine(ch.Title)
		body := ch.Body
		if ch.Kind == chapters.BodyMarkup {
			if strings.TrimSpace(body) == "" {
				continue
			}
			body = FromMarkup(body)
		} else {
			body = strings.TrimSpace(body)
		}
		if title == "" {
			title = "Chapter " + strconv.Itoa(len(sections)+1)
		}
		section := "## " + title
		if body != "" {
			section += "\n\n" + body
		}
		sections = append(sections, section)
	}

	var b strings.Builder
	writeFrontMatter(&b, meta, len(sections), generated)

	b.WriteString("# " + singleLine(meta.Title) + "\n\n")
	if meta.Source == SourcePDF {
		b.WriteString("## 文件資訊\n\n")
		writeField(&b, "作者", meta.Author)
		writeField(&b, "主題", meta.Subject)
		pages := "Unknown"
		if meta.PageCount > 0 {
			pages = strconv.Itoa(meta.PageCount)
		}
		writeField(&b, "頁數", pages)
	} else {
		b.WriteString("## 書籍資訊\n\n")
		writeField(&b, "作者", meta.Author)
		writeField(&b, "語言", meta.Language)
	}
	writeField(&b, "轉換時間", generated)
	writeField(&b, "行距", lh)
	b.WriteString("\n---\n\n")
	b.WriteString(`<div style="line-height: ` + lh + `;">` + "\n\n")

	for _, s := range sections {
		b.WriteString(s)
		b.WriteString("\n\n---\n\n")
	}

	b.WriteString("</div>\n\n")
	if meta.Source == SourcePDF {
		b.WriteString("*本檔案由PDF轉換器自動生成*\n")
	} else {
		b.WriteString("*本檔案由EPUB轉換器自動生成*\n")
	}
	return b.String()
}

func (m Metadata) withDefaults() Metadata {
	if m.Source == "" {
		m.Source = SourceEPUB
	}
	title := strings.TrimSpace(m.Title)
	switch {
	case m.Source == SourcePDF && (title == "" || title == "Unknown"):
		m.Title = "PDF Document"
	case title == "":
		m.Title = "Unknown Book"
	}
	if strings.TrimSpace(m.Author) == "" {
		m.Author = "Unknown"
	}
	if strings.TrimSpace(m.Language) == "" {
		m.Language = "Unknown"
	}
	if strings.TrimSpace(m.Subject) == "" {
		m.Subject = "N/A"
	}
	if m.LineHeight <= 0 {
		m.LineHeight = 1.6
	}
	if m.GeneratedAt.IsZero() {
		m.GeneratedAt = time.Now()
	}
	return m
}

func writeFrontMatter(b *strings.Builder, meta Metadata, sections int, generated string) {
	fm := frontMatter{
		Title:      meta.Title,
		Author:     meta.Author,
		Source:     meta.Source,
		LineHeight: meta.LineHeight,
		Chapters:   sections,
		Converted:  generated,
	}
	if meta.Source == SourcePDF {
		fm.Subject = meta.Subject
		fm.Pages = meta.PageCount
	} else {
		fm.Language = meta.Language
	}
	out, err := yaml.Marshal(fm)
	if err != nil {
		return
	}
	b.WriteString("---\n")
	b.Write(out)
	b.WriteString("---\n\n")
}

func writeField(b *strings.Builder, name, value string) {
	b.WriteString("- **" + name + "**: " + singleLine(value) + "\n")
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var (
	unsafeChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	spaceRuns   = regexp.MustCompile(`\s+`)
)

const maxFilenameRunes = 50

// SanitizeFilename turns a title into a file name stem.
func SanitizeFilename(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	s = spaceRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")
	if utf8.RuneCountInString(s) > maxFilenameRunes {
		s = string([]rune(s)[:maxFilenameRunes])
	}
	if s == "" {
		return "untitled"
	}
	return s
}
