// Package pdfextract pulls paragraph-structured text out of PDF files.
package pdfextract

import "errors"

var (
	// ErrEmptyExtraction is returned when a document yields no paragraphs.
	ErrEmptyExtraction = errors.New("pdf: no extractable paragraphs")
	// ErrNotLoaded is returned when extraction is attempted before Load.
	ErrNotLoaded = errors.New("pdf: no document loaded")
	// ErrUnknownBackend is returned for an unrecognized backend name.
	ErrUnknownBackend = errors.New("pdf: unknown backend")
)

// Run is a block of text sharing one average font size. FontSize is 0 when
// the backend has no font metrics for the block.
type Run struct {
	Text     string
	FontSize float64
}

// Info is the document information dictionary plus page count.
type Info struct {
	Title     string `json:"title" yaml:"title"`
	Author    string `json:"author" yaml:"author"`
	Subject   string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Creator   string `json:"creator,omitempty" yaml:"creator,omitempty"`
	Producer  string `json:"producer,omitempty" yaml:"producer,omitempty"`
	PageCount int    `json:"page_count" yaml:"page_count"`
	FileSize  int64  `json:"file_size,omitempty" yaml:"file_size,omitempty"`
}

// Document is an open PDF. Page indexes are 0-based.
type Document interface {
	PageCount() int
	PageRuns(index int) ([]Run, error)
	Metadata() Info
	Close() error
}

// Opener opens a PDF file with one backend.
type Opener func(path string) (Document, error)

// Paragraph is one block of page text. IsTitle is set by the extractor's
// heading heuristic; IsChapter is set by chapter detection.
type Paragraph struct {
	Text      string  `json:"text"`
	FontSize  float64 `json:"font_size"`
	IsTitle   bool    `json:"is_title"`
	IsChapter bool    `json:"is_chapter"`
}

// Page holds the paragraphs of one page. Number is 1-based.
type Page struct {
	Number     int         `json:"page_number"`
	Paragraphs []Paragraph `json:"paragraphs"`
}
