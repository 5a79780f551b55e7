package pdfextract

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Backend names.
const (
	BackendAuto   = "auto"
	BackendTabula = "tabula"
	BackendPDFCPU = "pdfcpu"
)

// unknownValue is reported for missing title and author fields.
const unknownValue = "Unknown"

var openers = map[string]Opener{
	BackendTabula: openTabula,
	BackendPDFCPU: openPDFCPU,
}

// Options configures an Extractor.
type Options struct {
	// Backend is auto, tabula or pdfcpu. Auto tries tabula, then pdfcpu.
	Backend    string
	Heuristics Heuristics
	// Open overrides backend selection.
	Open   Opener
	Logger *slog.Logger
}

// Extractor loads one PDF at a time and extracts its paragraphs.
type Extractor struct {
	opts    Options
	logger  *slog.Logger
	doc     Document
	backend string
	path    string
}

// New creates an Extractor. No file is opened until Load.
func New(opts Options) *Extractor {
	if opts.Backend == "" {
		opts.Backend = BackendAuto
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{opts: opts, logger: logger}
}

// Load opens path, closing any previously loaded document. On failure no
// document is retained.
func (e *Extractor) Load(path string) error {
	if err := e.Close(); err != nil {
		e.logger.Warn("closing previous PDF failed", "path", e.path, "error", err)
	}

	if e.opts.Open != nil {
		doc, err := e.opts.Open(path)
		if err != nil {
			return fmt.Errorf("open PDF %s: %w", path, err)
		}
		e.doc, e.backend, e.path = doc, "custom", path
		return nil
	}

	var names []string
	switch e.opts.Backend {
	case BackendAuto:
		names = []string{BackendTabula, BackendPDFCPU}
	case BackendTabula, BackendPDFCPU:
		names = []string{e.opts.Backend}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, e.opts.Backend)
	}

	var errs []error
	for _, name := range names {
		doc, err := openers[name](path)
		if err != nil {
			e.logger.Debug("PDF backend failed to open file", "backend", name, "path", path, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		e.doc, e.backend, e.path = doc, name, path
		e.logger.Debug("PDF loaded", "backend", name, "path", path, "pages", doc.PageCount())
		return nil
	}
	return fmt.Errorf("open PDF %s: %w", path, errors.Join(errs...))
}

// Backend returns the name of the backend that loaded the current document.
func (e *Extractor) Backend() string { return e.backend }

// ExtractStructured returns the non-empty pages of the document with title
// flags set. Pages that fail to decode are skipped with a warning.
func (e *Extractor) ExtractStructured() ([]Page, error) {
	if e.doc == nil {
		return nil, ErrNotLoaded
	}

	var pages []Page
	for i := 0; i < e.doc.PageCount(); i++ {
		runs, err := e.doc.PageRuns(i)
		if err != nil {
			e.logger.Warn("skipping unreadable PDF page", "page", i+1, "error", err)
			continue
		}
		paras := groupParagraphs(runs)
		if len(paras) == 0 {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Paragraphs: paras})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%s: %w", e.path, ErrEmptyExtraction)
	}

	e.opts.Heuristics.markTitles(pages)
	return pages, nil
}

// Info returns the document metadata. Missing title and author are reported
// as "Unknown".
func (e *Extractor) Info() (Info, error) {
	if e.doc == nil {
		return Info{}, ErrNotLoaded
	}
	info := e.doc.Metadata()
	info.Title = strings.TrimSpace(info.Title)
	info.Author = strings.TrimSpace(info.Author)
	if info.Title == "" {
		info.Title = unknownValue
	}
	if info.Author == "" {
		info.Author = unknownValue
	}
	if info.PageCount == 0 {
		info.PageCount = e.doc.PageCount()
	}
	if fi, err := os.Stat(e.path); err == nil {
		info.FileSize = fi.Size()
	}
	return info, nil
}

// Close releases the document. It is safe to call more than once.
func (e *Extractor) Close() error {
	if e.doc == nil {
		return nil
	}
	err := e.doc.Close()
	e.doc = nil
	e.backend = ""
	return err
}

// Backends lists the built-in backend names in auto order.
func Backends() []string {
	return []string{BackendTabula, BackendPDFCPU}
}

// groupParagraphs splits runs at blank lines. Each piece keeps the average
// font size of its run.
func groupParagraphs(runs []Run) []Paragraph {
	var out []Paragraph
	for _, r := range runs {
		text := strings.ReplaceAll(r.Text, "\r\n", "\n")
		for _, part := range strings.Split(text, "\n\n") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, Paragraph{Text: part, FontSize: r.FontSize})
		}
	}
	return out
}
