package converter

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/milk137592000/ebook-new/internal/chapters"
	"github.com/milk137592000/ebook-new/internal/epub"
	"github.com/milk137592000/ebook-new/internal/hanconv"
)

// State is the lifecycle position of a Rewriter.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateModified
	StateSaved
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateModified:
		return "modified"
	case StateSaved:
		return "saved"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrInvalidState is returned when an operation is called out of order.
var ErrInvalidState = errors.New("converter: operation not valid in current state")

const (
	stylesheetID   = "horizontal_style"
	stylesheetPath = "styles/horizontal.css"
)

// RewriterOptions configures a Rewriter.
type RewriterOptions struct {
	LineHeight float64
	FontStack  []string
	// Workers bounds concurrent document processing; values below 2 run
	// sequentially.
	Workers          int
	StripVerticalCSS bool
	// MaxImageWidth enables downscaling of wider raster images. The cover is
	// never resized.
	MaxImageWidth int
	JPEGQuality   int
	// Script performs Simplified to Traditional conversion when Modify is
	// asked to; it may be nil when conversion is never requested.
	Script *hanconv.Converter
	Logger *slog.Logger
}

// BookInfo is the basic metadata of a loaded book.
type BookInfo struct {
	Title    string `json:"title" yaml:"title"`
	Author   string `json:"author" yaml:"author"`
	Language string `json:"language" yaml:"language"`
}

// Rewriter loads an EPUB, makes its documents horizontal and left to right
// with a fixed line height, and saves it back. Transitions only move forward:
// Unloaded, Loaded, Modified, Saved.
type Rewriter struct {
	opts   RewriterOptions
	logger *slog.Logger

	state State
	pkg   *epub.Package
	stats hanconv.Stats
}

func NewRewriter(opts RewriterOptions) *Rewriter {
	if opts.LineHeight <= 0 {
		opts.LineHeight = DefaultLineHeight
	}
	if len(opts.FontStack) == 0 {
		opts.FontStack = DefaultFontStack
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{opts: opts, logger: logger}
}

func (r *Rewriter) State() State { return r.state }

// Stats returns the accumulated script conversion counts.
func (r *Rewriter) Stats() hanconv.Stats { return r.stats }

// Package exposes the loaded publication.
func (r *Rewriter) Package() *epub.Package { return r.pkg }

func (r *Rewriter) require(op string, allowed ...State) error {
	for _, s := range allowed {
		if r.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s while %s", ErrInvalidState, op, r.state)
}

// Load parses the EPUB at filename. On failure the Rewriter stays unloaded.
func (r *Rewriter) Load(filename string) error {
	if err := r.require("load", StateUnloaded); err != nil {
		return err
	}
	pkg, err := epub.ParseFile(filename, r.logger)
	if err != nil {
		return fmt.Errorf("load %s: %w", filename, err)
	}
	r.pkg = pkg
	r.state = StateLoaded
	r.logger.Info("book loaded",
		"path", filename,
		"title", pkg.Metadata.Title,
		"items", len(pkg.Items),
		"spine", len(pkg.Spine))
	return nil
}

// LoadPackage adopts a package built in memory, such as one from
// SynthesizeEPUB.
func (r *Rewriter) LoadPackage(pkg *epub.Package) error {
	if err := r.require("load", StateUnloaded); err != nil {
		return err
	}
	if pkg == nil {
		return fmt.Errorf("load: %w: nil package", epub.ErrMalformedPackageDocument)
	}
	r.pkg = pkg
	r.state = StateLoaded
	return nil
}

// loadContent parses a content document for rewriting. Tests replace it.
var loadContent = epub.LoadContent

// docResult is written by exactly one worker.
type docResult struct {
	content []byte
	stats   hanconv.Stats
	err     error
}

// Modify adds the horizontal stylesheet, links it from every content
// document and, when convertScript is set, converts Simplified text. A
// document that fails keeps its original bytes.
func (r *Rewriter) Modify(convertScript bool) error {
	if err := r.require("modify", StateLoaded); err != nil {
		return err
	}
	if convertScript && (r.opts.Script == nil || !r.opts.Script.Available()) {
		r.logger.Warn("script conversion requested but no conversion table is loaded")
		convertScript = false
	}

	cssPath := path.Join(r.pkg.OPFDir(), stylesheetPath)
	r.addStylesheet(cssPath)

	docs := r.pkg.ContentDocuments()
	results := make([]docResult, len(docs))

	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i, it := range docs {
		i, it := i, it
		g.Go(func() error {
			results[i] = r.rewriteDocument(it, cssPath, convertScript)
			return nil
		})
	}
	_ = g.Wait()

	var stats hanconv.Stats
	failed := 0
	for i, res := range results {
		if res.err != nil {
			failed++
			r.logger.Warn("keeping original document", "href", docs[i].Href, "error", res.err)
			continue
		}
		docs[i].Content = res.content
		stats = stats.Add(res.stats)
	}
	r.stats = stats

	if r.opts.StripVerticalCSS {
		r.stripStylesheets(cssPath)
	}
	if opt := NewImageOptimizer(r.opts.MaxImageWidth, r.opts.JPEGQuality); opt != nil {
		r.optimizeImages(opt)
	}

	r.state = StateModified
	r.logger.Info("book modified",
		"documents", len(docs),
		"failed", failed,
		"total_chars", stats.TotalChars,
		"changed_chars", stats.ChangedChars,
		"change_rate", stats.ChangeRate())
	return nil
}

func (r *Rewriter) addStylesheet(cssPath string) {
	css := []byte(BuildStylesheet(r.opts.LineHeight, r.opts.FontStack))
	if it, ok := r.pkg.ItemByHref(cssPath); ok {
		it.Content = css
		return
	}
	r.pkg.AddItem(&epub.Item{
		ID:        stylesheetID,
		Href:      cssPath,
		MediaType: epub.MediaTypeCSS,
		Content:   css,
	})
}

func (r *Rewriter) rewriteDocument(it *epub.Item, cssPath string, convertScript bool) (res docResult) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Debug("document rewrite panicked", "href", it.Href, "stack", string(debug.Stack()))
			res = docResult{err: fmt.Errorf("%w: %s: panic: %v", epub.ErrUnresolvableContent, it.Href, p)}
		}
	}()

	content, err := loadContent(it)
	if err != nil {
		return docResult{err: err}
	}
	if err := InjectStylesheet(content.Document, stylesheetHref(it.Href, cssPath)); err != nil {
		return docResult{err: fmt.Errorf("%w: %s: %v", epub.ErrUnresolvableContent, it.Href, err)}
	}
	if r.opts.StripVerticalCSS {
		StripVerticalLayout(content.Document)
	}
	out, err := content.Render()
	if err != nil {
		return docResult{err: fmt.Errorf("%w: %v", epub.ErrUnresolvableContent, err)}
	}
	res.content = out

	if convertScript {
		before := string(out)
		if after, changed := r.opts.Script.ConvertMarkup(before); changed {
			res.content = []byte(after)
			res.stats = hanconv.ComputeStats(before, after)
		}
	}
	return res
}

func (r *Rewriter) stripStylesheets(own string) {
	for _, it := range r.pkg.Items {
		if it.MediaType != epub.MediaTypeCSS || it.Href == own {
			continue
		}
		if out := TransformCSS(string(it.Content)); out != string(it.Content) {
			it.Content = []byte(out)
			r.logger.Debug("removed vertical declarations", "href", it.Href)
		}
	}
}

func (r *Rewriter) optimizeImages(opt *ImageOptimizer) {
	var coverHref string
	if cover := r.pkg.DetectCover(); cover != nil {
		coverHref = cover.Href
	}

	var (
		mu      sync.Mutex
		resized int
		g       errgroup.Group
	)
	g.SetLimit(r.opts.Workers)
	for _, it := range r.pkg.Items {
		if !epub.IsImage(it.MediaType) || it.Href == coverHref {
			continue
		}
		it := it
		g.Go(func() error {
			out, err := opt.Optimize(it.MediaType, it.Content)
			if err != nil {
				r.logger.Warn("image left unchanged", "href", it.Href, "error", err)
				return nil
			}
			if out.Warning != "" {
				r.logger.Debug("image left unchanged", "href", it.Href, "reason", out.Warning)
			}
			if out.Changed {
				it.Content = out.Data
				mu.Lock()
				resized++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if resized > 0 {
		r.logger.Info("images downscaled", "count", resized, "max_width", opt.MaxWidth)
	}
}

// Save serializes the book, marks the spine left to right and writes the
// archive to filename atomically. A failure to mark the spine is logged and
// the unmarked archive is written.
func (r *Rewriter) Save(filename string) error {
	if err := r.require("save", StateModified); err != nil {
		return err
	}
	data, err := epub.Serialize(r.pkg, r.logger)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}
	if patched, err := epub.PatchPageProgressionDirection(data, "ltr"); err != nil {
		r.logger.Warn("page progression direction not set", "error", err)
	} else {
		data = patched
	}
	if err := writeFileAtomic(filename, data); err != nil {
		return err
	}
	r.state = StateSaved
	r.logger.Info("book saved", "path", filename, "bytes", len(data))
	return nil
}

// ExtractChapters returns the content documents in reading order with their
// full markup as body.
func (r *Rewriter) ExtractChapters() ([]chapters.Chapter, error) {
	if err := r.require("extract chapters", StateLoaded, StateModified, StateSaved); err != nil {
		return nil, err
	}
	var out []chapters.Chapter
	for _, it := range r.pkg.ReadingOrder() {
		title := path.Base(it.Href)
		if content, err := epub.LoadContent(it); err != nil {
			r.logger.Warn("chapter title unavailable", "href", it.Href, "error", err)
		} else {
			title = ChapterTitle(content.Document, it.Href)
		}
		out = append(out, chapters.Chapter{
			Title: title,
			Body:  string(epub.ExpandSelfClosing(it.Content)),
			Kind:  chapters.BodyMarkup,
			Index: len(out),
		})
	}
	return out, nil
}

// BookInfo reports title, first author and language, "Unknown" when absent.
func (r *Rewriter) BookInfo() (BookInfo, error) {
	if err := r.require("book info", StateLoaded, StateModified, StateSaved); err != nil {
		return BookInfo{}, err
	}
	info := BookInfo{Title: "Unknown", Author: "Unknown", Language: "Unknown"}
	md := r.pkg.Metadata
	if md.Title != "" {
		info.Title = md.Title
	}
	if authors := r.pkg.Authors(); len(authors) > 0 {
		info.Author = authors[0]
	}
	if md.Language != "" {
		info.Language = md.Language
	}
	return info, nil
}
