package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/milk137592000/ebook-new/internal/chapters"
	"github.com/milk137592000/ebook-new/internal/config"
	"github.com/milk137592000/ebook-new/internal/ebookconvert"
	"github.com/milk137592000/ebook-new/internal/hanconv"
	"github.com/milk137592000/ebook-new/internal/markdown"
	"github.com/milk137592000/ebook-new/internal/pdfextract"
)

// Format names an input or output file format.
type Format string

const (
	FormatUnknown  Format = ""
	FormatEPUB     Format = "epub"
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "md"
	FormatMOBI     Format = "mobi"
	FormatAZW3     Format = "azw3"
)

var (
	ErrUnsupportedConversion = errors.New("converter: unsupported conversion")
	ErrInvalidRequest        = errors.New("converter: invalid request")
)

// targets lists the output formats accepted per input format.
var targets = map[Format][]Format{
	FormatEPUB: {FormatEPUB, FormatMarkdown, FormatMOBI, FormatAZW3, FormatPDF},
	FormatPDF:  {FormatMarkdown, FormatEPUB},
}

// Targets returns the output formats accepted for src.
func Targets(src Format) []Format {
	return targets[src]
}

// ExternalConverter produces formats this module does not write itself.
type ExternalConverter interface {
	Available(ctx context.Context) bool
	Convert(ctx context.Context, in, out, format string, progress func(string)) error
}

// Request is one conversion job.
type Request struct {
	InputPath string
	Target    Format
	// OutputPath overrides the generated output name.
	OutputPath string
	// OutputDir holds the generated output name; defaults to the input's directory.
	OutputDir string
	// LineHeight overrides the configured value when positive.
	LineHeight    float64
	ConvertScript bool
}

// Result describes a finished conversion. On failure Success is false,
// Message holds the reason and no output file exists.
type Result struct {
	Success    bool
	OutputPath string
	Message    string
	Source     Format
	Target     Format
	Book       BookInfo
	PDF        *pdfextract.Info
	Stats      hanconv.Stats
}

type PipelineOptions struct {
	Config   *config.Config
	Script   *hanconv.Converter
	External ExternalConverter
	// PDFOpen overrides the configured PDF backend.
	PDFOpen pdfextract.Opener
	// Progress receives external converter output lines.
	Progress func(string)
	Logger   *slog.Logger
}

// Pipeline orchestrates a conversion from an input file to one target format.
type Pipeline struct {
	opts   PipelineOptions
	cfg    *config.Config
	logger *slog.Logger
}

// NewPipeline creates a new conversion pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{opts: opts, cfg: cfg, logger: logger}
}

// Convert executes one request.
func (p *Pipeline) Convert(ctx context.Context, req Request) (Result, error) {
	res := Result{Target: Format(strings.ToLower(string(req.Target)))}
	err := p.convert(ctx, req, &res)
	if err != nil {
		res.Success = false
		res.OutputPath = ""
		res.Message = err.Error()
		p.logger.Error("conversion failed", "input", req.InputPath, "target", res.Target, "error", err)
		return res, err
	}
	res.Success = true
	p.logger.Info("conversion finished", "input", req.InputPath, "output", res.OutputPath)
	return res, nil
}

func (p *Pipeline) convert(ctx context.Context, req Request, res *Result) error {
	if req.InputPath == "" {
		return fmt.Errorf("%w: input path is required", ErrInvalidRequest)
	}
	lh := p.cfg.LineHeight
	if req.LineHeight > 0 {
		lh = req.LineHeight
	}
	if lh < config.MinLineHeight || lh > config.MaxLineHeight {
		return fmt.Errorf("%w: line height must be between %.1f and %.1f, got %g",
			ErrInvalidRequest, config.MinLineHeight, config.MaxLineHeight, lh)
	}

	src, err := DetectFormat(req.InputPath)
	if err != nil {
		return err
	}
	res.Source = src
	if !accepts(src, res.Target) {
		return fmt.Errorf("%w: %s to %q", ErrUnsupportedConversion, src, res.Target)
	}

	switch src {
	case FormatEPUB:
		return p.convertEPUB(ctx, req, lh, res)
	case FormatPDF:
		return p.convertPDF(req, lh, res)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedConversion, src)
}

func accepts(src, target Format) bool {
	for _, t := range targets[src] {
		if t == target {
			return true
		}
	}
	return false
}

func (p *Pipeline) rewriterOptions(lineHeight float64) RewriterOptions {
	return RewriterOptions{
		LineHeight:       lineHeight,
		FontStack:        p.cfg.FontStack,
		Workers:          p.cfg.Workers,
		StripVerticalCSS: p.cfg.StripVerticalCSS,
		MaxImageWidth:    p.cfg.MaxImageWidth,
		JPEGQuality:      p.cfg.JPEGQuality,
		Script:           p.opts.Script,
		Logger:           p.logger,
	}
}

func (p *Pipeline) convertEPUB(ctx context.Context, req Request, lh float64, res *Result) error {
	external := res.Target == FormatMOBI || res.Target == FormatAZW3 || res.Target == FormatPDF
	if external && (p.opts.External == nil || !p.opts.External.Available(ctx)) {
		return fmt.Errorf("%s output: %w", res.Target, ebookconvert.ErrUnavailableConverter)
	}

	rw := NewRewriter(p.rewriterOptions(lh))
	if err := rw.Load(req.InputPath); err != nil {
		return err
	}
	info, err := rw.BookInfo()
	if err != nil {
		return err
	}
	res.Book = info

	if res.Target == FormatMarkdown {
		return p.epubToMarkdown(rw, req, lh, res)
	}

	if err := rw.Modify(req.ConvertScript); err != nil {
		return err
	}
	res.Stats = rw.Stats()
	out := p.outputPath(req, horizontalName(req.InputPath, res.Target))

	if !external {
		if err := rw.Save(out); err != nil {
			return err
		}
		res.OutputPath = out
		return nil
	}

	epubTmp, err := tempSibling(strings.TrimSuffix(out, filepath.Ext(out)) + ".epub")
	if err != nil {
		return err
	}
	defer os.Remove(epubTmp)
	if err := rw.Save(epubTmp); err != nil {
		return err
	}

	outTmp, err := tempSibling(out)
	if err != nil {
		return err
	}
	// Only the name is reserved; the external converter creates the file.
	os.Remove(outTmp)
	defer os.Remove(outTmp)
	if err := p.opts.External.Convert(ctx, epubTmp, outTmp, string(res.Target), p.opts.Progress); err != nil {
		return err
	}
	if err := os.Rename(outTmp, out); err != nil {
		return fmt.Errorf("rename %s: %w", out, err)
	}
	res.OutputPath = out
	return nil
}

func (p *Pipeline) epubToMarkdown(rw *Rewriter, req Request, lh float64, res *Result) error {
	chs, err := rw.ExtractChapters()
	if err != nil {
		return err
	}
	if req.ConvertScript {
		res.Stats = p.convertChapters(chs)
	}

	doc := markdown.FromChapters(chs, markdown.Metadata{
		Title:      res.Book.Title,
		Author:     res.Book.Author,
		Language:   res.Book.Language,
		LineHeight: lh,
		Source:     markdown.SourceEPUB,
	})
	out := p.outputPath(req, markdown.SanitizeFilename(res.Book.Title)+".md")
	if err := writeFileAtomic(out, []byte(doc)); err != nil {
		return err
	}
	res.OutputPath = out
	return nil
}

// convertChapters converts markup chapters in place and returns the totals.
func (p *Pipeline) convertChapters(chs []chapters.Chapter) hanconv.Stats {
	var stats hanconv.Stats
	if !p.opts.Script.Available() {
		p.logger.Warn("script conversion requested but no conversion table is loaded")
		return stats
	}
	for i := range chs {
		if title, ok := p.opts.Script.ConvertIfSimplified(chs[i].Title); ok {
			chs[i].Title = title
		}
		after, ok := p.opts.Script.ConvertMarkup(chs[i].Body)
		if !ok {
			continue
		}
		stats = stats.Add(hanconv.ComputeStats(chs[i].Body, after))
		chs[i].Body = after
	}
	return stats
}

func (p *Pipeline) convertPDF(req Request, lh float64, res *Result) error {
	ex := pdfextract.New(pdfextract.Options{
		Backend: p.cfg.PDF.Backend,
		Heuristics: pdfextract.Heuristics{
			TitleFontSize:    p.cfg.PDF.TitleFontSize,
			UpperTitleMaxLen: p.cfg.PDF.UpperTitleMaxLen,
			ShortTitleMaxLen: p.cfg.PDF.ShortTitleMaxLen,
		},
		Open:   p.opts.PDFOpen,
		Logger: p.logger,
	})
	defer ex.Close()

	if err := ex.Load(req.InputPath); err != nil {
		return err
	}
	info, err := ex.Info()
	if err != nil {
		return err
	}
	res.PDF = &info

	pages, err := ex.ExtractStructured()
	if err != nil {
		return err
	}
	pages = chapters.Detect(pages)
	if req.ConvertScript {
		res.Stats = p.convertParagraphs(pages)
	}
	chs := chapters.FromPages(pages)
	p.logger.Debug("pdf chapters", "pages", len(pages), "chapters", len(chs), "backend", ex.Backend())

	if res.Target == FormatMarkdown {
		doc := markdown.FromChapters(chs, markdown.Metadata{
			Title:      info.Title,
			Author:     info.Author,
			Subject:    info.Subject,
			PageCount:  info.PageCount,
			LineHeight: lh,
			Source:     markdown.SourcePDF,
		})
		title := info.Title
		if title == "Unknown" || strings.TrimSpace(title) == "" {
			title = "PDF Document"
		}
		out := p.outputPath(req, markdown.SanitizeFilename(title)+".md")
		if err := writeFileAtomic(out, []byte(doc)); err != nil {
			return err
		}
		res.OutputPath = out
		return nil
	}

	title := info.Title
	if title == "Unknown" {
		title = strings.TrimSuffix(filepath.Base(req.InputPath), filepath.Ext(req.InputPath))
	}
	pkg := SynthesizeEPUB(chs, SynthesisInfo{Title: title, Author: info.Author, Language: p.cfg.Language})
	rw := NewRewriter(p.rewriterOptions(lh))
	if err := rw.LoadPackage(pkg); err != nil {
		return err
	}
	if err := rw.Modify(false); err != nil {
		return err
	}
	out := p.outputPath(req, horizontalName(req.InputPath, FormatEPUB))
	if err := rw.Save(out); err != nil {
		return err
	}
	res.OutputPath = out
	return nil
}

// convertParagraphs converts Simplified paragraphs in place after chapter
// detection has seen the original text.
func (p *Pipeline) convertParagraphs(pages []pdfextract.Page) hanconv.Stats {
	var stats hanconv.Stats
	if !p.opts.Script.Available() {
		p.logger.Warn("script conversion requested but no conversion table is loaded")
		return stats
	}
	for pi := range pages {
		for i := range pages[pi].Paragraphs {
			para := &pages[pi].Paragraphs[i]
			after, ok := p.opts.Script.ConvertIfSimplified(para.Text)
			if !ok {
				continue
			}
			stats = stats.Add(hanconv.ComputeStats(para.Text, after))
			para.Text = after
		}
	}
	return stats
}

func (p *Pipeline) outputPath(req Request, name string) string {
	if req.OutputPath != "" {
		return req.OutputPath
	}
	dir := req.OutputDir
	if dir == "" {
		dir = filepath.Dir(req.InputPath)
	}
	return filepath.Join(dir, name)
}

// horizontalName derives "<input base>_horizontal.<ext>".
func horizontalName(input string, target Format) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	safe := markdown.SanitizeFilename(base)
	if safe == "untitled" {
		safe = "converted_book"
	}
	return safe + "_horizontal." + string(target)
}

// DetectFormat identifies EPUB and PDF inputs from their leading bytes,
// falling back to the file extension.
func DetectFormat(filename string) (Format, error) {
	f, err := os.Open(filename)
	if err != nil {
		return FormatUnknown, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	buf = buf[:n]

	switch mime := http.DetectContentType(buf); {
	case mime == "application/pdf":
		return FormatPDF, nil
	case mime == "application/zip":
		if bytes.Contains(buf, []byte("application/epub+zip")) {
			return FormatEPUB, nil
		}
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".epub":
		return FormatEPUB, nil
	case ".pdf":
		return FormatPDF, nil
	}
	return FormatUnknown, fmt.Errorf("%w: cannot identify %s", ErrUnsupportedConversion, filepath.Base(filename))
}
