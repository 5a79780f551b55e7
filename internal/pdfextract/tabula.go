package pdfextract

import (
	"fmt"
	"strings"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/layout"
	"github.com/tsawler/tabula/reader"
)

// tabulaDocument reads text fragments with font metrics and groups them into
// paragraphs with tabula's reading-order detector.
type tabulaDocument struct {
	r     *reader.Reader
	pages int
	info  Info
}

func openTabula(path string) (Document, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tabula open %s: %w", path, err)
	}
	n, err := r.PageCount()
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("tabula page count: %w", err)
	}

	d := &tabulaDocument{r: r, pages: n}
	d.info.PageCount = n
	if dict, err := r.GetInfo(); err == nil && dict != nil {
		d.info.Title = infoString(dict, "Title")
		d.info.Author = infoString(dict, "Author")
		d.info.Subject = infoString(dict, "Subject")
		d.info.Creator = infoString(dict, "Creator")
		d.info.Producer = infoString(dict, "Producer")
	}
	return d, nil
}

func (d *tabulaDocument) PageCount() int { return d.pages }

func (d *tabulaDocument) Metadata() Info { return d.info }

func (d *tabulaDocument) Close() error { return d.r.Close() }

func (d *tabulaDocument) PageRuns(index int) ([]Run, error) {
	page, err := d.r.GetPage(index)
	if err != nil {
		return nil, fmt.Errorf("get page %d: %w", index+1, err)
	}
	frags, err := d.r.ExtractTextFragments(page)
	if err != nil {
		return nil, fmt.Errorf("extract page %d: %w", index+1, err)
	}
	if len(frags) == 0 {
		return nil, nil
	}

	w, err := page.Width()
	if err != nil {
		return nil, fmt.Errorf("page %d width: %w", index+1, err)
	}
	h, err := page.Height()
	if err != nil {
		return nil, fmt.Errorf("page %d height: %w", index+1, err)
	}

	paras := layout.NewReadingOrderDetector().Detect(frags, w, h).GetParagraphs()
	if paras == nil {
		return nil, nil
	}
	runs := make([]Run, 0, len(paras.Paragraphs))
	for _, p := range paras.Paragraphs {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		runs = append(runs, Run{Text: text, FontSize: p.AverageFontSize})
	}
	return runs, nil
}

func infoString(dict core.Dict, key string) string {
	s, ok := dict.Get(key).(core.String)
	if !ok {
		return ""
	}
	return decodeTextString([]byte(s))
}
