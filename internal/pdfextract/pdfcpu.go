package pdfextract

import (
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pdfcpuDocument is the text-only fallback: it walks page content streams
// and keeps BT/ET text blocks with their Tf font sizes.
type pdfcpuDocument struct {
	f   *os.File
	ctx *model.Context
}

func openPDFCPU(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return &pdfcpuDocument{f: f, ctx: ctx}, nil
}

func (d *pdfcpuDocument) PageCount() int { return d.ctx.PageCount }

func (d *pdfcpuDocument) Metadata() Info {
	return Info{
		Title:     d.ctx.Title,
		Author:    d.ctx.Author,
		Subject:   d.ctx.Subject,
		Creator:   d.ctx.Creator,
		Producer:  d.ctx.Producer,
		PageCount: d.ctx.PageCount,
	}
}

func (d *pdfcpuDocument) Close() error { return d.f.Close() }

func (d *pdfcpuDocument) PageRuns(index int) ([]Run, error) {
	r, err := pdfcpu.ExtractPageContent(d.ctx, index+1)
	if err != nil {
		return nil, fmt.Errorf("page %d content: %w", index+1, err)
	}
	if r == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read page %d content: %w", index+1, err)
	}
	return parseContentStream(data), nil
}
