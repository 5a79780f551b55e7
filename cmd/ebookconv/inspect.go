package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/milk137592000/ebook-new/internal/chapters"
	"github.com/milk137592000/ebook-new/internal/config"
	"github.com/milk137592000/ebook-new/internal/converter"
	"github.com/milk137592000/ebook-new/internal/epub"
	"github.com/milk137592000/ebook-new/internal/pdfextract"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "inspect <input>",
		Short:         "Print the structure of an EPUB or PDF without converting it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runInspect,
	}
	addCommonFlags(cmd)
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	format, err := converter.DetectFormat(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if format == converter.FormatPDF {
		return inspectPDF(out, args[0], cfg, logger)
	}
	return inspectEPUB(out, args[0], logger)
}

func inspectEPUB(w io.Writer, path string, logger *slog.Logger) error {
	pkg, err := epub.ParseFile(path, logger)
	if err != nil {
		return err
	}

	md := pkg.Metadata
	fmt.Fprintf(w, "Package:   %s (EPUB %s)\n", pkg.OPFPath, pkg.Version)
	fmt.Fprintf(w, "Title:     %s\n", md.Title)
	fmt.Fprintf(w, "Authors:   %s\n", strings.Join(pkg.Authors(), ", "))
	fmt.Fprintf(w, "Language:  %s\n", md.Language)
	if pkg.SourcePageDirection != "" {
		fmt.Fprintf(w, "Direction: %s\n", pkg.SourcePageDirection)
	}
	if cover := pkg.DetectCover(); cover != nil {
		fmt.Fprintf(w, "Cover:     %s (%s)\n", cover.Href, cover.DetectionMethod)
	}

	fmt.Fprintf(w, "\nManifest (%d items):\n", len(pkg.Items))
	for _, it := range pkg.Items {
		fmt.Fprintf(w, "  %-20s %-26s %s (%d bytes)\n", it.ID, it.MediaType, it.Href, len(it.Content))
	}

	fmt.Fprintf(w, "\nReading order (%d documents):\n", len(pkg.ReadingOrder()))
	for i, it := range pkg.ReadingOrder() {
		title := "-"
		if content, err := epub.LoadContent(it); err == nil {
			title = converter.ChapterTitle(content.Document, it.Href)
		}
		fmt.Fprintf(w, "  %3d. %s  %s\n", i+1, it.Href, title)
	}

	if len(pkg.TOC) > 0 {
		fmt.Fprintln(w, "\nTable of contents:")
		writeTOC(w, pkg.TOC, 1)
	}
	return nil
}

func writeTOC(w io.Writer, points []epub.NavPoint, depth int) {
	for _, np := range points {
		target := np.ContentPath
		if np.Fragment != "" {
			target += "#" + np.Fragment
		}
		fmt.Fprintf(w, "%s- %s -> %s\n", strings.Repeat("  ", depth), np.Label, target)
		writeTOC(w, np.Children, depth+1)
	}
}

func inspectPDF(w io.Writer, path string, cfg *config.Config, logger *slog.Logger) error {
	ex := pdfextract.New(pdfextract.Options{
		Backend: cfg.PDF.Backend,
		Heuristics: pdfextract.Heuristics{
			TitleFontSize:    cfg.PDF.TitleFontSize,
			UpperTitleMaxLen: cfg.PDF.UpperTitleMaxLen,
			ShortTitleMaxLen: cfg.PDF.ShortTitleMaxLen,
		},
		Logger: logger,
	})
	defer ex.Close()

	if err := ex.Load(path); err != nil {
		return err
	}
	info, err := ex.Info()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Backend:  %s\n", ex.Backend())
	fmt.Fprintf(w, "Title:    %s\n", info.Title)
	fmt.Fprintf(w, "Author:   %s\n", info.Author)
	if info.Subject != "" {
		fmt.Fprintf(w, "Subject:  %s\n", info.Subject)
	}
	if info.Producer != "" {
		fmt.Fprintf(w, "Producer: %s\n", info.Producer)
	}
	fmt.Fprintf(w, "Pages:    %d\n", info.PageCount)
	fmt.Fprintf(w, "Size:     %d bytes\n", info.FileSize)

	pages, err := ex.ExtractStructured()
	if err != nil {
		return err
	}
	chs := chapters.FromPages(chapters.Detect(pages))
	fmt.Fprintf(w, "\nChapters (%d):\n", len(chs))
	for _, ch := range chs {
		fmt.Fprintf(w, "  %3d. %s (%d chars)\n", ch.Index+1, ch.Title, len([]rune(ch.Body)))
	}
	return nil
}
