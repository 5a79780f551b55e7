package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/milk137592000/ebook-new/internal/config"
	"github.com/milk137592000/ebook-new/internal/converter"
	"github.com/milk137592000/ebook-new/internal/ebookconvert"
	"github.com/milk137592000/ebook-new/internal/hanconv"
	"github.com/milk137592000/ebook-new/internal/pdfextract"
)

type cliOptions struct {
	InputPath  string
	Target     converter.Format
	OutputPath string
	OutputDir  string
	// LineHeight is 0 when the configured value applies.
	LineHeight float64
	NoConvert  bool
	ConfigPath string
	// Workers is 0 when the configured value applies.
	Workers int
	Logger  *slog.Logger
}

var outputFormats = map[string]converter.Format{
	"epub":     converter.FormatEPUB,
	"md":       converter.FormatMarkdown,
	"markdown": converter.FormatMarkdown,
	"mobi":     converter.FormatMOBI,
	"azw3":     converter.FormatAZW3,
	"pdf":      converter.FormatPDF,
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ebookconv <input>",
		Short: "Convert EPUB and PDF books to horizontal EPUB, Markdown and Kindle formats",
		Long: `ebookconv rewrites vertical, right-to-left EPUB books into horizontal,
left-to-right layout with a fixed line height, optionally converting
Simplified Chinese text to Traditional.

EPUB input can be written as EPUB, Markdown, or through Calibre's
ebook-convert as MOBI, AZW3 or PDF. PDF input can be written as Markdown
or as a synthesized EPUB.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runConvert,
	}

	f := cmd.Flags()
	f.StringP("format", "f", "epub", "Output format: epub, md, mobi, azw3 or pdf")
	f.StringP("output", "o", "", "Output file path (default: derived from the input name or book title)")
	f.String("output-dir", "", "Directory for the generated output name (default: input directory)")
	f.Float64("line-height", 0, "Line height between 1.0 and 3.0 (default: from config, 1.6)")
	f.Bool("no-convert", false, "Keep Simplified Chinese text as is")
	f.Int("workers", 0, "Documents processed in parallel (default: from config, 1)")
	addCommonFlags(cmd)

	cmd.AddCommand(newStatusCmd(), newInspectCmd())
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Report script conversion, PDF backends and external converter availability",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runStatus,
	}
	addCommonFlags(cmd)
	return cmd
}

func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("config", "", "YAML configuration file")
	f.String("log-level", "info", "Log level: debug, info, warn or error")
	f.String("log-format", "text", "Log format: text or json")
	f.BoolP("verbose", "v", false, "Shorthand for --log-level debug")
}

func readCLIOptions(cmd *cobra.Command, args []string) (*cliOptions, error) {
	f := cmd.Flags()
	opts := &cliOptions{InputPath: args[0]}

	format, _ := f.GetString("format")
	target, ok := outputFormats[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, fmt.Errorf("invalid --format %q: use epub, md, mobi, azw3 or pdf", format)
	}
	opts.Target = target

	opts.OutputPath, _ = f.GetString("output")
	opts.OutputDir, _ = f.GetString("output-dir")
	opts.NoConvert, _ = f.GetBool("no-convert")
	opts.ConfigPath, _ = f.GetString("config")

	opts.LineHeight, _ = f.GetFloat64("line-height")
	if f.Changed("line-height") && (opts.LineHeight < config.MinLineHeight || opts.LineHeight > config.MaxLineHeight) {
		return nil, fmt.Errorf("invalid --line-height %g: must be between %.1f and %.1f",
			opts.LineHeight, config.MinLineHeight, config.MaxLineHeight)
	}

	opts.Workers, _ = f.GetInt("workers")
	if opts.Workers < 0 {
		return nil, fmt.Errorf("invalid --workers %d: must be >= 1", opts.Workers)
	}

	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	opts.Logger = logger
	return opts, nil
}

func loggerFromFlags(cmd *cobra.Command) (*slog.Logger, error) {
	f := cmd.Flags()
	level, _ := f.GetString("log-level")
	format, _ := f.GetString("log-format")
	verbose, _ := f.GetBool("verbose")

	if _, ok := parseLogLevel(level); !ok {
		return nil, fmt.Errorf("invalid --log-level %q: use debug, info, warn or error", level)
	}
	switch strings.ToLower(format) {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid --log-format %q: use text or json", format)
	}
	if verbose {
		level = "debug"
	}
	return buildLogger(cmd.ErrOrStderr(), level, format), nil
}

func parseLogLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// buildLogger returns a text or JSON logger writing to w. Unknown levels fall
// back to info.
func buildLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := parseLogLevel(level)
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newScript(cfg *config.Config, logger *slog.Logger) *hanconv.Converter {
	return hanconv.New(hanconv.Options{
		Profile: cfg.OpenCCProfile,
		Markers: hanconv.ParseMarkers(cfg.SimplifiedMarkers),
		Logger:  logger,
	})
}

func newExternal(cfg *config.Config, logger *slog.Logger) *ebookconvert.Converter {
	return ebookconvert.New(ebookconvert.Options{
		Command:      cfg.External.Command,
		ProbeTimeout: cfg.External.ProbeTimeout,
		Timeout:      cfg.External.Timeout,
		Logger:       logger,
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runConvert(cmd *cobra.Command, args []string) error {
	opts, err := readCLIOptions(cmd, args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}
	logger := opts.Logger

	stderr := cmd.ErrOrStderr()
	p := converter.NewPipeline(converter.PipelineOptions{
		Config:   cfg,
		Script:   newScript(cfg, logger),
		External: newExternal(cfg, logger),
		Progress: func(line string) { fmt.Fprintln(stderr, line) },
		Logger:   logger,
	})

	logger.Info("converting", "input", opts.InputPath, "format", opts.Target)
	res, err := p.Convert(commandContext(cmd), converter.Request{
		InputPath:     opts.InputPath,
		Target:        opts.Target,
		OutputPath:    opts.OutputPath,
		OutputDir:     opts.OutputDir,
		LineHeight:    opts.LineHeight,
		ConvertScript: cfg.ConvertScript && !opts.NoConvert,
	})
	if err != nil {
		return fmt.Errorf("conversion failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.OutputPath)
	if res.Stats.ChangedChars > 0 {
		fmt.Fprintf(out, "converted %d of %d characters (%.2f%%)\n",
			res.Stats.ChangedChars, res.Stats.TotalChars, res.Stats.ChangeRate())
	}
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	logger, err := loggerFromFlags(cmd)
	if err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "script conversion: %s\n", newScript(cfg, logger).Status())
	fmt.Fprintf(out, "pdf backends: %s (configured: %s)\n", strings.Join(pdfextract.Backends(), ", "), cfg.PDF.Backend)
	fmt.Fprintf(out, "external converter: %s\n", newExternal(cfg, logger).Status(commandContext(cmd)))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		code := 1
		if errors.Is(err, context.Canceled) {
			code = 130
		}
		stop()
		os.Exit(code)
	}
}
