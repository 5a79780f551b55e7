// Package ebookconvert drives an external e-book converter (Calibre's
// ebook-convert) for the formats produced outside this module.
package ebookconvert

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnavailableConverter = errors.New("ebookconvert: external converter unavailable")
	ErrUnsupportedFormat    = errors.New("ebookconvert: unsupported target format")
)

const (
	DefaultCommand      = "ebook-convert"
	DefaultProbeTimeout = 10 * time.Second
	DefaultTimeout      = 10 * time.Minute

	// stderrTail bounds how much diagnostic output is kept for error messages.
	stderrTail = 4 << 10
)

var kindleFlags = []string{
	"--output-profile=kindle",
	"--mobi-file-type=new",
	"--no-inline-toc",
	"--max-toc-links=0",
	"--disable-font-rescaling",
}

var formatFlags = map[string][]string{
	"mobi": kindleFlags,
	"azw3": kindleFlags,
	"pdf": {
		"--pdf-page-numbers",
		"--pdf-add-toc",
		"--paper-size=a4",
		"--pdf-default-font-size=12",
		"--pdf-mono-font-size=10",
		"--margin-left=36",
		"--margin-right=36",
		"--margin-top=36",
		"--margin-bottom=36",
	},
}

// Formats lists the target formats Convert accepts.
func Formats() []string {
	return []string{"azw3", "mobi", "pdf"}
}

// Supports reports whether format is one of Formats.
func Supports(format string) bool {
	_, ok := formatFlags[strings.ToLower(format)]
	return ok
}

type Options struct {
	Command      string
	ProbeTimeout time.Duration
	// Timeout bounds one conversion; zero disables it.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Converter runs the external command. The availability probe runs once per
// Converter.
type Converter struct {
	opts Options

	probeOnce sync.Once
	version   string
	probeErr  error
}

func New(opts Options) *Converter {
	if opts.Command == "" {
		opts.Command = DefaultCommand
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Converter{opts: opts}
}

func (c *Converter) probe(ctx context.Context) error {
	c.probeOnce.Do(func() {
		path, err := exec.LookPath(c.opts.Command)
		if err != nil {
			c.probeErr = fmt.Errorf("%w: %v", ErrUnavailableConverter, err)
			return
		}
		ctx, cancel := context.WithTimeout(ctx, c.opts.ProbeTimeout)
		defer cancel()

		out, err := exec.CommandContext(ctx, path, "--version").Output()
		if err != nil {
			c.probeErr = fmt.Errorf("%w: %s --version: %v", ErrUnavailableConverter, c.opts.Command, err)
			return
		}
		c.version = firstLine(string(out))
		c.opts.Logger.Debug("external converter found", "command", path, "version", c.version)
	})
	return c.probeErr
}

// Available reports whether the command exists and answers --version.
func (c *Converter) Available(ctx context.Context) bool {
	return c.probe(ctx) == nil
}

// Version returns the first line printed by --version.
func (c *Converter) Version(ctx context.Context) (string, error) {
	if err := c.probe(ctx); err != nil {
		return "", err
	}
	return c.version, nil
}

// Status is a one-line availability report.
func (c *Converter) Status(ctx context.Context) string {
	v, err := c.Version(ctx)
	if err != nil {
		return c.opts.Command + ": not available"
	}
	if v == "" {
		return c.opts.Command + ": available"
	}
	return c.opts.Command + ": " + v
}

// Convert converts in to out. The target format selects the profile flags;
// the command itself infers it from the extension of out. Each non-empty
// stdout line is passed to progress when it is not nil.
func (c *Converter) Convert(ctx context.Context, in, out, format string, progress func(string)) error {
	format = strings.ToLower(format)
	flags, ok := formatFlags[format]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err := c.probe(ctx); err != nil {
		return err
	}
	if _, err := os.Stat(in); err != nil {
		return fmt.Errorf("ebookconvert: input: %w", err)
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	args := append([]string{in, out}, flags...)
	cmd := exec.CommandContext(ctx, c.opts.Command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ebookconvert: stdout pipe: %w", err)
	}
	var stderr tailBuffer
	cmd.Stderr = &stderr

	log := c.opts.Logger.With("input", in, "output", out, "format", format)
	log.Info("running external converter", "command", c.opts.Command)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ebookconvert: start %s: %w", c.opts.Command, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		log.Debug("converter output", "line", line)
		if progress != nil {
			progress(line)
		}
	}
	// Drain so the child never blocks on a full pipe after a scan error.
	_, _ = io.Copy(io.Discard, stdout)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ebookconvert: %s: %w", c.opts.Command, ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ebookconvert: %s failed: %w: %s", c.opts.Command, err, msg)
		}
		return fmt.Errorf("ebookconvert: %s failed: %w", c.opts.Command, err)
	}
	if _, err := os.Stat(out); err != nil {
		return fmt.Errorf("ebookconvert: %s produced no output: %w", c.opts.Command, err)
	}
	log.Info("external conversion finished")
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// tailBuffer keeps the last stderrTail bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - stderrTail; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
