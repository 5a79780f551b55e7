package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ebookconv.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.LineHeight != 1.6 {
		t.Errorf("LineHeight = %v", cfg.LineHeight)
	}
	if cfg.External.Command != "ebook-convert" {
		t.Errorf("External.Command = %q", cfg.External.Command)
	}
}

func TestLoad(t *testing.T) {
	p := writeConfig(t, `
line_height: 2.2
convert_script: false
font_stack: ["Noto Sans TC", "sans-serif"]
workers: 4
pdf:
  backend: pdfcpu
  title_font_size: 16
external:
  command: /opt/calibre/ebook-convert
  timeout: 90s
`)

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LineHeight != 2.2 || cfg.ConvertScript {
		t.Errorf("LineHeight/ConvertScript = %v/%v", cfg.LineHeight, cfg.ConvertScript)
	}
	if len(cfg.FontStack) != 2 || cfg.Workers != 4 {
		t.Errorf("FontStack/Workers = %v/%d", cfg.FontStack, cfg.Workers)
	}
	if cfg.PDF.Backend != "pdfcpu" || cfg.PDF.TitleFontSize != 16 {
		t.Errorf("PDF = %+v", cfg.PDF)
	}
	// Unset keys keep their defaults.
	if cfg.PDF.ShortTitleMaxLen != 50 {
		t.Errorf("PDF.ShortTitleMaxLen = %d, want default 50", cfg.PDF.ShortTitleMaxLen)
	}
	if cfg.External.Timeout != 90*time.Second || cfg.External.ProbeTimeout != 10*time.Second {
		t.Errorf("External = %+v", cfg.External)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	p := writeConfig(t, "line_height: [oops")
	if _, err := Load(p); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"line height low", func(c *Config) { c.LineHeight = 0.9 }, "line_height"},
		{"line height high", func(c *Config) { c.LineHeight = 3.1 }, "line_height"},
		{"line height bounds inclusive", func(c *Config) { c.LineHeight = 3.0 }, ""},
		{"workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"quality", func(c *Config) { c.JPEGQuality = 101 }, "jpeg_quality"},
		{"backend", func(c *Config) { c.PDF.Backend = "mupdf" }, "pdf.backend"},
		{"command", func(c *Config) { c.External.Command = "" }, "external.command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
