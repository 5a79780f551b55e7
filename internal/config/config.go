// Package config loads ebookconv settings from a YAML file layered over defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Line height bounds accepted by Validate.
const (
	MinLineHeight = 1.0
	MaxLineHeight = 3.0
)

// Config holds the full converter configuration.
type Config struct {
	LineHeight        float64        `yaml:"line_height"`
	ConvertScript     bool           `yaml:"convert_script"`
	OpenCCProfile     string         `yaml:"opencc_profile"`
	SimplifiedMarkers []string       `yaml:"simplified_markers"`
	FontStack         []string       `yaml:"font_stack"`
	Workers           int            `yaml:"workers"`
	MaxImageWidth     int            `yaml:"max_image_width"` // 0 disables downscaling
	JPEGQuality       int            `yaml:"jpeg_quality"`
	StripVerticalCSS  bool           `yaml:"strip_vertical_css"`
	Language          string         `yaml:"language"` // language of synthesized EPUBs
	PDF               PDFConfig      `yaml:"pdf"`
	External          ExternalConfig `yaml:"external"`
}

// PDFConfig tunes PDF extraction.
type PDFConfig struct {
	Backend          string  `yaml:"backend"` // auto | tabula | pdfcpu
	TitleFontSize    float64 `yaml:"title_font_size"`
	UpperTitleMaxLen int     `yaml:"upper_title_max_len"`
	ShortTitleMaxLen int     `yaml:"short_title_max_len"`
}

// ExternalConfig configures the ebook-convert subprocess.
type ExternalConfig struct {
	Command      string        `yaml:"command"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Default returns sane defaults.
func Default() *Config {
	return &Config{
		LineHeight:    1.6,
		ConvertScript: true,
		OpenCCProfile: "s2t",
		Workers:       1,
		JPEGQuality:   85,
		Language:      "zh-TW",
		PDF: PDFConfig{
			Backend:          "auto",
			TitleFontSize:    14,
			UpperTitleMaxLen: 100,
			ShortTitleMaxLen: 50,
		},
		External: ExternalConfig{
			Command:      "ebook-convert",
			ProbeTimeout: 10 * time.Second,
			Timeout:      10 * time.Minute,
		},
	}
}

// Load reads a YAML config file and returns Default merged with it.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that values are within their accepted ranges.
func (c *Config) Validate() error {
	if c.LineHeight < MinLineHeight || c.LineHeight > MaxLineHeight {
		return fmt.Errorf("line_height must be between %.1f and %.1f, got %g", MinLineHeight, MaxLineHeight, c.LineHeight)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1")
	}
	if c.MaxImageWidth < 0 {
		return fmt.Errorf("max_image_width must be >= 0")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100")
	}
	switch c.PDF.Backend {
	case "auto", "tabula", "pdfcpu":
	default:
		return fmt.Errorf("pdf.backend: unsupported value %q (use auto, tabula or pdfcpu)", c.PDF.Backend)
	}
	if c.PDF.TitleFontSize <= 0 {
		return fmt.Errorf("pdf.title_font_size must be > 0")
	}
	if c.PDF.UpperTitleMaxLen <= 0 || c.PDF.ShortTitleMaxLen <= 0 {
		return fmt.Errorf("pdf title length limits must be > 0")
	}
	if c.External.Command == "" {
		return fmt.Errorf("external.command is required")
	}
	if c.External.ProbeTimeout <= 0 {
		return fmt.Errorf("external.probe_timeout must be > 0")
	}
	return nil
}
