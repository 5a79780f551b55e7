// Package hanconv detects Simplified Chinese text and transliterates it to
// Traditional Chinese.
package hanconv

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/longbridgeapp/opencc"
)

// ErrUnavailable is returned by Convert when no conversion table could be loaded.
var ErrUnavailable = errors.New("hanconv: no conversion table available")

// DefaultProfile is the opencc configuration tried first.
const DefaultProfile = "s2t"

// fallbackProfiles are tried in order when the configured profile fails to load.
var fallbackProfiles = []string{"s2t", "s2tw"}

// Options configures a Converter.
type Options struct {
	// Profile is an opencc configuration name such as "s2t", "s2tw" or "s2twp".
	Profile string
	// Markers overrides the default Simplified-only detection set.
	Markers []rune
	Logger  *slog.Logger
}

// Converter wraps an opencc table together with the detection marker set.
// A Converter is safe for concurrent use once constructed.
type Converter struct {
	cc      *opencc.OpenCC
	profile string
	markers map[rune]struct{}
	logger  *slog.Logger
}

// New loads the requested conversion table. When no table can be loaded the
// returned Converter still detects Simplified text but Available reports false.
func New(opts Options) *Converter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	markers := opts.Markers
	if len(markers) == 0 {
		markers = defaultMarkers
	}

	c := &Converter{
		markers: make(map[rune]struct{}, len(markers)),
		logger:  logger,
	}
	for _, r := range markers {
		c.markers[r] = struct{}{}
	}

	profiles := fallbackProfiles
	if opts.Profile != "" {
		profiles = append([]string{opts.Profile}, fallbackProfiles...)
	}
	for _, p := range profiles {
		cc, err := opencc.New(p)
		if err != nil {
			logger.Debug("opencc profile failed to load", "profile", p, "error", err)
			continue
		}
		c.cc = cc
		c.profile = p
		break
	}
	if c.cc == nil {
		logger.Warn("script conversion unavailable: no opencc table could be loaded")
	}

	return c
}

// Available reports whether a conversion table is loaded.
func (c *Converter) Available() bool {
	return c != nil && c.cc != nil
}

// Profile returns the name of the loaded opencc configuration.
func (c *Converter) Profile() string {
	if c == nil {
		return ""
	}
	return c.profile
}

// Status describes the converter availability for status reports.
func (c *Converter) Status() string {
	if !c.Available() {
		return "unavailable"
	}
	return fmt.Sprintf("available (opencc %s)", c.profile)
}

// Detect reports whether text contains any Simplified-only marker character.
// Text without markers may still be Simplified; the check is a heuristic.
func (c *Converter) Detect(text string) bool {
	if c == nil || text == "" {
		return false
	}
	for _, r := range text {
		if _, ok := c.markers[r]; ok {
			return true
		}
	}
	return false
}

// Convert transliterates text to Traditional script. When the converter is
// unavailable it returns the input unchanged together with ErrUnavailable.
func (c *Converter) Convert(text string) (string, error) {
	if text == "" {
		return text, nil
	}
	if !c.Available() {
		return text, ErrUnavailable
	}
	out, err := c.cc.Convert(text)
	if err != nil {
		return text, fmt.Errorf("hanconv: convert: %w", err)
	}
	return out, nil
}

// ConvertIfSimplified converts text only when Detect is positive. The boolean
// reports whether a conversion was applied.
func (c *Converter) ConvertIfSimplified(text string) (string, bool) {
	if !c.Detect(text) {
		return text, false
	}
	out, err := c.Convert(text)
	if err != nil {
		c.logger.Debug("text conversion skipped", "error", err)
		return text, false
	}
	return out, true
}
