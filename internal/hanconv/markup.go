package hanconv

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// textNodeRe captures character data between a closing '>' and the next '<'.
var textNodeRe = regexp.MustCompile(`>([^<]+)<`)

// DetectMarkup runs Detect on the text-node content of markup only, so that
// tag names and attribute values never trigger conversion.
func (c *Converter) DetectMarkup(markup string) bool {
	for _, m := range textNodeRe.FindAllStringSubmatch(markup, -1) {
		if c.Detect(m[1]) {
			return true
		}
	}
	return false
}

// ConvertMarkup converts the text nodes of an HTML/XHTML document when its
// text content looks Simplified. Tags, attributes, comments and the contents
// of script and style elements are copied byte for byte. The boolean reports
// whether a conversion was applied.
func (c *Converter) ConvertMarkup(markup string) (string, bool) {
	if !c.DetectMarkup(markup) {
		return markup, false
	}
	if !c.Available() {
		c.logger.Debug("markup conversion skipped", "error", ErrUnavailable)
		return markup, false
	}

	out, err := c.convertTextTokens(markup)
	if err != nil {
		c.logger.Warn("markup conversion failed", "error", err)
		return markup, false
	}
	return out, true
}

func (c *Converter) convertTextTokens(markup string) (string, error) {
	var buf bytes.Buffer
	buf.Grow(len(markup))

	z := html.NewTokenizer(strings.NewReader(markup))
	rawDepth := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				break
			}
			return "", z.Err()
		}
		raw := z.Raw()

		switch tt {
		case html.TextToken:
			if rawDepth > 0 || len(bytes.TrimSpace(raw)) == 0 {
				buf.Write(raw)
				continue
			}
			converted, err := c.cc.Convert(string(raw))
			if err != nil {
				return "", err
			}
			buf.WriteString(converted)
			continue
		case html.StartTagToken:
			// Write raw before TagName, which lowercases the buffer in place.
			buf.Write(raw)
			if name, _ := z.TagName(); isRawTextElement(name) {
				rawDepth++
			}
			continue
		case html.EndTagToken:
			buf.Write(raw)
			if name, _ := z.TagName(); isRawTextElement(name) && rawDepth > 0 {
				rawDepth--
			}
			continue
		}
		buf.Write(raw)
	}
	return buf.String(), nil
}

func isRawTextElement(name []byte) bool {
	n := string(name)
	return strings.EqualFold(n, "script") || strings.EqualFold(n, "style")
}
