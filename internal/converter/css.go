package converter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultLineHeight is used when no line height is configured.
const DefaultLineHeight = 1.6

// DefaultFontStack is the CJK-first font stack of the horizontal stylesheet.
var DefaultFontStack = []string{
	"微軟正黑體",
	"Microsoft JhengHei",
	"PingFang TC",
	"Helvetica Neue",
	"Arial",
	"sans-serif",
}

// genericFamilies are CSS generic font families, which must not be quoted.
var genericFamilies = map[string]bool{
	"serif":      true,
	"sans-serif": true,
	"monospace":  true,
	"cursive":    true,
	"fantasy":    true,
	"system-ui":  true,
}

// BuildStylesheet returns the stylesheet that forces horizontal, left-to-right
// layout with the given line height. The output depends only on its arguments.
func BuildStylesheet(lineHeight float64, fonts []string) string {
	if lineHeight <= 0 {
		lineHeight = DefaultLineHeight
	}
	if len(fonts) == 0 {
		fonts = DefaultFontStack
	}
	lh := formatLineHeight(lineHeight)

	var b strings.Builder
	b.WriteString("/* horizontal reading layout */\n")
	b.WriteString("html, body {\n")
	b.WriteString("    writing-mode: horizontal-tb !important;\n")
	b.WriteString("    direction: ltr !important;\n")
	b.WriteString("    text-orientation: mixed !important;\n")
	fmt.Fprintf(&b, "    line-height: %s !important;\n", lh)
	b.WriteString("}\n\n")

	b.WriteString("* {\n")
	fmt.Fprintf(&b, "    font-family: %s !important;\n", fontFamily(fonts))
	fmt.Fprintf(&b, "    line-height: %s !important;\n", lh)
	b.WriteString("}\n\n")

	b.WriteString("p, div, span, h1, h2, h3, h4, h5, h6 {\n")
	b.WriteString("    writing-mode: horizontal-tb !important;\n")
	b.WriteString("    direction: ltr !important;\n")
	b.WriteString("    text-align: left !important;\n")
	fmt.Fprintf(&b, "    line-height: %s !important;\n", lh)
	b.WriteString("}\n\n")

	b.WriteString("img {\n")
	b.WriteString("    max-width: 100% !important;\n")
	b.WriteString("    height: auto !important;\n")
	b.WriteString("}\n\n")

	b.WriteString("table {\n")
	b.WriteString("    direction: ltr !important;\n")
	b.WriteString("}\n\n")

	b.WriteString("ul, ol {\n")
	b.WriteString("    direction: ltr !important;\n")
	b.WriteString("    text-align: left !important;\n")
	b.WriteString("}\n\n")

	b.WriteString(".vertical, .vertical-rl, .vertical-lr {\n")
	b.WriteString("    writing-mode: horizontal-tb !important;\n")
	b.WriteString("    direction: ltr !important;\n")
	b.WriteString("}\n")
	return b.String()
}

func fontFamily(fonts []string) string {
	quoted := make([]string, 0, len(fonts))
	for _, f := range fonts {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if genericFamilies[strings.ToLower(f)] {
			quoted = append(quoted, f)
			continue
		}
		quoted = append(quoted, strconv.Quote(f))
	}
	return strings.Join(quoted, ", ")
}

// formatLineHeight prints the shortest decimal form: 1.6 -> "1.6", 2 -> "2".
func formatLineHeight(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// declarationRe matches a CSS property-value pair.
var declarationRe = regexp.MustCompile(`(?i)^\s*([\w-]+)\s*:\s*(.*?)\s*;?\s*$`)

// TransformCSS removes vertical writing-mode declarations from an existing
// stylesheet. It processes the CSS declaration by declaration, preserving
// structure. CSS comments and string literals are passed through untouched.
func TransformCSS(css string) string {
	if css == "" {
		return ""
	}

	var result strings.Builder
	i := 0

	for i < len(css) {
		ch := css[i]

		// Comments pass through
		if ch == '/' && i+1 < len(css) && css[i+1] == '*' {
			end := strings.Index(css[i+2:], "*/")
			if end == -1 {
				result.WriteString(css[i:])
				break
			}
			end += i + 2 + 2
			result.WriteString(css[i:end])
			i = end
			continue
		}

		if ch == '{' || ch == '}' || ch == ';' {
			result.WriteByte(ch)
			i++
			continue
		}

		declEnd := findDeclarationEnd(css, i)
		if declEnd > i {
			decl := css[i:declEnd]

			if m := declarationRe.FindStringSubmatch(strings.TrimSpace(decl)); m != nil {
				if isVerticalDeclaration(m[1], m[2]) {
					i = declEnd
					// Drop the trailing semicolon with the declaration
					for i < len(css) && (css[i] == ';' || css[i] == ' ' || css[i] == '\t') {
						if css[i] == ';' {
							i++
							break
						}
						i++
					}
					continue
				}
				result.WriteString(decl)
				i = declEnd
				continue
			}
		}

		result.WriteByte(ch)
		i++
	}

	return result.String()
}

// findDeclarationEnd finds the end of a CSS declaration starting at pos.
// Returns the position after the declaration (before or at the semicolon).
// It correctly handles string literals inside values (e.g., content: "...").
func findDeclarationEnd(css string, pos int) int {
	for i := pos; i < len(css); i++ {
		switch css[i] {
		case ';':
			return i
		case '{', '}':
			return i
		case '"', '\'':
			quote := css[i]
			i++
			for i < len(css) {
				if css[i] == '\\' {
					i++
				} else if css[i] == quote {
					break
				}
				i++
			}
		}
	}
	return len(css)
}

// isVerticalDeclaration reports whether a declaration selects vertical text
// layout, in standard or prefixed form.
func isVerticalDeclaration(property, value string) bool {
	propertyLower := strings.ToLower(strings.TrimSpace(property))
	valueLower := strings.ToLower(strings.TrimSpace(value))

	switch propertyLower {
	case "writing-mode", "-epub-writing-mode", "-webkit-writing-mode":
		// Legacy IE values (tb-rl, tb-lr) are vertical too.
		return strings.HasPrefix(valueLower, "vertical") || strings.HasPrefix(valueLower, "tb")
	case "-epub-text-orientation", "-webkit-text-orientation", "text-orientation":
		return valueLower == "upright"
	}
	return false
}
