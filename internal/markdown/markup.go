package markdown

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// headingOffset demotes body headings so they nest under the "##" chapter
// heading.
const headingOffset = 2

var (
	asciiSpace = regexp.MustCompile(`[ \t\r\n\f]+`)
	blankRuns  = regexp.MustCompile(`\n{3,}`)
)

// FromMarkup degrades an XHTML document to Markdown. Headings, paragraphs,
// bold and italic are kept; head, script and style are dropped; every other
// tag is removed and its text kept.
func FromMarkup(markup string) string {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return tidy(markup)
	}
	var b strings.Builder
	writeNode(&b, root)
	return tidy(b.String())
}

func writeNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(asciiSpace.ReplaceAllString(n.Data, " "))
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Head, atom.Script, atom.Style, atom.Template:
			return
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			text := singleLine(innerText(n))
			if text == "" {
				return
			}
			level := min(headingLevel(n.DataAtom)+headingOffset, 6)
			b.WriteString("\n\n" + strings.Repeat("#", level) + " " + text + "\n\n")
			return
		case atom.P:
			b.WriteString("\n\n")
			writeChildren(b, n)
			b.WriteString("\n\n")
			return
		case atom.Br:
			b.WriteString("\n")
			return
		case atom.Strong, atom.B:
			writeWrapped(b, n, "**")
			return
		case atom.Em, atom.I:
			writeWrapped(b, n, "*")
			return
		}
	}
	writeChildren(b, n)
}

func writeChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNode(b, c)
	}
}

func innerText(n *html.Node) string {
	var b strings.Builder
	writeChildren(&b, n)
	return b.String()
}

// writeWrapped keeps surrounding spaces outside the emphasis markers.
func writeWrapped(b *strings.Builder, n *html.Node, marker string) {
	inner := innerText(n)
	trimmed := strings.Trim(inner, " ")
	if trimmed == "" {
		b.WriteString(inner)
		return
	}
	if strings.HasPrefix(inner, " ") {
		b.WriteByte(' ')
	}
	b.WriteString(marker + trimmed + marker)
	if strings.HasSuffix(inner, " ") {
		b.WriteByte(' ')
	}
}

func headingLevel(a atom.Atom) int {
	switch a {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	}
	return 6
}

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Trim(l, " \t\r")
	}
	s = strings.Join(lines, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
