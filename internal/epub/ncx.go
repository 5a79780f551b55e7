package epub

import (
	"encoding/xml"
	"fmt"
	"html"
	"path"
	"strconv"
	"strings"
)

// NavPoint represents a single navigation point in the table of contents.
type NavPoint struct {
	ID          string
	PlayOrder   int
	Label       string
	ContentPath string // fragment-free, absolute path within EPUB
	Fragment    string // fragment identifier (without #)
	Children    []NavPoint
}

type ncxDocument struct {
	XMLName  xml.Name `xml:"ncx"`
	DocTitle struct {
		Text string `xml:"text"`
	} `xml:"docTitle"`
	NavMap struct {
		NavPoints []ncxNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

type ncxNavPoint struct {
	ID        string `xml:"id,attr"`
	PlayOrder string `xml:"playOrder,attr"`
	NavLabel  struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

// parseNCX parses an NCX document. Content paths are resolved against ncxDir.
func parseNCX(data []byte, ncxDir string) ([]NavPoint, error) {
	var doc ncxDocument
	if err := xml.Unmarshal(stripBOM(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse NCX: %w", err)
	}
	return convertNCXPoints(doc.NavMap.NavPoints, ncxDir), nil
}

func convertNCXPoints(points []ncxNavPoint, dir string) []NavPoint {
	if len(points) == 0 {
		return nil
	}
	out := make([]NavPoint, 0, len(points))
	for _, p := range points {
		src, frag := splitFragment(p.Content.Src)
		np := NavPoint{
			ID:       p.ID,
			Label:    strings.TrimSpace(p.NavLabel.Text),
			Fragment: frag,
			Children: convertNCXPoints(p.Children, dir),
		}
		if order, err := strconv.Atoi(strings.TrimSpace(p.PlayOrder)); err == nil {
			np.PlayOrder = order
		}
		if src != "" {
			np.ContentPath = resolvePath(dir, src)
		}
		out = append(out, np)
	}
	return out
}

// renderNCX writes the TOC tree as an NCX document stored at ncxPath.
func renderNCX(pkg *Package, points []NavPoint, ncxPath string) []byte {
	ncxDir := path.Dir(ncxPath)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">` + "\n")
	b.WriteString("  <head>\n")
	fmt.Fprintf(&b, "    <meta name=\"dtb:uid\" content=\"%s\"/>\n", html.EscapeString(pkg.Metadata.Identifier))
	fmt.Fprintf(&b, "    <meta name=\"dtb:depth\" content=\"%d\"/>\n", max(tocDepth(points), 1))
	b.WriteString("    <meta name=\"dtb:totalPageCount\" content=\"0\"/>\n")
	b.WriteString("    <meta name=\"dtb:maxPageNumber\" content=\"0\"/>\n")
	b.WriteString("  </head>\n")
	fmt.Fprintf(&b, "  <docTitle><text>%s</text></docTitle>\n", html.EscapeString(pkg.Metadata.Title))
	b.WriteString("  <navMap>\n")
	order := 0
	writeNCXPoints(&b, points, ncxDir, &order, 2)
	b.WriteString("  </navMap>\n")
	b.WriteString("</ncx>\n")
	return []byte(b.String())
}

func writeNCXPoints(b *strings.Builder, points []NavPoint, dir string, order *int, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, np := range points {
		*order++
		fmt.Fprintf(b, "%s<navPoint id=\"%s\" playOrder=\"%d\">\n", indent, html.EscapeString(np.ID), *order)
		fmt.Fprintf(b, "%s  <navLabel><text>%s</text></navLabel>\n", indent, html.EscapeString(np.Label))
		fmt.Fprintf(b, "%s  <content src=\"%s\"/>\n", indent, html.EscapeString(navTarget(dir, np)))
		writeNCXPoints(b, np.Children, dir, order, depth+1)
		fmt.Fprintf(b, "%s</navPoint>\n", indent)
	}
}

// navTarget is the href of a nav point relative to the navigation document.
func navTarget(dir string, np NavPoint) string {
	target := RelativeHref(dir, np.ContentPath)
	if np.Fragment != "" {
		target += "#" + np.Fragment
	}
	return target
}

func tocDepth(points []NavPoint) int {
	depth := 0
	for _, np := range points {
		depth = max(depth, 1+tocDepth(np.Children))
	}
	return depth
}

// splitFragment splits a source path into the path and fragment identifier.
func splitFragment(src string) (path, fragment string) {
	if src == "" {
		return "", ""
	}
	parts := strings.SplitN(src, "#", 2)
	path = parts[0]
	if len(parts) == 2 {
		fragment = parts[1]
	}
	return path, fragment
}
