package epub

import (
	"bytes"
	"fmt"
	"path"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// xmlDeclRe matches a leading XML declaration, which the HTML parser would
// otherwise turn into a comment.
var xmlDeclRe = regexp.MustCompile(`^\s*(<\?xml[^>]*\?>)`)

// Content represents a parsed XHTML content file
type Content struct {
	ID        string            // Manifest ID
	Path      string            // File path
	Document  *goquery.Document // Parsed HTML document
	CSSLinks  []string          // Referenced CSS file paths
	ImageRefs []string          // Referenced image paths

	xmlDecl string
}

// LoadContent parses the XHTML content of a manifest item.
func LoadContent(item *Item) (*Content, error) {
	data := stripBOM(item.Content)
	var decl string
	if m := xmlDeclRe.FindSubmatchIndex(data); m != nil {
		decl = string(data[m[2]:m[3]])
		data = data[m[1]:]
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(ExpandSelfClosing(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse XHTML %s: %v", ErrUnresolvableContent, item.Href, err)
	}

	c := &Content{
		ID:        item.ID,
		Path:      item.Href,
		Document:  doc,
		CSSLinks:  []string{},
		ImageRefs: []string{},
		xmlDecl:   decl,
	}

	// Get base directory for resolving relative paths
	baseDir := path.Dir(item.Href)

	doc.Find("link[rel='stylesheet']").Each(func(i int, s *goquery.Selection) {
		if href, exists := s.Attr("href"); exists {
			c.CSSLinks = append(c.CSSLinks, resolvePath(baseDir, href))
		}
	})

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		if src, exists := s.Attr("src"); exists {
			c.ImageRefs = append(c.ImageRefs, resolvePath(baseDir, src))
		}
	})

	return c, nil
}

// LinksStylesheet reports whether the document already links the stylesheet
// stored at the given archive path.
func (c *Content) LinksStylesheet(archivePath string) bool {
	for _, l := range c.CSSLinks {
		if l == archivePath {
			return true
		}
	}
	return false
}

// Render serializes the document tree back to markup, restoring the XML
// declaration when the source had one. Void elements are self-closed.
func (c *Content) Render() ([]byte, error) {
	markup, err := c.Document.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", c.Path, err)
	}
	if c.xmlDecl == "" {
		return []byte(markup), nil
	}
	return []byte(c.xmlDecl + "\n" + markup), nil
}
