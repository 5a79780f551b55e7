package converter

import (
	"errors"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/milk137592000/ebook-new/internal/epub"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// errNoDocumentRoot is returned when a document has no node to attach a head to.
var errNoDocumentRoot = errors.New("document has no root element")

// InjectStylesheet links the stylesheet at href from the document head,
// creating the head when the document has none. Injecting the same href twice
// leaves the document unchanged.
func InjectStylesheet(doc *goquery.Document, href string) error {
	if doc == nil {
		return errNoDocumentRoot
	}

	linked := doc.Find("link").FilterFunction(func(_ int, s *goquery.Selection) bool {
		h, _ := s.Attr("href")
		return h == href
	})
	if linked.Length() > 0 {
		return nil
	}

	head, err := ensureHead(doc)
	if err != nil {
		return err
	}

	link := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Link,
		Data:     "link",
		Attr: []html.Attribute{
			{Key: "rel", Val: "stylesheet"},
			{Key: "type", Val: "text/css"},
			{Key: "href", Val: href},
		},
	}
	head.AppendNodes(link)
	return nil
}

// ensureHead returns the head element, inserting one as the first child of
// <html> (or of the document itself) when missing.
func ensureHead(doc *goquery.Document) (*goquery.Selection, error) {
	if head := doc.Find("head").First(); head.Length() > 0 {
		return head, nil
	}

	parent := doc.Find("html").First()
	if parent.Length() == 0 {
		parent = doc.Selection
	}
	if parent.Length() == 0 {
		return nil, errNoDocumentRoot
	}

	node := &html.Node{Type: html.ElementNode, DataAtom: atom.Head, Data: "head"}
	p := parent.Get(0)
	p.InsertBefore(node, p.FirstChild)
	return doc.Find("head").First(), nil
}

// headingSelector lists heading elements in document order.
const headingSelector = "h1, h2, h3, h4, h5, h6"

// ChapterTitle returns the text of the first heading in the document, or the
// file name of href without its extension when the document has none.
func ChapterTitle(doc *goquery.Document, href string) string {
	if doc != nil {
		var title string
		doc.Find(headingSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			title = strings.Join(strings.Fields(s.Text()), " ")
			return title == ""
		})
		if title != "" {
			return title
		}
	}
	base := path.Base(href)
	return strings.TrimSuffix(base, path.Ext(base))
}

// stylesheetHref returns the href of the stylesheet stored at cssPath as seen
// from the document stored at docPath.
func stylesheetHref(docPath, cssPath string) string {
	return epub.RelativeHref(path.Dir(docPath), cssPath)
}
