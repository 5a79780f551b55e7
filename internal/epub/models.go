package epub

import (
	"path"
	"strconv"
	"strings"
)

// Media types used when classifying manifest items.
const (
	MediaTypeXHTML = "application/xhtml+xml"
	MediaTypeCSS   = "text/css"
	MediaTypeNCX   = "application/x-dtbncx+xml"
)

// Package is the in-memory form of an EPUB publication. It is built by Parse,
// mutated in place by callers and consumed by Serialize.
type Package struct {
	Version  string
	Metadata Metadata
	// Items are the manifest entries in document order.
	Items []*Item
	Spine []SpineItem
	// TOC is the navigation tree read from the NCX or the nav document.
	TOC []NavPoint
	// OPFPath is the archive path of the package document.
	OPFPath string
	// SourcePageDirection is the spine page-progression-direction as parsed.
	// Serialize does not write it; see PatchPageProgressionDirection.
	SourcePageDirection string

	// extras are archive entries outside the manifest, written back verbatim.
	extras []archiveEntry
	// ncxID is the manifest id referenced by the spine toc attribute.
	ncxID string
}

// Metadata represents the metadata section of the OPF
type Metadata struct {
	Title       string
	Creators    []Creator
	Language    string
	Identifier  string
	Publisher   string
	Date        string
	Description string
	Subjects    []string
	Rights      string
	CoverID     string // EPUB 2.0 cover image manifest item ID (from meta name="cover")
}

// Creator represents a creator (author, editor, etc.) of the book
type Creator struct {
	Name string
	Role string // e.g., "aut" for author, "edt" for editor
	Lang string // xml:lang attribute
}

// Item is a manifest entry together with its bytes.
type Item struct {
	ID         string
	Href       string // archive path, resolved against the OPF directory
	MediaType  string
	Properties []string
	Content    []byte
}

// SpineItem represents an item reference in the spine
type SpineItem struct {
	IDRef  string
	Linear bool
}

// archiveEntry is a non-manifest archive member.
type archiveEntry struct {
	Name string
	Data []byte
}

// OPFDir returns the directory containing the package document, "" at the root.
func (p *Package) OPFDir() string {
	dir := path.Dir(p.OPFPath)
	if dir == "." {
		return ""
	}
	return dir
}

// ItemByID returns the manifest item with the given id.
func (p *Package) ItemByID(id string) (*Item, bool) {
	if id == "" {
		return nil, false
	}
	for _, it := range p.Items {
		if it.ID == id {
			return it, true
		}
	}
	return nil, false
}

// ItemByHref returns the manifest item stored at the given archive path.
func (p *Package) ItemByHref(href string) (*Item, bool) {
	for _, it := range p.Items {
		if it.Href == href {
			return it, true
		}
	}
	return nil, false
}

// AddItem appends an item to the manifest. A colliding id gets a numeric suffix;
// the id actually used is returned.
func (p *Package) AddItem(it *Item) string {
	base := it.ID
	if base == "" {
		base = "item"
	}
	id := base
	for n := 1; ; n++ {
		if _, taken := p.ItemByID(id); !taken {
			break
		}
		id = base + "_" + strconv.Itoa(n)
	}
	it.ID = id
	p.Items = append(p.Items, it)
	return id
}

// ContentDocuments returns the XHTML content documents in manifest order.
// The EPUB 3 navigation document is excluded.
func (p *Package) ContentDocuments() []*Item {
	var docs []*Item
	for _, it := range p.Items {
		if it.IsDocument() {
			docs = append(docs, it)
		}
	}
	return docs
}

// ReadingOrder returns content documents in spine order followed by the
// documents the spine does not reference.
func (p *Package) ReadingOrder() []*Item {
	seen := make(map[*Item]bool)
	var out []*Item
	for _, ref := range p.Spine {
		it, ok := p.ItemByID(ref.IDRef)
		if !ok || !it.IsDocument() || seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	for _, it := range p.ContentDocuments() {
		if !seen[it] {
			out = append(out, it)
		}
	}
	return out
}

// Authors returns the creator names in document order.
func (p *Package) Authors() []string {
	names := make([]string, 0, len(p.Metadata.Creators))
	for _, c := range p.Metadata.Creators {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}
	return names
}

// IsDocument reports whether the item is an XHTML content document.
func (it *Item) IsDocument() bool {
	return isXHTML(it.MediaType) && !it.HasProperty("nav")
}

// HasProperty reports whether the item carries the given manifest property.
func (it *Item) HasProperty(prop string) bool {
	for _, p := range it.Properties {
		if p == prop {
			return true
		}
	}
	return false
}

// isXHTML checks if a media type indicates an XHTML content file.
func isXHTML(mediaType string) bool {
	mt := strings.ToLower(mediaType)
	return strings.Contains(mt, "xhtml") || strings.Contains(mt, "html")
}

// IsImage checks if a media type indicates a raster image file.
func IsImage(mediaType string) bool {
	return isImageMediaType(mediaType)
}
