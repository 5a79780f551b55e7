package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"path"
	"regexp"
	"strconv"
)

const (
	containerPath  = "META-INF/container.xml"
	defaultOPFPath = "OEBPS/content.opf"
)

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="%s" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

// emptyDocument replaces XHTML items that have no content.
const emptyDocument = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title></title></head><body></body></html>
`

var idUnsafeRe = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Serialize writes pkg as an EPUB archive. The mimetype entry is stored
// uncompressed first; the package document and NCX are regenerated from the
// model; every item's content is written verbatim. Missing ids, missing
// content and broken TOC entries are repaired in place before writing.
func Serialize(pkg *Package, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if pkg.OPFPath == "" {
		pkg.OPFPath = defaultOPFPath
	}

	repairItems(pkg, logger)
	repairSpine(pkg, logger)

	toc, ok := repairTOC(pkg.TOC)
	if !ok {
		logger.Warn("table of contents unrecoverable, dropping it")
		toc = nil
	}
	if len(toc) == 0 {
		toc = spineTOC(pkg)
	}
	pkg.TOC = toc

	ncx := ensureNCXItem(pkg)
	ncx.Content = renderNCX(pkg, toc, ncx.Href)

	opf, err := renderOPF(pkg)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	if err := writeEntry(zw, "mimetype", []byte(epubMimetype), zip.Store); err != nil {
		return nil, err
	}
	if err := writeEntry(zw, containerPath, fmt.Appendf(nil, containerXML, pkg.OPFPath), zip.Deflate); err != nil {
		return nil, err
	}
	if err := writeEntry(zw, pkg.OPFPath, opf, zip.Deflate); err != nil {
		return nil, err
	}

	written := map[string]bool{"mimetype": true, containerPath: true, pkg.OPFPath: true}
	for _, it := range pkg.Items {
		if written[it.Href] {
			logger.Warn("duplicate archive path, keeping first", "href", it.Href, "id", it.ID)
			continue
		}
		written[it.Href] = true
		if err := writeEntry(zw, it.Href, it.Content, zip.Deflate); err != nil {
			return nil, err
		}
	}
	for _, e := range pkg.extras {
		if written[e.Name] {
			continue
		}
		written[e.Name] = true
		if err := writeEntry(zw, e.Name, e.Data, zip.Deflate); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// writeEntry adds a file to the archive. Stored entries are written raw with
// sizes in the local header, which strict EPUB readers expect for mimetype.
func writeEntry(zw *zip.Writer, name string, data []byte, method uint16) error {
	var (
		w   io.Writer
		err error
	)
	if method == zip.Store {
		w, err = zw.CreateRaw(&zip.FileHeader{
			Name:               name,
			Method:             zip.Store,
			CRC32:              crc32.ChecksumIEEE(data),
			CompressedSize64:   uint64(len(data)),
			UncompressedSize64: uint64(len(data)),
		})
	} else {
		w, err = zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// repairItems gives every item an id and non-empty content.
func repairItems(pkg *Package, logger *slog.Logger) {
	used := make(map[string]bool, len(pkg.Items))
	for _, it := range pkg.Items {
		if it.ID != "" {
			used[it.ID] = true
		}
	}

	for i, it := range pkg.Items {
		if it.ID == "" {
			id := "item_" + idUnsafeRe.ReplaceAllString(it.Href, "_") + "_" + strconv.Itoa(i)
			for used[id] {
				id += "_"
			}
			used[id] = true
			it.ID = id
			logger.Warn("synthesized missing item id", "href", it.Href, "id", id)
		}
		if len(it.Content) == 0 {
			if isXHTML(it.MediaType) {
				it.Content = []byte(emptyDocument)
			} else {
				it.Content = []byte{}
			}
			logger.Warn("repaired item without content", "href", it.Href, "id", it.ID)
		}
	}
}

// repairSpine rebuilds an empty spine from the content documents.
func repairSpine(pkg *Package, logger *slog.Logger) {
	if len(pkg.Spine) > 0 {
		return
	}
	for _, it := range pkg.ContentDocuments() {
		pkg.Spine = append(pkg.Spine, SpineItem{IDRef: it.ID, Linear: true})
	}
	if len(pkg.Spine) > 0 {
		logger.Warn("spine was empty, rebuilt from manifest", "items", len(pkg.Spine))
	}
}

// repairTOC synthesizes missing ids and labels. A node without both a label and
// a target cannot be rendered, in which case ok is false.
func repairTOC(points []NavPoint) (repaired []NavPoint, ok bool) {
	counter := 0
	var walk func(points []NavPoint, depth int) ([]NavPoint, bool)
	walk = func(points []NavPoint, depth int) ([]NavPoint, bool) {
		if len(points) == 0 {
			return nil, true
		}
		out := make([]NavPoint, len(points))
		for i, np := range points {
			counter++
			if np.Label == "" && np.ContentPath == "" {
				return nil, false
			}
			if np.ID == "" {
				np.ID = "toc_item_" + strconv.Itoa(counter) + "_" + strconv.Itoa(depth)
			}
			if np.Label == "" {
				np.Label = path.Base(np.ContentPath)
			}
			children, ok := walk(np.Children, depth+1)
			if !ok {
				return nil, false
			}
			np.Children = children
			out[i] = np
		}
		return out, true
	}
	return walk(points, 0)
}

// spineTOC builds a flat TOC with one entry per spine document.
func spineTOC(pkg *Package) []NavPoint {
	var toc []NavPoint
	for i, ref := range pkg.Spine {
		it, ok := pkg.ItemByID(ref.IDRef)
		if !ok || !it.IsDocument() {
			continue
		}
		toc = append(toc, NavPoint{
			ID:          "toc_item_" + strconv.Itoa(i+1) + "_0",
			Label:       path.Base(it.Href),
			ContentPath: it.Href,
		})
	}
	return toc
}

// ensureNCXItem returns the NCX manifest item, adding one when absent.
func ensureNCXItem(pkg *Package) *Item {
	if it, ok := pkg.ItemByID(pkg.ncxID); ok {
		return it
	}
	it := &Item{
		ID:        "ncx",
		Href:      joinPath(pkg.OPFDir(), "toc.ncx"),
		MediaType: MediaTypeNCX,
	}
	for n := 1; ; n++ {
		if _, taken := pkg.ItemByHref(it.Href); !taken {
			break
		}
		it.Href = joinPath(pkg.OPFDir(), "toc"+strconv.Itoa(n)+".ncx")
	}
	pkg.ncxID = pkg.AddItem(it)
	return it
}
