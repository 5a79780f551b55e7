package epub

import (
	"fmt"
	"log/slog"
	"path"
)

// Parse reads an EPUB archive held in memory. A damaged archive, a missing
// container.xml or package document yields ErrInvalidArchive; an unparseable
// package document yields ErrMalformedPackageDocument. Problems with single
// items are logged and left for Serialize to repair.
func Parse(data []byte, logger *slog.Logger) (*Package, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r, err := OpenBytes(data, logger)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	opfData, err := r.ReadFile(r.OPFPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	opfDir := path.Dir(r.OPFPath())
	if opfDir == "." {
		opfDir = ""
	}
	pkg, err := ParseOPF(opfData, opfDir)
	if err != nil {
		return nil, err
	}
	pkg.OPFPath = r.OPFPath()

	hrefs := make(map[string]bool, len(pkg.Items))
	for _, it := range pkg.Items {
		hrefs[it.Href] = true
		content, err := r.ReadFile(it.Href)
		if err != nil {
			logger.Warn("manifest item unreadable", "id", it.ID, "href", it.Href, "error", err)
			continue
		}
		it.Content = content
	}

	spine := pkg.Spine[:0]
	for _, ref := range pkg.Spine {
		if _, ok := pkg.ItemByID(ref.IDRef); !ok {
			logger.Warn("spine item not found in manifest, skipping", "idref", ref.IDRef)
			continue
		}
		spine = append(spine, ref)
	}
	pkg.Spine = spine

	pkg.TOC = loadTOC(pkg, logger)

	for _, name := range r.Names() {
		if name == "mimetype" || name == containerPath || name == pkg.OPFPath || hrefs[name] {
			continue
		}
		content, err := r.ReadFile(name)
		if err != nil {
			logger.Warn("archive entry unreadable, dropping", "name", name, "error", err)
			continue
		}
		pkg.extras = append(pkg.extras, archiveEntry{Name: name, Data: content})
	}

	return pkg, nil
}

// ParseFile reads and parses the EPUB stored at filename.
func ParseFile(filename string, logger *slog.Logger) (*Package, error) {
	data, err := readArchive(filename)
	if err != nil {
		return nil, err
	}
	return Parse(data, logger)
}

// loadTOC reads the NCX referenced by the spine, falling back to the nav document.
func loadTOC(pkg *Package, logger *slog.Logger) []NavPoint {
	if it, ok := pkg.ItemByID(pkg.ncxID); ok && len(it.Content) > 0 {
		points, err := parseNCX(it.Content, path.Dir(it.Href))
		if err == nil {
			return points
		}
		logger.Warn("failed to load NCX", "href", it.Href, "error", err)
	}

	for _, it := range pkg.Items {
		if !it.HasProperty("nav") || len(it.Content) == 0 {
			continue
		}
		points, err := parseNAV(it.Content, it.Href)
		if err != nil {
			logger.Warn("failed to load nav document", "href", it.Href, "error", err)
			return nil
		}
		return points
	}
	return nil
}
