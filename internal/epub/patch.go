package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
)

var (
	spineTagRe = regexp.MustCompile(`<(?:[A-Za-z_][\w.-]*:)?spine\b[^>]*>`)
	pageDirRe  = regexp.MustCompile(`page-progression-direction\s*=\s*("[^"]*"|'[^']*')`)
)

// PatchPageProgressionDirection sets page-progression-direction on the spine
// of the package document inside an already serialized EPUB. The attribute is
// replaced when present and inserted otherwise. All other archive entries are
// copied unchanged, keeping their order and compression method.
func PatchPageProgressionDirection(data []byte, dir string) ([]byte, error) {
	r, err := OpenBytes(data, nil)
	if err != nil {
		return nil, err
	}
	opfPath := r.OPFPath()

	opf, err := r.ReadFile(opfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	patched, err := setPageProgressionDirection(opf, dir)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range r.zipReader.File {
		if normalizePath(f.Name) == opfPath {
			hdr := f.FileHeader
			if err := writeEntry(zw, hdr.Name, patched, hdr.Method); err != nil {
				return nil, err
			}
			continue
		}
		if err := copyEntry(zw, f); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// setPageProgressionDirection rewrites the spine start tag of an OPF document.
func setPageProgressionDirection(opf []byte, dir string) ([]byte, error) {
	loc := spineTagRe.FindIndex(opf)
	if loc == nil {
		return nil, fmt.Errorf("%w: spine element not found", ErrMalformedPackageDocument)
	}
	tag := opf[loc[0]:loc[1]]
	attr := []byte(`page-progression-direction="` + dir + `"`)

	var newTag []byte
	if pageDirRe.Match(tag) {
		newTag = pageDirRe.ReplaceAllLiteral(tag, attr)
	} else {
		// Insert right after the element name.
		nameEnd := bytes.IndexAny(tag, " \t\r\n/>")
		newTag = make([]byte, 0, len(tag)+len(attr)+1)
		newTag = append(newTag, tag[:nameEnd]...)
		newTag = append(newTag, ' ')
		newTag = append(newTag, attr...)
		newTag = append(newTag, tag[nameEnd:]...)
	}

	out := make([]byte, 0, len(opf)+len(attr)+1)
	out = append(out, opf[:loc[0]]...)
	out = append(out, newTag...)
	out = append(out, opf[loc[1]:]...)
	return out, nil
}

func copyEntry(zw *zip.Writer, f *zip.File) error {
	if err := zw.Copy(f); err != nil {
		return fmt.Errorf("failed to copy %s: %w", f.Name, err)
	}
	return nil
}
