package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// maxDecompressSize caps a single archive entry.
const maxDecompressSize int64 = 256 << 20

// isSafePath rejects absolute paths and paths escaping the archive root.
func isSafePath(p string) bool {
	cleaned := path.Clean(p)
	if strings.HasPrefix(cleaned, "/") {
		return false
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return false
	}
	return true
}

// stripBOM removes a leading UTF-8 BOM (0xEF 0xBB 0xBF) from data, if present.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

func readZipFile(f *zip.File) ([]byte, error) {
	return readZipFileWithLimit(f, maxDecompressSize)
}

// readZipFileWithLimit reads an entry, refusing unsafe names and entries whose
// decompressed size exceeds limit.
func readZipFileWithLimit(f *zip.File, limit int64) ([]byte, error) {
	if !isSafePath(f.Name) {
		return nil, fmt.Errorf("%w: unsafe zip entry path: %s", ErrUnresolvableContent, f.Name)
	}
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("%w: zip entry %s too large: %d bytes (max %d)", ErrUnresolvableContent, f.Name, f.UncompressedSize64, limit)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open zip entry %s: %v", ErrUnresolvableContent, f.Name, err)
	}
	defer rc.Close()

	// Read one byte past the limit; the declared size may be forged.
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read zip entry %s: %v", ErrUnresolvableContent, f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: zip entry %s exceeds %d bytes", ErrUnresolvableContent, f.Name, limit)
	}
	return data, nil
}

// joinPath joins OPF directory with a relative path
func joinPath(base, rel string) string {
	rel = strings.TrimPrefix(rel, "./")
	if base == "" || base == "." {
		return path.Clean(rel)
	}
	return path.Join(base, rel)
}

// resolvePath resolves a relative path against a base directory
// baseDir: base directory (e.g., "text" for "text/chapter1.xhtml")
// relPath: relative path (e.g., "../images/photo.jpg")
// returns: resolved path (e.g., "images/photo.jpg")
func resolvePath(baseDir, relPath string) string {
	return path.Clean(path.Join(baseDir, relPath))
}

// RelativeHref returns the href that reaches target from a document stored
// in fromDir. Both arguments are archive paths.
func RelativeHref(fromDir, target string) string {
	if fromDir == "" || fromDir == "." {
		return target
	}
	rel, err := filepath.Rel(filepath.FromSlash(fromDir), filepath.FromSlash(target))
	if err != nil {
		return target
	}
	return filepath.ToSlash(rel)
}
