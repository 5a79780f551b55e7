package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EPUBReader provides access to EPUB file contents
type EPUBReader struct {
	zipReader *zip.Reader
	closer    io.Closer
	files     map[string]*zip.File
	opfPath   string
	logger    *slog.Logger
}

// container.xml structure
type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

var (
	ErrInvalidArchive           = errors.New("epub: invalid archive")
	ErrMalformedPackageDocument = errors.New("epub: malformed package document")
	ErrUnresolvableContent      = errors.New("epub: unresolvable content")
	ErrContainerNotFound        = fmt.Errorf("%w: META-INF/container.xml not found", ErrInvalidArchive)
	ErrOPFPathNotFound          = fmt.Errorf("%w: OPF path not found in container.xml", ErrInvalidArchive)
	ErrOPFNotFound              = fmt.Errorf("%w: package document missing from archive", ErrInvalidArchive)
	errMimetypeInvalid          = errors.New("mimetype is not application/epub+zip")
	errMimetypeCompressed       = errors.New("mimetype must not be compressed")
	errMimetypeNotFound         = errors.New("mimetype file not found")
)

const epubMimetype = "application/epub+zip"

// Open opens an EPUB file on disk. The caller must Close the reader.
func Open(path string) (*EPUBReader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	r, err := newEPUBReader(&zr.Reader, zr, nil)
	if err != nil {
		zr.Close()
		return nil, err
	}
	return r, nil
}

// OpenBytes opens an in-memory EPUB archive.
func OpenBytes(data []byte, logger *slog.Logger) (*EPUBReader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	return newEPUBReader(zr, nil, logger)
}

func newEPUBReader(zr *zip.Reader, closer io.Closer, logger *slog.Logger) (*EPUBReader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reader := &EPUBReader{
		zipReader: zr,
		closer:    closer,
		files:     make(map[string]*zip.File),
		logger:    logger,
	}

	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		reader.files[normalizePath(f.Name)] = f
	}

	// A damaged mimetype entry is tolerated; readers rely on container.xml.
	if err := reader.validateMimetype(); err != nil {
		logger.Warn("tolerating malformed EPUB mimetype", "error", err)
	}

	if err := reader.parseContainer(); err != nil {
		return nil, err
	}
	if _, ok := reader.files[reader.opfPath]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrOPFNotFound, reader.opfPath)
	}

	return reader, nil
}

// Close releases the underlying file, if any.
func (r *EPUBReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// OPFPath returns the path to the OPF file
func (r *EPUBReader) OPFPath() string {
	return r.opfPath
}

// Files returns a map of all files in the EPUB
func (r *EPUBReader) Files() map[string]*zip.File {
	return r.files
}

// Names returns the archive member names in archive order.
func (r *EPUBReader) Names() []string {
	names := make([]string, 0, len(r.zipReader.File))
	for _, f := range r.zipReader.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		names = append(names, normalizePath(f.Name))
	}
	return names
}

// ReadFile reads the contents of a file from the EPUB
func (r *EPUBReader) ReadFile(path string) ([]byte, error) {
	path = normalizePath(path)
	f, ok := r.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: file not found: %s", ErrUnresolvableContent, path)
	}
	return readZipFile(f)
}

// validateMimetype checks that the mimetype file exists and is valid
func (r *EPUBReader) validateMimetype() error {
	f, ok := r.files["mimetype"]
	if !ok {
		return errMimetypeNotFound
	}

	if f.Method != zip.Store {
		return errMimetypeCompressed
	}

	content, err := r.ReadFile("mimetype")
	if err != nil {
		return fmt.Errorf("failed to read mimetype: %w", err)
	}

	if strings.TrimSpace(string(content)) != epubMimetype {
		return errMimetypeInvalid
	}

	return nil
}

// parseContainer parses container.xml to extract OPF path
func (r *EPUBReader) parseContainer() error {
	content, err := r.ReadFile("META-INF/container.xml")
	if err != nil {
		return ErrContainerNotFound
	}

	var c container
	if err := xml.Unmarshal(stripBOM(content), &c); err != nil {
		return fmt.Errorf("%w: failed to parse container.xml: %v", ErrInvalidArchive, err)
	}

	for _, rf := range c.Rootfiles.Rootfile {
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			r.opfPath = normalizePath(rf.FullPath)
			return nil
		}
	}

	// If no media-type match, use the first one
	if len(c.Rootfiles.Rootfile) > 0 {
		r.opfPath = normalizePath(c.Rootfiles.Rootfile[0].FullPath)
		return nil
	}

	return ErrOPFPathNotFound
}

// readArchive reads a file from disk for Parse.
func readArchive(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// normalizePath normalizes file paths (removes ./ and leading / prefixes)
func normalizePath(path string) string {
	path = strings.TrimPrefix(path, "./")
	path = strings.TrimPrefix(path, "/")
	return path
}
