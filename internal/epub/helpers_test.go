package epub

import (
	"archive/zip"
	"bytes"
	"testing"
)

type zipEntry struct {
	name   string
	body   string
	method uint16
}

const testContainer = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Test Book</dc:title>
    <dc:creator opf:role="aut">Test Author</dc:creator>
    <dc:language>zh</dc:language>
    <dc:identifier id="bookid">urn:uuid:test-book</dc:identifier>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="chapter1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="chapter2" href="text/chapter2.xhtml" media-type="application/xhtml+xml"/>
    <item id="style" href="css/style.css" media-type="text/css"/>
  </manifest>
  <spine toc="ncx" page-progression-direction="rtl">
    <itemref idref="chapter1"/>
    <itemref idref="chapter2"/>
  </spine>
</package>`

const testNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head><meta name="dtb:uid" content="urn:uuid:test-book"/></head>
  <docTitle><text>Test Book</text></docTitle>
  <navMap>
    <navPoint id="np1" playOrder="1">
      <navLabel><text>Chapter 1</text></navLabel>
      <content src="text/chapter1.xhtml"/>
    </navPoint>
    <navPoint id="np2" playOrder="2">
      <navLabel><text>Chapter 2</text></navLabel>
      <content src="text/chapter2.xhtml#part"/>
    </navPoint>
  </navMap>
</ncx>`

func testChapter(title, body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>` + title + `</title><link rel="stylesheet" type="text/css" href="../css/style.css"/></head>
<body><h1>` + title + `</h1><p>` + body + `</p></body>
</html>`
}

// testEntries returns the entries of a small valid two-chapter EPUB.
func testEntries() []zipEntry {
	return []zipEntry{
		{name: "mimetype", body: "application/epub+zip", method: zip.Store},
		{name: "META-INF/container.xml", body: testContainer},
		{name: "OEBPS/content.opf", body: testOPF},
		{name: "OEBPS/toc.ncx", body: testNCX},
		{name: "OEBPS/text/chapter1.xhtml", body: testChapter("Chapter 1", "Hello, World!")},
		{name: "OEBPS/text/chapter2.xhtml", body: testChapter("Chapter 2", "Second chapter.")},
		{name: "OEBPS/css/style.css", body: "p { margin: 0; }"},
	}
}

// buildZip writes entries into an in-memory ZIP archive.
func buildZip(t *testing.T, entries []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		method := e.method
		if method == 0 && e.name != "mimetype" {
			method = zip.Deflate
		}
		fw, err := w.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		if err != nil {
			t.Fatalf("failed to create %s: %v", e.name, err)
		}
		if _, err := fw.Write([]byte(e.body)); err != nil {
			t.Fatalf("failed to write %s: %v", e.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func withoutEntry(entries []zipEntry, name string) []zipEntry {
	var out []zipEntry
	for _, e := range entries {
		if e.name != name {
			out = append(out, e)
		}
	}
	return out
}

func replaceEntry(entries []zipEntry, name, body string) []zipEntry {
	out := make([]zipEntry, len(entries))
	copy(out, entries)
	for i := range out {
		if out[i].name == name {
			out[i].body = body
		}
	}
	return out
}

// zipNames lists archive member names in order.
func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("invalid zip: %v", err)
	}
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	return names
}

func readEntry(t *testing.T, data []byte, name string) string {
	t.Helper()
	r, err := OpenBytes(data, nil)
	if err != nil {
		t.Fatalf("OpenBytes() error = %v", err)
	}
	content, err := r.ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile(%q) error = %v", name, err)
	}
	return string(content)
}
