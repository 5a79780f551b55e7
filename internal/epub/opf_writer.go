package epub

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
)

// renderOPF writes the package document for pkg. The spine never carries a
// page-progression-direction; PatchPageProgressionDirection sets it afterwards.
func renderOPF(pkg *Package) ([]byte, error) {
	version := pkg.Version
	if version == "" {
		version = "3.0"
	}
	epub3 := strings.HasPrefix(version, "3")

	md := pkg.Metadata
	if md.Identifier == "" {
		md.Identifier = "urn:uuid:" + uuid.NewString()
		pkg.Metadata.Identifier = md.Identifier
	}
	if md.Language == "" {
		md.Language = "en"
	}

	ncx, ok := pkg.ItemByID(pkg.ncxID)
	if !ok {
		return nil, fmt.Errorf("%w: NCX item missing", ErrMalformedPackageDocument)
	}

	opfDir := pkg.OPFDir()
	esc := html.EscapeString

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<package xmlns="http://www.idpf.org/2007/opf" version="%s" unique-identifier="BookId">`+"\n", esc(version))
	b.WriteString(`  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">` + "\n")
	fmt.Fprintf(&b, "    <dc:identifier id=\"BookId\">%s</dc:identifier>\n", esc(md.Identifier))
	fmt.Fprintf(&b, "    <dc:title>%s</dc:title>\n", esc(md.Title))
	fmt.Fprintf(&b, "    <dc:language>%s</dc:language>\n", esc(md.Language))
	for i, c := range md.Creators {
		id := fmt.Sprintf("creator%d", i+1)
		switch {
		case c.Role != "" && !epub3:
			fmt.Fprintf(&b, "    <dc:creator id=\"%s\" opf:role=\"%s\">%s</dc:creator>\n", id, esc(c.Role), esc(c.Name))
		default:
			fmt.Fprintf(&b, "    <dc:creator id=\"%s\">%s</dc:creator>\n", id, esc(c.Name))
		}
		if c.Role != "" && epub3 {
			fmt.Fprintf(&b, "    <meta refines=\"#%s\" property=\"role\" scheme=\"marc:relators\">%s</meta>\n", id, esc(c.Role))
		}
	}
	writeOptional(&b, "publisher", md.Publisher)
	writeOptional(&b, "date", md.Date)
	writeOptional(&b, "description", md.Description)
	for _, s := range md.Subjects {
		writeOptional(&b, "subject", s)
	}
	writeOptional(&b, "rights", md.Rights)
	if md.CoverID != "" {
		fmt.Fprintf(&b, "    <meta name=\"cover\" content=\"%s\"/>\n", esc(md.CoverID))
	}
	if epub3 {
		fmt.Fprintf(&b, "    <meta property=\"dcterms:modified\">%s</meta>\n", time.Now().UTC().Format("2006-01-02T15:04:05Z"))
	}
	b.WriteString("  </metadata>\n")

	b.WriteString("  <manifest>\n")
	for _, it := range pkg.Items {
		fmt.Fprintf(&b, "    <item id=\"%s\" href=\"%s\" media-type=\"%s\"",
			esc(it.ID), esc(RelativeHref(opfDir, it.Href)), esc(it.MediaType))
		if len(it.Properties) > 0 && epub3 {
			fmt.Fprintf(&b, " properties=\"%s\"", esc(strings.Join(it.Properties, " ")))
		}
		b.WriteString("/>\n")
	}
	b.WriteString("  </manifest>\n")

	fmt.Fprintf(&b, "  <spine toc=\"%s\">\n", esc(ncx.ID))
	for _, ref := range pkg.Spine {
		if ref.Linear {
			fmt.Fprintf(&b, "    <itemref idref=\"%s\"/>\n", esc(ref.IDRef))
		} else {
			fmt.Fprintf(&b, "    <itemref idref=\"%s\" linear=\"no\"/>\n", esc(ref.IDRef))
		}
	}
	b.WriteString("  </spine>\n")
	b.WriteString("</package>\n")

	return []byte(b.String()), nil
}

func writeOptional(b *strings.Builder, element, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "    <dc:%s>%s</dc:%s>\n", element, html.EscapeString(value), element)
}
