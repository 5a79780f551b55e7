package epub

import (
	"strings"
	"testing"
)

func TestSplitFragment(t *testing.T) {
	tests := []struct {
		src, path, fragment string
	}{
		{"", "", ""},
		{"chapter1.xhtml", "chapter1.xhtml", ""},
		{"chapter1.xhtml#sec1", "chapter1.xhtml", "sec1"},
		{"#only", "", "only"},
		{"a.xhtml#b#c", "a.xhtml", "b#c"},
	}
	for _, tt := range tests {
		p, f := splitFragment(tt.src)
		if p != tt.path || f != tt.fragment {
			t.Errorf("splitFragment(%q) = (%q, %q), want (%q, %q)", tt.src, p, f, tt.path, tt.fragment)
		}
	}
}

func TestParseNCX_Nested(t *testing.T) {
	ncx := `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="p1" playOrder="1">
      <navLabel><text> Part 1 </text></navLabel>
      <content src="text/part1.xhtml"/>
      <navPoint id="c1" playOrder="2">
        <navLabel><text>Chapter 1</text></navLabel>
        <content src="../OEBPS/text/ch1.xhtml#start"/>
      </navPoint>
    </navPoint>
  </navMap>
</ncx>`

	points, err := parseNCX([]byte(ncx), "OEBPS")
	if err != nil {
		t.Fatalf("parseNCX() error = %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("len(points) = %d, want 1", len(points))
	}
	if points[0].Label != "Part 1" || points[0].ContentPath != "OEBPS/text/part1.xhtml" {
		t.Errorf("points[0] = %+v", points[0])
	}
	child := points[0].Children[0]
	if child.ContentPath != "OEBPS/text/ch1.xhtml" || child.Fragment != "start" || child.PlayOrder != 2 {
		t.Errorf("child = %+v", child)
	}
}

func TestParseNCX_Invalid(t *testing.T) {
	if _, err := parseNCX([]byte("<ncx><navMap>"), ""); err == nil {
		t.Fatal("parseNCX() on truncated XML should fail")
	}
}

func TestRenderNCX_RoundTrip(t *testing.T) {
	pkg := &Package{Metadata: Metadata{Title: "A & B", Identifier: "urn:x"}}
	points := []NavPoint{
		{ID: "n1", Label: "One", ContentPath: "OEBPS/text/one.xhtml", Children: []NavPoint{
			{ID: "n2", Label: "Two <b>", ContentPath: "OEBPS/text/one.xhtml", Fragment: "s2"},
		}},
	}

	data := renderNCX(pkg, points, "OEBPS/toc.ncx")
	if !strings.Contains(string(data), `<meta name="dtb:depth" content="2"/>`) {
		t.Errorf("depth meta missing:\n%s", data)
	}
	if !strings.Contains(string(data), `src="text/one.xhtml#s2"`) {
		t.Errorf("relative src missing:\n%s", data)
	}

	got, err := parseNCX(data, "OEBPS")
	if err != nil {
		t.Fatalf("parseNCX() error = %v", err)
	}
	if got[0].Children[0].Label != "Two <b>" || got[0].Children[0].PlayOrder != 2 {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestParseNAV(t *testing.T) {
	nav := `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<body>
<nav epub:type="landmarks"><ol><li><a href="cover.xhtml">Cover</a></li></ol></nav>
<nav epub:type="toc" id="toc">
  <h1>Contents</h1>
  <ol>
    <li><a href="text/ch1.xhtml">Chapter 1</a>
      <ol><li><a href="text/ch1.xhtml#s1">Section 1</a></li></ol>
    </li>
    <li><span>Appendix</span></li>
  </ol>
</nav>
</body></html>`

	points, err := parseNAV([]byte(nav), "OEBPS/nav.xhtml")
	if err != nil {
		t.Fatalf("parseNAV() error = %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2: %+v", len(points), points)
	}
	if points[0].Label != "Chapter 1" || points[0].ContentPath != "OEBPS/text/ch1.xhtml" {
		t.Errorf("points[0] = %+v", points[0])
	}
	if len(points[0].Children) != 1 || points[0].Children[0].Fragment != "s1" {
		t.Errorf("children = %+v", points[0].Children)
	}
	if points[1].Label != "Appendix" || points[1].ContentPath != "" {
		t.Errorf("points[1] = %+v", points[1])
	}
}

func TestRenderNav_ParseBack(t *testing.T) {
	pkg := &Package{
		Metadata: Metadata{Title: "Book", Language: "zh"},
		TOC: []NavPoint{
			{Label: "第一章", ContentPath: "OEBPS/text/chapter_001.xhtml"},
			{Label: "第二章", ContentPath: "OEBPS/text/chapter_002.xhtml"},
		},
	}

	data := RenderNav(pkg, "OEBPS/nav.xhtml")
	points, err := parseNAV(data, "OEBPS/nav.xhtml")
	if err != nil {
		t.Fatalf("parseNAV() error = %v", err)
	}
	if len(points) != 2 || points[1].Label != "第二章" || points[1].ContentPath != "OEBPS/text/chapter_002.xhtml" {
		t.Fatalf("points = %+v", points)
	}
}
