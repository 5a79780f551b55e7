package hanconv

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newTestConverter(t *testing.T) *Converter {
	t.Helper()
	c := New(Options{})
	if !c.Available() {
		t.Fatal("opencc table not available")
	}
	return c
}

func TestDetect(t *testing.T) {
	c := New(Options{})

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"simplified", "这是一个国家", true},
		{"traditional", "這是一個國家", false},
		{"latin", "Hello, World!", false},
		{"empty", "", false},
		{"shared characters only", "中文字", false},
		{"traditional with shared simplified forms", "批准黨員的萬字文件，价体党准与无", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Detect(tt.text); got != tt.want {
				t.Fatalf("Detect(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestDetect_CustomMarkers(t *testing.T) {
	c := New(Options{Markers: ParseMarkers([]string{"中"})})
	if !c.Detect("中文") {
		t.Fatal("custom marker not detected")
	}
	if c.Detect("国") {
		t.Fatal("default markers should be replaced by custom markers")
	}
}

func TestConvert(t *testing.T) {
	c := newTestConverter(t)

	got, err := c.Convert("国家")
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if got != "國家" {
		t.Fatalf("Convert() = %q, want %q", got, "國家")
	}
}

func TestConvert_Unavailable(t *testing.T) {
	c := &Converter{markers: map[rune]struct{}{}, logger: slog.Default()}

	got, err := c.Convert("国家")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Convert() error = %v, want ErrUnavailable", err)
	}
	if got != "国家" {
		t.Fatalf("Convert() = %q, want input unchanged", got)
	}
}

func TestConvertIfSimplified(t *testing.T) {
	c := newTestConverter(t)

	got, changed := c.ConvertIfSimplified("這是測試")
	if changed || got != "這是測試" {
		t.Fatalf("traditional input: got %q changed=%v", got, changed)
	}

	got, changed = c.ConvertIfSimplified("这是国家")
	if !changed {
		t.Fatal("simplified input: changed = false")
	}
	if got != "這是國家" {
		t.Fatalf("simplified input: got %q", got)
	}
}

func TestConvertMarkup(t *testing.T) {
	c := newTestConverter(t)

	in := `<html><head><title>国家</title><style>p { font-family: "国"; }</style></head>` +
		`<body><p class="国" title="国家">这是国家</p><!-- 国 --></body></html>`
	got, changed := c.ConvertMarkup(in)
	if !changed {
		t.Fatal("ConvertMarkup() changed = false")
	}

	for _, want := range []string{
		`<title>國家</title>`,
		`<p class="国" title="国家">這是國家</p>`,
		`font-family: "国";`,
		`<!-- 国 -->`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\n%s", want, got)
		}
	}
}

func TestConvertMarkup_AttributeOnly(t *testing.T) {
	c := newTestConverter(t)

	in := `<p title="国家">Hello</p>`
	got, changed := c.ConvertMarkup(in)
	if changed || got != in {
		t.Fatalf("ConvertMarkup() = %q, %v; want unchanged", got, changed)
	}
}

func TestConvertMarkup_PreservesXMLDeclaration(t *testing.T) {
	c := newTestConverter(t)

	in := "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<html xmlns=\"http://www.w3.org/1999/xhtml\"><body><p>国<br/>家</p></body></html>"
	got, _ := c.ConvertMarkup(in)
	if !strings.HasPrefix(got, `<?xml version="1.0" encoding="utf-8"?>`) {
		t.Fatalf("XML declaration lost: %q", got)
	}
	if !strings.Contains(got, "<br/>") {
		t.Fatalf("self-closing tag rewritten: %q", got)
	}
}

func TestStatus(t *testing.T) {
	var c *Converter
	if c.Status() != "unavailable" {
		t.Fatalf("nil converter Status() = %q", c.Status())
	}
}
