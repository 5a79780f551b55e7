package epub

import (
	"bytes"
	"regexp"
	"strings"
)

// selfClosingRe matches an XML-style empty element tag such as <title/> or
// <a id="p1" />. Quoted attribute values may contain '/' and '>'.
var selfClosingRe = regexp.MustCompile(`<([A-Za-z][A-Za-z0-9:._-]*)((?:[^<>"']|"[^"]*"|'[^']*')*?)\s*/>`)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// ExpandSelfClosing rewrites empty non-void elements as an open and close tag
// pair. The HTML parser ignores the trailing slash on non-void elements.
func ExpandSelfClosing(data []byte) []byte {
	if !bytes.Contains(data, []byte("/>")) {
		return data
	}
	return selfClosingRe.ReplaceAllFunc(data, func(tag []byte) []byte {
		m := selfClosingRe.FindSubmatch(tag)
		name := string(m[1])
		if voidElements[strings.ToLower(name)] {
			return tag
		}
		attrs := strings.TrimRight(string(m[2]), " \t\r\n")
		return []byte("<" + name + attrs + "></" + name + ">")
	})
}
