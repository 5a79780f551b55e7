package pdfextract

import (
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"
)

// kerningSpace is the TJ displacement (thousandths of an em) treated as a
// word gap.
const kerningSpace = -200

type operand struct {
	str   []byte
	num   float64
	isNum bool
	isStr bool
	// array holds the elements of a [ ... ] operand.
	array []operand
}

// textBlock accumulates the text of one BT/ET block.
type textBlock struct {
	b        strings.Builder
	sizeSum  float64
	runes    int
	fontSize float64
}

func (tb *textBlock) write(s string) {
	if s == "" {
		return
	}
	tb.b.WriteString(s)
	n := utf8.RuneCountInString(s)
	tb.runes += n
	tb.sizeSum += tb.fontSize * float64(n)
}

func (tb *textBlock) newline() {
	s := tb.b.String()
	if s == "" || strings.HasSuffix(s, "\n") {
		return
	}
	tb.b.WriteByte('\n')
}

func (tb *textBlock) run() (Run, bool) {
	text := normalizeBlockText(tb.b.String())
	if text == "" {
		return Run{}, false
	}
	r := Run{Text: text}
	if tb.runes > 0 && tb.sizeSum > 0 {
		r.FontSize = tb.sizeSum / float64(tb.runes)
	}
	return r, true
}

// parseContentStream extracts one Run per BT/ET text block of a decoded page
// content stream. Text shown outside a block is collected into an implicit one.
func parseContentStream(data []byte) []Run {
	var (
		runs     []Run
		operands []operand
		block    *textBlock
		fontSize float64
		stack    [][]operand // open arrays
	)

	flush := func() {
		if block == nil {
			return
		}
		if r, ok := block.run(); ok {
			runs = append(runs, r)
		}
		block = nil
	}
	current := func() *textBlock {
		if block == nil {
			block = &textBlock{fontSize: fontSize}
		}
		return block
	}
	push := func(op operand) {
		if n := len(stack); n > 0 {
			stack[n-1] = append(stack[n-1], op)
			return
		}
		operands = append(operands, op)
	}

	i := 0
	for i < len(data) {
		c := data[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			s, next := readLiteralString(data, i)
			push(operand{str: s, isStr: true})
			i = next
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			// Inline dictionaries (marked content properties) carry no text.
			i = skipDict(data, i)
		case c == '<':
			s, next := readHexString(data, i)
			push(operand{str: s, isStr: true})
			i = next
		case c == '[':
			stack = append(stack, nil)
			i++
		case c == ']':
			if n := len(stack); n > 0 {
				arr := stack[n-1]
				stack = stack[:n-1]
				push(operand{array: arr})
			}
			i++
		case c == '/':
			j := i + 1
			for j < len(data) && !isPDFSpace(data[j]) && !isPDFDelimiter(data[j]) {
				j++
			}
			push(operand{})
			i = j
		case isPDFDelimiter(c):
			i++
		default:
			j := i
			for j < len(data) && !isPDFSpace(data[j]) && !isPDFDelimiter(data[j]) {
				j++
			}
			tok := string(data[i:j])
			i = j

			if v, err := strconv.ParseFloat(tok, 64); err == nil {
				push(operand{num: v, isNum: true})
				continue
			}

			switch tok {
			case "BT":
				flush()
				current()
			case "ET":
				flush()
			case "Tf":
				if n := len(operands); n > 0 && operands[n-1].isNum {
					fontSize = operands[n-1].num
					if block != nil {
						block.fontSize = fontSize
					}
				}
			case "Tj":
				if s, ok := lastString(operands); ok {
					current().write(decodeTextString(s))
				}
			case "'", "\"":
				tb := current()
				tb.newline()
				if s, ok := lastString(operands); ok {
					tb.write(decodeTextString(s))
				}
			case "TJ":
				if n := len(operands); n > 0 {
					current().write(showArray(operands[n-1].array))
				}
			case "T*":
				current().newline()
			case "Td", "TD":
				if n := len(operands); n >= 2 && operands[n-1].isNum && operands[n-1].num != 0 && block != nil {
					block.newline()
				}
			case "Tm":
				if block != nil {
					block.newline()
				}
			case "ID":
				i = skipInlineImage(data, i)
			}
			operands = operands[:0]
		}
	}
	flush()
	return runs
}

func lastString(ops []operand) ([]byte, bool) {
	if n := len(ops); n > 0 && ops[n-1].isStr {
		return ops[n-1].str, true
	}
	return nil, false
}

func showArray(arr []operand) string {
	var b strings.Builder
	for _, el := range arr {
		switch {
		case el.isStr:
			b.WriteString(decodeTextString(el.str))
		case el.isNum && el.num <= kerningSpace:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// readLiteralString reads a balanced (...) string starting at data[start] and
// returns the unescaped bytes and the index after the closing parenthesis.
func readLiteralString(data []byte, start int) ([]byte, int) {
	var out bytes.Buffer
	depth := 0
	i := start
	for i < len(data) {
		c := data[i]
		switch {
		case c == '\\' && i+1 < len(data):
			i++
			e := data[i]
			switch e {
			case 'n':
				out.WriteByte('\n')
			case 'r':
				out.WriteByte('\r')
			case 't':
				out.WriteByte('\t')
			case 'b':
				out.WriteByte('\b')
			case 'f':
				out.WriteByte('\f')
			case '\r', '\n':
				// line continuation
				if e == '\r' && i+1 < len(data) && data[i+1] == '\n' {
					i++
				}
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						val = val*8 + int(data[i]-'0')
					}
					out.WriteByte(byte(val))
				} else {
					out.WriteByte(e)
				}
			}
			i++
		case c == '(':
			if depth > 0 {
				out.WriteByte(c)
			}
			depth++
			i++
		case c == ')':
			depth--
			i++
			if depth == 0 {
				return out.Bytes(), i
			}
			out.WriteByte(c)
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.Bytes(), i
}

// readHexString reads a <...> string starting at data[start].
func readHexString(data []byte, start int) ([]byte, int) {
	end := bytes.IndexByte(data[start:], '>')
	if end < 0 {
		return nil, len(data)
	}
	var digits []byte
	for _, c := range data[start+1 : start+end] {
		if !isPDFSpace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, hex.DecodedLen(len(digits)))
	n, err := hex.Decode(out, digits)
	if err != nil {
		return nil, start + end + 1
	}
	return out[:n], start + end + 1
}

func skipDict(data []byte, start int) int {
	depth := 0
	i := start
	for i+1 < len(data) {
		switch {
		case data[i] == '<' && data[i+1] == '<':
			depth++
			i += 2
		case data[i] == '>' && data[i+1] == '>':
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		case data[i] == '(':
			_, i = readLiteralString(data, i)
		default:
			i++
		}
	}
	return len(data)
}

// skipInlineImage skips binary inline image data up to and including EI.
func skipInlineImage(data []byte, start int) int {
	for i := start; i+2 < len(data); i++ {
		if isPDFSpace(data[i]) && data[i+1] == 'E' && data[i+2] == 'I' &&
			(i+3 == len(data) || isPDFSpace(data[i+3])) {
			return i + 3
		}
	}
	return len(data)
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// normalizeBlockText trims each line and drops empty ones.
func normalizeBlockText(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
