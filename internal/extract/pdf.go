package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/kailas-cloud/docingest/internal/domain"
)

var disableConfigDir sync.Once

func extractPDF(ctx context.Context, data []byte, _ map[string]string) (text string, err error) {
	disableConfigDir.Do(api.DisableConfigDir)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v: %w", r, domain.ErrExtractionFailure)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdf, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return "", fmt.Errorf("read pdf: %v: %w", err, domain.ErrExtractionFailure)
	}
	if err := api.ValidateContext(pdf); err != nil {
		return "", fmt.Errorf("validate pdf: %v: %w", err, domain.ErrExtractionFailure)
	}

	var b strings.Builder
	for page := 1; page <= pdf.PageCount; page++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("extract page %d: %w", page, err)
		}
		r, err := pdfcpu.ExtractPageContent(pdf, page)
		if err != nil {
			return "", fmt.Errorf("page %d content: %v: %w", page, err, domain.ErrExtractionFailure)
		}
		if r == nil {
			continue
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("page %d content: %v: %w", page, err, domain.ErrExtractionFailure)
		}
		if pageText := TextFromContentStream(content); pageText != "" {
			b.WriteString(pageText)
			b.WriteString("\n\n")
		}
	}
	return b.String(), nil
}

// TextFromContentStream collects the operands of the text-showing operators
// (Tj, TJ, ' and ") in a decoded page content stream.
// Line-moving operators become newlines.
func TextFromContentStream(content []byte) string {
	lx := &contentLexer{src: content}
	var (
		b        strings.Builder
		operands []contentToken
	)
	newline := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteByte('\n')
		}
	}

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			writeLastString(&b, operands)
		case "'", "\"":
			newline()
			writeLastString(&b, operands)
		case "TJ":
			writeArray(&b, operands)
		case "T*", "ET", "Tm":
			newline()
		case "Td", "TD":
			if len(operands) >= 2 && operands[len(operands)-1].number() != 0 {
				newline()
			} else if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte(' ')
			}
		case "BI":
			lx.skipInlineImage()
		}
		operands = operands[:0]
	}
	return strings.TrimSpace(b.String())
}

func writeLastString(b *strings.Builder, operands []contentToken) {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == tokString {
			b.WriteString(decodePDFString(operands[i].raw))
			return
		}
	}
}

// kerningSpace is the TJ displacement, in thousandths of text space, treated as a word gap.
const kerningSpace = -200

func writeArray(b *strings.Builder, operands []contentToken) {
	start := -1
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == tokArrayStart {
			start = i
			break
		}
	}
	if start < 0 {
		return
	}
	for _, t := range operands[start+1:] {
		switch t.kind {
		case tokString:
			b.WriteString(decodePDFString(t.raw))
		case tokNumber:
			if t.number() <= kerningSpace {
				b.WriteByte(' ')
			}
		}
	}
}

func decodePDFString(raw []byte) string {
	if bytes.HasPrefix(raw, bomUTF16BE) {
		out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
		if err == nil {
			return string(out)
		}
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	return string(out)
}

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokNumber
	tokString
	tokName
	tokArrayStart
	tokArrayEnd
	tokDict
)

type contentToken struct {
	kind tokenKind
	text string
	raw  []byte
}

func (t contentToken) number() float64 {
	f, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return 0
	}
	return f
}

type contentLexer struct {
	src []byte
	pos int
}

func isPDFSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0:
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

func (l *contentLexer) next() (contentToken, bool) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isPDFSpace(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			return contentToken{kind: tokString, raw: l.literalString()}, true
		case c == '<':
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '<' {
				l.pos += 2
				return contentToken{kind: tokDict, text: "<<"}, true
			}
			return contentToken{kind: tokString, raw: l.hexString()}, true
		case c == '>':
			l.pos++
			if l.pos < len(l.src) && l.src[l.pos] == '>' {
				l.pos++
			}
			return contentToken{kind: tokDict, text: ">>"}, true
		case c == '[':
			l.pos++
			return contentToken{kind: tokArrayStart}, true
		case c == ']':
			l.pos++
			return contentToken{kind: tokArrayEnd}, true
		case c == '/':
			l.pos++
			return contentToken{kind: tokName, text: l.word()}, true
		case c == '{' || c == '}' || c == ')':
			l.pos++
		default:
			w := l.word()
			if w == "" {
				l.pos++
				continue
			}
			if _, err := strconv.ParseFloat(w, 64); err == nil {
				return contentToken{kind: tokNumber, text: w}, true
			}
			return contentToken{kind: tokOperator, text: w}, true
		}
	}
	return contentToken{}, false
}

func (l *contentLexer) word() string {
	start := l.pos
	for l.pos < len(l.src) && !isPDFSpace(l.src[l.pos]) && !isPDFDelimiter(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

func (l *contentLexer) literalString() []byte {
	l.pos++ // (
	var out []byte
	depth := 1
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		case '\\':
			out = l.escape(out)
		default:
			out = append(out, c)
		}
	}
	return out
}

func (l *contentLexer) escape(out []byte) []byte {
	if l.pos >= len(l.src) {
		return out
	}
	c := l.src[l.pos]
	l.pos++
	switch c {
	case 'n':
		return append(out, '\n')
	case 'r':
		return append(out, '\r')
	case 't':
		return append(out, '\t')
	case 'b':
		return append(out, '\b')
	case 'f':
		return append(out, '\f')
	case '\r':
		if l.pos < len(l.src) && l.src[l.pos] == '\n' {
			l.pos++
		}
		return out
	case '\n':
		return out
	}
	if c >= '0' && c <= '7' {
		v := int(c - '0')
		for i := 0; i < 2 && l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '7'; i++ {
			v = v*8 + int(l.src[l.pos]-'0')
			l.pos++
		}
		return append(out, byte(v))
	}
	return append(out, c)
}

func (l *contentLexer) hexString() []byte {
	l.pos++ // <
	var digits []byte
	for l.pos < len(l.src) && l.src[l.pos] != '>' {
		if c := l.src[l.pos]; !isPDFSpace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			continue
		}
		out = append(out, byte(v))
	}
	return out
}

// skipInlineImage advances past the binary payload of a BI ... ID ... EI block.
func (l *contentLexer) skipInlineImage() {
	idx := bytes.Index(l.src[l.pos:], []byte("ID"))
	if idx < 0 {
		l.pos = len(l.src)
		return
	}
	l.pos += idx + 2
	for l.pos < len(l.src) {
		end := bytes.Index(l.src[l.pos:], []byte("EI"))
		if end < 0 {
			l.pos = len(l.src)
			return
		}
		l.pos += end + 2
		before := l.pos - 3
		if before >= 0 && isPDFSpace(l.src[before]) && (l.pos >= len(l.src) || isPDFSpace(l.src[l.pos])) {
			return
		}
	}
}
