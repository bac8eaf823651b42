package extract

import (
	"bytes"
	"context"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/kailas-cloud/docingest/internal/domain"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

func extractText(_ context.Context, data []byte, params map[string]string) (string, error) {
	return decode(data, params["charset"])
}

// decode converts data to UTF-8. A byte order mark wins over the declared charset;
// undeclared non-UTF-8 input is read as Latin-1.
func decode(data []byte, charset string) (string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):]), nil
	case bytes.HasPrefix(data, bomUTF16LE):
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), data)
	case bytes.HasPrefix(data, bomUTF16BE):
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM), data)
	}

	if charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return "", fmt.Errorf("charset %q: %w", charset, domain.ErrUnsupportedFormat)
		}
		if enc != unicode.UTF8 {
			return decodeWith(enc, data)
		}
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	return decodeWith(charmap.ISO8859_1, data)
}

func decodeWith(enc encoding.Encoding, data []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode text: %v: %w", err, domain.ErrExtractionFailure)
	}
	return string(out), nil
}
