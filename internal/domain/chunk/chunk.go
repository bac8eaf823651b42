// Package chunk splits long text into bounded segments along line boundaries.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultTargetLength is used when the caller passes a non-positive target length.
const DefaultTargetLength = 1600

var lineBreaks = regexp.MustCompile(`\n+`)

// Split accumulates lines of text into segments of at most targetLength characters.
// Lines are separated by one or more newlines. A line longer than targetLength is
// hard-split into consecutive targetLength-character slices. Segments are trimmed;
// empty segments are dropped. Empty input yields nil.
func Split(text string, targetLength int) []string {
	if targetLength <= 0 {
		targetLength = DefaultTargetLength
	}
	if text == "" {
		return nil
	}

	var (
		segments []string
		buf      strings.Builder
		bufLen   int
	)
	emit := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	flush := func() {
		emit(buf.String())
		buf.Reset()
		bufLen = 0
	}

	for _, line := range lineBreaks.Split(text, -1) {
		lineLen := utf8.RuneCountInString(line)

		if lineLen > targetLength {
			flush()
			for _, piece := range hardSplit(line, targetLength) {
				emit(piece)
			}
			continue
		}

		if bufLen > 0 && bufLen+1+lineLen > targetLength {
			flush()
		}
		if bufLen > 0 {
			buf.WriteByte('\n')
			bufLen++
		}
		buf.WriteString(line)
		bufLen += lineLen
	}
	flush()

	return segments
}

// hardSplit cuts s into slices of n runes; the last slice may be shorter.
func hardSplit(s string, n int) []string {
	var (
		out   []string
		start int
		count int
	)
	for i := range s {
		if count == n {
			out = append(out, s[start:i])
			start = i
			count = 0
		}
		count++
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
