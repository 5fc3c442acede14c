// Package segment splits plain text into sentence spans.
//
// Spans are half-open rune offsets into the text, which is the coordinate
// system of standoff.View.
package segment

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/sentences"

	"github.com/FocuswithJustin/standoff/core/errors"
)

// Span is a half-open range of rune offsets.
type Span struct {
	Start int
	End   int
}

// Len returns the number of runes in the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Segmenter finds sentences in a text. Returned spans are ordered, do not
// overlap, and never start or end with whitespace.
type Segmenter interface {
	Segment(text string) []Span
}

// Names lists the segmenters known to New.
var Names = []string{"uax29", "punct"}

// New returns the segmenter registered under name. The empty name selects
// the default UAX #29 segmenter.
func New(name string) (Segmenter, error) {
	switch name {
	case "", "uax29":
		return Sentences{}, nil
	case "punct":
		return NewPunctuation(), nil
	default:
		return nil, errors.NewUnsupported(fmt.Sprintf("segmenter %q", name), "known segmenters are uax29 and punct")
	}
}

// Sentences segments by Unicode UAX #29 sentence boundaries.
type Sentences struct{}

// Segment implements Segmenter.
func (Sentences) Segment(text string) []Span {
	idx := newRuneIndex(text)
	var out []Span
	seg := sentences.FromString(text)
	for seg.Next() {
		if s, ok := idx.trimmed(seg.Start(), seg.End()); ok {
			out = append(out, s)
		}
	}
	return out
}

// Punctuation ends a sentence after ., ! or ? (plus closing quotes and
// brackets) followed by whitespace or the end of the text.
type Punctuation struct {
	re *regexp.Regexp
}

var sentenceEnd = regexp.MustCompile(`[.!?]+["'”’)\]]*(\s+|$)`)

// NewPunctuation returns the punctuation segmenter.
func NewPunctuation() *Punctuation {
	return &Punctuation{re: sentenceEnd}
}

// Segment implements Segmenter.
func (p *Punctuation) Segment(text string) []Span {
	idx := newRuneIndex(text)
	var out []Span
	start := 0
	for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
		// m[2] is where the trailing whitespace begins.
		if s, ok := idx.trimmed(start, m[2]); ok {
			out = append(out, s)
		}
		start = m[1]
	}
	if s, ok := idx.trimmed(start, len(text)); ok {
		out = append(out, s)
	}
	return out
}

// runeIndex converts byte offsets of text to rune offsets. Lookups must come
// in non-decreasing byte order.
type runeIndex struct {
	text  string
	bytes int
	runes int
}

func newRuneIndex(text string) *runeIndex {
	return &runeIndex{text: text}
}

func (x *runeIndex) at(b int) int {
	if b < x.bytes {
		// Rewind for a lookup behind the cursor.
		x.bytes, x.runes = 0, 0
	}
	x.runes += utf8.RuneCountInString(x.text[x.bytes:b])
	x.bytes = b
	return x.runes
}

// trimmed strips whitespace from both ends of the byte range [start, end) and
// returns the rune span; ok is false if nothing is left.
func (x *runeIndex) trimmed(start, end int) (Span, bool) {
	for start < end {
		r, size := utf8.DecodeRuneInString(x.text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(x.text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	if start == end {
		return Span{}, false
	}
	return Span{Start: x.at(start), End: x.at(end)}, true
}

// Texts returns the runes of text covered by each span. text is decoded
// once; a span outside it yields "".
func Texts(text string, spans []Span) []string {
	runes := []rune(text)
	out := make([]string, len(spans))
	for i, s := range spans {
		if s.Start >= 0 && s.End <= len(runes) && s.Start <= s.End {
			out[i] = string(runes[s.Start:s.End])
		}
	}
	return out
}
