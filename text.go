package semtok

import (
	"math"
	"unicode/utf16"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Text is an immutable snapshot of a window body.  It converts between LSP
// positions (line, UTF-16 code unit) and acme rune offsets.
type Text struct {
	lines   [][]rune // without the trailing newline
	offsets []int    // rune offset of the start of each line
	nrunes  int
}

var _ Screen = (*Text)(nil)

// NewText indexes body.  Invalid UTF-8 decodes to U+FFFD, one rune per bad
// byte, matching how acme loads such files.
func NewText(body []byte) *Text {
	t := &Text{}
	var line []rune
	start := 0
	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		body = body[size:]
		t.nrunes++
		if r == '\n' {
			t.lines = append(t.lines, line)
			t.offsets = append(t.offsets, start)
			line = nil
			start = t.nrunes
			continue
		}
		line = append(line, r)
	}
	t.lines = append(t.lines, line)
	t.offsets = append(t.offsets, start)
	return t
}

// String returns the text.
func (t *Text) String() string {
	buf := make([]rune, 0, t.nrunes)
	for i, l := range t.lines {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, l...)
	}
	return string(buf)
}

// Extent implements Screen.
func (t *Text) Extent() ScreenRange {
	return ScreenRange{Q0: 0, Q1: t.nrunes}
}

// ScreenRange implements Screen.  The token must lie on one line; a length
// running past the end of the line is clipped to it.
func (t *Text) ScreenRange(line, char, length uint32) (ScreenRange, bool) {
	if int64(line) >= int64(len(t.lines)) {
		return ScreenRange{}, false
	}
	l := t.lines[line]
	col, ok := runeCol(l, char)
	if !ok {
		return ScreenRange{}, false
	}
	endChar := char + length
	if endChar < char {
		endChar = math.MaxUint32
	}
	end, _ := runeCol(l, endChar)
	base := t.offsets[line]
	return ScreenRange{Q0: base + col, Q1: base + end}, true
}

// PositionRange implements Screen.
func (t *Text) PositionRange(r ScreenRange) (protocol.Range, bool) {
	if r.Q0 < 0 || r.Q1 < r.Q0 || r.Q1 > t.nrunes {
		return protocol.Range{}, false
	}
	return protocol.Range{Start: t.position(r.Q0), End: t.position(r.Q1)}, true
}

// position converts an in-bounds rune offset to an LSP position.
func (t *Text) position(q int) protocol.Position {
	// Last line whose start is <= q.
	lo, hi := 0, len(t.offsets)
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if t.offsets[mid] <= q {
			lo = mid
		} else {
			hi = mid
		}
	}
	col := q - t.offsets[lo]
	var units uint32
	for _, r := range t.lines[lo][:min(col, len(t.lines[lo]))] {
		units += utf16Len(r)
	}
	return protocol.Position{Line: uint32(lo), Character: units}
}

// runeCol returns the rune column of UTF-16 offset char in line.  An offset
// inside a surrogate pair resolves to the pair's rune.  It reports false and
// len(line) when char is past the end of the line.
func runeCol(line []rune, char uint32) (int, bool) {
	var units uint32
	for i, r := range line {
		if units >= char {
			return i, true
		}
		units += utf16Len(r)
		if units > char {
			return i, true
		}
	}
	return len(line), units == char
}

func utf16Len(r rune) uint32 {
	if n := utf16.RuneLen(r); n > 0 {
		return uint32(n)
	}
	return 1
}
