package semtok

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestTextScreenRange(t *testing.T) {
	// 😀 is one rune and two UTF-16 code units; é is one of each.
	text := NewText([]byte("a😀b\ncafé x\n"))

	cases := []struct {
		name               string
		line, char, length uint32
		want               ScreenRange
		ok                 bool
	}{
		{name: "ascii", line: 0, char: 0, length: 1, want: ScreenRange{Q0: 0, Q1: 1}, ok: true},
		{name: "surrogate pair", line: 0, char: 1, length: 2, want: ScreenRange{Q0: 1, Q1: 2}, ok: true},
		{name: "after surrogate pair", line: 0, char: 3, length: 1, want: ScreenRange{Q0: 2, Q1: 3}, ok: true},
		{name: "second line", line: 1, char: 0, length: 4, want: ScreenRange{Q0: 4, Q1: 8}, ok: true},
		{name: "length clipped to line", line: 1, char: 5, length: 40, want: ScreenRange{Q0: 9, Q1: 10}, ok: true},
		{name: "huge length clipped to line", line: 1, char: 5, length: math.MaxUint32, want: ScreenRange{Q0: 9, Q1: 10}, ok: true},
		{name: "end of line", line: 1, char: 6, length: 0, want: ScreenRange{Q0: 10, Q1: 10}, ok: true},
		{name: "past end of line", line: 1, char: 7, length: 1},
		{name: "missing line", line: 5, char: 0, length: 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := text.ScreenRange(c.line, c.char, c.length)
			require.Equal(t, c.ok, ok)
			if ok {
				assert.Equal(t, c.want, got)
			}
		})
	}
}

func TestTextPositionRange(t *testing.T) {
	text := NewText([]byte("a😀b\ncafé x\n"))

	cases := []struct {
		name string
		r    ScreenRange
		want protocol.Range
		ok   bool
	}{
		{
			name: "whole text",
			r:    text.Extent(),
			want: protocol.Range{End: protocol.Position{Line: 2}},
			ok:   true,
		},
		{
			name: "counts code units",
			r:    ScreenRange{Q0: 2, Q1: 9},
			want: protocol.Range{
				Start: protocol.Position{Line: 0, Character: 3},
				End:   protocol.Position{Line: 1, Character: 5},
			},
			ok: true,
		},
		{
			name: "newline position is end of line",
			r:    ScreenRange{Q0: 3, Q1: 4},
			want: protocol.Range{
				Start: protocol.Position{Line: 0, Character: 4},
				End:   protocol.Position{Line: 1, Character: 0},
			},
			ok: true,
		},
		{name: "past end", r: ScreenRange{Q0: 0, Q1: 12}},
		{name: "negative", r: ScreenRange{Q0: -1, Q1: 2}},
		{name: "inverted", r: ScreenRange{Q0: 5, Q1: 4}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := text.PositionRange(c.r)
			require.Equal(t, c.ok, ok)
			if ok {
				assert.Equal(t, c.want, got)
			}
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	body := "package main\n\n// héllo 𝄞 world\nfunc main() {}"
	text := NewText([]byte(body))
	assert.Equal(t, body, text.String())
	assert.Equal(t, ScreenRange{Q0: 0, Q1: len([]rune(body))}, text.Extent())

	// Every rune of the comment line maps back onto itself.
	line := []rune("// héllo 𝄞 world")
	base := len([]rune("package main\n\n"))
	for i := range line {
		pr, ok := text.PositionRange(ScreenRange{Q0: base + i, Q1: base + i + 1})
		require.True(t, ok)
		require.Equal(t, uint32(2), pr.Start.Line)
		sr, ok := text.ScreenRange(pr.Start.Line, pr.Start.Character, pr.End.Character-pr.Start.Character)
		require.True(t, ok)
		assert.Equal(t, ScreenRange{Q0: base + i, Q1: base + i + 1}, sr)
	}
}

func TestTextInvalidUTF8(t *testing.T) {
	text := NewText([]byte("a\xffb"))
	assert.Equal(t, ScreenRange{Q0: 0, Q1: 3}, text.Extent())
	sr, ok := text.ScreenRange(0, 2, 1)
	require.True(t, ok)
	assert.Equal(t, ScreenRange{Q0: 2, Q1: 3}, sr)
}

func TestSessions(t *testing.T) {
	ss := NewSessions()
	_, ok := ss.Screen(1)
	assert.False(t, ok)

	first := NewText([]byte("one"))
	ss.Put(1, first)
	s, ok := ss.Screen(1)
	require.True(t, ok)
	assert.Same(t, first, s)

	second := NewText([]byte("two"))
	ss.Put(1, second)
	s, _ = ss.Screen(1)
	assert.Same(t, second, s)

	ss.Delete(1)
	_, ok = ss.Screen(1)
	assert.False(t, ok)
}

func TestScreenRangeIntersect(t *testing.T) {
	a := ScreenRange{Q0: 2, Q1: 8}
	assert.Equal(t, ScreenRange{Q0: 4, Q1: 8}, a.Intersect(ScreenRange{Q0: 4, Q1: 12}))
	assert.True(t, a.Intersect(ScreenRange{Q0: 9, Q1: 12}).Empty())
	assert.False(t, a.Empty())
}
