package semtok

import (
	"math/bits"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Legend translates the integer type and modifier indices of a server's
// tokens into palette styles.  It is built once per server session and is
// read-only afterwards, so it may be shared between goroutines.
type Legend struct {
	types     []Style // by token type index
	modifiers []Style // by modifier bit index
}

// NewLegend resolves every name the server declared against styles.  Names
// with no mapping resolve to StyleNone rather than failing.
func NewLegend(l protocol.SemanticTokensLegend, styles StyleMap) *Legend {
	lg := &Legend{
		types:     make([]Style, len(l.TokenTypes)),
		modifiers: make([]Style, len(l.TokenModifiers)),
	}
	for i, name := range l.TokenTypes {
		lg.types[i] = lookupStyle(styles.Types, name)
	}
	for i, name := range l.TokenModifiers {
		lg.modifiers[i] = lookupStyle(styles.Modifiers, name)
	}
	return lg
}

// Span is a token with its type and modifiers resolved to styles.
type Span struct {
	Line      uint32
	Char      uint32
	Length    uint32
	Type      Style   // StyleNone if the type index is unknown or unmapped
	Modifiers []Style // resolved modifiers, in bit order; unknown bits dropped
}

// Empty reports whether the span has nothing to draw.
func (s Span) Empty() bool {
	return s.Type == StyleNone && len(s.Modifiers) == 0
}

// Decode resolves tokens into spans, one per token, in the same order.
// Out-of-range type indices and unknown modifier bits are ignored.
func (lg *Legend) Decode(tokens []Token) []Span {
	spans := make([]Span, 0, len(tokens))
	for _, t := range tokens {
		spans = append(spans, Span{
			Line:      t.Line,
			Char:      t.Char,
			Length:    t.Length,
			Type:      lg.typeStyle(t.Type),
			Modifiers: lg.modifierStyles(t.Modifiers),
		})
	}
	return spans
}

func (lg *Legend) typeStyle(idx uint32) Style {
	if int64(idx) >= int64(len(lg.types)) {
		return StyleNone
	}
	return lg.types[idx]
}

func (lg *Legend) modifierStyles(mask uint32) []Style {
	var out []Style
	for mask != 0 {
		bit := bits.TrailingZeros32(mask)
		mask &^= 1 << bit
		if bit >= len(lg.modifiers) {
			continue
		}
		if s := lg.modifiers[bit]; s != StyleNone {
			out = append(out, s)
		}
	}
	return out
}
