// Package semtok keeps the semantic tokens a language server reports for an
// open document, applies the server's delta updates to them, and answers
// "which tokens start in this range" queries for redrawing.
package semtok

import protocol "github.com/tliron/glsp/protocol_3_16"

// tupleLen is the number of uint32 values that encode one token on the wire:
// deltaLine, deltaStartChar, length, tokenType, tokenModifiers.
const tupleLen = 5

// Token is one decoded semantic token.  Line and Char are absolute, zero-based,
// and Char counts UTF-16 code units as the protocol does.
type Token struct {
	Line      uint32
	Char      uint32
	Length    uint32
	Type      uint32 // index into the legend's token types
	Modifiers uint32 // bitmask over the legend's token modifiers
}

// Start returns the token's start position.
func (t Token) Start() protocol.Position {
	return protocol.Position{Line: t.Line, Character: t.Char}
}

// TokenRange is a positional span marked dirty by a delta.  It carries no
// type information.
type TokenRange struct {
	Line   uint32
	Char   uint32
	Length uint32
}

// before reports whether position (line, char) sorts strictly before p.
func before(line, char uint32, p protocol.Position) bool {
	if line != p.Line {
		return line < p.Line
	}
	return char < p.Character
}

// Decode expands the relative wire encoding into absolute tokens.  The line
// field is a delta from the previous token's line; the char field is a delta
// from the previous token's start when both are on the same line, and an
// absolute column otherwise.  A trailing partial tuple is ignored.
//
// The result is sorted by start position because the encoding only carries
// non-negative deltas.
func Decode(data []uint32) []Token {
	n := len(data) / tupleLen
	if n == 0 {
		return nil
	}
	tokens := make([]Token, 0, n)
	var line, char uint32
	for i := 0; i+tupleLen <= len(data); i += tupleLen {
		if dl := data[i]; dl != 0 {
			line += dl
			char = data[i+1]
		} else {
			char += data[i+1]
		}
		tokens = append(tokens, Token{
			Line:      line,
			Char:      char,
			Length:    data[i+2],
			Type:      data[i+3],
			Modifiers: data[i+4],
		})
	}
	return tokens
}
