package semtok

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
	"sync/atomic"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// State is one published version of a document's tokens.  Tokens is always
// exactly Decode(Data).  A State is never modified after it is published.
type State struct {
	ResultID *string  // nil until the server issues one
	Data     []uint32 // the wire array; deltas are splices against it
	Tokens   []Token
}

// Storage is the token index for one open document.
//
// Mutations (SetData, ApplyDelta) must be serialized by the caller.  Reads
// (State, TokensFor) may run concurrently with each other and with a
// mutation; they observe either the old or the new state, never a mix.
type Storage interface {
	State() *State
	SetData(tokens protocol.SemanticTokens)
	TokensFor(r protocol.Range) []Token
	ApplyDelta(delta protocol.SemanticTokensDelta) ([]TokenRange, error)
}

// TokenStore is the production Storage.
type TokenStore struct {
	state atomic.Pointer[State]
}

var _ Storage = (*TokenStore)(nil)

// NewTokenStore returns an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// State returns the current state, or nil if no response has been stored.
func (s *TokenStore) State() *State {
	return s.state.Load()
}

// SetData replaces the state wholesale.  The store takes ownership of
// tokens.Data; the caller must not modify it afterwards.
func (s *TokenStore) SetData(tokens protocol.SemanticTokens) {
	s.state.Store(&State{
		ResultID: tokens.ResultID,
		Data:     tokens.Data,
		Tokens:   Decode(tokens.Data),
	})
}

// TokensFor returns the tokens whose start lies in [r.Start, r.End), in
// position order.  A token that starts before r.Start is not returned even if
// it extends into r, and a token starting inside r may extend past r.End;
// callers clip to what they draw.
//
// The returned slice shares memory with the store and must not be modified.
func (s *TokenStore) TokensFor(r protocol.Range) []Token {
	st := s.state.Load()
	if st == nil {
		return nil
	}
	toks := st.Tokens
	lo := sort.Search(len(toks), func(i int) bool {
		return !before(toks[i].Line, toks[i].Char, r.Start)
	})
	hi := lo
	for hi < len(toks) && before(toks[hi].Line, toks[hi].Char, r.End) {
		hi++
	}
	if lo == hi {
		return nil
	}
	return slices.Clip(toks[lo:hi])
}

// ApplyDelta splices delta's edits into a copy of the stored array, decodes
// the result once, and publishes it.  It returns the token ranges covered by
// each edit both before and after the splice.  The ranges over-approximate
// what changed and may repeat; callers coalesce them.
//
// Edits are applied from the highest start index down so that no splice moves
// the indices of an edit still to be applied.
//
// On error the stored state is unchanged.
func (s *TokenStore) ApplyDelta(delta protocol.SemanticTokensDelta) ([]TokenRange, error) {
	cur := s.state.Load()
	if cur == nil {
		return nil, ErrNoState
	}

	edits := slices.Clone(delta.Edits)
	slices.SortStableFunc(edits, func(a, b protocol.SemanticTokensEdit) int {
		return cmp.Compare(b.Start, a.Start)
	})

	data := slices.Clone(cur.Data)
	var ranges []TokenRange
	for _, e := range edits {
		start, del := int(e.Start), int(e.DeleteCount)
		if start > len(data) || del > len(data)-start {
			return nil, fmt.Errorf("%w: edit at %d deleting %d exceeds %d values",
				ErrMalformedDelta, start, del, len(data))
		}
		ranges = append(ranges, invalidatedRanges(start, del, data)...)
		data = slices.Replace(data, start, start+del, e.Data...)
		if e.Data != nil {
			ranges = append(ranges, invalidatedRanges(start, len(e.Data), data)...)
		}
	}
	if len(data)%tupleLen != 0 {
		return nil, fmt.Errorf("%w: result has %d values, not a multiple of %d",
			ErrMalformedDelta, len(data), tupleLen)
	}

	s.state.Store(&State{
		ResultID: delta.ResultId,
		Data:     data,
		Tokens:   Decode(data),
	})
	return ranges, nil
}

// invalidatedRanges returns one range per 5-tuple overlapping
// data[start:start+length].  start is rounded down to a tuple boundary.  The
// fields are read raw: Line and Char are the tuple's relative deltas, not
// absolute positions.
func invalidatedRanges(start, length int, data []uint32) []TokenRange {
	var out []TokenRange
	end := start + length
	for idx := start - start%tupleLen; idx < end && idx+2 < len(data); idx += tupleLen {
		out = append(out, TokenRange{
			Line:   data[idx],
			Char:   data[idx+1],
			Length: data[idx+2],
		})
	}
	return out
}
