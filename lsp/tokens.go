package lsp

import (
	"bytes"
	"encoding/json"
	"fmt"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// TokensResult is a semantic tokens response.  At most one of Full and Delta
// is set; both are nil when the server answered null.
type TokensResult struct {
	Full  *protocol.SemanticTokens
	Delta *protocol.SemanticTokensDelta
}

// tokensShape has the union of the full and delta response fields.  The
// pointers tell which fields were present.
type tokensShape struct {
	ResultID *string                        `json:"resultId,omitempty"`
	Data     *[]protocol.UInteger           `json:"data,omitempty"`
	Edits    *[]protocol.SemanticTokensEdit `json:"edits,omitempty"`
}

// decodeTokens discriminates a "SemanticTokens | SemanticTokensDelta | null"
// response by which fields it carries.
func decodeTokens(raw json.RawMessage) (TokensResult, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return TokensResult{}, nil
	}
	var s tokensShape
	if err := json.Unmarshal(raw, &s); err != nil {
		return TokensResult{}, fmt.Errorf("decode semantic tokens: %w", err)
	}
	switch {
	case s.Edits != nil:
		return TokensResult{Delta: &protocol.SemanticTokensDelta{ResultId: s.ResultID, Edits: *s.Edits}}, nil
	case s.Data != nil:
		return TokensResult{Full: &protocol.SemanticTokens{ResultID: s.ResultID, Data: *s.Data}}, nil
	}
	return TokensResult{}, fmt.Errorf("decode semantic tokens: response has neither data nor edits: %s", raw)
}
