package lsp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestDecodeTokens(t *testing.T) {
	id := func(s string) *string { return &s }

	cases := []struct {
		name    string
		raw     string
		want    TokensResult
		wantErr bool
	}{
		{name: "null", raw: "null", want: TokensResult{}},
		{name: "empty", raw: "", want: TokensResult{}},
		{
			name: "full",
			raw:  `{"resultId":"4","data":[0,0,4,1,0]}`,
			want: TokensResult{Full: &protocol.SemanticTokens{ResultID: id("4"), Data: []protocol.UInteger{0, 0, 4, 1, 0}}},
		},
		{
			name: "full without result id",
			raw:  `{"data":[]}`,
			want: TokensResult{Full: &protocol.SemanticTokens{Data: []protocol.UInteger{}}},
		},
		{
			name: "delta",
			raw:  `{"resultId":"5","edits":[{"start":5,"deleteCount":5,"data":[0,5,4,3,0]},{"start":0,"deleteCount":0}]}`,
			want: TokensResult{Delta: &protocol.SemanticTokensDelta{
				ResultId: id("5"),
				Edits: []protocol.SemanticTokensEdit{
					{Start: 5, DeleteCount: 5, Data: []protocol.UInteger{0, 5, 4, 3, 0}},
					{Start: 0, DeleteCount: 0},
				},
			}},
		},
		{name: "neither data nor edits", raw: `{"resultId":"6"}`, wantErr: true},
		{name: "not an object", raw: `[1,2,3]`, wantErr: true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := decodeTokens(json.RawMessage(c.raw))
			if c.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestFullSupportsDelta(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`{"delta":true}`, true},
		{`{"delta":false}`, false},
		{`{}`, false},
		{`true`, false},
		{``, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, fullSupportsDelta(json.RawMessage(c.raw)), "fullSupportsDelta(%s)", c.raw)
	}
}
