package semtok

import (
	"strings"
	"unicode"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Style names an acme-styles palette entry.  The empty Style means "no style".
type Style string

// Short palette names emitted by acme-semtok.  These must match the palette
// entries in the acme-styles master styles file.
const (
	StyleNone     Style = ""
	StyleKeyword  Style = "k"
	StyleComment  Style = "c"
	StyleString   Style = "s"
	StyleType     Style = "t"
	StyleNumber   Style = "n"
	StyleOperator Style = "o"
	StyleError    Style = "e"
	StyleFunction Style = "f"
	StyleMacro    Style = "m"
)

// StyleMap maps server-declared token type and modifier names to palette
// entries.
type StyleMap struct {
	Types     map[string]Style
	Modifiers map[string]Style
}

// DefaultStyles returns the built-in mapping for the standard LSP token types
// and modifiers.  Types with no sensible palette entry (variable, parameter,
// property, event) are left unmapped so they render unstyled.
func DefaultStyles() StyleMap {
	t := func(tt protocol.SemanticTokenType) string { return string(tt) }
	m := func(mm protocol.SemanticTokenModifier) string { return string(mm) }
	return StyleMap{
		Types: map[string]Style{
			t(protocol.SemanticTokenTypeKeyword):       StyleKeyword,
			t(protocol.SemanticTokenTypeModifier):      StyleKeyword,
			t(protocol.SemanticTokenTypeComment):       StyleComment,
			t(protocol.SemanticTokenTypeString):        StyleString,
			t(protocol.SemanticTokenTypeRegexp):        StyleString,
			t(protocol.SemanticTokenTypeNamespace):     StyleType,
			t(protocol.SemanticTokenTypeType):          StyleType,
			t(protocol.SemanticTokenTypeClass):         StyleType,
			t(protocol.SemanticTokenTypeEnum):          StyleType,
			t(protocol.SemanticTokenTypeInterface):     StyleType,
			t(protocol.SemanticTokenTypeStruct):        StyleType,
			t(protocol.SemanticTokenTypeTypeParameter): StyleType,
			t(protocol.SemanticTokenTypeNumber):        StyleNumber,
			t(protocol.SemanticTokenTypeEnumMember):    StyleNumber,
			t(protocol.SemanticTokenTypeOperator):      StyleOperator,
			t(protocol.SemanticTokenTypeFunction):      StyleFunction,
			t(protocol.SemanticTokenTypeMethod):        StyleFunction,
			t(protocol.SemanticTokenTypeMacro):         StyleMacro,
		},
		Modifiers: map[string]Style{
			m(protocol.SemanticTokenModifierDeprecated): StyleError,
		},
	}
}

// Merge returns a copy of sm with every entry of override applied on top.
// An override mapping a name to StyleNone removes that name.
func (sm StyleMap) Merge(types, modifiers map[string]string) StyleMap {
	out := StyleMap{
		Types:     make(map[string]Style, len(sm.Types)+len(types)),
		Modifiers: make(map[string]Style, len(sm.Modifiers)+len(modifiers)),
	}
	for k, v := range sm.Types {
		out.Types[k] = v
	}
	for k, v := range sm.Modifiers {
		out.Modifiers[k] = v
	}
	apply := func(dst map[string]Style, src map[string]string) {
		for k, v := range src {
			if v == "" {
				delete(dst, k)
				continue
			}
			dst[k] = Style(v)
		}
	}
	apply(out.Types, types)
	apply(out.Modifiers, modifiers)
	return out
}

// lookupStyle resolves a server-declared name with fallback:
//
//	"keyword.control" → "keyword"          (dotted scopes)
//	"builtinType"     → "type"             (camelCase suffix)
//	"selfTypeKeyword" → "typeKeyword" → "keyword"
//
// Servers routinely extend the standard legend with names like these.
// StyleNone means "skip this name".
func lookupStyle(table map[string]Style, name string) Style {
	for name != "" {
		if s, ok := table[name]; ok {
			return s
		}
		if dot := strings.LastIndex(name, "."); dot >= 0 {
			name = name[:dot]
			continue
		}
		name = dropCamelHead(name)
	}
	return StyleNone
}

// dropCamelHead removes the leading camelCase word: "selfTypeKeyword" →
// "typeKeyword".  It returns "" when name has a single word.
func dropCamelHead(name string) string {
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			rest := []rune(name[i:])
			rest[0] = unicode.ToLower(rest[0])
			return string(rest)
		}
	}
	return ""
}
