package semtok

import "github.com/cptaffe/acme-styles/layer"

// layerEntries converts highlights (sorted by Q0, as Highlights returns them)
// into acme-styles layer entries.  A highlight takes its type's style, or its
// first modifier's style when the type has none.  Adjacent runs with the same
// style are merged into one entry.
func layerEntries(hs []Highlight) []layer.Entry {
	var entries []layer.Entry
	for _, h := range hs {
		style := h.Style
		if style == StyleNone && len(h.Modifiers) > 0 {
			style = h.Modifiers[0]
		}
		if style == StyleNone || h.Empty() {
			continue
		}
		if n := len(entries); n > 0 {
			last := &entries[n-1]
			if last.Name == string(style) && last.End == h.Q0 {
				last.End = h.Q1
				continue
			}
		}
		entries = append(entries, layer.Entry{
			Name:  string(style),
			Start: h.Q0,
			End:   h.Q1,
		})
	}
	return entries
}
