package semtok

import (
	"fmt"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/cptaffe/acme-semtok/config"
)

// Handler is a compiled FilenameHandler, ready for matching.
type Handler struct {
	re         *regexp.Regexp // nil for glob handlers
	glob       string
	languageID string
}

// CompileHandlers pre-compiles the FilenameHandler patterns from cfg.
// An invalid regexp or glob is returned as an error.
func CompileHandlers(cfg *config.Config) ([]Handler, error) {
	out := make([]Handler, 0, len(cfg.FilenameHandlers))
	for _, fh := range cfg.FilenameHandlers {
		h := Handler{languageID: fh.LanguageID}
		switch {
		case fh.Pattern != "":
			re, err := regexp.Compile(fh.Pattern)
			if err != nil {
				return nil, fmt.Errorf("FilenameHandler pattern %q: %w", fh.Pattern, err)
			}
			h.re = re
		default:
			if !doublestar.ValidatePattern(fh.Glob) {
				return nil, fmt.Errorf("FilenameHandler glob %q: %w", fh.Glob, doublestar.ErrBadPattern)
			}
			h.glob = fh.Glob
		}
		out = append(out, h)
	}
	return out, nil
}

func (h Handler) match(name string) bool {
	if h.re != nil {
		return h.re.MatchString(name)
	}
	ok, _ := doublestar.Match(h.glob, name)
	return ok
}

// detectLanguage returns the language ID of the first handler matching
// name, or "" if none does.
func detectLanguage(handlers []Handler, name string) string {
	for _, h := range handlers {
		if h.match(name) {
			return h.languageID
		}
	}
	return ""
}
