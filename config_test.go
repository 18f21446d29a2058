package semtok

import (
	"testing"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cptaffe/acme-semtok/config"
)

func TestDetectLanguage(t *testing.T) {
	handlers, err := CompileHandlers(&config.Config{
		FilenameHandlers: []config.FilenameHandler{
			{Pattern: `_test\.go$`, LanguageID: "gotest"},
			{Pattern: `\.go$`, LanguageID: "go"},
			{Glob: "/**/*.{ts,tsx}", LanguageID: "typescript"},
			{Glob: "/home/*/src/py/**/*.py", LanguageID: "python"},
		},
	})
	require.NoError(t, err)
	require.Len(t, handlers, 4)

	cases := []struct {
		name string
		want string
	}{
		{"/src/pkg/main.go", "go"},
		{"/src/pkg/main_test.go", "gotest"},
		{"/src/web/app/index.tsx", "typescript"},
		{"/src/web/util.ts", "typescript"},
		{"/home/me/src/py/pkg/mod.py", "python"},
		{"/tmp/mod.py", ""},
		{"/src/README.md", ""},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, detectLanguage(handlers, c.name), "detectLanguage(%q)", c.name)
	}
}

func TestCompileHandlersErrors(t *testing.T) {
	_, err := CompileHandlers(&config.Config{
		FilenameHandlers: []config.FilenameHandler{{Pattern: `(unclosed`, LanguageID: "go"}},
	})
	assert.ErrorContains(t, err, "(unclosed")

	_, err = CompileHandlers(&config.Config{
		FilenameHandlers: []config.FilenameHandler{{Glob: "src/[a-", LanguageID: "go"}},
	})
	assert.ErrorIs(t, err, doublestar.ErrBadPattern)
}
