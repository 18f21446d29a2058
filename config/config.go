// Package config handles loading and parsing acme-semtok's YAML config.
package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// DefaultDebounce is how long after the last edit a window waits before
// asking its language server for new tokens.
const DefaultDebounce = 200 * time.Millisecond

// Config is the top-level structure of ~/lib/acme-semtok/config.yaml.
type Config struct {
	// Servers maps language IDs to the language server that handles them.
	// The language ID is also sent to the server in didOpen.
	Servers map[string]Server `yaml:"servers"`

	// FilenameHandlers maps filenames to language IDs.  Evaluated in order;
	// first match wins.  Files no handler matches fall back to shebang
	// detection.
	FilenameHandlers []FilenameHandler `yaml:"filename_handlers"`

	// Styles overrides the built-in token name to palette entry mapping.
	Styles Styles `yaml:"styles"`

	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration `yaml:"debounce"`
}

// Server describes how to run a language server.
type Server struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// Root is the workspace root passed to the server and its working
	// directory.  Empty means the directory of the first file opened.
	Root string `yaml:"root"`

	InitializationOptions map[string]any `yaml:"initialization_options"`
}

// FilenameHandler associates filenames with a language ID.  Exactly one of
// Pattern (a Go regular expression) and Glob (a doublestar pattern matched
// against the full path) is set.
type FilenameHandler struct {
	Pattern    string `yaml:"pattern"`
	Glob       string `yaml:"glob"`
	LanguageID string `yaml:"language_id"`
}

// Styles maps server token type and modifier names to acme-styles palette
// entry names.  Mapping a name to "" removes a built-in mapping.
type Styles struct {
	Types     map[string]string `yaml:"types"`
	Modifiers map[string]string `yaml:"modifiers"`
}

// Load reads path from fs and returns the parsed, validated Config.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// Validate reports every problem in c.
func (c *Config) Validate() error {
	var err error
	ids := make([]string, 0, len(c.Servers))
	for id := range c.Servers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if c.Servers[id].Command == "" {
			err = multierr.Append(err, fmt.Errorf("server %q: command is required", id))
		}
	}
	for i, fh := range c.FilenameHandlers {
		if (fh.Pattern == "") == (fh.Glob == "") {
			err = multierr.Append(err, fmt.Errorf("filename handler %d: exactly one of pattern and glob is required", i))
		}
		if _, ok := c.Servers[fh.LanguageID]; !ok {
			err = multierr.Append(err, fmt.Errorf("filename handler %d: no server for language %q", i, fh.LanguageID))
		}
	}
	return err
}
