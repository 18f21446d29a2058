package semtok

import (
	"path/filepath"
	"strings"
)

// shebangs maps interpreter base-names to language IDs.
// Version suffixes (python3.11, node20, …) are stripped before lookup.
var shebangs = map[string]string{
	// Shell
	"ash":  "bash",
	"bash": "bash",
	"dash": "bash",
	"ksh":  "bash",
	"sh":   "bash",
	"zsh":  "bash",
	// Python
	"python":  "python",
	"python2": "python",
	"python3": "python",
	// JavaScript / TypeScript
	"bun":     "typescript",
	"deno":    "typescript",
	"ts-node": "typescript",
	"node":    "javascript",
	"nodejs":  "javascript",
	// Others with common language servers
	"ruby":        "ruby",
	"perl":        "perl",
	"lua":         "lua",
	"rust-script": "rust",
	"scala":       "scala",
	"scala-cli":   "scala",
}

// detectByShebang returns the language ID named by a #! interpreter line,
// or "" if firstLine is not a shebang or the interpreter is unknown.
func detectByShebang(firstLine string) string {
	interp := shebangInterpreter(firstLine)
	if interp == "" {
		return ""
	}
	return langIDForInterpreter(interp)
}

// shebangInterpreter extracts the interpreter base-name from a shebang line.
//
// It handles the common forms:
//
//	#!/bin/bash
//	#!/usr/bin/env python3
//	#!/usr/bin/env -S deno run --allow-net   (env flags are skipped)
func shebangInterpreter(line string) string {
	if !strings.HasPrefix(line, "#!") {
		return ""
	}
	fields := strings.Fields(line[2:])
	if len(fields) == 0 {
		return ""
	}
	base := filepath.Base(fields[0])
	if base != "env" {
		return base
	}
	for _, f := range fields[1:] {
		if !strings.HasPrefix(f, "-") {
			return filepath.Base(f)
		}
	}
	return ""
}

// langIDForInterpreter maps an interpreter base-name to a language ID,
// retrying without a trailing version so "python3.11" → "python".
func langIDForInterpreter(name string) string {
	if id, ok := shebangs[name]; ok {
		return id
	}
	stripped := strings.TrimRightFunc(name, func(r rune) bool {
		return r == '.' || (r >= '0' && r <= '9')
	})
	if stripped != "" && stripped != name {
		return shebangs[stripped]
	}
	return ""
}
