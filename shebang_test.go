package semtok

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShebangInterpreter(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{"#!/bin/sh", "sh"},
		{"#!/bin/bash", "bash"},
		{"#!/usr/bin/env bash", "bash"},
		{"#!/usr/bin/env python3", "python3"},
		{"#!/usr/bin/env python3.11", "python3.11"},
		{"#!/usr/bin/env -S scala -classpath lib", "scala"},
		{"#!/usr/bin/env -vS node", "node"},
		{"#!/usr/bin/env -S deno run --allow-net", "deno"},
		{"#! /usr/bin/perl -w", "perl"},
		{"# not a shebang", ""},
		{"", ""},
		{"#!", ""},
		{"#!/usr/bin/env -S", ""}, // env -S with nothing after
	}
	for _, c := range cases {
		assert.Equal(t, c.want, shebangInterpreter(c.line), "shebangInterpreter(%q)", c.line)
	}
}

func TestLangIDForInterpreter(t *testing.T) {
	cases := []struct {
		interp string
		wantID string
	}{
		{"bash", "bash"},
		{"sh", "bash"},
		{"zsh", "bash"},
		{"python", "python"},
		{"python3", "python"},
		{"python3.11", "python"},
		{"python2.7", "python"},
		{"node", "javascript"},
		{"node20", "javascript"},
		{"nodejs", "javascript"},
		{"deno", "typescript"},
		{"bun", "typescript"},
		{"ts-node", "typescript"},
		{"ruby", "ruby"},
		{"perl", "perl"},
		{"lua5.4", "lua"},
		{"scala", "scala"},
		{"scala3", "scala"},
		{"rust-script", "rust"},
		{"fish", ""}, // no language server
		{"awk", ""},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.wantID, langIDForInterpreter(c.interp), "langIDForInterpreter(%q)", c.interp)
	}
}

func TestDetectByShebang(t *testing.T) {
	cases := []struct {
		line     string
		wantLang string
	}{
		{"#!/usr/bin/env python3", "python"},
		{"#!/usr/bin/env python3.11", "python"},
		{"#!/usr/bin/env bash", "bash"},
		{"#!/bin/sh", "bash"},
		{"#!/usr/bin/env -S scala", "scala"},
		{"#!/usr/bin/env node", "javascript"},
		{"#!/usr/bin/env -S deno run", "typescript"},
		{"#!/usr/bin/env rust-script", "rust"},
		{"package main", ""},       // not a shebang
		{"#!/usr/bin/env awk", ""}, // unknown interpreter
	}
	for _, c := range cases {
		assert.Equal(t, c.wantLang, detectByShebang(c.line), "detectByShebang(%q)", c.line)
	}
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "#!/bin/sh", firstLine([]byte("#!/bin/sh\necho hi\n")))
	assert.Equal(t, "no newline", firstLine([]byte("no newline")))
	assert.Equal(t, "", firstLine(nil))
}
