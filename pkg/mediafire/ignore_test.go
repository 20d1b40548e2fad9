// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import "testing"

func TestIgnorePolicy(t *testing.T) {
	p := NewIgnorePolicy(DefaultIgnoreExtensions, DefaultIgnoreNames)

	cases := map[string]bool{
		"module.pyc":    true,
		"lib.pyd":       true,
		".DS_Store":     true,
		"Thumbs.db":     true,
		"myThumbs.db":   true,
		"desktop.ini":   true,
		"__pycache__":   true,
		"Desktop.ini":   false,
		"module.py":     false,
		"pyc":           false,
		"notes.txt":     false,
		"desktop.ini.1": false,
	}
	for name, want := range cases {
		if got := p.Ignored(name); got != want {
			t.Errorf("Ignored(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestIgnorePolicy_BlankEntries(t *testing.T) {
	p := NewIgnorePolicy([]string{"", "  ", ".tmp "}, []string{""})
	if p.Ignored("anything") {
		t.Fatal("blank extension must not match everything")
	}
	if !p.Ignored("x.tmp") {
		t.Fatal("trimmed extension should match")
	}
	if p.Ignored("") {
		t.Fatal("blank name must be dropped")
	}
}
