// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import "strings"

// Default ignore lists.
var (
	DefaultIgnoreExtensions = []string{".pyc", ".pyo", ".pyd", ".DS_Store", "Thumbs.db"}
	DefaultIgnoreNames      = []string{"__pycache__", "desktop.ini"}
)

// IgnorePolicy decides which discovered files are never downloaded.
type IgnorePolicy struct {
	extensions []string
	names      map[string]struct{}
}

// NewIgnorePolicy builds a policy from suffixes and exact names. Blank
// entries are dropped.
func NewIgnorePolicy(extensions, names []string) IgnorePolicy {
	p := IgnorePolicy{names: make(map[string]struct{}, len(names))}
	for _, e := range extensions {
		if e = strings.TrimSpace(e); e != "" {
			p.extensions = append(p.extensions, e)
		}
	}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			p.names[n] = struct{}{}
		}
	}
	return p
}

// Ignored reports whether name ends with an ignored extension or equals an
// ignored name. Matching is case-sensitive.
func (p IgnorePolicy) Ignored(name string) bool {
	for _, ext := range p.extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	_, ok := p.names[name]
	return ok
}
