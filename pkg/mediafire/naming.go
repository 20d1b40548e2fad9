// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/spf13/afero"
)

// Kind tells a file link from a folder link.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// Link is a parsed MediaFire share link.
type Link struct {
	Kind Kind
	Key  string
}

var linkRe = regexp.MustCompile(`mediafire\.com/(folder|file|file_premium)/([a-zA-Z0-9]+)`)

// ParseLink extracts the kind and key from a MediaFire URL such as
// https://www.mediafire.com/folder/abc123/Name or .../file/xyz/name.zip.
func ParseLink(s string) (Link, error) {
	m := linkRe.FindStringSubmatch(s)
	if m == nil {
		return Link{}, fmt.Errorf("%w: %q", ErrInvalidLink, s)
	}
	if m[1] == "folder" {
		return Link{Kind: KindFolder, Key: m[2]}, nil
	}
	return Link{Kind: KindFile, Key: m[2]}, nil
}

// Sanitize maps a remote name to one that is safe on every local filesystem.
// Letters, digits, '-', '_', '.' and ' ' are kept; everything else becomes '-'.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r):
			b.WriteRune(r)
		case r == '-', r == '_', r == '.', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

// HashFile returns the hex SHA-256 of a local file.
func HashFile(fsys afero.Fs, path string) (string, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FormatSize renders a byte count with two decimals in 1024-based units.
func FormatSize(n uint64) string {
	if n == 0 {
		return "0.00 B"
	}
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if size < 1024 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.2f PB", size)
}

func joinPath(dir, name string) string {
	return filepath.Join(dir, name)
}
