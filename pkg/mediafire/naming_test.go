// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"my file_v2-final.tar.gz", "my file_v2-final.tar.gz"},
		{"a/b\\c:d*e?f\"g<h>i|j", "a-b-c-d-e-f-g-h-i-j"},
		{"café ünïcode.txt", "café ünïcode.txt"},
		{"photo (1).jpg", "photo -1-.jpg"},
		{"", ""},
		{"..", ".."},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Sanitize(tt.in), "Sanitize(%q)", tt.in)
		require.Equal(t, tt.want, Sanitize(Sanitize(tt.in)), "Sanitize must be idempotent for %q", tt.in)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0.00 B"},
		{1, "1.00 B"},
		{1023, "1023.00 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{10 << 20, "10.00 MB"},
		{3 << 30, "3.00 GB"},
		{1 << 40, "1.00 TB"},
		{1 << 50, "1.00 PB"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatSize(tt.in), "FormatSize(%d)", tt.in)
	}
}

func TestParseLink(t *testing.T) {
	tests := []struct {
		in   string
		want Link
		ok   bool
	}{
		{"https://www.mediafire.com/folder/abc123/My+Stuff", Link{Kind: KindFolder, Key: "abc123"}, true},
		{"https://www.mediafire.com/file/xyz789/archive.zip/file", Link{Kind: KindFile, Key: "xyz789"}, true},
		{"http://mediafire.com/file_premium/Prem1/", Link{Kind: KindFile, Key: "Prem1"}, true},
		{"https://example.com/folder/abc123", Link{}, false},
		{"not a url", Link{}, false},
	}
	for _, tt := range tests {
		got, err := ParseLink(tt.in)
		if !tt.ok {
			require.ErrorIs(t, err, ErrInvalidLink, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
}

func TestHashFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := make([]byte, 3*chunkSize+17)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, afero.WriteFile(fs, "/f.bin", data, 0o644))

	sum := sha256.Sum256(data)
	got, err := HashFile(fs, "/f.bin")
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(sum[:]), got)

	_, err = HashFile(fs, "/missing")
	require.Error(t, err)
}
