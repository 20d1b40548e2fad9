// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package history keeps a small obfuscated log of completed downloads.
//
// The file holds a JSON array of entries, XOR-ed rune by rune with a fixed
// key and base64 encoded. Only the most recent MaxEntries are kept.
package history

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	// FileName is the history file name inside the config directory.
	FileName = "history.txa"

	// MaxEntries is the number of entries kept.
	MaxEntries = 100

	// DateLayout is the layout of Entry.Date.
	DateLayout = "2006-01-02 15:04:05"

	key = "txamediafire"
)

// Entry is one completed download.
type Entry struct {
	Date string `json:"date"`
	File string `json:"file"`
	Size string `json:"size"`
}

// Log is a history file. It is safe for concurrent use.
type Log struct {
	fs   afero.Fs
	path string
	log  *zap.Logger
	now  func() time.Time

	mu sync.Mutex
}

// New returns a Log stored at path on fs. A nil logger discards errors.
func New(fs afero.Fs, path string, log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{fs: fs, path: path, log: log, now: time.Now}
}

// DefaultPath returns <user config dir>/mfget/history.txa.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mfget", FileName), nil
}

// Path returns the location of the history file.
func (l *Log) Path() string { return l.path }

// Record appends an entry for a completed download. Failures are logged and
// otherwise ignored.
func (l *Log) Record(name, size string) {
	if err := l.Append(Entry{Date: l.now().Format(DateLayout), File: name, Size: size}); err != nil {
		l.log.Warn("cannot write history", zap.String("path", l.path), zap.Error(err))
	}
}

// Append adds e and trims the file to MaxEntries. An unreadable file is
// replaced.
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		entries = nil
	}
	entries = append(entries, e)
	if len(entries) > MaxEntries {
		entries = entries[len(entries)-MaxEntries:]
	}

	data, err := Encode(entries)
	if err != nil {
		return err
	}
	if err := l.fs.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	return afero.WriteFile(l.fs, l.path, data, 0o600)
}

// List returns the entries newest first. A missing file is empty.
func (l *Log) List() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	return entries, nil
}

func (l *Log) read() ([]Entry, error) {
	data, err := afero.ReadFile(l.fs, l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Encode serializes entries into the on-disk format.
func Encode(entries []Entry) ([]byte, error) {
	if entries == nil {
		entries = []Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	obf := xor(string(raw))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(obf)))
	base64.StdEncoding.Encode(out, []byte(obf))
	return out, nil
}

// Decode parses the on-disk format.
func Decode(data []byte) ([]Entry, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(xor(string(raw))), &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}

// xor is its own inverse. It works on runes so that non-ASCII names round
// trip.
func xor(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for _, r := range s {
		b.WriteRune(r ^ rune(key[i%len(key)]))
		i++
	}
	return b.String()
}
