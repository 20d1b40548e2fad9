// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) (*Log, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	l := New(fs, "/cfg/mfget/history.txa", nil)
	l.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local) }
	return l, fs
}

func TestRecordAndList(t *testing.T) {
	l, _ := newTestLog(t)

	l.Record("first.zip", "1.00 MB")
	l.Record("second.zip", "2.00 MB")

	entries, err := l.List()
	require.NoError(t, err)
	require.Equal(t, []Entry{
		{Date: "2024-05-06 07:08:09", File: "second.zip", Size: "2.00 MB"},
		{Date: "2024-05-06 07:08:09", File: "first.zip", Size: "1.00 MB"},
	}, entries)
}

func TestKeepsLastEntries(t *testing.T) {
	l, _ := newTestLog(t)
	for i := 0; i < MaxEntries+20; i++ {
		l.Record(fmt.Sprintf("f%03d", i), "1.00 B")
	}

	entries, err := l.List()
	require.NoError(t, err)
	require.Len(t, entries, MaxEntries)
	require.Equal(t, fmt.Sprintf("f%03d", MaxEntries+19), entries[0].File)
	require.Equal(t, "f020", entries[len(entries)-1].File)
}

func TestFileIsObfuscated(t *testing.T) {
	l, fs := newTestLog(t)
	l.Record("secret-name.bin", "3.00 KB")

	data, err := afero.ReadFile(fs, l.Path())
	require.NoError(t, err)
	require.NotContains(t, string(data), "secret-name")

	raw, err := base64.StdEncoding.DecodeString(string(data))
	require.NoError(t, err)
	require.NotContains(t, string(raw), "secret-name")
	require.Contains(t, xor(string(raw)), `"file":"secret-name.bin"`)
}

func TestDecodeCompatibleFormat(t *testing.T) {
	// Python's json.dumps separators, as written by older tools.
	plain := `[{"date": "2024-01-02 03:04:05", "file": "café.txt", "size": "10.00 B"}]`
	data := base64.StdEncoding.EncodeToString([]byte(xor(plain)))

	entries, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Equal(t, []Entry{{Date: "2024-01-02 03:04:05", File: "café.txt", Size: "10.00 B"}}, entries)
}

func TestUnicodeRoundTrip(t *testing.T) {
	in := []Entry{{Date: "d", File: "日本語 файл.zip", Size: "1.00 KB"}}
	data, err := Encode(in)
	require.NoError(t, err)
	out, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestCorruptFile(t *testing.T) {
	l, fs := newTestLog(t)
	require.NoError(t, afero.WriteFile(fs, l.Path(), []byte("!!not base64!!"), 0o600))

	_, err := l.List()
	require.Error(t, err)

	// Recording replaces the unreadable file.
	l.Record("new.txt", "1.00 B")
	entries, err := l.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestMissingFileIsEmpty(t *testing.T) {
	l, _ := newTestLog(t)
	entries, err := l.List()
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestConcurrentRecord(t *testing.T) {
	l, _ := newTestLog(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Record(fmt.Sprintf("c%d", i), "1.00 B")
		}(i)
	}
	wg.Wait()

	entries, err := l.List()
	require.NoError(t, err)
	require.Len(t, entries, 20)
}
