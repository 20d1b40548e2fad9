// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import (
	"time"
)

// FileEntry is a file as described by the remote catalog.
//
// It is immutable once fetched; a worker owns it exclusively while the file
// is being transferred.
type FileEntry struct {
	// Name is the remote file name, before sanitizing.
	Name string `json:"name"`

	// Size is the size reported by the catalog. It may be inaccurate.
	Size uint64 `json:"size"`

	// Hash is the remote SHA-256 of the file content, hex encoded.
	Hash string `json:"hash"`

	// DownloadPage is the indirect page that links to the actual transfer URL.
	DownloadPage string `json:"downloadPage"`

	// Key is the remote quick key of the file.
	Key string `json:"key"`
}

// FolderEntry is a sub-folder reference returned by a folder listing.
type FolderEntry struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// DownloadTask pairs a file with the local directory it is written to.
// The destination file is Dir/Sanitize(File.Name).
type DownloadTask struct {
	File FileEntry `json:"file"`
	Dir  string    `json:"dir"`
}

// Path returns the local destination path of the task.
func (t DownloadTask) Path() string {
	return joinPath(t.Dir, Sanitize(t.File.Name))
}

// Settings configures discovery and transfer behavior.
//
// Example:
//
//	cfg := mediafire.DefaultSettings()
//	cfg.OutputDir = "./Downloads"
//	cfg.Concurrency = 20
type Settings struct {
	// OutputDir is the base directory for downloads. Folder links create a
	// sub-directory named after the remote folder.
	// If empty, defaults to ".".
	OutputDir string

	// Concurrency limits how many files transfer simultaneously.
	// If <= 0, defaults to 10.
	Concurrency int

	// IgnoreExtensions lists name suffixes that are never downloaded,
	// e.g. ".pyc" or "Thumbs.db".
	IgnoreExtensions []string

	// IgnoreNames lists exact file names that are never downloaded.
	IgnoreNames []string

	// Endpoint is the MediaFire base URL. Override it for tests or mirrors.
	// If empty, defaults to DefaultEndpoint.
	Endpoint string

	// RequestTimeout bounds every catalog request.
	// If <= 0, defaults to 30s.
	RequestTimeout time.Duration

	// TransferTimeout bounds the download page fetch and the wait for the
	// transfer response headers. The body stream itself is bounded only by
	// the context.
	// If <= 0, defaults to 60s.
	TransferTimeout time.Duration

	// UserAgent is sent with page and transfer requests.
	// If empty, defaults to DefaultUserAgent.
	UserAgent string

	// StrictCounting stops files that already exist locally from also being
	// counted as downloaded.
	StrictCounting bool
}

// DefaultSettings returns Settings with sensible defaults filled in.
func DefaultSettings() Settings {
	return Settings{
		OutputDir:        ".",
		Concurrency:      10,
		IgnoreExtensions: append([]string(nil), DefaultIgnoreExtensions...),
		IgnoreNames:      append([]string(nil), DefaultIgnoreNames...),
		Endpoint:         DefaultEndpoint,
		RequestTimeout:   30 * time.Second,
		TransferTimeout:  60 * time.Second,
		UserAgent:        DefaultUserAgent,
	}
}

// withDefaults fills zero fields. Ignore lists are left alone: an empty list
// means nothing is ignored.
func (s Settings) withDefaults() Settings {
	if s.OutputDir == "" {
		s.OutputDir = "."
	}
	if s.Concurrency <= 0 {
		s.Concurrency = 10
	}
	if s.Endpoint == "" {
		s.Endpoint = DefaultEndpoint
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = 30 * time.Second
	}
	if s.TransferTimeout <= 0 {
		s.TransferTimeout = 60 * time.Second
	}
	if s.UserAgent == "" {
		s.UserAgent = DefaultUserAgent
	}
	return s
}

// ProgressEvent represents a progress update during a run.
type ProgressEvent struct {
	// Time is when the event occurred.
	Time time.Time `json:"time"`

	// Event is the event type identifier, see the package documentation.
	Event string `json:"event"`

	// Path is the local destination path of the file.
	Path string `json:"path,omitempty"`

	// Name is the remote file name.
	Name string `json:"name,omitempty"`

	// Bytes is the size of the chunk in a "file_progress" event.
	Bytes int64 `json:"bytes,omitempty"`

	// Total is the expected size of the file.
	Total int64 `json:"total,omitempty"`

	// Downloaded is the number of bytes written for this file so far.
	Downloaded int64 `json:"downloaded,omitempty"`

	// Message contains additional context or error details.
	Message string `json:"message,omitempty"`
}

// ProgressFunc receives progress events. It is invoked from multiple
// goroutines and must be safe for concurrent use.
type ProgressFunc func(ProgressEvent)

// HistorySink records completed downloads.
type HistorySink interface {
	Record(name, size string)
}

// Outcome is the terminal state of a single transfer.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeSkipped
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Summary is the result of a run.
type Summary struct {
	Snapshot

	// Interrupted is set when the run context was cancelled.
	Interrupted bool `json:"interrupted"`
}
