// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package mediafire

import "sync"

// Snapshot is a point-in-time copy of the counters in Stats.
type Snapshot struct {
	TotalFiles      int    `json:"totalFiles"`
	TotalSize       uint64 `json:"totalSize"`
	DownloadedFiles int    `json:"downloadedFiles"`
	DownloadedBytes uint64 `json:"downloadedBytes"`
	Skipped         int    `json:"skipped"`
	Existing        int    `json:"existing"`
	Failed          int    `json:"failed"`
	Cancelled       int    `json:"cancelled"`
	Strict          bool   `json:"strict,omitempty"`
}

// Done returns the number of tasks that reached a terminal outcome.
func (s Snapshot) Done() int {
	n := s.DownloadedFiles + s.Failed + s.Cancelled
	if s.Strict {
		n += s.Existing
	}
	return n
}

// Stats is the set of counters shared by every worker of a run. All
// methods are safe for concurrent use; pollers read it with Snapshot.
// The zero value counts existing files as downloaded.
type Stats struct {
	mu sync.Mutex
	s  Snapshot
}

// NewStats returns empty counters. With strict set, files that already
// exist locally are counted only as skipped.
func NewStats(strict bool) *Stats {
	return &Stats{s: Snapshot{Strict: strict}}
}

// SetTotals records the size of the task list.
func (st *Stats) SetTotals(files int, size uint64) {
	st.mu.Lock()
	st.s.TotalFiles = files
	st.s.TotalSize = size
	st.mu.Unlock()
}

// AddBytes records n bytes written to disk.
func (st *Stats) AddBytes(n uint64) {
	st.mu.Lock()
	st.s.DownloadedBytes += n
	st.mu.Unlock()
}

// AddDownloaded records a completed transfer.
func (st *Stats) AddDownloaded() {
	st.mu.Lock()
	st.s.DownloadedFiles++
	st.mu.Unlock()
}

// AddSkipped records a file excluded by the ignore policy.
func (st *Stats) AddSkipped() {
	st.mu.Lock()
	st.s.Skipped++
	st.mu.Unlock()
}

// AddExisting records a file that was already present with the expected
// hash. Unless counting is strict, it also counts as downloaded, size
// included, so that done/total progress reaches the total.
func (st *Stats) AddExisting(size uint64) {
	st.mu.Lock()
	st.s.Skipped++
	st.s.Existing++
	if !st.s.Strict {
		st.s.DownloadedFiles++
		st.s.DownloadedBytes += size
	}
	st.mu.Unlock()
}

// AddFailed records a failed transfer.
func (st *Stats) AddFailed() {
	st.mu.Lock()
	st.s.Failed++
	st.mu.Unlock()
}

// AddCancelled records a transfer abandoned on cancellation.
func (st *Stats) AddCancelled() {
	st.mu.Lock()
	st.s.Cancelled++
	st.mu.Unlock()
}

// Snapshot returns a copy of the counters.
func (st *Stats) Snapshot() Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s
}
