// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mfget/mfget/pkg/mediafire"
)

// StatsResponse is the body of /api/stats and of "stats" WebSocket messages.
type StatsResponse struct {
	mediafire.Snapshot

	Done           int     `json:"done"`
	Percent        float64 `json:"percent"`
	TotalSizeText  string  `json:"totalSizeText"`
	DownloadedText string  `json:"downloadedText"`
}

func newStatsResponse(s mediafire.Snapshot) StatsResponse {
	resp := StatsResponse{
		Snapshot:       s,
		Done:           s.Done(),
		TotalSizeText:  mediafire.FormatSize(s.TotalSize),
		DownloadedText: mediafire.FormatSize(s.DownloadedBytes),
	}
	if s.TotalSize > 0 {
		resp.Percent = min(100, float64(s.DownloadedBytes)*100/float64(s.TotalSize))
	}
	return resp
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	runID, link := s.runID, s.link
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.config.Version,
		"run":     runID,
		"link":    link,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStats returns the current counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "No run attached", "")
		return
	}
	writeJSON(w, http.StatusOK, newStatsResponse(snap))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}
